package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/rpattn/bitemporal/internal/domain"
	"github.com/rpattn/bitemporal/internal/temporal"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("repository: not found")

// DocumentRepository defines the interface for document operations
type DocumentRepository interface {
	// Save persists the document and advances its temporal history in one
	// transaction. An activity is mandatory for documents.
	Save(ctx context.Context, doc *domain.Document, activity *domain.DocumentActivity) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Document, error)
	List(ctx context.Context) ([]*domain.Document, error)
	// Delete always fails: temporal history must never be destroyed.
	Delete(ctx context.Context, id uuid.UUID) error
	// BulkInsert always fails; it would write primary rows with no clock
	// or history rows. See UnsafeBulkInsert.
	BulkInsert(ctx context.Context, docs []*domain.Document) error
	// UnsafeBulkInsert writes primary rows only. The caller takes full
	// responsibility for maintaining clock/history consistency.
	UnsafeBulkInsert(ctx context.Context, docs []*domain.Document) error
	Timeline(ctx context.Context, id uuid.UUID) ([]temporal.TimelineEntry, error)
}

// NoteRepository defines the interface for note operations
type NoteRepository interface {
	Save(ctx context.Context, note *domain.Note) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Note, error)
	Timeline(ctx context.Context, id uuid.UUID) ([]temporal.TimelineEntry, error)
}
