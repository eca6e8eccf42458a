package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rpattn/bitemporal/internal/db"
	"github.com/rpattn/bitemporal/internal/domain"
	"github.com/rpattn/bitemporal/internal/temporal"
)

// noteRepository implements NoteRepository
type noteRepository struct {
	conn  *db.Connection
	notes *temporal.Type
}

// NewNoteRepository creates a new note repository
func NewNoteRepository(conn *db.Connection, notes *temporal.Type) NoteRepository {
	return &noteRepository{conn: conn, notes: notes}
}

// Save persists the note and its history. Notes have no activity model, so
// none is accepted.
func (r *noteRepository) Save(ctx context.Context, note *domain.Note) error {
	if note.ID == uuid.Nil {
		note.ID = uuid.New()
	}

	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO notes (id, title, vclock)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title`,
			note.ID, note.Title, note.VClock,
		)
		if err != nil {
			return fmt.Errorf("failed to save note: %w", err)
		}
		return r.notes.RecordTransition(ctx, tx, note, nil)
	})
}

func (r *noteRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Note, error) {
	var note domain.Note
	err := r.conn.Pool.QueryRow(ctx,
		`SELECT id, title, vclock FROM notes WHERE id = $1`, id,
	).Scan(&note.ID, &note.Title, &note.VClock)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get note: %w", err)
	}

	note.CaptureBaseline(note.TemporalValues())
	return &note, nil
}

func (r *noteRepository) Timeline(ctx context.Context, id uuid.UUID) ([]temporal.TimelineEntry, error) {
	return r.notes.Timeline(ctx, r.conn.Pool, id)
}
