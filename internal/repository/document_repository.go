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

// documentRepository implements DocumentRepository
type documentRepository struct {
	conn *db.Connection
	docs *temporal.Type
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(conn *db.Connection, docs *temporal.Type) DocumentRepository {
	return &documentRepository{conn: conn, docs: docs}
}

// Save upserts the primary row, persists the activity, and runs the
// temporal write protocol, all inside one transaction. Any failure rolls
// back everything, the primary row included.
func (r *documentRepository) Save(ctx context.Context, doc *domain.Document, activity *domain.DocumentActivity) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}

	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO documents (id, title, body, status, vclock)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, body = EXCLUDED.body, status = EXCLUDED.status`,
			doc.ID, doc.Title, doc.Body, doc.Status, doc.VClock,
		)
		if err != nil {
			return fmt.Errorf("failed to save document: %w", err)
		}

		var act temporal.Activity
		if activity != nil {
			if activity.ID == uuid.Nil {
				activity.ID = uuid.New()
			}
			// DO NOTHING: one activity may legitimately cover saves of
			// several different entities.
			_, err := tx.Exec(ctx,
				`INSERT INTO document_activity (id, description, actor)
				 VALUES ($1, $2, $3)
				 ON CONFLICT (id) DO NOTHING`,
				activity.ID, activity.Description, activity.Actor,
			)
			if err != nil {
				return fmt.Errorf("failed to save activity: %w", err)
			}
			act = *activity
		}

		return r.docs.RecordTransition(ctx, tx, doc, act)
	})
}

// GetByID retrieves a document and captures its baseline for change
// detection on the next save.
func (r *documentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	var doc domain.Document
	err := r.conn.Pool.QueryRow(ctx,
		`SELECT id, title, body, status, vclock FROM documents WHERE id = $1`, id,
	).Scan(&doc.ID, &doc.Title, &doc.Body, &doc.Status, &doc.VClock)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	doc.CaptureBaseline(doc.TemporalValues())
	return &doc, nil
}

// List retrieves all documents
func (r *documentRepository) List(ctx context.Context) ([]*domain.Document, error) {
	rows, err := r.conn.Pool.Query(ctx,
		`SELECT id, title, body, status, vclock FROM documents ORDER BY title ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		var doc domain.Document
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Body, &doc.Status, &doc.VClock); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc.CaptureBaseline(doc.TemporalValues())
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// Delete is rejected for every document; history must never be destroyed.
// Model removal as a tracked status value instead.
func (r *documentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return temporal.ErrTemporalDeleteForbidden
}

// BulkInsert is disabled: it would create primary rows with no clock or
// history rows.
func (r *documentRepository) BulkInsert(ctx context.Context, docs []*domain.Document) error {
	return fmt.Errorf("%w: use UnsafeBulkInsert if you are sure you know what you are doing", temporal.ErrBulkOperationDisabled)
}

// UnsafeBulkInsert writes primary rows without clock or history rows. The
// caller owns temporal consistency from here on.
func (r *documentRepository) UnsafeBulkInsert(ctx context.Context, docs []*domain.Document) error {
	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		for _, doc := range docs {
			if doc.ID == uuid.Nil {
				doc.ID = uuid.New()
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO documents (id, title, body, status, vclock) VALUES ($1, $2, $3, $4, $5)`,
				doc.ID, doc.Title, doc.Body, doc.Status, doc.VClock,
			)
			if err != nil {
				return fmt.Errorf("failed to bulk insert document: %w", err)
			}
		}
		return nil
	})
}

// Timeline reconstructs the document's full history.
func (r *documentRepository) Timeline(ctx context.Context, id uuid.UUID) ([]temporal.TimelineEntry, error) {
	return r.docs.Timeline(ctx, r.conn.Pool, id)
}
