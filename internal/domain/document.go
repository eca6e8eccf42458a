package domain

import (
	"github.com/google/uuid"

	"github.com/rpattn/bitemporal/internal/temporal"
)

// Document is the example tracked entity: title, body and status carry
// full bitemporal history.
type Document struct {
	temporal.Clocked

	ID     uuid.UUID
	Title  string
	Body   string
	Status string
}

func (d *Document) TemporalID() uuid.UUID { return d.ID }

func (d *Document) TemporalValues() map[string]any {
	return map[string]any{
		"title":  d.Title,
		"body":   d.Body,
		"status": d.Status,
	}
}

// DocumentActivity records why a document changed; one is required on
// every document save.
type DocumentActivity struct {
	ID          uuid.UUID
	Description string
	Actor       string
}

func (a DocumentActivity) ActivityID() uuid.UUID { return a.ID }
