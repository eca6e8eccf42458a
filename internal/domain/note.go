package domain

import (
	"github.com/google/uuid"

	"github.com/rpattn/bitemporal/internal/temporal"
)

// Note is tracked without an activity model; saves must not supply one.
type Note struct {
	temporal.Clocked

	ID    uuid.UUID
	Title string
}

func (n *Note) TemporalID() uuid.UUID { return n.ID }

func (n *Note) TemporalValues() map[string]any {
	return map[string]any{"title": n.Title}
}
