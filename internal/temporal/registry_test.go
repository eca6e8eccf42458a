package temporal

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestRegisterValid(t *testing.T) {
	typ := newTestType(t, true)

	if typ.ClockTable() != "public.items_clock" {
		t.Fatalf("unexpected clock table %q", typ.ClockTable())
	}
	if typ.HistoryTable("title") != "public.items_history_title" {
		t.Fatalf("unexpected history table %q", typ.HistoryTable("title"))
	}
	if !typ.HasActivity() {
		t.Fatalf("expected activity to be configured")
	}
	if got := typ.Fields(); len(got) != 2 || got[0].Name != "title" || got[1].Name != "num" {
		t.Fatalf("fields not preserved in declaration order: %+v", got)
	}
}

func TestRegisterConfigurationErrors(t *testing.T) {
	base := func() TypeConfig {
		return TypeConfig{
			EntityTable:   "items",
			EntityColumns: []string{"id", "title", "num", "vclock"},
			Fields: []FieldConfig{
				{Name: "title", SQLType: "text"},
			},
		}
	}

	tests := []struct {
		name   string
		mutate func(*TypeConfig)
		reason string
	}{
		{
			name:   "missing entity table",
			mutate: func(c *TypeConfig) { c.EntityTable = "" },
			reason: "entity table name is required",
		},
		{
			name:   "no tracked fields",
			mutate: func(c *TypeConfig) { c.Fields = nil },
			reason: "at least one tracked field",
		},
		{
			name:   "field not a column",
			mutate: func(c *TypeConfig) { c.Fields = []FieldConfig{{Name: "missing", SQLType: "text"}} },
			reason: "missing is not a column on items",
		},
		{
			name: "duplicate field",
			mutate: func(c *TypeConfig) {
				c.Fields = []FieldConfig{{Name: "title", SQLType: "text"}, {Name: "title", SQLType: "text"}}
			},
			reason: "declared twice",
		},
		{
			name:   "field without sql type",
			mutate: func(c *TypeConfig) { c.Fields = []FieldConfig{{Name: "title"}} },
			reason: "has no SQL type",
		},
		{
			name:   "missing vclock column",
			mutate: func(c *TypeConfig) { c.EntityColumns = []string{"id", "title"} },
			reason: `must include "vclock"`,
		},
		{
			name:   "missing id column",
			mutate: func(c *TypeConfig) { c.EntityColumns = []string{"title", "vclock"} },
			reason: `must include "id"`,
		},
		{
			name: "loader without activity table",
			mutate: func(c *TypeConfig) {
				c.ActivityLoader = func(context.Context, Querier, []uuid.UUID) (map[uuid.UUID]any, error) {
					return nil, nil
				}
			},
			reason: "activity loader configured without an activity table",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)

			_, err := Register(cfg)
			var confErr *ConfigurationError
			if !errors.As(err, &confErr) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
			if !strings.Contains(confErr.Error(), tc.reason) {
				t.Fatalf("error %q does not mention %q", confErr.Error(), tc.reason)
			}
		})
	}
}

func TestRegisterTruncatesLongTableNames(t *testing.T) {
	entity := strings.Repeat("very_long_named_temporal_", 4) + "items"
	typ, err := Register(TypeConfig{
		EntityTable:   entity,
		EntityColumns: []string{"id", "vegetable", "vclock"},
		Fields:        []FieldConfig{{Name: "vegetable", SQLType: "text"}},
	})
	if err != nil {
		t.Fatalf("unexpected registration error: %v", err)
	}

	clock := strings.TrimPrefix(typ.ClockTable(), "public.")
	history := strings.TrimPrefix(typ.HistoryTable("vegetable"), "public.")
	if len(clock) > maxIdentifierLen {
		t.Fatalf("clock table %q exceeds identifier limit", clock)
	}
	if len(history) > maxIdentifierLen {
		t.Fatalf("history table %q exceeds identifier limit", history)
	}
}
