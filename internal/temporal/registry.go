package temporal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FieldConfig declares one tracked field of an entity.
type FieldConfig struct {
	// Name is the entity column being tracked.
	Name string
	// SQLType is the Postgres type of the history value column, e.g.
	// "text", "integer", "date".
	SQLType string
}

// ActivityLoaderFunc batch-loads activities by id for timeline
// reconstruction. It is invoked at most once per Timeline call, with the
// distinct activity ids of the whole timeline, and returns the loaded
// records keyed by id. Missing ids are simply absent from the result.
type ActivityLoaderFunc func(ctx context.Context, q Querier, ids []uuid.UUID) (map[uuid.UUID]any, error)

// TypeConfig declares a tracked entity type.
type TypeConfig struct {
	// EntityTable is the entity's own table. It must carry "id" (uuid
	// primary key) and "vclock" (integer) columns.
	EntityTable string
	// EntityColumns lists the columns of EntityTable; tracked fields are
	// validated against it at registration time.
	EntityColumns []string
	// Fields are the tracked columns, in declaration order. Writes and
	// timelines process fields in this order.
	Fields []FieldConfig
	// ActivityTable, when set, makes a causal record mandatory on every
	// save of this type. When empty, supplying one is an error. Never
	// mixed per type.
	ActivityTable string
	// Schema is the Postgres schema for the generated tables. Defaults to
	// "public".
	Schema string
	// ActivityLoader optionally eager-loads activities during timeline
	// reconstruction. Requires ActivityTable.
	ActivityLoader ActivityLoaderFunc
}

// Type is a registered tracked entity type. It owns the write protocol and
// timeline reconstruction for that type.
type Type struct {
	cfg           TypeConfig
	clockTable    string
	historyTables map[string]string
	now           func() time.Time
}

// Option customizes a registered Type.
type Option func(*Type)

// WithNow overrides the clock used for tick timestamps.
func WithNow(now func() time.Time) Option {
	return func(t *Type) {
		if now != nil {
			t.now = now
		}
	}
}

// Register validates a type declaration and derives its clock and history
// table names. All misconfiguration is reported here, before any row is
// ever written.
func Register(cfg TypeConfig, opts ...Option) (*Type, error) {
	if cfg.EntityTable == "" {
		return nil, &ConfigurationError{Table: cfg.EntityTable, Reason: "entity table name is required"}
	}
	if len(cfg.Fields) == 0 {
		return nil, &ConfigurationError{Table: cfg.EntityTable, Reason: "at least one tracked field is required"}
	}
	if cfg.Schema == "" {
		cfg.Schema = "public"
	}

	columns := make(map[string]bool, len(cfg.EntityColumns))
	for _, c := range cfg.EntityColumns {
		columns[c] = true
	}
	for _, required := range []string{"id", "vclock"} {
		if !columns[required] {
			return nil, &ConfigurationError{
				Table:  cfg.EntityTable,
				Reason: fmt.Sprintf("entity columns must include %q", required),
			}
		}
	}

	seen := make(map[string]bool, len(cfg.Fields))
	for _, f := range cfg.Fields {
		if f.Name == "" {
			return nil, &ConfigurationError{Table: cfg.EntityTable, Reason: "tracked field name is empty"}
		}
		if !columns[f.Name] {
			return nil, &ConfigurationError{
				Table:  cfg.EntityTable,
				Reason: fmt.Sprintf("%s is not a column on %s", f.Name, cfg.EntityTable),
			}
		}
		if seen[f.Name] {
			return nil, &ConfigurationError{
				Table:  cfg.EntityTable,
				Reason: fmt.Sprintf("tracked field %s declared twice", f.Name),
			}
		}
		if f.SQLType == "" {
			return nil, &ConfigurationError{
				Table:  cfg.EntityTable,
				Reason: fmt.Sprintf("tracked field %s has no SQL type", f.Name),
			}
		}
		seen[f.Name] = true
	}

	if cfg.ActivityLoader != nil && cfg.ActivityTable == "" {
		return nil, &ConfigurationError{
			Table:  cfg.EntityTable,
			Reason: "activity loader configured without an activity table",
		}
	}

	t := &Type{
		cfg:           cfg,
		clockTable:    truncateIdentifier(cfg.EntityTable + "_clock"),
		historyTables: make(map[string]string, len(cfg.Fields)),
		now:           time.Now,
	}
	for _, f := range cfg.Fields {
		t.historyTables[f.Name] = truncateIdentifier(cfg.EntityTable + "_history_" + f.Name)
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Fields returns the tracked field declarations in declaration order.
func (t *Type) Fields() []FieldConfig {
	return append([]FieldConfig(nil), t.cfg.Fields...)
}

// HasActivity reports whether this type requires a causal record on save.
func (t *Type) HasActivity() bool { return t.cfg.ActivityTable != "" }

// ClockTable returns the derived, schema-qualified clock table name.
func (t *Type) ClockTable() string { return t.qualified(t.clockTable) }

// HistoryTable returns the derived, schema-qualified history table name for
// a tracked field.
func (t *Type) HistoryTable(field string) string { return t.qualified(t.historyTables[field]) }

func (t *Type) entityTable() string { return t.qualified(t.cfg.EntityTable) }

func (t *Type) qualified(table string) string {
	return t.cfg.Schema + "." + table
}
