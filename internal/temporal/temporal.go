// Package temporal implements a bitemporal versioning engine on top of
// Postgres.
//
// Each registered entity type gets a clock table recording one row per
// state transition ("tick") and one history table per tracked field holding
// half-open validity ranges, both in wall-clock time (tstzrange) and in the
// entity's logical clock (int4range). Non-overlap of ranges is enforced by
// GiST exclusion constraints, so a racing double-write fails at commit
// instead of silently corrupting history.
package temporal

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgx operations the engine needs. Both
// *pgxpool.Pool and pgx.Tx satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Entity is implemented by record types that opt into temporal tracking.
// Embed Clocked to satisfy Clock().
type Entity interface {
	// TemporalID returns the entity's stable primary key.
	TemporalID() uuid.UUID
	// TemporalValues returns the current value of every tracked field,
	// keyed by column name.
	TemporalValues() map[string]any
	// Clock exposes the embedded per-entity clock state.
	Clock() *Clocked
}

// Activity is the caller-defined causal record associated with a tick. The
// engine only needs its identity; shape and storage belong to the caller.
type Activity interface {
	ActivityID() uuid.UUID
}

// Clocked carries the per-entity temporal state. Embed it in any tracked
// entity struct.
type Clocked struct {
	// VClock is the tick of the most recently committed change, 0 before
	// any temporal write has occurred.
	VClock int

	baseline map[string]any
}

// Clock implements Entity for any struct embedding Clocked.
func (c *Clocked) Clock() *Clocked { return c }

// CaptureBaseline records the last-known-persisted values of the tracked
// fields. Call it right after materializing the entity from storage (or
// constructing it fresh); RecordTransition compares against this snapshot
// to decide which fields changed.
func (c *Clocked) CaptureBaseline(values map[string]any) {
	c.baseline = make(map[string]any, len(values))
	for k, v := range values {
		c.baseline[k] = v
	}
}

// Baseline returns a copy of the captured snapshot.
func (c *Clocked) Baseline() map[string]any {
	out := make(map[string]any, len(c.baseline))
	for k, v := range c.baseline {
		out[k] = v
	}
	return out
}

func (c *Clocked) baselineValue(field string) any {
	if c.baseline == nil {
		return nil
	}
	return c.baseline[field]
}

func (c *Clocked) setBaselineValue(field string, value any) {
	if c.baseline == nil {
		c.baseline = make(map[string]any)
	}
	c.baseline[field] = value
}
