package temporal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ClockRecord is one immutable tick of an entity's clock.
type ClockRecord struct {
	ID         uuid.UUID
	EntityID   uuid.UUID
	Tick       int
	RecordedAt time.Time
	ActivityID *uuid.UUID
	// Activity is populated by the type's ActivityLoader, when configured.
	Activity any
}

// TimelineEntry annotates one tick with the sparse set of fields that
// changed at that tick and their new values. Fields that did not change at
// the tick are absent, not repeated.
type TimelineEntry struct {
	Clock   ClockRecord
	Changed map[string]any
}

// Timeline reconstructs the entity's full history in ascending tick order.
//
// Query cost is one clock query plus one query per tracked field (plus one
// activity-loader call when configured), independent of the number of
// ticks. That bound is part of this method's contract; keep it when
// changing the implementation.
func (t *Type) Timeline(ctx context.Context, q Querier, entityID uuid.UUID) ([]TimelineEntry, error) {
	clocks, err := t.clockRecords(ctx, q, entityID)
	if err != nil {
		return nil, err
	}

	entries := make([]TimelineEntry, len(clocks))
	byTick := make(map[int]*TimelineEntry, len(clocks))
	for i, c := range clocks {
		entries[i] = TimelineEntry{Clock: c, Changed: make(map[string]any)}
		byTick[c.Tick] = &entries[i]
	}

	// A field changed at tick T iff one of its history rows has a tick
	// range starting exactly at T.
	for _, f := range t.cfg.Fields {
		sql := fmt.Sprintf(
			"SELECT lower(vclock), value FROM %s WHERE entity_id = $1 ORDER BY lower(vclock) ASC",
			t.HistoryTable(f.Name),
		)
		rows, err := q.Query(ctx, sql, entityID)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s history: %w", f.Name, err)
		}
		for rows.Next() {
			var tick int
			var value any
			if err := rows.Scan(&tick, &value); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan %s history: %w", f.Name, err)
			}
			if entry, ok := byTick[tick]; ok {
				entry.Changed[f.Name] = value
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to load %s history: %w", f.Name, err)
		}
	}

	if err := t.loadActivities(ctx, q, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// loadActivities resolves activity records for a reconstructed timeline in
// a single batch, when the type declares a loader.
func (t *Type) loadActivities(ctx context.Context, q Querier, entries []TimelineEntry) error {
	if t.cfg.ActivityLoader == nil {
		return nil
	}

	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, e := range entries {
		if e.Clock.ActivityID != nil && !seen[*e.Clock.ActivityID] {
			seen[*e.Clock.ActivityID] = true
			ids = append(ids, *e.Clock.ActivityID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	activities, err := t.cfg.ActivityLoader(ctx, q, ids)
	if err != nil {
		return fmt.Errorf("failed to load activities: %w", err)
	}
	for i := range entries {
		if id := entries[i].Clock.ActivityID; id != nil {
			entries[i].Clock.Activity = activities[*id]
		}
	}
	return nil
}

func (t *Type) clockRecords(ctx context.Context, q Querier, entityID uuid.UUID) ([]ClockRecord, error) {
	var sql string
	if t.HasActivity() {
		sql = fmt.Sprintf(
			"SELECT id, entity_id, tick, recorded_at, activity_id FROM %s WHERE entity_id = $1 ORDER BY tick ASC",
			t.ClockTable(),
		)
	} else {
		sql = fmt.Sprintf(
			"SELECT id, entity_id, tick, recorded_at FROM %s WHERE entity_id = $1 ORDER BY tick ASC",
			t.ClockTable(),
		)
	}

	rows, err := q.Query(ctx, sql, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to load clock records: %w", err)
	}
	defer rows.Close()

	var out []ClockRecord
	for rows.Next() {
		var rec ClockRecord
		if t.HasActivity() {
			err = rows.Scan(&rec.ID, &rec.EntityID, &rec.Tick, &rec.RecordedAt, &rec.ActivityID)
		} else {
			err = rows.Scan(&rec.ID, &rec.EntityID, &rec.Tick, &rec.RecordedAt)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to scan clock record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load clock records: %w", err)
	}
	return out, nil
}

// FirstTick returns the entity's earliest clock record, or nil when the
// entity has no temporal history yet.
func (t *Type) FirstTick(ctx context.Context, q Querier, entityID uuid.UUID) (*ClockRecord, error) {
	return t.oneTick(ctx, q, entityID, "ASC")
}

// LatestTick returns the entity's most recent clock record, or nil.
func (t *Type) LatestTick(ctx context.Context, q Querier, entityID uuid.UUID) (*ClockRecord, error) {
	return t.oneTick(ctx, q, entityID, "DESC")
}

// CreatedAt is the timestamp of the first tick, nil before any save.
func (t *Type) CreatedAt(ctx context.Context, q Querier, entityID uuid.UUID) (*time.Time, error) {
	rec, err := t.FirstTick(ctx, q, entityID)
	if err != nil || rec == nil {
		return nil, err
	}
	return &rec.RecordedAt, nil
}

// ModifiedAt is the timestamp of the latest tick, nil before any save.
func (t *Type) ModifiedAt(ctx context.Context, q Querier, entityID uuid.UUID) (*time.Time, error) {
	rec, err := t.LatestTick(ctx, q, entityID)
	if err != nil || rec == nil {
		return nil, err
	}
	return &rec.RecordedAt, nil
}

func (t *Type) oneTick(ctx context.Context, q Querier, entityID uuid.UUID, order string) (*ClockRecord, error) {
	var sql string
	var rec ClockRecord
	var err error
	if t.HasActivity() {
		sql = fmt.Sprintf(
			"SELECT id, entity_id, tick, recorded_at, activity_id FROM %s WHERE entity_id = $1 ORDER BY tick %s LIMIT 1",
			t.ClockTable(), order,
		)
		err = q.QueryRow(ctx, sql, entityID).Scan(&rec.ID, &rec.EntityID, &rec.Tick, &rec.RecordedAt, &rec.ActivityID)
	} else {
		sql = fmt.Sprintf(
			"SELECT id, entity_id, tick, recorded_at FROM %s WHERE entity_id = $1 ORDER BY tick %s LIMIT 1",
			t.ClockTable(), order,
		)
		err = q.QueryRow(ctx, sql, entityID).Scan(&rec.ID, &rec.EntityID, &rec.Tick, &rec.RecordedAt)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load clock record: %w", err)
	}
	return &rec, nil
}
