package temporal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RecordTransition advances the entity's clock and splices its field
// histories. Call it exactly once per persistence, inside the same
// transaction that wrote the entity's primary row, after that write.
//
// When the type has an activity table, activity must be non-nil; when it
// does not, activity must be nil. Either violation fails with
// ErrCausalRecordMismatch before anything is written.
//
// Saving without any tracked-field change (after the first persistence) is
// a no-op: no tick, no rows. Otherwise the tick increments by exactly one;
// a clock row is inserted; for each changed field the currently-open
// history row (if any) has its upper bounds closed at the new tick and the
// current time, and a new open row is inserted; finally the entity's
// persisted vclock is updated with a targeted UPDATE that does not
// re-enter this protocol.
//
// Every statement runs on tx. Any failure propagates unchanged (constraint
// violations mapped to IntegrityError) so the caller's rollback discards
// the whole persistence, primary row included. Nothing is retried.
func (t *Type) RecordTransition(ctx context.Context, tx Querier, e Entity, activity Activity) error {
	if t.HasActivity() && activity == nil {
		return fmt.Errorf("%w: an activity is required when saving %s", ErrCausalRecordMismatch, t.cfg.EntityTable)
	}
	if !t.HasActivity() && activity != nil {
		return fmt.Errorf("%w: %s has no activity model; you cannot supply an activity", ErrCausalRecordMismatch, t.cfg.EntityTable)
	}

	clock := e.Clock()
	first := clock.VClock == 0
	changes := t.changedFields(e, first)
	if len(changes) == 0 {
		// Idempotent save: nothing changed, no temporal writes.
		return nil
	}

	now := t.now().UTC()
	newTick := clock.VClock + 1
	entityID := e.TemporalID()

	if err := t.insertClock(ctx, tx, entityID, newTick, now, activity); err != nil {
		return err
	}

	for _, ch := range changes {
		if newTick > 1 {
			if err := t.closeHistory(ctx, tx, ch.field.Name, entityID, newTick, now); err != nil {
				return err
			}
		}
		if err := t.insertHistory(ctx, tx, ch.field.Name, entityID, ch.value, newTick, now); err != nil {
			return err
		}
	}

	// Targeted update so the caller's save path is not re-entered.
	sql := fmt.Sprintf("UPDATE %s SET vclock = $1 WHERE id = $2", t.entityTable())
	if _, err := tx.Exec(ctx, sql, newTick, entityID); err != nil {
		return mapStoreError(err)
	}

	// Only after every write succeeded: advance the in-memory state so the
	// next save detects changes relative to what was just persisted.
	clock.VClock = newTick
	for _, ch := range changes {
		clock.setBaselineValue(ch.field.Name, ch.value)
	}
	return nil
}

// insertClock appends the immutable clock row for one tick.
func (t *Type) insertClock(ctx context.Context, tx Querier, entityID uuid.UUID, tick int, now time.Time, activity Activity) error {
	if activity != nil {
		sql := fmt.Sprintf(
			"INSERT INTO %s (id, entity_id, tick, recorded_at, activity_id) VALUES ($1, $2, $3, $4, $5)",
			t.ClockTable(),
		)
		_, err := tx.Exec(ctx, sql, uuid.New(), entityID, tick, now, activity.ActivityID())
		return mapStoreError(err)
	}
	sql := fmt.Sprintf(
		"INSERT INTO %s (id, entity_id, tick, recorded_at) VALUES ($1, $2, $3, $4)",
		t.ClockTable(),
	)
	_, err := tx.Exec(ctx, sql, uuid.New(), entityID, tick, now)
	return mapStoreError(err)
}

// closeHistory closes the upper bounds of the field's currently open row.
// The open row may have been opened any number of ticks ago; the exclusion
// constraints guarantee there is at most one, so upper_inf touches at most
// one row.
func (t *Type) closeHistory(ctx context.Context, tx Querier, field string, entityID uuid.UUID, tick int, now time.Time) error {
	sql := fmt.Sprintf(
		"UPDATE %s SET vclock = int4range(lower(vclock), $1), effective = tstzrange(lower(effective), $2) WHERE entity_id = $3 AND upper_inf(vclock)",
		t.HistoryTable(field),
	)
	_, err := tx.Exec(ctx, sql, tick, now, entityID)
	return mapStoreError(err)
}

// insertHistory opens the new unbounded row for a field at this tick.
func (t *Type) insertHistory(ctx context.Context, tx Querier, field string, entityID uuid.UUID, value any, tick int, now time.Time) error {
	sql := fmt.Sprintf(
		"INSERT INTO %s (id, entity_id, value, effective, vclock) VALUES ($1, $2, $3, tstzrange($4, NULL), int4range($5, NULL))",
		t.HistoryTable(field),
	)
	_, err := tx.Exec(ctx, sql, uuid.New(), entityID, value, now, tick)
	return mapStoreError(err)
}
