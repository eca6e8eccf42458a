package temporal

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrCausalRecordMismatch is returned when an activity is required but
	// absent, or supplied to a type that has no activity model.
	ErrCausalRecordMismatch = errors.New("temporal: causal record mismatch")

	// ErrTemporalDeleteForbidden is returned for any attempt to delete a
	// tracked entity. Model soft deletes as a tracked status field instead.
	ErrTemporalDeleteForbidden = errors.New("temporal: tracked entities cannot be deleted")

	// ErrBulkOperationDisabled is returned by default bulk-write paths on
	// tracked types, which would bypass the clock/history protocol.
	ErrBulkOperationDisabled = errors.New("temporal: bulk writes bypass the temporal protocol")

	// ErrIntegrityViolation matches (via errors.Is) any store-surfaced
	// uniqueness or range-overlap violation. Typically a concurrent writer
	// lost the race for a tick, or an activity was reused for the same
	// entity. Never retried internally.
	ErrIntegrityViolation = errors.New("temporal: integrity violation")
)

// ConfigurationError reports an invalid type registration. It fails fast at
// startup, never at runtime.
type ConfigurationError struct {
	Table  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("temporal: invalid configuration for %q: %s", e.Table, e.Reason)
}

// IntegrityError wraps a Postgres uniqueness (23505) or exclusion (23P01)
// violation. errors.Is(err, ErrIntegrityViolation) matches it.
type IntegrityError struct {
	Constraint string
	cause      error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("temporal: integrity violation on %q: %v", e.Constraint, e.cause)
}

func (e *IntegrityError) Unwrap() error { return e.cause }

func (e *IntegrityError) Is(target error) bool { return target == ErrIntegrityViolation }

const (
	pgUniqueViolation    = "23505"
	pgExclusionViolation = "23P01"
)

// mapStoreError converts constraint violations into IntegrityError and
// passes every other store error through unchanged.
func mapStoreError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgUniqueViolation || pgErr.Code == pgExclusionViolation {
			return &IntegrityError{Constraint: pgErr.ConstraintName, cause: err}
		}
	}
	return err
}
