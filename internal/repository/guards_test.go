package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/rpattn/bitemporal/internal/domain"
	"github.com/rpattn/bitemporal/internal/temporal"
)

// The mutation guards short-circuit before touching the store, so a nil
// connection proves no row is ever read or written.

func TestDeleteForbidden(t *testing.T) {
	repo := NewDocumentRepository(nil, nil)

	err := repo.Delete(context.Background(), uuid.New())
	if !errors.Is(err, temporal.ErrTemporalDeleteForbidden) {
		t.Fatalf("expected ErrTemporalDeleteForbidden, got %v", err)
	}
}

func TestBulkInsertDisabled(t *testing.T) {
	repo := NewDocumentRepository(nil, nil)

	err := repo.BulkInsert(context.Background(), []*domain.Document{
		{Title: "Test 1"},
		{Title: "Test 2"},
	})
	if !errors.Is(err, temporal.ErrBulkOperationDisabled) {
		t.Fatalf("expected ErrBulkOperationDisabled, got %v", err)
	}
	// The error points callers at the escape hatch.
	if got := err.Error(); got == temporal.ErrBulkOperationDisabled.Error() {
		t.Fatalf("error should mention UnsafeBulkInsert: %q", got)
	}
}
