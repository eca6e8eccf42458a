package activityloader

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader"

	"github.com/rpattn/bitemporal/internal/domain"
	"github.com/rpattn/bitemporal/internal/temporal"
)

// Batch loads document activities by id in a single query. It is the
// default ActivityLoaderFunc for the documents type: one call resolves
// every activity of a reconstructed timeline.
func Batch(ctx context.Context, q temporal.Querier, ids []uuid.UUID) (map[uuid.UUID]any, error) {
	rows, err := q.Query(ctx,
		`SELECT id, description, actor FROM document_activity WHERE id = ANY($1)`, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load activities: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID]any, len(ids))
	for rows.Next() {
		var a domain.DocumentActivity
		if err := rows.Scan(&a.ID, &a.Description, &a.Actor); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		out[a.ID] = a
	}
	return out, rows.Err()
}

// NewLoader wraps Batch in a dataloader, so handlers resolving activities
// for several timelines within one request share a single query.
func NewLoader(q temporal.Querier) *dataloader.Loader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		ids := make([]uuid.UUID, len(keys))
		for i, k := range keys {
			id, err := uuid.Parse(k.String())
			if err != nil {
				// The dataloader contract requires one result per key.
				results := make([]*dataloader.Result, len(keys))
				for j := range results {
					results[j] = &dataloader.Result{Error: fmt.Errorf("invalid activity id %q: %w", k.String(), err)}
				}
				return results
			}
			ids[i] = id
		}

		activities, err := Batch(ctx, q, ids)
		if err != nil {
			results := make([]*dataloader.Result, len(keys))
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}

		// Build results in the same order as keys
		results := make([]*dataloader.Result, len(keys))
		for i, id := range ids {
			if a, ok := activities[id]; ok {
				results[i] = &dataloader.Result{Data: a}
			} else {
				results[i] = &dataloader.Result{Data: nil}
			}
		}
		return results
	}

	return dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(5*time.Millisecond))
}

// LoadMany resolves a set of activity ids through a dataloader and returns
// them keyed by id, matching the temporal ActivityLoaderFunc shape.
func LoadMany(ctx context.Context, loader *dataloader.Loader, ids []uuid.UUID) (map[uuid.UUID]any, error) {
	keys := make(dataloader.Keys, len(ids))
	for i, id := range ids {
		keys[i] = dataloader.StringKey(id.String())
	}

	data, errs := loader.LoadMany(ctx, keys)()
	if len(errs) > 0 {
		return nil, errs[0]
	}

	out := make(map[uuid.UUID]any, len(ids))
	for i, id := range ids {
		if data[i] != nil {
			out[id] = data[i]
		}
	}
	return out, nil
}
