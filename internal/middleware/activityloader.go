package middleware

import (
	"context"
	"net/http"

	"github.com/graph-gophers/dataloader"

	"github.com/rpattn/bitemporal/internal/activityloader"
	"github.com/rpattn/bitemporal/internal/temporal"
)

type ctxKey string

const activityLoaderKey ctxKey = "activityLoader"

// ActivityLoaderMiddleware attaches a per-request activity dataloader to
// the request context
func ActivityLoaderMiddleware(q temporal.Querier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loader := activityloader.NewLoader(q)
			ctx := context.WithValue(r.Context(), activityLoaderKey, loader)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ActivityLoaderFromContext retrieves the dataloader from context
func ActivityLoaderFromContext(ctx context.Context) *dataloader.Loader {
	if l, ok := ctx.Value(activityLoaderKey).(*dataloader.Loader); ok {
		return l
	}
	return nil
}
