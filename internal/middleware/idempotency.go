// AngelaMos | 2026
// idempotency.go

package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/angelamos/musicdesk/internal/core"
)

const IdempotencyHeader = "Idempotency-Key"

type IdempotencyStore interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Idempotency rejects a replayed money command carrying the same
// Idempotency-Key. Requests without the header pass through untouched, so
// each such call is a separate command. A claim is released when the
// handler answers with an error status, since nothing was applied.
func Idempotency(
	store IdempotencyStore,
	ttl time.Duration,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			if len(key) > 128 {
				core.BadRequest(w, "Idempotency-Key must be at most 128 characters")
				return
			}

			storeKey := "idempotency:" + GetUserID(r.Context()) + ":" +
				r.Method + ":" + r.URL.Path + ":" + key

			claimed, err := store.Claim(r.Context(), storeKey, ttl)
			if err != nil {
				slog.Warn("idempotency store unavailable, processing request",
					"error", err,
					"request_id", GetRequestID(r.Context()),
				)
				next.ServeHTTP(w, r)
				return
			}

			if !claimed {
				core.JSONError(w, core.NewAppError(
					core.ErrConflict,
					"a request with this Idempotency-Key was already processed",
					http.StatusConflict,
					"DUPLICATE_REQUEST",
				))
				return
			}

			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			if rec.status >= http.StatusBadRequest {
				if err := store.Release(context.WithoutCancel(r.Context()), storeKey); err != nil {
					slog.Warn("release idempotency key", "error", err)
				}
			}
		})
	}
}
