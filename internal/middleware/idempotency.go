package middleware

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"skillarena/internal/idempotency"

	"github.com/rs/zerolog"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	idempotencyTTL    = 24 * time.Hour
	// claimTTL bounds how long a crashed request can block its key.
	claimTTL = time.Minute
)

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func replay(w http.ResponseWriter, cached *idempotency.CachedResponse, logger zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Idempotency-Hit", "true")
	w.WriteHeader(cached.StatusCode)
	if _, err := w.Write(cached.Body); err != nil {
		logger.Error().Err(err).Msg("Failed to write cached response")
	}
}

// Idempotency replays the stored response for a repeated Idempotency-Key.
// Keys are scoped to the caller and path. The key is claimed before the
// handler runs, so a concurrent duplicate gets 409 instead of executing
// twice. A failing repository lets the request through; 5xx responses are
// not stored so the client can retry.
func Idempotency(repo idempotency.Repository, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyHeader)
			if key == "" || r.Method == http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			userID, _ := GetUserID(r)
			scoped := fmt.Sprintf("%d:%s:%s:%s", userID, r.Method, r.URL.Path, key)
			ctx := r.Context()
			log := logger.With().Str("idempotency_key", key).Logger()

			cached, err := repo.Get(ctx, scoped)
			if err != nil {
				log.Error().Err(err).Msg("Failed to read idempotency key")
				next.ServeHTTP(w, r)
				return
			}
			if cached != nil {
				log.Info().Msg("Idempotency cache hit")
				replay(w, cached, log)
				return
			}

			claimed, err := repo.Claim(ctx, scoped, claimTTL)
			if err != nil {
				log.Error().Err(err).Msg("Failed to claim idempotency key")
				next.ServeHTTP(w, r)
				return
			}
			if !claimed {
				log.Warn().Msg("Duplicate request while first is in flight")
				w.Header().Set("Retry-After", "1")
				respondWithError(w, http.StatusConflict, "request_in_progress", "A request with this Idempotency-Key is still being processed")
				return
			}
			defer func() {
				if err := repo.Release(context.WithoutCancel(ctx), scoped); err != nil {
					log.Error().Err(err).Msg("Failed to release idempotency key")
				}
			}()

			// The first request may have finished between Get and Claim.
			if cached, err := repo.Get(ctx, scoped); err == nil && cached != nil {
				replay(w, cached, log)
				return
			}

			recorder := &responseRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				body:           &bytes.Buffer{},
			}
			next.ServeHTTP(recorder, r)

			if recorder.statusCode >= http.StatusInternalServerError {
				return
			}
			err = repo.Save(context.WithoutCancel(ctx), scoped, idempotency.CachedResponse{
				StatusCode: recorder.statusCode,
				Body:       recorder.body.Bytes(),
			}, idempotencyTTL)
			if err != nil {
				log.Error().Err(err).Msg("Failed to save idempotency key")
			}
		})
	}
}
