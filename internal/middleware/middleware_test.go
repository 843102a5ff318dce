package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"skillarena/internal/idempotency"
	"skillarena/internal/services"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type stubValidator map[string]*services.Claims

func (v stubValidator) ValidateToken(token string) (*services.Claims, error) {
	if c, ok := v[token]; ok {
		return c, nil
	}
	return nil, errors.New("bad token")
}

func whoami(w http.ResponseWriter, r *http.Request) {
	id, _ := GetUserID(r)
	role, _ := GetUserRole(r)
	_ = json.NewEncoder(w).Encode(map[string]any{"id": id, "role": role})
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestAuthentication(t *testing.T) {
	validator := stubValidator{"good": {UserID: 42, Role: "user"}}
	handler := Authentication(validator, zerolog.Nop())(http.HandlerFunc(whoami))

	cases := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{"missing header", "", http.StatusUnauthorized, "missing_authorization"},
		{"wrong scheme", "Basic good", http.StatusUnauthorized, "invalid_authorization"},
		{"unknown token", "Bearer forged", http.StatusUnauthorized, "invalid_token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/wallet", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, decodeError(t, rec).Error)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/wallet", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":42,"role":"user"}`, rec.Body.String())
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole("admin")(http.HandlerFunc(whoami))

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req = req.WithContext(WithUser(req.Context(), 5, "user"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req = req.WithContext(WithUser(req.Context(), 1, "admin"))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestValidation(t *testing.T) {
	handler := RequestValidation()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/wallet/add-money", strings.NewReader(`amount=5`))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/wallet/add-money", strings.NewReader(`{"amount":5}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/contests/CTST-1/join", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRateLimiterIsPerClient(t *testing.T) {
	limiter := NewRateLimiter(rate.Every(time.Hour), 2)
	handler := limiter.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	hit := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, hit("10.0.0.1:5000"))
	assert.Equal(t, http.StatusOK, hit("10.0.0.1:5001"))
	assert.Equal(t, http.StatusTooManyRequests, hit("10.0.0.1:5002"))
	assert.Equal(t, http.StatusOK, hit("10.0.0.2:5000"))
}

func TestRequestLoggingSetsRequestID(t *testing.T) {
	var seen string
	handler := RequestLogging(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(RequestIDKey).(string)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
}

type countingHandler struct {
	calls  atomic.Int32
	status int
}

func (h *countingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := h.calls.Add(1)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(h.status)
	_ = json.NewEncoder(w).Encode(map[string]int32{"call": n})
}

func idempotentRequest(userID int64, path, key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"amount":"10"}`))
	req.Header.Set(IdempotencyHeader, key)
	return req.WithContext(WithUser(req.Context(), userID, "user"))
}

func TestIdempotencyReplaysFirstResponse(t *testing.T) {
	next := &countingHandler{status: http.StatusCreated}
	handler := Idempotency(idempotency.NewMemoryRepository(), zerolog.Nop())(next)

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, idempotentRequest(1, "/api/v1/wallet/withdraw", "abc"))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, idempotentRequest(1, "/api/v1/wallet/withdraw", "abc"))

	assert.Equal(t, int32(1), next.calls.Load())
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("X-Idempotency-Hit"))
	assert.Empty(t, first.Header().Get("X-Idempotency-Hit"))
}

func TestIdempotencyKeysAreScoped(t *testing.T) {
	next := &countingHandler{status: http.StatusCreated}
	handler := Idempotency(idempotency.NewMemoryRepository(), zerolog.Nop())(next)

	handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest(1, "/api/v1/wallet/withdraw", "abc"))
	handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest(2, "/api/v1/wallet/withdraw", "abc"))
	handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest(1, "/api/v1/wallet/add-money", "abc"))

	assert.Equal(t, int32(3), next.calls.Load())
}

func TestIdempotencySkipsServerErrorsAndMissingKeys(t *testing.T) {
	next := &countingHandler{status: http.StatusBadGateway}
	handler := Idempotency(idempotency.NewMemoryRepository(), zerolog.Nop())(next)

	handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest(1, "/api/v1/wallet/add-money", "retry-me"))
	handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest(1, "/api/v1/wallet/add-money", "retry-me"))
	assert.Equal(t, int32(2), next.calls.Load())

	ok := &countingHandler{status: http.StatusOK}
	handler = Idempotency(idempotency.NewMemoryRepository(), zerolog.Nop())(ok)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/contests/CTST-1/join", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, int32(2), ok.calls.Load())
}

type failingRepository struct{}

func (failingRepository) Get(context.Context, string) (*idempotency.CachedResponse, error) {
	return nil, errors.New("redis down")
}

func (failingRepository) Save(context.Context, string, idempotency.CachedResponse, time.Duration) error {
	return errors.New("redis down")
}

func (failingRepository) Claim(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("redis down")
}

func (failingRepository) Release(context.Context, string) error {
	return errors.New("redis down")
}

func TestIdempotencyFailsOpen(t *testing.T) {
	next := &countingHandler{status: http.StatusCreated}
	handler := Idempotency(failingRepository{}, zerolog.Nop())(next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, idempotentRequest(1, "/api/v1/wallet/withdraw", "abc"))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, int32(1), next.calls.Load())
}

func TestIdempotencyRunsConcurrentDuplicatesOnce(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	var calls atomic.Int32
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		close(entered)
		<-release
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"TXN-1"}`))
	})
	handler := Idempotency(idempotency.NewMemoryRepository(), zerolog.Nop())(slow)

	first := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.ServeHTTP(first, idempotentRequest(1, "/api/v1/wallet/withdraw", "dup"))
	}()
	<-entered

	duplicate := httptest.NewRecorder()
	handler.ServeHTTP(duplicate, idempotentRequest(1, "/api/v1/wallet/withdraw", "dup"))
	assert.Equal(t, http.StatusConflict, duplicate.Code)
	assert.Equal(t, "request_in_progress", decodeError(t, duplicate).Error)

	close(release)
	<-done
	assert.Equal(t, http.StatusCreated, first.Code)

	retry := httptest.NewRecorder()
	handler.ServeHTTP(retry, idempotentRequest(1, "/api/v1/wallet/withdraw", "dup"))
	assert.Equal(t, http.StatusCreated, retry.Code)
	assert.Equal(t, "true", retry.Header().Get("X-Idempotency-Hit"))
	assert.Equal(t, int32(1), calls.Load())
}
