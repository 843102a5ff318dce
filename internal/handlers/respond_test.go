package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"skillarena/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	cases := map[models.ErrorCode]int{
		models.CodeInvalidAmount:       http.StatusBadRequest,
		models.CodeInvalidWinners:      http.StatusBadRequest,
		models.CodeSignatureMismatch:   http.StatusUnprocessableEntity,
		models.CodeInsufficientBalance: http.StatusPaymentRequired,
		models.CodeUnauthorized:        http.StatusUnauthorized,
		models.CodeForbidden:           http.StatusForbidden,
		models.CodeNotFound:            http.StatusNotFound,
		models.CodeAlreadyTerminal:     http.StatusConflict,
		models.CodeContestFull:         http.StatusConflict,
		models.CodeCommissionLocked:    http.StatusConflict,
		models.CodeGatewayUnavailable:  http.StatusBadGateway,
		"":                             http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, statusFor(code), "code %q", code)
	}
}

func TestRespondWithServiceError(t *testing.T) {
	rec := httptest.NewRecorder()
	respondWithServiceError(rec, zerolog.Nop(), models.ErrInsufficientBalance, "Join failed")
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "insufficient_balance", body["error"])

	rec = httptest.NewRecorder()
	respondWithServiceError(rec, zerolog.Nop(), errors.New("connection reset by peer"), "Join failed")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

func TestPagination(t *testing.T) {
	limit, offset := pagination(httptest.NewRequest(http.MethodGet, "/wallet/history", nil))
	assert.Equal(t, defaultLimit, limit)
	assert.Equal(t, 0, offset)

	limit, offset = pagination(httptest.NewRequest(http.MethodGet, "/wallet/history?limit=500&offset=40", nil))
	assert.Equal(t, maxLimit, limit)
	assert.Equal(t, 40, offset)
}
