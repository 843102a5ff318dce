package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"skillarena/internal/middleware"
	"skillarena/internal/models"

	"github.com/rs/zerolog"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, code int, errorCode, message string) {
	respondWithJSON(w, code, middleware.ErrorResponse{
		Error:   errorCode,
		Message: message,
	})
}

// statusFor maps an error code to its HTTP status.
func statusFor(code models.ErrorCode) int {
	switch code {
	case models.CodeInvalidAmount, models.CodeInvalidRequest, models.CodeInvalidTransactionType, models.CodeInvalidWinners:
		return http.StatusBadRequest
	case models.CodeSignatureMismatch:
		return http.StatusUnprocessableEntity
	case models.CodeInsufficientBalance:
		return http.StatusPaymentRequired
	case models.CodeUnauthorized:
		return http.StatusUnauthorized
	case models.CodeForbidden:
		return http.StatusForbidden
	case models.CodeNotFound:
		return http.StatusNotFound
	case models.CodeAlreadyTerminal, models.CodeContestFull, models.CodeAlreadyJoined,
		models.CodeNotOngoing, models.CodeContestNotJoinable, models.CodeCommissionLocked,
		models.CodeAlreadySubmitted, models.CodeConflict:
		return http.StatusConflict
	case models.CodeGatewayUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondWithServiceError writes a typed service error with its mapped
// status. Untyped errors are logged and hidden behind a generic 500.
func respondWithServiceError(w http.ResponseWriter, logger zerolog.Logger, err error, msg string) {
	var e *models.Error
	if !errors.As(err, &e) {
		logger.Error().Err(err).Msg(msg)
		respondWithError(w, http.StatusInternalServerError, "internal_error", "An internal error occurred")
		return
	}

	status := statusFor(e.Code)
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Msg(msg)
	} else {
		logger.Warn().Str("code", string(e.Code)).Msg(msg)
	}
	respondWithError(w, status, string(e.Code), e.Message)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return false
	}
	return true
}

// decodeOptionalJSON accepts an empty body.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if r.Body == nil {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return false
	}
	return true
}

func currentUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return 0, false
	}
	return userID, true
}

func pagination(r *http.Request) (limit, offset int) {
	limit = defaultLimit
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = l
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if o, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && o >= 0 {
		offset = o
	}
	return limit, offset
}
