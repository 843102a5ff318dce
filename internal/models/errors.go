package models

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a ledger or contest failure kind.
type ErrorCode string

const (
	CodeInvalidAmount          ErrorCode = "invalid_amount"
	CodeInsufficientBalance    ErrorCode = "insufficient_balance"
	CodeNotFound               ErrorCode = "not_found"
	CodeAlreadyTerminal        ErrorCode = "already_terminal"
	CodeContestFull            ErrorCode = "contest_full"
	CodeAlreadyJoined          ErrorCode = "already_joined"
	CodeNotOngoing             ErrorCode = "not_ongoing"
	CodeSignatureMismatch      ErrorCode = "signature_mismatch"
	CodeGatewayUnavailable     ErrorCode = "gateway_unavailable"
	CodeInvalidRequest         ErrorCode = "invalid_request"
	CodeInvalidTransactionType ErrorCode = "invalid_transaction_type"
	CodeContestNotJoinable     ErrorCode = "contest_not_joinable"
	CodeCommissionLocked       ErrorCode = "commission_locked"
	CodeInvalidWinners         ErrorCode = "invalid_winners"
	CodeAlreadySubmitted       ErrorCode = "already_submitted"
	CodeForbidden              ErrorCode = "forbidden"
	CodeUnauthorized           ErrorCode = "unauthorized"
	CodeConflict               ErrorCode = "conflict"
)

// Error is the typed failure returned by services. Two errors match under
// errors.Is when their codes are equal.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidAmount          = NewError(CodeInvalidAmount, "amount must be greater than zero")
	ErrInsufficientBalance    = NewError(CodeInsufficientBalance, "insufficient balance")
	ErrNotFound               = NewError(CodeNotFound, "not found")
	ErrAlreadyTerminal        = NewError(CodeAlreadyTerminal, "already in a terminal state")
	ErrContestFull            = NewError(CodeContestFull, "contest is full")
	ErrAlreadyJoined          = NewError(CodeAlreadyJoined, "user already joined this contest")
	ErrNotOngoing             = NewError(CodeNotOngoing, "contest is not ongoing")
	ErrSignatureMismatch      = NewError(CodeSignatureMismatch, "signature verification failed")
	ErrGatewayUnavailable     = NewError(CodeGatewayUnavailable, "payment gateway unavailable")
	ErrInvalidRequest         = NewError(CodeInvalidRequest, "invalid request")
	ErrInvalidTransactionType = NewError(CodeInvalidTransactionType, "unrecognized transaction type")
	ErrContestNotJoinable     = NewError(CodeContestNotJoinable, "contest is not open for joining")
	ErrCommissionLocked       = NewError(CodeCommissionLocked, "commission already calculated")
	ErrInvalidWinners         = NewError(CodeInvalidWinners, "invalid winners list")
	ErrAlreadySubmitted       = NewError(CodeAlreadySubmitted, "result already submitted")
	ErrForbidden              = NewError(CodeForbidden, "forbidden")
	ErrUnauthorized           = NewError(CodeUnauthorized, "unauthorized")
	ErrConflict               = NewError(CodeConflict, "conflict")
)

// CodeOf returns the code carried by err, or an empty code for untyped errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
