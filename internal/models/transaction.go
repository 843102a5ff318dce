package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeDeposit      TransactionType = "deposit"
	TransactionTypeWithdrawal   TransactionType = "withdrawal"
	TransactionTypeContestEntry TransactionType = "contest_entry"
	TransactionTypeContestWin   TransactionType = "contest_win"
	TransactionTypeRefund       TransactionType = "refund"
	TransactionTypeBonus        TransactionType = "bonus"
	TransactionTypeSubscription TransactionType = "subscription"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeWithdrawal, TransactionTypeContestEntry,
		TransactionTypeContestWin, TransactionTypeRefund, TransactionTypeBonus,
		TransactionTypeSubscription:
		return true
	}
	return false
}

// Internal reports whether the type has no external confirmation step and may
// therefore be recorded directly as completed.
func (t TransactionType) Internal() bool {
	switch t {
	case TransactionTypeContestEntry, TransactionTypeContestWin,
		TransactionTypeRefund, TransactionTypeBonus:
		return true
	}
	return false
}

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

func (s TransactionStatus) Terminal() bool {
	return s != TransactionStatusPending
}

type Transaction struct {
	ID            string            `json:"transaction_id"`
	UserID        int64             `json:"user_id"`
	Type          TransactionType   `json:"type"`
	Amount        decimal.Decimal   `json:"amount"`
	Currency      string            `json:"currency"`
	Status        TransactionStatus `json:"status"`
	PaymentMethod string            `json:"payment_method"`
	ReferenceID   string            `json:"reference_id,omitempty"`
	Description   string            `json:"description,omitempty"`
	Reason        string            `json:"reason,omitempty"`
	Metadata      Metadata          `json:"metadata"`
	CreatedAt     time.Time         `json:"created_at"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
}

// Clone returns a deep copy, including the metadata payload.
func (t *Transaction) Clone() *Transaction {
	c := *t
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	if t.Metadata != nil {
		c.Metadata = t.Metadata.clone()
	}
	return &c
}

// NewTransaction is the input to TransactionService.CreateTransaction.
type NewTransaction struct {
	// ID is generated when empty.
	ID            string
	UserID        int64
	Type          TransactionType
	Amount        decimal.Decimal
	Currency      string
	PaymentMethod string
	ReferenceID   string
	Description   string
	Metadata      Metadata
}

type TransactionFilter struct {
	UserID      *int64
	Type        TransactionType
	Status      TransactionStatus
	ReferenceID string
	Limit       int
	Offset      int
}

type AddMoneyRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
}

type AddMoneyResponse struct {
	OrderID       string          `json:"order_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	TransactionID string          `json:"transaction_id"`
}

type VerifyPaymentRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

type VerifyPaymentResponse struct {
	TransactionID string          `json:"transaction_id"`
	Balance       decimal.Decimal `json:"balance"`
}

type WithdrawalRequest struct {
	Amount           decimal.Decimal `json:"amount"`
	WithdrawalMethod string          `json:"withdrawal_method"`
	BankDetails      BankDetails     `json:"bank_details"`
}

type ReviewRequest struct {
	Reason string `json:"reason"`
}

type CreditRequest struct {
	UserID int64           `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
	Type   TransactionType `json:"type"`
	Reason string          `json:"reason"`
	Notes  string          `json:"notes"`
}
