package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Wallet struct {
	UserID           int64           `json:"user_id"`
	Balance          decimal.Decimal `json:"balance"`
	TotalDeposits    decimal.Decimal `json:"total_deposits"`
	TotalWithdrawals decimal.Decimal `json:"total_withdrawals"`
	TotalEarnings    decimal.Decimal `json:"total_earnings"`
	TotalSpent       decimal.Decimal `json:"total_spent"`
	TotalRefunds     decimal.Decimal `json:"total_refunds"`
	Currency         string          `json:"currency"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// CreditBucket names the accumulator a credit is booked against.
type CreditBucket string

const (
	CreditDeposit CreditBucket = "deposits"
	CreditEarning CreditBucket = "earnings"
	CreditRefund  CreditBucket = "refunds"
)

// DebitBucket names the accumulator a debit is booked against.
type DebitBucket string

const (
	DebitSpend      DebitBucket = "spent"
	DebitWithdrawal DebitBucket = "withdrawals"
)

func NewWallet(userID int64, currency string, now time.Time) *Wallet {
	return &Wallet{
		UserID:    userID,
		Currency:  currency,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Credit adds amount to the balance and to the chosen accumulator.
func (w *Wallet) Credit(amount decimal.Decimal, bucket CreditBucket, now time.Time) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	switch bucket {
	case CreditDeposit:
		w.TotalDeposits = w.TotalDeposits.Add(amount)
	case CreditEarning:
		w.TotalEarnings = w.TotalEarnings.Add(amount)
	case CreditRefund:
		w.TotalRefunds = w.TotalRefunds.Add(amount)
	default:
		return NewError(CodeInvalidRequest, "unknown credit bucket "+string(bucket))
	}
	w.Balance = w.Balance.Add(amount)
	w.UpdatedAt = now
	return nil
}

// Debit removes amount from the balance. It never floors at zero: a debit
// larger than the balance is rejected and leaves the wallet untouched.
func (w *Wallet) Debit(amount decimal.Decimal, bucket DebitBucket, now time.Time) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if w.Balance.LessThan(amount) {
		return ErrInsufficientBalance
	}
	switch bucket {
	case DebitSpend:
		w.TotalSpent = w.TotalSpent.Add(amount)
	case DebitWithdrawal:
		w.TotalWithdrawals = w.TotalWithdrawals.Add(amount)
	default:
		return NewError(CodeInvalidRequest, "unknown debit bucket "+string(bucket))
	}
	w.Balance = w.Balance.Sub(amount)
	w.UpdatedAt = now
	return nil
}

// ExpectedBalance derives the balance from the accumulators.
func (w *Wallet) ExpectedBalance() decimal.Decimal {
	return w.TotalDeposits.
		Add(w.TotalEarnings).
		Add(w.TotalRefunds).
		Sub(w.TotalSpent).
		Sub(w.TotalWithdrawals)
}

type WalletHistory struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"user_id"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	ChangeAmount  decimal.Decimal `json:"change_amount"`
	TransactionID string          `json:"transaction_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

type ReconcileReport struct {
	UserID            int64           `json:"user_id"`
	Balance           decimal.Decimal `json:"balance"`
	ExpectedBalance   decimal.Decimal `json:"expected_balance"`
	HistoryBalance    decimal.Decimal `json:"history_balance"`
	AccumulatorsMatch bool            `json:"accumulators_match"`
	HistoryMatches    bool            `json:"history_matches"`
}
