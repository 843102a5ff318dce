package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Metadata is the kind-specific payload attached to a transaction. Exactly one
// payload type exists per TransactionType.
type Metadata interface {
	Kind() TransactionType
	clone() Metadata
}

type DepositMeta struct {
	GatewayOrderID   string `json:"gateway_order_id"`
	GatewayPaymentID string `json:"gateway_payment_id,omitempty"`
	GatewaySignature string `json:"gateway_signature,omitempty"`
	CapturedVia      string `json:"captured_via,omitempty"`
}

type BankDetails struct {
	AccountHolder string `json:"account_holder,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	IFSC          string `json:"ifsc,omitempty"`
	UPIID         string `json:"upi_id,omitempty"`
}

type WithdrawalStatus string

const (
	WithdrawalPendingApproval WithdrawalStatus = "pending_approval"
	WithdrawalProcessing      WithdrawalStatus = "processing"
	WithdrawalApproved        WithdrawalStatus = "approved"
	WithdrawalRejected        WithdrawalStatus = "rejected"
)

type WithdrawalMeta struct {
	BankDetails     BankDetails      `json:"bank_details"`
	Status          WithdrawalStatus `json:"status"`
	ReviewedBy      int64            `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time       `json:"reviewed_at,omitempty"`
	RejectionReason string           `json:"rejection_reason,omitempty"`
	PayoutID        string           `json:"payout_id,omitempty"`
}

type ContestEntryMeta struct {
	ContestID string `json:"contest_id"`
}

type ContestWinMeta struct {
	ContestID string `json:"contest_id"`
	Rank      int    `json:"rank"`
}

type RefundMeta struct {
	ContestID             string `json:"contest_id,omitempty"`
	OriginalTransactionID string `json:"original_transaction_id,omitempty"`
	GatewayRefundID       string `json:"gateway_refund_id,omitempty"`
	GatewayPaymentID      string `json:"gateway_payment_id,omitempty"`
	Reason                string `json:"reason,omitempty"`
	IssuedBy              int64  `json:"issued_by,omitempty"`
}

type BonusMeta struct {
	IssuedBy int64  `json:"issued_by,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

type SubscriptionMeta struct {
	PlanID           string `json:"plan_id"`
	DurationDays     int    `json:"duration_days"`
	GatewayOrderID   string `json:"gateway_order_id"`
	GatewayPaymentID string `json:"gateway_payment_id,omitempty"`
}

func (*DepositMeta) Kind() TransactionType      { return TransactionTypeDeposit }
func (*WithdrawalMeta) Kind() TransactionType   { return TransactionTypeWithdrawal }
func (*ContestEntryMeta) Kind() TransactionType { return TransactionTypeContestEntry }
func (*ContestWinMeta) Kind() TransactionType   { return TransactionTypeContestWin }
func (*RefundMeta) Kind() TransactionType       { return TransactionTypeRefund }
func (*BonusMeta) Kind() TransactionType        { return TransactionTypeBonus }
func (*SubscriptionMeta) Kind() TransactionType { return TransactionTypeSubscription }

func (m *DepositMeta) clone() Metadata      { c := *m; return &c }
func (m *ContestEntryMeta) clone() Metadata { c := *m; return &c }
func (m *ContestWinMeta) clone() Metadata   { c := *m; return &c }
func (m *RefundMeta) clone() Metadata       { c := *m; return &c }
func (m *BonusMeta) clone() Metadata        { c := *m; return &c }
func (m *SubscriptionMeta) clone() Metadata { c := *m; return &c }

func (m *WithdrawalMeta) clone() Metadata {
	c := *m
	if m.ReviewedAt != nil {
		at := *m.ReviewedAt
		c.ReviewedAt = &at
	}
	return &c
}

// emptyMetadata returns a zero payload for kind.
func emptyMetadata(kind TransactionType) (Metadata, error) {
	switch kind {
	case TransactionTypeDeposit:
		return &DepositMeta{}, nil
	case TransactionTypeWithdrawal:
		return &WithdrawalMeta{}, nil
	case TransactionTypeContestEntry:
		return &ContestEntryMeta{}, nil
	case TransactionTypeContestWin:
		return &ContestWinMeta{}, nil
	case TransactionTypeRefund:
		return &RefundMeta{}, nil
	case TransactionTypeBonus:
		return &BonusMeta{}, nil
	case TransactionTypeSubscription:
		return &SubscriptionMeta{}, nil
	}
	return nil, ErrInvalidTransactionType
}

type metadataEnvelope struct {
	Kind TransactionType `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// EncodeMetadata serializes m with its kind discriminator.
func EncodeMetadata(m Metadata) ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return json.Marshal(metadataEnvelope{Kind: m.Kind(), Data: data})
}

// DecodeMetadata is the inverse of EncodeMetadata.
func DecodeMetadata(raw []byte) (Metadata, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var env metadataEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to decode metadata envelope: %w", err)
	}
	m, err := emptyMetadata(env.Kind)
	if err != nil {
		return nil, err
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, m); err != nil {
			return nil, fmt.Errorf("failed to decode %s metadata: %w", env.Kind, err)
		}
	}
	return m, nil
}

type transactionJSON Transaction

type transactionWire struct {
	*transactionJSON
	Metadata json.RawMessage `json:"metadata"`
}

func (t Transaction) MarshalJSON() ([]byte, error) {
	meta, err := EncodeMetadata(t.Metadata)
	if err != nil {
		return nil, err
	}
	tj := transactionJSON(t)
	return json.Marshal(transactionWire{transactionJSON: &tj, Metadata: meta})
}

func (t *Transaction) UnmarshalJSON(b []byte) error {
	wire := transactionWire{transactionJSON: (*transactionJSON)(t)}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	meta, err := DecodeMetadata(wire.Metadata)
	if err != nil {
		return err
	}
	t.Metadata = meta
	return nil
}
