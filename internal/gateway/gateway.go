// Package gateway describes the payment processor the ledger settles against.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"skillarena/internal/models"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID       string
	Amount   decimal.Decimal
	Currency string
	Receipt  string
}

type PayoutRequest struct {
	ReferenceID string
	Amount      decimal.Decimal
	Currency    string
	BankDetails models.BankDetails
	Narration   string
}

type Payout struct {
	ID     string
	Status string
}

// ErrPayoutRejected marks a payout the processor refused outright, so no
// money left the account. Any other payout failure has an unknown outcome.
var ErrPayoutRejected = errors.New("payout rejected by processor")

// Gateway is the payment processor. Failures of the remote side are reported
// as models.ErrGatewayUnavailable.
type Gateway interface {
	CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string) (*Order, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
	VerifyWebhookSignature(body []byte, signature string) bool
	CreatePayout(ctx context.Context, req PayoutRequest) (*Payout, error)
}

const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventRefundCreated   = "refund.created"
)

// WebhookEvent is the subset of the processor's webhook envelope the ledger
// acts on. Amounts arrive in the smallest currency unit.
type WebhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity PaymentEntity `json:"entity"`
		} `json:"payment,omitempty"`
		Refund *struct {
			Entity RefundEntity `json:"entity"`
		} `json:"refund,omitempty"`
	} `json:"payload"`
}

type PaymentEntity struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	ErrorDescription string `json:"error_description"`
}

type RefundEntity struct {
	ID        string            `json:"id"`
	PaymentID string            `json:"payment_id"`
	Amount    int64             `json:"amount"`
	Currency  string            `json:"currency"`
	Status    string            `json:"status"`
	Notes     map[string]string `json:"notes"`
	CreatedAt int64             `json:"created_at"`
}

func ParseWebhook(body []byte) (*WebhookEvent, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, models.WrapError(models.CodeInvalidRequest, "malformed webhook payload", err)
	}
	if ev.Event == "" {
		return nil, models.NewError(models.CodeInvalidRequest, "webhook event name missing")
	}
	return &ev, nil
}

func (e *WebhookEvent) Payment() (*PaymentEntity, error) {
	if e.Payload.Payment == nil {
		return nil, models.NewError(models.CodeInvalidRequest, fmt.Sprintf("%s without payment entity", e.Event))
	}
	return &e.Payload.Payment.Entity, nil
}

func (e *WebhookEvent) Refund() (*RefundEntity, error) {
	if e.Payload.Refund == nil {
		return nil, models.NewError(models.CodeInvalidRequest, fmt.Sprintf("%s without refund entity", e.Event))
	}
	return &e.Payload.Refund.Entity, nil
}

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts rupees to paise.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromMinorUnits converts paise to rupees.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
