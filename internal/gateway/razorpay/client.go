// Package razorpay adapts Razorpay orders, signatures and RazorpayX payouts
// to gateway.Gateway.
package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"skillarena/internal/gateway"
	"skillarena/internal/models"

	rzp "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const defaultBaseURL = "https://api.razorpay.com"

type Config struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	// AccountNumber is the RazorpayX business account payouts are drawn from.
	AccountNumber string
	Timeout       time.Duration
	BaseURL       string
}

type orderCreator interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type Client struct {
	cfg        Config
	orders     orderCreator
	httpClient *http.Client
	logger     zerolog.Logger
}

var _ gateway.Gateway = (*Client)(nil)

func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	sdk := rzp.NewClient(cfg.KeyID, cfg.KeySecret)
	return &Client{
		cfg:        cfg,
		orders:     sdk.Order,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

func unavailable(msg string, err error) error {
	return models.WrapError(models.CodeGatewayUnavailable, msg, err)
}

func (c *Client) CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string) (*gateway.Order, error) {
	type result struct {
		body map[string]interface{}
		err  error
	}
	// The SDK call has no context parameter; bound it by ctx instead.
	done := make(chan result, 1)
	go func() {
		body, err := c.orders.Create(map[string]interface{}{
			"amount":   gateway.ToMinorUnits(amount),
			"currency": currency,
			"receipt":  receipt,
		}, nil)
		done <- result{body: body, err: err}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var res result
	select {
	case <-ctx.Done():
		return nil, unavailable("order creation timed out", ctx.Err())
	case res = <-done:
	}
	if res.err != nil {
		c.logger.Error().Err(res.err).Str("receipt", receipt).Msg("Razorpay order creation failed")
		return nil, unavailable("failed to create order", res.err)
	}

	id, _ := res.body["id"].(string)
	if id == "" {
		return nil, unavailable("order response carried no id", nil)
	}
	return &gateway.Order{
		ID:       id,
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
	}, nil
}

func (c *Client) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	if orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	return utils.VerifyPaymentSignature(map[string]interface{}{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": paymentID,
	}, signature, c.cfg.KeySecret)
}

func (c *Client) VerifyWebhookSignature(body []byte, signature string) bool {
	if signature == "" || c.cfg.WebhookSecret == "" {
		return false
	}
	return utils.VerifyWebhookSignature(string(body), signature, c.cfg.WebhookSecret)
}

type payoutBody struct {
	AccountNumber     string          `json:"account_number"`
	FundAccount       fundAccountBody `json:"fund_account"`
	Amount            int64           `json:"amount"`
	Currency          string          `json:"currency"`
	Mode              string          `json:"mode"`
	Purpose           string          `json:"purpose"`
	QueueIfLowBalance bool            `json:"queue_if_low_balance"`
	ReferenceID       string          `json:"reference_id"`
	Narration         string          `json:"narration,omitempty"`
}

type fundAccountBody struct {
	AccountType string           `json:"account_type"`
	BankAccount *bankAccountBody `json:"bank_account,omitempty"`
	VPA         *vpaBody         `json:"vpa,omitempty"`
	Contact     contactBody      `json:"contact"`
}

type bankAccountBody struct {
	Name          string `json:"name"`
	IFSC          string `json:"ifsc"`
	AccountNumber string `json:"account_number"`
}

type vpaBody struct {
	Address string `json:"address"`
}

type contactBody struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	ReferenceID string `json:"reference_id,omitempty"`
}

type payoutResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  *struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error,omitempty"`
}

func buildPayout(accountNumber string, req gateway.PayoutRequest) (payoutBody, error) {
	body := payoutBody{
		AccountNumber:     accountNumber,
		Amount:            gateway.ToMinorUnits(req.Amount),
		Currency:          req.Currency,
		Purpose:           "payout",
		QueueIfLowBalance: true,
		ReferenceID:       req.ReferenceID,
		Narration:         req.Narration,
	}
	bd := req.BankDetails
	contact := contactBody{Name: bd.AccountHolder, Type: "customer", ReferenceID: req.ReferenceID}

	switch {
	case bd.UPIID != "":
		body.Mode = "UPI"
		body.FundAccount = fundAccountBody{AccountType: "vpa", VPA: &vpaBody{Address: bd.UPIID}, Contact: contact}
	case bd.AccountNumber != "" && bd.IFSC != "":
		body.Mode = "IMPS"
		body.FundAccount = fundAccountBody{
			AccountType: "bank_account",
			BankAccount: &bankAccountBody{Name: bd.AccountHolder, IFSC: bd.IFSC, AccountNumber: bd.AccountNumber},
			Contact:     contact,
		}
	default:
		return payoutBody{}, models.NewError(models.CodeInvalidRequest, "bank account or UPI id required for payout")
	}
	return body, nil
}

func (c *Client) CreatePayout(ctx context.Context, req gateway.PayoutRequest) (*gateway.Payout, error) {
	body, err := buildPayout(c.cfg.AccountNumber, req)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payout: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/payouts", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to build payout request: %w", err)
	}
	httpReq.SetBasicAuth(c.cfg.KeyID, c.cfg.KeySecret)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Payout-Idempotency", req.ReferenceID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error().Err(err).Str("reference_id", req.ReferenceID).Msg("Payout request failed")
		return nil, unavailable("payout request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, unavailable("failed to read payout response", err)
	}

	var out payoutResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, unavailable(fmt.Sprintf("unexpected payout response (status %d)", resp.StatusCode), err)
	}
	if resp.StatusCode >= 300 || out.ID == "" {
		msg := fmt.Sprintf("payout rejected with status %d", resp.StatusCode)
		if out.Error != nil {
			msg += ": " + out.Error.Description
		}
		c.logger.Warn().Int("status", resp.StatusCode).Str("reference_id", req.ReferenceID).Msg(msg)
		// A 4xx with an error body is a refusal; anything else may still settle.
		if out.Error != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, unavailable(msg, gateway.ErrPayoutRejected)
		}
		return nil, unavailable(msg, nil)
	}

	c.logger.Info().Str("payout_id", out.ID).Str("status", out.Status).Str("reference_id", req.ReferenceID).Msg("Payout created")
	return &gateway.Payout{ID: out.ID, Status: out.Status}, nil
}
