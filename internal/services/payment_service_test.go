package services

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	"skillarena/internal/events"
	"skillarena/internal/gateway"
	"skillarena/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const webhookSig = "whsig"

func (e *testEnv) expectOrder(orderID string, amount int64) {
	e.gateway.On("CreateOrder", mock.Anything, mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(decimal.NewFromInt(amount))
	}), "INR", mock.Anything).Return(&gateway.Order{
		ID:       orderID,
		Amount:   decimal.NewFromInt(amount),
		Currency: "INR",
	}, nil).Once()
}

func (e *testEnv) deliver(t *testing.T, payload map[string]any) error {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return e.payments.HandleWebhook(context.Background(), body, webhookSig)
}

func paymentEvent(event, orderID, paymentID string, paise int64) map[string]any {
	return map[string]any{
		"event": event,
		"payload": map[string]any{
			"payment": map[string]any{
				"entity": map[string]any{
					"id":                paymentID,
					"order_id":          orderID,
					"amount":            paise,
					"currency":          "INR",
					"error_description": "Card declined by bank",
				},
			},
		},
	}
}

func refundEvent(refundID, paymentID string, paise int64, userID string) map[string]any {
	return map[string]any{
		"event": gateway.EventRefundCreated,
		"payload": map[string]any{
			"refund": map[string]any{
				"entity": map[string]any{
					"id":         refundID,
					"payment_id": paymentID,
					"amount":     paise,
					"currency":   "INR",
					"status":     "processed",
					"notes":      map[string]string{"user_id": userID},
				},
			},
		},
	}
}

func countKey(keys []string, key string) int {
	n := 0
	for _, k := range keys {
		if k == key {
			n++
		}
	}
	return n
}

func TestAddMoneyRecordsPendingDeposit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "erin")
	env.expectOrder("order_add", 50)

	resp, err := env.payments.AddMoney(ctx, user, &models.AddMoneyRequest{Amount: decimal.NewFromInt(50)})
	require.NoError(t, err)
	assert.Equal(t, "order_add", resp.OrderID)

	txn, err := env.transactions.GetTransaction(ctx, resp.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, txn.Status)
	assert.Equal(t, "order_add", txn.ReferenceID)
	assert.Equal(t, "razorpay", txn.PaymentMethod)
	requireAmount(t, 0, env.balance(t, user))
	env.gateway.AssertExpectations(t)
}

func TestAddMoneyGatewayFailureRecordsNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "frank")
	env.gateway.On("CreateOrder", mock.Anything, mock.Anything, "INR", mock.Anything).
		Return(nil, errors.New("connection refused")).Once()

	_, err := env.payments.AddMoney(ctx, user, &models.AddMoneyRequest{Amount: decimal.NewFromInt(50)})
	assert.ErrorIs(t, err, models.ErrGatewayUnavailable)

	txns, err := env.transactions.ListUserTransactions(ctx, user, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestAddMoneyRejectsNonPositiveAmount(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.payments.AddMoney(context.Background(), 1, &models.AddMoneyRequest{Amount: decimal.NewFromInt(-5)})
	assert.ErrorIs(t, err, models.ErrInvalidAmount)
	env.gateway.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyThenWebhookCreditsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "grace")
	env.expectOrder("order_vw", 50)
	env.gateway.On("VerifyPaymentSignature", "order_vw", "pay_vw", "sig").Return(true)
	env.gateway.On("VerifyWebhookSignature", mock.Anything, webhookSig).Return(true)

	added, err := env.payments.AddMoney(ctx, user, &models.AddMoneyRequest{Amount: decimal.NewFromInt(50)})
	require.NoError(t, err)

	verified, err := env.payments.VerifyPayment(ctx, user, &models.VerifyPaymentRequest{
		OrderID: "order_vw", PaymentID: "pay_vw", Signature: "sig",
	})
	require.NoError(t, err)
	assert.Equal(t, added.TransactionID, verified.TransactionID)
	requireAmount(t, 50, verified.Balance)

	require.NoError(t, env.deliver(t, paymentEvent(gateway.EventPaymentCaptured, "order_vw", "pay_vw", 5000)))
	requireAmount(t, 50, env.balance(t, user))

	txn, err := env.transactions.GetTransaction(ctx, added.TransactionID)
	require.NoError(t, err)
	meta := txn.Metadata.(*models.DepositMeta)
	assert.Equal(t, "verify", meta.CapturedVia)
	assert.Equal(t, "pay_vw", meta.GatewayPaymentID)
	assert.Equal(t, 1, countKey(env.publisher.keys(), events.TransactionCompleted))
}

func TestWebhookThenVerifyCreditsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "heidi")
	env.expectOrder("order_wv", 75)
	env.gateway.On("VerifyPaymentSignature", "order_wv", "pay_wv", "sig").Return(true)
	env.gateway.On("VerifyWebhookSignature", mock.Anything, webhookSig).Return(true)

	_, err := env.payments.AddMoney(ctx, user, &models.AddMoneyRequest{Amount: decimal.NewFromInt(75)})
	require.NoError(t, err)

	require.NoError(t, env.deliver(t, paymentEvent(gateway.EventPaymentCaptured, "order_wv", "pay_wv", 7500)))
	require.NoError(t, env.deliver(t, paymentEvent(gateway.EventPaymentCaptured, "order_wv", "pay_wv", 7500)))

	verified, err := env.payments.VerifyPayment(ctx, user, &models.VerifyPaymentRequest{
		OrderID: "order_wv", PaymentID: "pay_wv", Signature: "sig",
	})
	require.NoError(t, err)
	requireAmount(t, 75, verified.Balance)

	report, err := env.wallets.Reconcile(ctx, user)
	require.NoError(t, err)
	assert.True(t, report.HistoryMatches)
	assert.Equal(t, 1, countKey(env.publisher.keys(), events.TransactionCompleted))
}

func TestVerifyPaymentSignatureMismatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "ivan")
	env.expectOrder("order_bad", 20)
	env.gateway.On("VerifyPaymentSignature", "order_bad", "pay_bad", "forged").Return(false)

	added, err := env.payments.AddMoney(ctx, user, &models.AddMoneyRequest{Amount: decimal.NewFromInt(20)})
	require.NoError(t, err)

	_, err = env.payments.VerifyPayment(ctx, user, &models.VerifyPaymentRequest{
		OrderID: "order_bad", PaymentID: "pay_bad", Signature: "forged",
	})
	assert.ErrorIs(t, err, models.ErrSignatureMismatch)

	txn, err := env.transactions.GetTransaction(ctx, added.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, txn.Status)
	requireAmount(t, 0, env.balance(t, user))
}

func TestVerifyPaymentForAnotherUsersOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "judy")
	other := env.createUser(t, "mallory")
	env.expectOrder("order_owned", 20)
	env.gateway.On("VerifyPaymentSignature", "order_owned", "pay_1", "sig").Return(true)

	_, err := env.payments.AddMoney(ctx, owner, &models.AddMoneyRequest{Amount: decimal.NewFromInt(20)})
	require.NoError(t, err)

	_, err = env.payments.VerifyPayment(ctx, other, &models.VerifyPaymentRequest{
		OrderID: "order_owned", PaymentID: "pay_1", Signature: "sig",
	})
	assert.ErrorIs(t, err, models.ErrNotFound)
	requireAmount(t, 0, env.balance(t, other))
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	env := newTestEnv(t)
	env.gateway.On("VerifyWebhookSignature", mock.Anything, "nope").Return(false)

	err := env.payments.HandleWebhook(context.Background(), []byte(`{"event":"payment.captured"}`), "nope")
	assert.ErrorIs(t, err, models.ErrSignatureMismatch)
}

func TestWebhookUnknownOrderIsAcknowledged(t *testing.T) {
	env := newTestEnv(t)
	env.gateway.On("VerifyWebhookSignature", mock.Anything, webhookSig).Return(true)

	assert.NoError(t, env.deliver(t, paymentEvent(gateway.EventPaymentCaptured, "order_ghost", "pay_ghost", 100)))
	assert.NoError(t, env.deliver(t, map[string]any{"event": "order.paid", "payload": map[string]any{}}))
}

func TestPaymentFailedWebhookFailsDeposit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "niaj")
	env.expectOrder("order_fail", 30)
	env.gateway.On("VerifyWebhookSignature", mock.Anything, webhookSig).Return(true)

	added, err := env.payments.AddMoney(ctx, user, &models.AddMoneyRequest{Amount: decimal.NewFromInt(30)})
	require.NoError(t, err)

	require.NoError(t, env.deliver(t, paymentEvent(gateway.EventPaymentFailed, "order_fail", "pay_fail", 3000)))

	txn, err := env.transactions.GetTransaction(ctx, added.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusFailed, txn.Status)
	assert.Equal(t, "Card declined by bank", txn.Reason)

	// A failure without a later capture never credits the wallet.
	require.NoError(t, env.deliver(t, paymentEvent(gateway.EventPaymentFailed, "order_fail", "pay_fail", 3000)))
	requireAmount(t, 0, env.balance(t, user))
}

func TestCaptureAfterFailedAttemptCreditsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "quentin")
	env.expectOrder("order_retry", 50)
	env.gateway.On("VerifyWebhookSignature", mock.Anything, webhookSig).Return(true)
	env.gateway.On("VerifyPaymentSignature", "order_retry", "pay_b", "sig").Return(true)

	added, err := env.payments.AddMoney(ctx, user, &models.AddMoneyRequest{Amount: decimal.NewFromInt(50)})
	require.NoError(t, err)

	require.NoError(t, env.deliver(t, paymentEvent(gateway.EventPaymentFailed, "order_retry", "pay_a", 5000)))
	require.NoError(t, env.deliver(t, paymentEvent(gateway.EventPaymentCaptured, "order_retry", "pay_b", 5000)))
	requireAmount(t, 50, env.balance(t, user))

	// Re-delivery and the client callback for the same payment are no-ops.
	require.NoError(t, env.deliver(t, paymentEvent(gateway.EventPaymentCaptured, "order_retry", "pay_b", 5000)))
	verified, err := env.payments.VerifyPayment(ctx, user, &models.VerifyPaymentRequest{
		OrderID: "order_retry", PaymentID: "pay_b", Signature: "sig",
	})
	require.NoError(t, err)
	requireAmount(t, 50, verified.Balance)
	requireAmount(t, 50, env.balance(t, user))

	original, err := env.transactions.GetTransaction(ctx, added.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusFailed, original.Status)

	captured, err := env.transactions.GetTransaction(ctx, verified.TransactionID)
	require.NoError(t, err)
	assert.NotEqual(t, added.TransactionID, captured.ID)
	assert.Equal(t, models.TransactionTypeDeposit, captured.Type)
	assert.Equal(t, models.TransactionStatusCompleted, captured.Status)
	assert.Equal(t, "pay_b", captured.Metadata.(*models.DepositMeta).GatewayPaymentID)

	report, err := env.wallets.Reconcile(ctx, user)
	require.NoError(t, err)
	assert.True(t, report.AccumulatorsMatch)
	assert.True(t, report.HistoryMatches)
}

func TestRefundWebhookRedeliveryCreditsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "olivia")
	env.gateway.On("VerifyWebhookSignature", mock.Anything, webhookSig).Return(true)

	uid := strconv.FormatInt(user, 10)
	for i := 0; i < 3; i++ {
		require.NoError(t, env.deliver(t, refundEvent("rfnd_1", "pay_9", 1250, uid)))
	}

	assert.True(t, env.balance(t, user).Equal(decimal.RequireFromString("12.50")))
	txn, err := env.transactions.GetTransaction(ctx, "REFUND-rfnd_1")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionTypeRefund, txn.Type)
	assert.Equal(t, models.TransactionStatusCompleted, txn.Status)

	w, err := env.wallets.GetOrCreateWallet(ctx, user)
	require.NoError(t, err)
	assert.True(t, w.TotalRefunds.Equal(decimal.RequireFromString("12.50")))
}

func TestRefundWebhookWithoutUserIsIgnored(t *testing.T) {
	env := newTestEnv(t)
	env.gateway.On("VerifyWebhookSignature", mock.Anything, webhookSig).Return(true)

	require.NoError(t, env.deliver(t, refundEvent("rfnd_2", "pay_9", 500, "")))
	_, err := env.transactions.GetTransaction(context.Background(), "REFUND-rfnd_2")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func withdrawalRequest(amount int64) *models.WithdrawalRequest {
	return &models.WithdrawalRequest{
		Amount:      decimal.NewFromInt(amount),
		BankDetails: models.BankDetails{UPIID: "player@upi"},
	}
}

func TestWithdrawalRejectRestoresBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "peggy")
	env.fund(t, user, 100)

	w, err := env.payments.RequestWithdrawal(ctx, user, withdrawalRequest(40))
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, w.Status)
	requireAmount(t, 60, env.balance(t, user))

	rejected, err := env.payments.RejectWithdrawal(ctx, 1, w.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCancelled, rejected.Status)
	meta := rejected.Metadata.(*models.WithdrawalMeta)
	assert.Equal(t, models.WithdrawalRejected, meta.Status)
	assert.Equal(t, "Rejected by admin", meta.RejectionReason)
	requireAmount(t, 100, env.balance(t, user))

	_, err = env.payments.RejectWithdrawal(ctx, 1, w.ID, "twice")
	assert.ErrorIs(t, err, models.ErrAlreadyTerminal)
	requireAmount(t, 100, env.balance(t, user))
}

func TestWithdrawalValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "rupert")
	env.fund(t, user, 10)

	_, err := env.payments.RequestWithdrawal(ctx, user, withdrawalRequest(50))
	assert.ErrorIs(t, err, models.ErrInsufficientBalance)

	_, err = env.payments.RequestWithdrawal(ctx, user, &models.WithdrawalRequest{Amount: decimal.NewFromInt(5)})
	assert.ErrorIs(t, err, models.ErrInvalidRequest)
	requireAmount(t, 10, env.balance(t, user))
}

func TestApproveWithdrawalRetriesAfterPayoutFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "sybil")
	env.fund(t, user, 100)

	w, err := env.payments.RequestWithdrawal(ctx, user, withdrawalRequest(40))
	require.NoError(t, err)

	matchesWithdrawal := mock.MatchedBy(func(r gateway.PayoutRequest) bool {
		return r.ReferenceID == w.ID && r.Amount.Equal(decimal.NewFromInt(40)) && r.BankDetails.UPIID == "player@upi"
	})
	env.gateway.On("CreatePayout", mock.Anything, matchesWithdrawal).Return(nil, errors.New("timeout")).Once()
	env.gateway.On("CreatePayout", mock.Anything, matchesWithdrawal).Return(&gateway.Payout{ID: "pout_1", Status: "processing"}, nil).Once()

	_, err = env.payments.ApproveWithdrawal(ctx, 1, w.ID)
	assert.ErrorIs(t, err, models.ErrGatewayUnavailable)

	// The payout may have gone out, so the withdrawal stays processing and
	// cannot be rejected.
	parked, err := env.transactions.GetTransaction(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, parked.Status)
	assert.Equal(t, models.WithdrawalProcessing, parked.Metadata.(*models.WithdrawalMeta).Status)

	_, err = env.payments.RejectWithdrawal(ctx, 1, w.ID, "payout timed out")
	assert.ErrorIs(t, err, models.ErrConflict)
	requireAmount(t, 60, env.balance(t, user))

	approved, err := env.payments.ApproveWithdrawal(ctx, 1, w.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, approved.Status)
	meta := approved.Metadata.(*models.WithdrawalMeta)
	assert.Equal(t, models.WithdrawalApproved, meta.Status)
	assert.Equal(t, "pout_1", meta.PayoutID)
	assert.Equal(t, int64(1), meta.ReviewedBy)
	requireAmount(t, 60, env.balance(t, user))

	_, err = env.payments.ApproveWithdrawal(ctx, 1, w.ID)
	assert.ErrorIs(t, err, models.ErrAlreadyTerminal)
	env.gateway.AssertExpectations(t)
}

func TestRefusedPayoutReturnsWithdrawalToReview(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "trent")
	env.fund(t, user, 100)

	w, err := env.payments.RequestWithdrawal(ctx, user, withdrawalRequest(40))
	require.NoError(t, err)

	refused := models.WrapError(models.CodeGatewayUnavailable, "payout rejected with status 400", gateway.ErrPayoutRejected)
	env.gateway.On("CreatePayout", mock.Anything, mock.Anything).Return(nil, refused).Once()

	_, err = env.payments.ApproveWithdrawal(ctx, 1, w.ID)
	assert.ErrorIs(t, err, models.ErrGatewayUnavailable)

	parked, err := env.transactions.GetTransaction(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalPendingApproval, parked.Metadata.(*models.WithdrawalMeta).Status)

	_, err = env.payments.RejectWithdrawal(ctx, 1, w.ID, "invalid UPI id")
	require.NoError(t, err)
	requireAmount(t, 100, env.balance(t, user))
	env.gateway.AssertExpectations(t)
}

func TestSubscriptionActivatesOnSettlement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "trent")
	env.expectOrder("order_sub", 49)
	env.gateway.On("VerifyPaymentSignature", "order_sub", "pay_sub", "sig").Return(true)

	status, err := env.payments.SubscriptionStatus(ctx, user)
	require.NoError(t, err)
	assert.False(t, status.Active)

	_, err = env.payments.PurchaseSubscription(ctx, user, "platinum")
	assert.ErrorIs(t, err, models.ErrInvalidRequest)

	purchase, err := env.payments.PurchaseSubscription(ctx, user, "gold_pass")
	require.NoError(t, err)
	assert.Equal(t, "order_sub", purchase.OrderID)

	_, err = env.payments.VerifyPayment(ctx, user, &models.VerifyPaymentRequest{
		OrderID: "order_sub", PaymentID: "pay_sub", Signature: "sig",
	})
	require.NoError(t, err)

	status, err = env.payments.SubscriptionStatus(ctx, user)
	require.NoError(t, err)
	assert.True(t, status.Active)
	assert.Equal(t, "gold_pass", status.Subscription.PlanID)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 30), status.Subscription.ExpiresAt, time.Minute)
	requireAmount(t, 0, env.balance(t, user))
}

func TestIssueCredit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "victor")

	bonus, err := env.payments.IssueCredit(ctx, 1, &models.CreditRequest{
		UserID: user, Amount: decimal.NewFromInt(15), Type: models.TransactionTypeBonus, Reason: "Welcome bonus",
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, bonus.Status)

	_, err = env.payments.IssueCredit(ctx, 1, &models.CreditRequest{
		UserID: user, Amount: decimal.NewFromInt(5), Type: models.TransactionTypeRefund, Reason: "Goodwill",
	})
	require.NoError(t, err)

	w, err := env.wallets.GetOrCreateWallet(ctx, user)
	require.NoError(t, err)
	requireAmount(t, 20, w.Balance)
	requireAmount(t, 15, w.TotalEarnings)
	requireAmount(t, 5, w.TotalRefunds)

	_, err = env.payments.IssueCredit(ctx, 1, &models.CreditRequest{
		UserID: user, Amount: decimal.NewFromInt(5), Type: models.TransactionTypeDeposit,
	})
	assert.ErrorIs(t, err, models.ErrInvalidTransactionType)

	_, err = env.payments.IssueCredit(ctx, 1, &models.CreditRequest{
		UserID: 9999, Amount: decimal.NewFromInt(5), Type: models.TransactionTypeBonus,
	})
	assert.ErrorIs(t, err, models.ErrNotFound)
}
