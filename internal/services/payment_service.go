package services

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"
	"time"

	"skillarena/internal/events"
	"skillarena/internal/gateway"
	"skillarena/internal/models"
	"skillarena/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	capturedViaVerify  = "verify"
	capturedViaWebhook = "webhook"
)

type PaymentService struct {
	store        store.Store
	wallets      *WalletService
	transactions *TransactionService
	gateway      gateway.Gateway
	logger       zerolog.Logger
	currency     string
	now          func() time.Time
}

func NewPaymentService(
	st store.Store,
	wallets *WalletService,
	transactions *TransactionService,
	gw gateway.Gateway,
	logger zerolog.Logger,
	currency string,
) *PaymentService {
	return &PaymentService{
		store:        st,
		wallets:      wallets,
		transactions: transactions,
		gateway:      gw,
		logger:       logger,
		currency:     currency,
		now:          time.Now,
	}
}

func newReceipt() string {
	return "rcpt_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
}

// AddMoney opens a gateway order and records a pending deposit against it.
// Nothing is recorded when the gateway is unavailable.
func (s *PaymentService) AddMoney(ctx context.Context, userID int64, req *models.AddMoneyRequest) (*models.AddMoneyResponse, error) {
	if !req.Amount.IsPositive() {
		return nil, models.ErrInvalidAmount
	}

	order, err := s.gateway.CreateOrder(ctx, req.Amount, s.currency, newReceipt())
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("Error creating deposit order")
		return nil, asGatewayError(err)
	}

	method := req.PaymentMethod
	if method == "" {
		method = "razorpay"
	}
	t, err := s.transactions.CreateTransaction(ctx, models.NewTransaction{
		UserID:        userID,
		Type:          models.TransactionTypeDeposit,
		Amount:        req.Amount,
		Currency:      order.Currency,
		PaymentMethod: method,
		ReferenceID:   order.ID,
		Description:   "Wallet deposit",
		Metadata:      &models.DepositMeta{GatewayOrderID: order.ID},
	})
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Str("order_id", order.ID).Msg("Error recording deposit")
		return nil, err
	}

	s.logger.Info().
		Int64("user_id", userID).
		Str("order_id", order.ID).
		Str("transaction_id", t.ID).
		Str("amount", req.Amount.String()).
		Msg("Deposit order created")

	return &models.AddMoneyResponse{
		OrderID:       order.ID,
		Amount:        req.Amount,
		Currency:      order.Currency,
		TransactionID: t.ID,
	}, nil
}

// VerifyPayment settles the order named in a client-side checkout callback.
// It and the payment.captured webhook share one idempotent path, so the
// wallet is credited once whichever arrives first.
func (s *PaymentService) VerifyPayment(ctx context.Context, userID int64, req *models.VerifyPaymentRequest) (*models.VerifyPaymentResponse, error) {
	if !s.gateway.VerifyPaymentSignature(req.OrderID, req.PaymentID, req.Signature) {
		s.logger.Warn().Int64("user_id", userID).Str("order_id", req.OrderID).Msg("Payment signature mismatch")
		return nil, models.ErrSignatureMismatch
	}

	t, w, err := s.settleOrder(ctx, req.OrderID, req.PaymentID, req.Signature, capturedViaVerify, userID)
	if err != nil {
		return nil, err
	}
	return &models.VerifyPaymentResponse{TransactionID: t.ID, Balance: w.Balance}, nil
}

// lockOrderTransaction finds the pending-or-settled transaction that
// references a gateway order.
func lockOrderTransaction(ctx context.Context, tx store.Tx, orderID string) (*models.Transaction, error) {
	if orderID == "" {
		return nil, models.NewError(models.CodeInvalidRequest, "order id is required")
	}
	t, err := tx.FindTransactionByReferenceForUpdate(ctx, orderID, models.TransactionTypeDeposit)
	if errors.Is(err, models.ErrNotFound) {
		t, err = tx.FindTransactionByReferenceForUpdate(ctx, orderID, models.TransactionTypeSubscription)
	}
	return t, err
}

// settleOrder completes the order's transaction and applies its effect in
// the same unit of work. A transaction that is already completed is returned
// unchanged. userID of 0 skips the ownership check.
func (s *PaymentService) settleOrder(ctx context.Context, orderID, paymentID, signature, via string, userID int64) (*models.Transaction, *models.Wallet, error) {
	var (
		settled *models.Transaction
		wallet  *models.Wallet
		changed bool
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		t, err := lockOrderTransaction(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if userID != 0 && t.UserID != userID {
			return models.NewError(models.CodeNotFound, "transaction not found")
		}

		switch t.Status {
		case models.TransactionStatusCompleted:
			settled = t
			wallet, err = s.wallets.lockWallet(ctx, tx, t.UserID)
			return err
		case models.TransactionStatusPending:
		default:
			if paymentID == "" {
				return models.NewError(models.CodeAlreadyTerminal, "transaction "+t.ID+" is already "+string(t.Status))
			}
			settled, wallet, changed, err = s.captureAfterClose(ctx, tx, t, paymentID, signature, via)
			return err
		}

		switch meta := t.Metadata.(type) {
		case *models.DepositMeta:
			patched := *meta
			patched.GatewayPaymentID = paymentID
			patched.GatewaySignature = signature
			patched.CapturedVia = via
			if settled, err = s.transactions.completeInTx(ctx, tx, t.ID, &patched); err != nil {
				return err
			}
			wallet, err = s.wallets.fundInTx(ctx, tx, t.UserID, t.Amount, models.CreditDeposit, t.ID)
			if err != nil {
				return err
			}
		case *models.SubscriptionMeta:
			patched := *meta
			patched.GatewayPaymentID = paymentID
			if settled, err = s.transactions.completeInTx(ctx, tx, t.ID, &patched); err != nil {
				return err
			}
			if err := s.activateSubscription(ctx, tx, t.UserID, &patched); err != nil {
				return err
			}
			wallet, err = s.wallets.lockWallet(ctx, tx, t.UserID)
			if err != nil {
				return err
			}
		default:
			return models.NewError(models.CodeInvalidRequest, "transaction "+t.ID+" is not settled by the gateway")
		}
		changed = true
		return nil
	})
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) && !errors.Is(err, models.ErrAlreadyTerminal) {
			s.logger.Error().Err(err).Str("order_id", orderID).Str("captured_via", via).Msg("Error settling order")
		}
		return nil, nil, err
	}

	if changed {
		s.logger.Info().
			Str("order_id", orderID).
			Str("transaction_id", settled.ID).
			Str("captured_via", via).
			Msg("Payment settled")
		s.transactions.publish(ctx, events.TransactionCompleted, settled)
	} else {
		s.logger.Info().Str("order_id", orderID).Str("captured_via", via).Msg("Payment already settled")
	}
	return settled, wallet, nil
}

// lateCaptureID names the deposit recorded for a payment captured on an
// order whose transaction was already closed.
func lateCaptureID(paymentID string) string {
	return "CAPTURE-" + paymentID
}

// captureAfterClose credits a payment the processor captured after its
// order's transaction had failed or been cancelled. The closed transaction
// keeps its status; a separate completed deposit keyed on the payment id
// carries the money, so re-deliveries credit once. Reports whether a new
// deposit was recorded.
func (s *PaymentService) captureAfterClose(ctx context.Context, tx store.Tx, closed *models.Transaction, paymentID, signature, via string) (*models.Transaction, *models.Wallet, bool, error) {
	id := lateCaptureID(paymentID)
	existing, err := tx.GetTransactionForUpdate(ctx, id)
	switch {
	case err == nil:
		w, err := s.wallets.lockWallet(ctx, tx, existing.UserID)
		return existing, w, false, err
	case !errors.Is(err, models.ErrNotFound):
		return nil, nil, false, err
	}

	orderID := closed.ReferenceID
	meta := &models.DepositMeta{
		GatewayOrderID:   orderID,
		GatewayPaymentID: paymentID,
		GatewaySignature: signature,
		CapturedVia:      via,
	}
	if _, err := s.transactions.createInTx(ctx, tx, models.NewTransaction{
		ID:            id,
		UserID:        closed.UserID,
		Type:          models.TransactionTypeDeposit,
		Amount:        closed.Amount,
		Currency:      closed.Currency,
		PaymentMethod: closed.PaymentMethod,
		ReferenceID:   paymentID,
		Description:   "Payment captured after " + closed.ID + " was " + string(closed.Status),
		Metadata:      meta,
	}); err != nil {
		return nil, nil, false, err
	}
	settled, err := s.transactions.completeInTx(ctx, tx, id, meta)
	if err != nil {
		return nil, nil, false, err
	}
	w, err := s.wallets.fundInTx(ctx, tx, closed.UserID, closed.Amount, models.CreditDeposit, id)
	if err != nil {
		return nil, nil, false, err
	}
	s.logger.Warn().
		Str("order_id", orderID).
		Str("closed_transaction_id", closed.ID).
		Str("transaction_id", id).
		Msg("Payment captured on closed order, credited as new deposit")
	return settled, w, true, nil
}

func (s *PaymentService) activateSubscription(ctx context.Context, tx store.Tx, userID int64, meta *models.SubscriptionMeta) error {
	now := s.now()
	start := now
	current, err := tx.GetSubscription(ctx, userID)
	switch {
	case err == nil:
		if current.Active(now) && current.PlanID == meta.PlanID {
			start = current.ExpiresAt
		}
	case !errors.Is(err, models.ErrNotFound):
		return err
	}
	return tx.UpsertSubscription(ctx, &models.Subscription{
		UserID:    userID,
		PlanID:    meta.PlanID,
		ExpiresAt: start.AddDate(0, 0, meta.DurationDays),
		UpdatedAt: now,
	})
}

func validBankDetails(bd models.BankDetails) bool {
	return bd.UPIID != "" || (bd.AccountNumber != "" && bd.IFSC != "")
}

// RequestWithdrawal debits the wallet immediately and parks the payout for
// admin review. Rejection re-credits the exact amount.
func (s *PaymentService) RequestWithdrawal(ctx context.Context, userID int64, req *models.WithdrawalRequest) (*models.Transaction, error) {
	if !req.Amount.IsPositive() {
		return nil, models.ErrInvalidAmount
	}
	if !validBankDetails(req.BankDetails) {
		return nil, models.NewError(models.CodeInvalidRequest, "bank account with IFSC or UPI id is required")
	}

	method := req.WithdrawalMethod
	if method == "" {
		method = "bank_transfer"
	}

	var t *models.Transaction
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		id := newTransactionID()
		if _, err := s.wallets.deductInTx(ctx, tx, userID, req.Amount, models.DebitWithdrawal, id); err != nil {
			return err
		}
		var err error
		t, err = s.transactions.createInTx(ctx, tx, models.NewTransaction{
			ID:            id,
			UserID:        userID,
			Type:          models.TransactionTypeWithdrawal,
			Amount:        req.Amount,
			PaymentMethod: method,
			Description:   "Wallet withdrawal",
			Metadata: &models.WithdrawalMeta{
				BankDetails: req.BankDetails,
				Status:      models.WithdrawalPendingApproval,
			},
		})
		return err
	})
	if err != nil {
		if !errors.Is(err, models.ErrInsufficientBalance) {
			s.logger.Error().Err(err).Int64("user_id", userID).Msg("Error requesting withdrawal")
		}
		return nil, err
	}

	s.logger.Info().
		Int64("user_id", userID).
		Str("transaction_id", t.ID).
		Str("amount", req.Amount.String()).
		Msg("Withdrawal requested")
	s.transactions.publish(ctx, events.TransactionCreated, t)
	return t, nil
}

// lockWithdrawal loads a pending withdrawal whose review status is one of want.
func lockWithdrawal(ctx context.Context, tx store.Tx, id string, want ...models.WithdrawalStatus) (*models.Transaction, *models.WithdrawalMeta, error) {
	t, err := tx.GetTransactionForUpdate(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if t.Type != models.TransactionTypeWithdrawal {
		return nil, nil, models.NewError(models.CodeInvalidRequest, "transaction "+id+" is not a withdrawal")
	}
	if t.Status.Terminal() {
		return nil, nil, models.NewError(models.CodeAlreadyTerminal, "withdrawal "+id+" is already "+string(t.Status))
	}
	meta, ok := t.Metadata.(*models.WithdrawalMeta)
	if !ok {
		return nil, nil, models.NewError(models.CodeInvalidRequest, "withdrawal "+id+" has no review metadata")
	}
	if !slices.Contains(want, meta.Status) {
		return nil, nil, models.NewError(models.CodeConflict, "withdrawal "+id+" is "+string(meta.Status))
	}
	return t, meta, nil
}

// payoutRefused reports whether a payout error proves no money was sent.
func payoutRefused(err error) bool {
	if errors.Is(err, gateway.ErrPayoutRejected) {
		return true
	}
	code := models.CodeOf(err)
	return code != "" && code != models.CodeGatewayUnavailable
}

// ApproveWithdrawal sends the payout. The gateway is called outside any
// unit of work. A refused payout returns the withdrawal to review; any other
// failure leaves it processing, where only another approval (reusing the
// same payout idempotency key) may pick it up.
func (s *PaymentService) ApproveWithdrawal(ctx context.Context, adminID int64, id string) (*models.Transaction, error) {
	var claimed *models.Transaction
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		t, meta, err := lockWithdrawal(ctx, tx, id, models.WithdrawalPendingApproval, models.WithdrawalProcessing)
		if err != nil {
			return err
		}
		now := s.now()
		meta.Status = models.WithdrawalProcessing
		meta.ReviewedBy = adminID
		meta.ReviewedAt = &now
		if err := tx.UpdateTransaction(ctx, t); err != nil {
			return err
		}
		claimed = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	meta := claimed.Metadata.(*models.WithdrawalMeta)
	payout, payoutErr := s.gateway.CreatePayout(ctx, gateway.PayoutRequest{
		ReferenceID: claimed.ID,
		Amount:      claimed.Amount,
		Currency:    claimed.Currency,
		BankDetails: meta.BankDetails,
		Narration:   "Wallet withdrawal",
	})
	if payoutErr != nil {
		if !payoutRefused(payoutErr) {
			s.logger.Error().Err(payoutErr).Str("transaction_id", id).Msg("Payout outcome unknown, withdrawal left processing")
			return nil, asGatewayError(payoutErr)
		}
		s.logger.Warn().Err(payoutErr).Str("transaction_id", id).Msg("Payout refused, withdrawal returned to review")
		revertErr := s.store.WithinTx(context.WithoutCancel(ctx), func(ctx context.Context, tx store.Tx) error {
			t, meta, err := lockWithdrawal(ctx, tx, id, models.WithdrawalProcessing)
			if err != nil {
				return err
			}
			meta.Status = models.WithdrawalPendingApproval
			return tx.UpdateTransaction(ctx, t)
		})
		if revertErr != nil {
			s.logger.Error().Err(revertErr).Str("transaction_id", id).Msg("Failed to return withdrawal to review")
		}
		return nil, asGatewayError(payoutErr)
	}

	var completed *models.Transaction
	err = s.store.WithinTx(context.WithoutCancel(ctx), func(ctx context.Context, tx store.Tx) error {
		t, meta, err := lockWithdrawal(ctx, tx, id, models.WithdrawalProcessing)
		if err != nil {
			return err
		}
		patched := *meta
		patched.Status = models.WithdrawalApproved
		patched.PayoutID = payout.ID
		completed, err = s.transactions.completeInTx(ctx, tx, t.ID, &patched)
		return err
	})
	if err != nil {
		s.logger.Error().Err(err).Str("transaction_id", id).Str("payout_id", payout.ID).Msg("Payout sent but withdrawal not completed")
		return nil, err
	}

	s.logger.Info().
		Str("transaction_id", id).
		Str("payout_id", payout.ID).
		Int64("admin_id", adminID).
		Msg("Withdrawal approved")
	s.transactions.publish(ctx, events.TransactionCompleted, completed)
	return completed, nil
}

// RejectWithdrawal cancels a withdrawal under review and re-credits its
// amount in the same unit of work.
func (s *PaymentService) RejectWithdrawal(ctx context.Context, adminID int64, id, reason string) (*models.Transaction, error) {
	if strings.TrimSpace(reason) == "" {
		reason = "Rejected by admin"
	}

	var cancelled *models.Transaction
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		t, meta, err := lockWithdrawal(ctx, tx, id, models.WithdrawalPendingApproval)
		if err != nil {
			return err
		}
		now := s.now()
		meta.Status = models.WithdrawalRejected
		meta.RejectionReason = reason
		meta.ReviewedBy = adminID
		meta.ReviewedAt = &now

		t.Status = models.TransactionStatusCancelled
		t.Reason = reason
		t.CompletedAt = &now
		if err := tx.UpdateTransaction(ctx, t); err != nil {
			return err
		}
		if _, err := s.wallets.fundInTx(ctx, tx, t.UserID, t.Amount, models.CreditRefund, t.ID); err != nil {
			return err
		}
		cancelled = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("transaction_id", id).
		Int64("admin_id", adminID).
		Str("reason", reason).
		Msg("Withdrawal rejected and refunded")
	s.transactions.publish(ctx, events.TransactionCancelled, cancelled)
	return cancelled, nil
}

// HandleWebhook applies a signed gateway event. Re-deliveries and events
// for orders already settled are acknowledged without effect.
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if !s.gateway.VerifyWebhookSignature(body, signature) {
		s.logger.Warn().Msg("Webhook signature mismatch")
		return models.ErrSignatureMismatch
	}
	ev, err := gateway.ParseWebhook(body)
	if err != nil {
		return err
	}

	logger := s.logger.With().Str("event", ev.Event).Logger()
	switch ev.Event {
	case gateway.EventPaymentCaptured:
		payment, err := ev.Payment()
		if err != nil {
			return err
		}
		_, _, err = s.settleOrder(ctx, payment.OrderID, payment.ID, "", capturedViaWebhook, 0)
		switch {
		case errors.Is(err, models.ErrNotFound):
			logger.Warn().Str("order_id", payment.OrderID).Msg("Captured payment for unknown order")
			return nil
		case errors.Is(err, models.ErrAlreadyTerminal):
			logger.Warn().Str("order_id", payment.OrderID).Msg("Captured payment for closed order")
			return nil
		}
		return err

	case gateway.EventPaymentFailed:
		payment, err := ev.Payment()
		if err != nil {
			return err
		}
		return s.failOrder(ctx, payment, logger)

	case gateway.EventRefundCreated:
		refund, err := ev.Refund()
		if err != nil {
			return err
		}
		return s.recordGatewayRefund(ctx, refund, logger)
	}

	logger.Info().Msg("Unhandled webhook event")
	return nil
}

func (s *PaymentService) failOrder(ctx context.Context, payment *gateway.PaymentEntity, logger zerolog.Logger) error {
	reason := payment.ErrorDescription
	if reason == "" {
		reason = "Payment failed"
	}

	var failed *models.Transaction
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		t, err := lockOrderTransaction(ctx, tx, payment.OrderID)
		if err != nil {
			return err
		}
		if t.Status.Terminal() {
			return nil
		}
		failed, err = s.transactions.terminateInTx(ctx, tx, t.ID, models.TransactionStatusFailed, reason)
		return err
	})
	if errors.Is(err, models.ErrNotFound) {
		logger.Warn().Str("order_id", payment.OrderID).Msg("Failed payment for unknown order")
		return nil
	}
	if err != nil {
		return err
	}
	if failed != nil {
		logger.Info().Str("order_id", payment.OrderID).Str("transaction_id", failed.ID).Msg("Payment marked failed")
		s.transactions.publish(ctx, events.TransactionFailed, failed)
	}
	return nil
}

const refundProcessed = "processed"

func (s *PaymentService) recordGatewayRefund(ctx context.Context, refund *gateway.RefundEntity, logger zerolog.Logger) error {
	logger = logger.With().Str("refund_id", refund.ID).Logger()
	if refund.ID == "" {
		return models.NewError(models.CodeInvalidRequest, "refund id missing")
	}
	if refund.Status != refundProcessed {
		logger.Info().Str("status", refund.Status).Msg("Refund not processed yet, ignoring")
		return nil
	}
	userID, err := strconv.ParseInt(refund.Notes["user_id"], 10, 64)
	if err != nil || userID <= 0 {
		logger.Warn().Msg("Refund carries no user_id note, wallet not credited")
		return nil
	}
	amount := gateway.FromMinorUnits(refund.Amount)
	if !amount.IsPositive() {
		return models.ErrInvalidAmount
	}

	id := "REFUND-" + refund.ID
	currency := strings.ToUpper(refund.Currency)
	if currency == "" {
		currency = s.currency
	}

	var created *models.Transaction
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetTransaction(ctx, id); err == nil {
			return nil
		} else if !errors.Is(err, models.ErrNotFound) {
			return err
		}
		t, err := s.transactions.createInTx(ctx, tx, models.NewTransaction{
			ID:            id,
			UserID:        userID,
			Type:          models.TransactionTypeRefund,
			Amount:        amount,
			Currency:      currency,
			PaymentMethod: "razorpay",
			ReferenceID:   refund.PaymentID,
			Description:   "Refund for payment " + refund.PaymentID,
			Metadata: &models.RefundMeta{
				GatewayRefundID:  refund.ID,
				GatewayPaymentID: refund.PaymentID,
			},
		})
		if err != nil {
			return err
		}
		if _, err := s.wallets.fundInTx(ctx, tx, userID, amount, models.CreditRefund, id); err != nil {
			return err
		}
		created = t
		return nil
	})
	if errors.Is(err, models.ErrConflict) {
		logger.Info().Msg("Refund already recorded")
		return nil
	}
	if err != nil {
		return err
	}
	if created == nil {
		logger.Info().Msg("Refund already recorded")
		return nil
	}

	logger.Info().Int64("user_id", userID).Str("amount", amount.String()).Msg("Gateway refund credited")
	s.transactions.publish(ctx, events.TransactionCreated, created)
	return nil
}

func (s *PaymentService) ListPlans() []models.SubscriptionPlan {
	return models.SubscriptionPlans
}

// PurchaseSubscription opens a gateway order for a plan. The plan activates
// when the order is settled.
func (s *PaymentService) PurchaseSubscription(ctx context.Context, userID int64, planID string) (*models.PurchaseSubscriptionResponse, error) {
	plan, ok := models.FindSubscriptionPlan(planID)
	if !ok {
		return nil, models.NewError(models.CodeInvalidRequest, "unknown subscription plan")
	}

	order, err := s.gateway.CreateOrder(ctx, plan.Price, s.currency, newReceipt())
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Str("plan_id", planID).Msg("Error creating subscription order")
		return nil, asGatewayError(err)
	}

	t, err := s.transactions.CreateTransaction(ctx, models.NewTransaction{
		UserID:        userID,
		Type:          models.TransactionTypeSubscription,
		Amount:        plan.Price,
		Currency:      order.Currency,
		PaymentMethod: "razorpay",
		ReferenceID:   order.ID,
		Description:   plan.Name + " subscription",
		Metadata: &models.SubscriptionMeta{
			PlanID:         plan.ID,
			DurationDays:   plan.DurationDays,
			GatewayOrderID: order.ID,
		},
	})
	if err != nil {
		return nil, err
	}

	return &models.PurchaseSubscriptionResponse{
		OrderID:       order.ID,
		Amount:        plan.Price,
		Currency:      order.Currency,
		TransactionID: t.ID,
		Plan:          plan,
	}, nil
}

type SubscriptionStatus struct {
	Active       bool                 `json:"active"`
	Subscription *models.Subscription `json:"subscription,omitempty"`
}

func (s *PaymentService) SubscriptionStatus(ctx context.Context, userID int64) (*SubscriptionStatus, error) {
	sub, err := s.store.GetSubscription(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return &SubscriptionStatus{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &SubscriptionStatus{Active: sub.Active(s.now()), Subscription: sub}, nil
}

// IssueCredit books an admin bonus (earnings) or refund (refunds) straight
// into the user's wallet.
func (s *PaymentService) IssueCredit(ctx context.Context, adminID int64, req *models.CreditRequest) (*models.Transaction, error) {
	if !req.Amount.IsPositive() {
		return nil, models.ErrInvalidAmount
	}
	if _, err := s.store.GetUserByID(ctx, req.UserID); err != nil {
		return nil, err
	}

	var (
		bucket models.CreditBucket
		meta   models.Metadata
	)
	switch req.Type {
	case models.TransactionTypeBonus:
		bucket = models.CreditEarning
		meta = &models.BonusMeta{IssuedBy: adminID, Notes: req.Notes}
	case models.TransactionTypeRefund:
		bucket = models.CreditRefund
		meta = &models.RefundMeta{IssuedBy: adminID, Reason: req.Reason}
	default:
		return nil, models.NewError(models.CodeInvalidTransactionType, "credits must be bonus or refund")
	}

	var t *models.Transaction
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		id := newTransactionID()
		if _, err := s.wallets.fundInTx(ctx, tx, req.UserID, req.Amount, bucket, id); err != nil {
			return err
		}
		var err error
		t, err = s.transactions.createInTx(ctx, tx, models.NewTransaction{
			ID:          id,
			UserID:      req.UserID,
			Type:        req.Type,
			Amount:      req.Amount,
			Description: req.Reason,
			Metadata:    meta,
		})
		return err
	})
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", req.UserID).Msg("Error issuing credit")
		return nil, err
	}

	s.logger.Info().
		Int64("user_id", req.UserID).
		Int64("admin_id", adminID).
		Str("type", string(req.Type)).
		Str("amount", req.Amount.String()).
		Msg("Credit issued")
	s.transactions.publish(ctx, events.TransactionCreated, t)
	return t, nil
}

// asGatewayError makes sure remote failures surface as GatewayUnavailable
// while validation errors keep their own kind.
func asGatewayError(err error) error {
	if models.CodeOf(err) != "" {
		return err
	}
	return models.WrapError(models.CodeGatewayUnavailable, "payment gateway unavailable", err)
}
