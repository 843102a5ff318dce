package services

import (
	"context"
	"time"

	"skillarena/internal/events"
	"skillarena/internal/models"
	"skillarena/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type TransactionService struct {
	store     store.Store
	logger    zerolog.Logger
	publisher events.Publisher
	currency  string
	now       func() time.Time
}

func NewTransactionService(st store.Store, logger zerolog.Logger, publisher events.Publisher, currency string) *TransactionService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &TransactionService{
		store:     st,
		logger:    logger,
		publisher: publisher,
		currency:  currency,
		now:       time.Now,
	}
}

func newTransactionID() string {
	return "TXN-" + uuid.NewString()
}

// CreateTransaction records a transaction. Internal types are recorded as
// completed, the rest start pending. The wallet is never touched here.
func (s *TransactionService) CreateTransaction(ctx context.Context, nt models.NewTransaction) (*models.Transaction, error) {
	var t *models.Transaction
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		t, err = s.createInTx(ctx, tx, nt)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.TransactionCreated, t)
	return t, nil
}

func (s *TransactionService) build(nt models.NewTransaction) (*models.Transaction, error) {
	if !nt.Amount.IsPositive() {
		return nil, models.ErrInvalidAmount
	}
	if !nt.Type.Valid() {
		return nil, models.ErrInvalidTransactionType
	}
	if nt.Metadata != nil && nt.Metadata.Kind() != nt.Type {
		return nil, models.NewError(models.CodeInvalidRequest, "metadata does not match transaction type")
	}

	now := s.now()
	t := &models.Transaction{
		ID:            nt.ID,
		UserID:        nt.UserID,
		Type:          nt.Type,
		Amount:        nt.Amount,
		Currency:      nt.Currency,
		Status:        models.TransactionStatusPending,
		PaymentMethod: nt.PaymentMethod,
		ReferenceID:   nt.ReferenceID,
		Description:   nt.Description,
		Metadata:      nt.Metadata,
		CreatedAt:     now,
	}
	if t.ID == "" {
		t.ID = newTransactionID()
	}
	if t.Currency == "" {
		t.Currency = s.currency
	}
	if t.PaymentMethod == "" {
		t.PaymentMethod = "wallet"
	}
	if nt.Type.Internal() {
		t.Status = models.TransactionStatusCompleted
		t.CompletedAt = &now
	}
	return t, nil
}

func (s *TransactionService) createInTx(ctx context.Context, tx store.Tx, nt models.NewTransaction) (*models.Transaction, error) {
	t, err := s.build(nt)
	if err != nil {
		return nil, err
	}
	if err := tx.InsertTransaction(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// CompleteTransaction moves a pending transaction to completed. A non-nil
// meta replaces the stored metadata.
func (s *TransactionService) CompleteTransaction(ctx context.Context, id string, meta models.Metadata) (*models.Transaction, error) {
	return s.finish(ctx, id, func(ctx context.Context, tx store.Tx) (*models.Transaction, error) {
		return s.completeInTx(ctx, tx, id, meta)
	}, events.TransactionCompleted)
}

func (s *TransactionService) FailTransaction(ctx context.Context, id, reason string) (*models.Transaction, error) {
	return s.finish(ctx, id, func(ctx context.Context, tx store.Tx) (*models.Transaction, error) {
		return s.terminateInTx(ctx, tx, id, models.TransactionStatusFailed, reason)
	}, events.TransactionFailed)
}

func (s *TransactionService) CancelTransaction(ctx context.Context, id, reason string) (*models.Transaction, error) {
	return s.finish(ctx, id, func(ctx context.Context, tx store.Tx) (*models.Transaction, error) {
		return s.terminateInTx(ctx, tx, id, models.TransactionStatusCancelled, reason)
	}, events.TransactionCancelled)
}

func (s *TransactionService) finish(ctx context.Context, id string, fn func(context.Context, store.Tx) (*models.Transaction, error), routingKey string) (*models.Transaction, error) {
	var t *models.Transaction
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		t, err = fn(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("transaction_id", id).Str("status", string(t.Status)).Msg("Transaction finalized")
	s.publish(ctx, routingKey, t)
	return t, nil
}

// lockPending loads the row for update and rejects anything already terminal.
func (s *TransactionService) lockPending(ctx context.Context, tx store.Tx, id string) (*models.Transaction, error) {
	t, err := tx.GetTransactionForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status.Terminal() {
		return nil, models.NewError(models.CodeAlreadyTerminal, "transaction "+id+" is already "+string(t.Status))
	}
	return t, nil
}

func (s *TransactionService) completeInTx(ctx context.Context, tx store.Tx, id string, meta models.Metadata) (*models.Transaction, error) {
	t, err := s.lockPending(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if meta != nil {
		if meta.Kind() != t.Type {
			return nil, models.NewError(models.CodeInvalidRequest, "metadata does not match transaction type")
		}
		t.Metadata = meta
	}
	now := s.now()
	t.Status = models.TransactionStatusCompleted
	t.CompletedAt = &now
	if err := tx.UpdateTransaction(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TransactionService) terminateInTx(ctx context.Context, tx store.Tx, id string, status models.TransactionStatus, reason string) (*models.Transaction, error) {
	t, err := s.lockPending(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	t.Status = status
	t.Reason = reason
	t.CompletedAt = &now
	if err := tx.UpdateTransaction(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TransactionService) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

// GetUserTransaction hides other users' transactions behind NotFound.
func (s *TransactionService) GetUserTransaction(ctx context.Context, userID int64, id string) (*models.Transaction, error) {
	t, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, models.NewError(models.CodeNotFound, "transaction not found")
	}
	return t, nil
}

func (s *TransactionService) ListUserTransactions(ctx context.Context, userID int64, limit, offset int) ([]*models.Transaction, error) {
	return s.ListTransactions(ctx, models.TransactionFilter{UserID: &userID, Limit: limit, Offset: offset})
}

func (s *TransactionService) ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, error) {
	filter.Limit, filter.Offset = normalizePage(filter.Limit, filter.Offset)
	transactions, err := s.store.ListTransactions(ctx, filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error listing transactions")
		return nil, err
	}
	return transactions, nil
}

func (s *TransactionService) publish(ctx context.Context, routingKey string, t *models.Transaction) {
	if err := s.publisher.Publish(ctx, events.TransactionEvent(routingKey, t, s.now())); err != nil {
		s.logger.Warn().Err(err).Str("transaction_id", t.ID).Str("routing_key", routingKey).Msg("Failed to publish transaction event")
	}
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
