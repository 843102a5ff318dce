package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"skillarena/internal/models"
	"skillarena/internal/store"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type WalletService struct {
	store    store.Store
	logger   zerolog.Logger
	currency string
	now      func() time.Time
	mu       sync.Map
}

func NewWalletService(st store.Store, logger zerolog.Logger, currency string) *WalletService {
	return &WalletService{
		store:    st,
		logger:   logger,
		currency: currency,
		now:      time.Now,
	}
}

func (s *WalletService) getMutex(userID int64) *sync.Mutex {
	mu, _ := s.mu.LoadOrStore(userID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// GetOrCreateWallet returns the user's wallet, creating a zero-balance one on
// first access.
func (s *WalletService) GetOrCreateWallet(ctx context.Context, userID int64) (*models.Wallet, error) {
	w, err := s.store.GetWallet(ctx, userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("Error fetching wallet")
		return nil, err
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		w, err = s.lockWallet(ctx, tx, userID)
		return err
	})
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("Error initializing wallet")
		return nil, err
	}
	return w, nil
}

// lockWallet loads the wallet row for update, inserting it first if the user
// has none yet.
func (s *WalletService) lockWallet(ctx context.Context, tx store.Tx, userID int64) (*models.Wallet, error) {
	w, err := tx.GetWalletForUpdate(ctx, userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	if err := tx.EnsureWallet(ctx, models.NewWallet(userID, s.currency, s.now())); err != nil {
		return nil, err
	}
	return tx.GetWalletForUpdate(ctx, userID)
}

func (s *WalletService) FundWallet(ctx context.Context, userID int64, amount decimal.Decimal, bucket models.CreditBucket) (*models.Wallet, error) {
	if !amount.IsPositive() {
		return nil, models.ErrInvalidAmount
	}

	mu := s.getMutex(userID)
	mu.Lock()
	defer mu.Unlock()

	var w *models.Wallet
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		w, err = s.fundInTx(ctx, tx, userID, amount, bucket, "")
		return err
	})
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Str("bucket", string(bucket)).Msg("Error funding wallet")
		return nil, err
	}

	s.logger.Info().
		Int64("user_id", userID).
		Str("amount", amount.String()).
		Str("bucket", string(bucket)).
		Msg("Wallet funded")
	return w, nil
}

func (s *WalletService) DeductWallet(ctx context.Context, userID int64, amount decimal.Decimal, bucket models.DebitBucket) (*models.Wallet, error) {
	if !amount.IsPositive() {
		return nil, models.ErrInvalidAmount
	}

	mu := s.getMutex(userID)
	mu.Lock()
	defer mu.Unlock()

	var w *models.Wallet
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		w, err = s.deductInTx(ctx, tx, userID, amount, bucket, "")
		return err
	})
	if err != nil {
		if !errors.Is(err, models.ErrInsufficientBalance) {
			s.logger.Error().Err(err).Int64("user_id", userID).Msg("Error deducting wallet")
		}
		return nil, err
	}

	s.logger.Info().
		Int64("user_id", userID).
		Str("amount", amount.String()).
		Str("bucket", string(bucket)).
		Msg("Wallet debited")
	return w, nil
}

func (s *WalletService) fundInTx(ctx context.Context, tx store.Tx, userID int64, amount decimal.Decimal, bucket models.CreditBucket, transactionID string) (*models.Wallet, error) {
	w, err := s.lockWallet(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := w.Credit(amount, bucket, now); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, tx, w, amount, transactionID, now); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *WalletService) deductInTx(ctx context.Context, tx store.Tx, userID int64, amount decimal.Decimal, bucket models.DebitBucket, transactionID string) (*models.Wallet, error) {
	w, err := s.lockWallet(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := w.Debit(amount, bucket, now); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, tx, w, amount.Neg(), transactionID, now); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *WalletService) persist(ctx context.Context, tx store.Tx, w *models.Wallet, change decimal.Decimal, transactionID string, now time.Time) error {
	if err := tx.SaveWallet(ctx, w); err != nil {
		return err
	}
	return tx.AppendHistory(ctx, &models.WalletHistory{
		UserID:        w.UserID,
		BalanceAfter:  w.Balance,
		ChangeAmount:  change,
		TransactionID: transactionID,
		CreatedAt:     now,
	})
}

func (s *WalletService) GetBalanceHistory(ctx context.Context, userID int64, limit, offset int) ([]*models.WalletHistory, error) {
	history, err := s.store.GetBalanceHistory(ctx, userID, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("Error fetching balance history")
		return nil, err
	}
	return history, nil
}

// Reconcile checks the wallet against its accumulators and against the sum
// of its history deltas.
func (s *WalletService) Reconcile(ctx context.Context, userID int64) (*models.ReconcileReport, error) {
	w, err := s.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	fromHistory, err := s.store.SumHistory(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("Error calculating balance from history")
		return nil, err
	}

	expected := w.ExpectedBalance()
	report := &models.ReconcileReport{
		UserID:            userID,
		Balance:           w.Balance,
		ExpectedBalance:   expected,
		HistoryBalance:    fromHistory,
		AccumulatorsMatch: w.Balance.Equal(expected),
		HistoryMatches:    w.Balance.Equal(fromHistory),
	}

	if !report.AccumulatorsMatch || !report.HistoryMatches {
		s.logger.Warn().
			Int64("user_id", userID).
			Str("current_balance", w.Balance.String()).
			Str("expected_balance", expected.String()).
			Str("history_balance", fromHistory.String()).
			Msg("Balance discrepancy detected")
	}
	return report, nil
}
