package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"skillarena/internal/models"
	"skillarena/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithinTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		require.NoError(t, tx.EnsureWallet(ctx, models.NewWallet(1, "INR", time.Now())))
		require.NoError(t, tx.InsertTransaction(ctx, &models.Transaction{ID: "TXN-1", UserID: 1}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetWallet(ctx, 1)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = s.GetTransaction(ctx, "TXN-1")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestWithinTxCommits(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		w := models.NewWallet(1, "INR", time.Now())
		if err := tx.EnsureWallet(ctx, w); err != nil {
			return err
		}
		w.Balance = decimal.NewFromInt(10)
		if err := tx.SaveWallet(ctx, w); err != nil {
			return err
		}
		return tx.AppendHistory(ctx, &models.WalletHistory{UserID: 1, ChangeAmount: w.Balance, BalanceAfter: w.Balance})
	})
	require.NoError(t, err)

	w, err := s.GetWallet(ctx, 1)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(decimal.NewFromInt(10)))

	sum, err := s.SumHistory(ctx, 1)
	require.NoError(t, err)
	assert.True(t, sum.Equal(decimal.NewFromInt(10)))
}

func TestReadsReturnCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertTransaction(ctx, &models.Transaction{
			ID:       "TXN-1",
			Status:   models.TransactionStatusPending,
			Metadata: &models.DepositMeta{GatewayOrderID: "order_1"},
		})
	}))

	got, err := s.GetTransaction(ctx, "TXN-1")
	require.NoError(t, err)
	got.Status = models.TransactionStatusCompleted
	got.Metadata.(*models.DepositMeta).GatewayOrderID = "tampered"

	again, err := s.GetTransaction(ctx, "TXN-1")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, again.Status)
	assert.Equal(t, "order_1", again.Metadata.(*models.DepositMeta).GatewayOrderID)
}

func TestDuplicateInsertsConflict(t *testing.T) {
	ctx := context.Background()
	s := New()

	insert := func() error {
		return s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
			return tx.InsertTransaction(ctx, &models.Transaction{ID: "REFUND-rfnd_1"})
		})
	}
	require.NoError(t, insert())
	assert.ErrorIs(t, insert(), models.ErrConflict)

	result := func() error {
		return s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
			return tx.InsertResult(ctx, &models.ContestResult{ContestID: "CTST-1", UserID: 1})
		})
	}
	require.NoError(t, result())
	assert.ErrorIs(t, result(), models.ErrAlreadySubmitted)
}

func TestFindTransactionByReference(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.InsertTransaction(ctx, &models.Transaction{ID: "TXN-1", Type: models.TransactionTypeDeposit, ReferenceID: "order_1"}); err != nil {
			return err
		}
		return tx.InsertTransaction(ctx, &models.Transaction{ID: "TXN-2", Type: models.TransactionTypeSubscription, ReferenceID: "order_2"})
	}))

	got, err := s.FindTransactionByReference(ctx, "order_2", models.TransactionTypeSubscription)
	require.NoError(t, err)
	assert.Equal(t, "TXN-2", got.ID)

	_, err = s.FindTransactionByReference(ctx, "order_2", models.TransactionTypeDeposit)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCancelledContextSkipsWork(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := New().WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
