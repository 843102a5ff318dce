// Package store defines the durable state behind the ledger: wallets, the
// append-only transaction log, wallet history, contests, results, users and
// subscriptions.
package store

import (
	"context"

	"skillarena/internal/models"

	"github.com/shopspring/decimal"
)

// Reader holds the non-locking reads. Missing rows yield an error matching
// models.ErrNotFound.
type Reader interface {
	GetWallet(ctx context.Context, userID int64) (*models.Wallet, error)
	GetBalanceHistory(ctx context.Context, userID int64, limit, offset int) ([]*models.WalletHistory, error)
	SumHistory(ctx context.Context, userID int64) (decimal.Decimal, error)

	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	FindTransactionByReference(ctx context.Context, referenceID string, txType models.TransactionType) (*models.Transaction, error)
	ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, error)

	GetContest(ctx context.Context, id string) (*models.Contest, error)
	ListContests(ctx context.Context, filter models.ContestFilter) ([]*models.Contest, error)
	ListResults(ctx context.Context, contestID string) ([]*models.ContestResult, error)

	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UserExists(ctx context.Context, email, username string) (bool, error)

	GetSubscription(ctx context.Context, userID int64) (*models.Subscription, error)
}

// Tx is a unit of work. Rows read through the ForUpdate methods stay locked
// until the surrounding WithinTx returns.
type Tx interface {
	Reader

	GetWalletForUpdate(ctx context.Context, userID int64) (*models.Wallet, error)
	// EnsureWallet inserts w unless a wallet for w.UserID already exists.
	EnsureWallet(ctx context.Context, w *models.Wallet) error
	SaveWallet(ctx context.Context, w *models.Wallet) error
	AppendHistory(ctx context.Context, h *models.WalletHistory) error

	GetTransactionForUpdate(ctx context.Context, id string) (*models.Transaction, error)
	FindTransactionByReferenceForUpdate(ctx context.Context, referenceID string, txType models.TransactionType) (*models.Transaction, error)
	// InsertTransaction fails with models.ErrConflict on a duplicate id.
	InsertTransaction(ctx context.Context, t *models.Transaction) error
	UpdateTransaction(ctx context.Context, t *models.Transaction) error

	GetContestForUpdate(ctx context.Context, id string) (*models.Contest, error)
	InsertContest(ctx context.Context, c *models.Contest) error
	SaveContest(ctx context.Context, c *models.Contest) error
	// InsertResult fails with models.ErrAlreadySubmitted for a second result
	// from the same user.
	InsertResult(ctx context.Context, r *models.ContestResult) error

	// CreateUser assigns u.ID.
	CreateUser(ctx context.Context, u *models.User) error
	UpdateUserRole(ctx context.Context, userID int64, role string) error

	UpsertSubscription(ctx context.Context, s *models.Subscription) error
}

// Store runs units of work and serves reads outside of them.
type Store interface {
	Reader
	// WithinTx runs fn in a single atomic unit. A non-nil error from fn
	// discards every write made through tx.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Close() error
}
