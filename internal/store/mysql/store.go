// Package mysql implements store.Store on MySQL. Row locks are taken with
// SELECT ... FOR UPDATE inside the unit of work.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"skillarena/internal/models"
	"skillarena/internal/store"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
)

const errDuplicateEntry = 1062

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	q querier
}

type Store struct {
	*queries
	db     *sql.DB
	logger zerolog.Logger
}

var _ store.Store = (*Store)(nil)

func New(db *sql.DB, logger zerolog.Logger) *Store {
	return &Store{
		queries: &queries{q: db},
		db:      db,
		logger:  logger,
	}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error starting transaction")
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(ctx, &tx{queries: &queries{q: sqlTx}}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		s.logger.Error().Err(err).Msg("Error committing transaction")
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type tx struct {
	*queries
}

var _ store.Tx = (*tx)(nil)

func (t *tx) GetWalletForUpdate(ctx context.Context, userID int64) (*models.Wallet, error) {
	return t.getWallet(ctx, userID, true)
}

func (t *tx) GetTransactionForUpdate(ctx context.Context, id string) (*models.Transaction, error) {
	return t.getTransaction(ctx, id, true)
}

func (t *tx) FindTransactionByReferenceForUpdate(ctx context.Context, referenceID string, txType models.TransactionType) (*models.Transaction, error) {
	return t.findTransactionByReference(ctx, referenceID, txType, true)
}

func (t *tx) GetContestForUpdate(ctx context.Context, id string) (*models.Contest, error) {
	return t.getContest(ctx, id, true)
}

func lockClause(forUpdate bool) string {
	if forUpdate {
		return " FOR UPDATE"
	}
	return ""
}

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == errDuplicateEntry
}

func notFound(what string) error {
	return models.NewError(models.CodeNotFound, what+" not found")
}

func pageArgs(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
