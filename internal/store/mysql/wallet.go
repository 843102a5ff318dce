package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"skillarena/internal/models"

	"github.com/shopspring/decimal"
)

const walletColumns = `user_id, balance, total_deposits, total_withdrawals, total_earnings,
	total_spent, total_refunds, currency, created_at, updated_at`

func (q *queries) GetWallet(ctx context.Context, userID int64) (*models.Wallet, error) {
	return q.getWallet(ctx, userID, false)
}

func (q *queries) getWallet(ctx context.Context, userID int64, forUpdate bool) (*models.Wallet, error) {
	var w models.Wallet
	err := q.q.QueryRowContext(ctx,
		"SELECT "+walletColumns+" FROM wallets WHERE user_id = ?"+lockClause(forUpdate),
		userID,
	).Scan(
		&w.UserID, &w.Balance, &w.TotalDeposits, &w.TotalWithdrawals, &w.TotalEarnings,
		&w.TotalSpent, &w.TotalRefunds, &w.Currency, &w.CreatedAt, &w.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("wallet")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch wallet: %w", err)
	}
	return &w, nil
}

func (q *queries) EnsureWallet(ctx context.Context, w *models.Wallet) error {
	_, err := q.q.ExecContext(ctx,
		`INSERT IGNORE INTO wallets (`+walletColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.UserID, w.Balance, w.TotalDeposits, w.TotalWithdrawals, w.TotalEarnings,
		w.TotalSpent, w.TotalRefunds, w.Currency, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize wallet: %w", err)
	}
	return nil
}

func (q *queries) SaveWallet(ctx context.Context, w *models.Wallet) error {
	res, err := q.q.ExecContext(ctx,
		`UPDATE wallets SET balance = ?, total_deposits = ?, total_withdrawals = ?,
			total_earnings = ?, total_spent = ?, total_refunds = ?, updated_at = ?
		WHERE user_id = ?`,
		w.Balance, w.TotalDeposits, w.TotalWithdrawals,
		w.TotalEarnings, w.TotalSpent, w.TotalRefunds, w.UpdatedAt,
		w.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update wallet: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// MySQL reports zero affected rows when nothing changed, so only a
		// missing row is an error.
		if _, err := q.getWallet(ctx, w.UserID, false); err != nil {
			return err
		}
	}
	return nil
}

func (q *queries) AppendHistory(ctx context.Context, h *models.WalletHistory) error {
	res, err := q.q.ExecContext(ctx,
		`INSERT INTO wallet_history (user_id, balance_after, change_amount, transaction_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		h.UserID, h.BalanceAfter, h.ChangeAmount, nullString(h.TransactionID), h.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record wallet history: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read wallet history id: %w", err)
	}
	h.ID = id
	return nil
}

func (q *queries) GetBalanceHistory(ctx context.Context, userID int64, limit, offset int) ([]*models.WalletHistory, error) {
	limit, offset = pageArgs(limit, offset)
	rows, err := q.q.QueryContext(ctx, `
		SELECT id, user_id, balance_after, change_amount, transaction_id, created_at
		FROM wallet_history
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT ? OFFSET ?`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch wallet history: %w", err)
	}
	defer rows.Close()

	var history []*models.WalletHistory
	for rows.Next() {
		var record models.WalletHistory
		var transactionID sql.NullString
		if err := rows.Scan(
			&record.ID, &record.UserID, &record.BalanceAfter, &record.ChangeAmount,
			&transactionID, &record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning wallet history: %w", err)
		}
		record.TransactionID = transactionID.String
		history = append(history, &record)
	}
	return history, rows.Err()
}

func (q *queries) SumHistory(ctx context.Context, userID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := q.q.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(change_amount), 0) FROM wallet_history WHERE user_id = ?",
		userID,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum wallet history: %w", err)
	}
	return total, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
