package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"skillarena/internal/models"
)

const transactionColumns = `id, user_id, type, amount, currency, status, payment_method,
	reference_id, description, reason, metadata, created_at, completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		t           models.Transaction
		referenceID sql.NullString
		description sql.NullString
		reason      sql.NullString
		metadata    []byte
		completedAt sql.NullTime
	)
	if err := row.Scan(
		&t.ID, &t.UserID, &t.Type, &t.Amount, &t.Currency, &t.Status, &t.PaymentMethod,
		&referenceID, &description, &reason, &metadata, &t.CreatedAt, &completedAt,
	); err != nil {
		return nil, err
	}
	t.ReferenceID = referenceID.String
	t.Description = description.String
	t.Reason = reason.String
	if completedAt.Valid {
		at := completedAt.Time
		t.CompletedAt = &at
	}
	meta, err := models.DecodeMetadata(metadata)
	if err != nil {
		return nil, err
	}
	t.Metadata = meta
	return &t, nil
}

func (q *queries) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	return q.getTransaction(ctx, id, false)
}

func (q *queries) getTransaction(ctx context.Context, id string, forUpdate bool) (*models.Transaction, error) {
	t, err := scanTransaction(q.q.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE id = ?"+lockClause(forUpdate),
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("transaction")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transaction: %w", err)
	}
	return t, nil
}

func (q *queries) FindTransactionByReference(ctx context.Context, referenceID string, txType models.TransactionType) (*models.Transaction, error) {
	return q.findTransactionByReference(ctx, referenceID, txType, false)
}

func (q *queries) findTransactionByReference(ctx context.Context, referenceID string, txType models.TransactionType, forUpdate bool) (*models.Transaction, error) {
	t, err := scanTransaction(q.q.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE reference_id = ? AND type = ? ORDER BY created_at LIMIT 1"+lockClause(forUpdate),
		referenceID, txType,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("transaction")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transaction by reference: %w", err)
	}
	return t, nil
}

func (q *queries) ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, error) {
	var (
		where []string
		args  []any
	)
	if filter.UserID != nil {
		where = append(where, "user_id = ?")
		args = append(args, *filter.UserID)
	}
	if filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, filter.Type)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.ReferenceID != "" {
		where = append(where, "reference_id = ?")
		args = append(args, filter.ReferenceID)
	}

	query := "SELECT " + transactionColumns + " FROM transactions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit, offset := pageArgs(filter.Limit, filter.Offset)
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

func (q *queries) InsertTransaction(ctx context.Context, t *models.Transaction) error {
	metadata, err := models.EncodeMetadata(t.Metadata)
	if err != nil {
		return err
	}
	_, err = q.q.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Type, t.Amount, t.Currency, t.Status, t.PaymentMethod,
		nullString(t.ReferenceID), nullString(t.Description), nullString(t.Reason),
		metadata, t.CreatedAt, t.CompletedAt,
	)
	if isDuplicate(err) {
		return models.WrapError(models.CodeConflict, "transaction "+t.ID+" already exists", err)
	}
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func (q *queries) UpdateTransaction(ctx context.Context, t *models.Transaction) error {
	metadata, err := models.EncodeMetadata(t.Metadata)
	if err != nil {
		return err
	}
	res, err := q.q.ExecContext(ctx,
		`UPDATE transactions SET status = ?, reference_id = ?, reason = ?, metadata = ?, completed_at = ?
		WHERE id = ?`,
		t.Status, nullString(t.ReferenceID), nullString(t.Reason), metadata, t.CompletedAt,
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := q.getTransaction(ctx, t.ID, false); err != nil {
			return err
		}
	}
	return nil
}
