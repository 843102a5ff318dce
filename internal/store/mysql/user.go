package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"skillarena/internal/models"
)

const userColumns = "id, username, email, password_hash, role, created_at, updated_at"

func (q *queries) scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("user")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	return &u, nil
}

func (q *queries) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return q.scanUser(q.q.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
}

func (q *queries) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return q.scanUser(q.q.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email))
}

func (q *queries) UserExists(ctx context.Context, email, username string) (bool, error) {
	var exists bool
	err := q.q.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE email = ? OR username = ?)",
		email, username,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

func (q *queries) CreateUser(ctx context.Context, u *models.User) error {
	res, err := q.q.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.Username, u.Email, u.PasswordHash, u.Role, u.CreatedAt, u.UpdatedAt,
	)
	if isDuplicate(err) {
		return models.WrapError(models.CodeConflict, "user already exists", err)
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read user id: %w", err)
	}
	u.ID = id
	return nil
}

func (q *queries) UpdateUserRole(ctx context.Context, userID int64, role string) error {
	res, err := q.q.ExecContext(ctx,
		"UPDATE users SET role = ?, updated_at = NOW() WHERE id = ?",
		role, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := q.GetUserByID(ctx, userID); err != nil {
			return err
		}
	}
	return nil
}

func (q *queries) GetSubscription(ctx context.Context, userID int64) (*models.Subscription, error) {
	var s models.Subscription
	err := q.q.QueryRowContext(ctx,
		"SELECT user_id, plan_id, expires_at, updated_at FROM subscriptions WHERE user_id = ?",
		userID,
	).Scan(&s.UserID, &s.PlanID, &s.ExpiresAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("subscription")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscription: %w", err)
	}
	return &s, nil
}

func (q *queries) UpsertSubscription(ctx context.Context, s *models.Subscription) error {
	_, err := q.q.ExecContext(ctx,
		`INSERT INTO subscriptions (user_id, plan_id, expires_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE plan_id = VALUES(plan_id), expires_at = VALUES(expires_at), updated_at = VALUES(updated_at)`,
		s.UserID, s.PlanID, s.ExpiresAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}
