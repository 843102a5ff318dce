package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
)

// InitDB opens the MySQL pool. dbURL must carry parseTime=true so DATETIME
// columns scan into time.Time.
func InitDB(ctx context.Context, dbURL string, logger zerolog.Logger) (*sql.DB, error) {
	db, err := sql.Open("mysql", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database is not responding: %w", err)
	}

	logger.Info().Msg("Connected to database")
	return db, nil
}

func RunMigrations(ctx context.Context, db *sql.DB, logger zerolog.Logger) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			username VARCHAR(100) NOT NULL UNIQUE,
			email VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			role VARCHAR(50) NOT NULL DEFAULT 'user',
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS wallets (
			user_id BIGINT PRIMARY KEY,
			balance DECIMAL(20,2) NOT NULL DEFAULT 0,
			total_deposits DECIMAL(20,2) NOT NULL DEFAULT 0,
			total_withdrawals DECIMAL(20,2) NOT NULL DEFAULT 0,
			total_earnings DECIMAL(20,2) NOT NULL DEFAULT 0,
			total_spent DECIMAL(20,2) NOT NULL DEFAULT 0,
			total_refunds DECIMAL(20,2) NOT NULL DEFAULT 0,
			currency CHAR(3) NOT NULL,
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL,
			CHECK (balance >= 0),
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS wallet_history (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			balance_after DECIMAL(20,2) NOT NULL,
			change_amount DECIMAL(20,2) NOT NULL,
			transaction_id VARCHAR(64),
			created_at DATETIME(6) NOT NULL,
			INDEX idx_wallet_history_user (user_id),
			INDEX idx_wallet_history_created (created_at)
		);`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id VARCHAR(64) PRIMARY KEY,
			user_id BIGINT NOT NULL,
			type VARCHAR(32) NOT NULL,
			amount DECIMAL(20,2) NOT NULL,
			currency CHAR(3) NOT NULL,
			status VARCHAR(16) NOT NULL,
			payment_method VARCHAR(32) NOT NULL,
			reference_id VARCHAR(128),
			description VARCHAR(255),
			reason VARCHAR(255),
			metadata JSON,
			created_at DATETIME(6) NOT NULL,
			completed_at DATETIME(6),
			INDEX idx_transactions_user (user_id, created_at),
			INDEX idx_transactions_reference (reference_id, type),
			INDEX idx_transactions_status (status)
		);`,
		`CREATE TABLE IF NOT EXISTS contests (
			id VARCHAR(64) PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			description TEXT,
			game_type VARCHAR(32) NOT NULL,
			entry_fee DECIMAL(20,2) NOT NULL,
			prize_pool DECIMAL(20,2) NOT NULL DEFAULT 0,
			platform_commission DECIMAL(20,2) NOT NULL DEFAULT 0,
			commission_locked BOOLEAN NOT NULL DEFAULT FALSE,
			max_players INT NOT NULL,
			current_players INT NOT NULL DEFAULT 0,
			status VARCHAR(16) NOT NULL,
			start_time DATETIME(6) NOT NULL,
			end_time DATETIME(6),
			duration INT NOT NULL,
			created_by BIGINT NOT NULL,
			participants JSON NOT NULL,
			winners JSON NOT NULL,
			difficulty VARCHAR(16) NOT NULL,
			is_private BOOLEAN NOT NULL DEFAULT FALSE,
			access_code VARCHAR(64),
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL,
			INDEX idx_contests_status (status, start_time)
		);`,
		`CREATE TABLE IF NOT EXISTS contest_results (
			contest_id VARCHAR(64) NOT NULL,
			user_id BIGINT NOT NULL,
			score DECIMAL(20,4) NOT NULL,
			time_taken INT NOT NULL,
			flagged BOOLEAN NOT NULL DEFAULT FALSE,
			submitted_at DATETIME(6) NOT NULL,
			PRIMARY KEY (contest_id, user_id)
		);`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
			user_id BIGINT PRIMARY KEY,
			plan_id VARCHAR(32) NOT NULL,
			expires_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL
		);`,
	}

	for _, q := range queries {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	logger.Info().Int("tables", len(queries)).Msg("Migrations completed")
	return nil
}
