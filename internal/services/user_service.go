package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"skillarena/internal/models"
	"skillarena/internal/store"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

type UserService struct {
	store   store.Store
	wallets *WalletService
	logger  zerolog.Logger
	now     func() time.Time
}

func NewUserService(st store.Store, wallets *WalletService, logger zerolog.Logger) *UserService {
	return &UserService{
		store:   st,
		wallets: wallets,
		logger:  logger,
		now:     time.Now,
	}
}

// Register creates a user with the user role and an empty wallet. Admin
// rights are granted only through UpdateUserRole.
func (s *UserService) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if username == "" || email == "" || req.Password == "" {
		return nil, models.NewError(models.CodeInvalidRequest, "username, email, and password are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, models.NewError(models.CodeInvalidRequest, "invalid email address")
	}
	if len(req.Password) < minPasswordLength {
		return nil, models.NewError(models.CodeInvalidRequest, fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	exists, err := s.store.UserExists(ctx, email, username)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error checking existing user")
		return nil, err
	}
	if exists {
		return nil, models.NewError(models.CodeConflict, "user with this email or username already exists")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error hashing password")
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedPassword),
		Role:         string(models.RoleUser),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.CreateUser(ctx, user); err != nil {
			return err
		}
		return tx.EnsureWallet(ctx, models.NewWallet(user.ID, s.wallets.currency, now))
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Error creating user")
		return nil, err
	}

	s.logger.Info().Int64("user_id", user.ID).Str("email", user.Email).Msg("User registered successfully")
	return user, nil
}

func (s *UserService) Authenticate(ctx context.Context, req *models.LoginRequest) (*models.User, error) {
	if req.Email == "" || req.Password == "" {
		return nil, models.NewError(models.CodeInvalidRequest, "email and password are required")
	}

	invalid := models.NewError(models.CodeUnauthorized, "invalid email or password")
	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, models.ErrNotFound) {
		return nil, invalid
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Error querying user")
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Warn().Str("email", req.Email).Msg("Failed authentication attempt")
		return nil, invalid
	}

	s.logger.Info().Int64("user_id", user.ID).Str("email", user.Email).Msg("User authenticated successfully")
	return user, nil
}

func (s *UserService) GetUserByID(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("Error fetching user")
	}
	return user, err
}

func (s *UserService) UpdateUserRole(ctx context.Context, userID int64, newRole string, adminID int64) error {
	if newRole != string(models.RoleUser) && newRole != string(models.RoleAdmin) {
		return models.NewError(models.CodeInvalidRequest, "invalid role")
	}

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.UpdateUserRole(ctx, userID, newRole)
	})
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Str("new_role", newRole).Msg("Error updating user role")
		return err
	}

	s.logger.Info().Int64("user_id", userID).Str("new_role", newRole).Int64("admin_id", adminID).Msg("User role updated")
	return nil
}
