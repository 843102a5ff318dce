package services

import (
	"context"
	"errors"
	"time"

	"skillarena/internal/models"
	"skillarena/internal/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

const (
	accessTokenTTL  = 24 * time.Hour
	refreshTokenTTL = 7 * 24 * time.Hour

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

type AuthService struct {
	secretKey []byte
	users     store.Reader
	logger    zerolog.Logger
	now       func() time.Time
}

type Claims struct {
	UserID    int64  `json:"user_id"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

func NewAuthService(secret string, users store.Reader, logger zerolog.Logger) *AuthService {
	if secret == "" || secret == "change-me" {
		logger.Warn().Msg("JWT_SECRET not set, using default key")
	}
	return &AuthService{
		secretKey: []byte(secret),
		users:     users,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *AuthService) sign(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secretKey)
	if err != nil {
		s.logger.Error().Err(err).Str("token_type", claims.TokenType).Msg("Error generating token")
		return "", err
	}
	return tokenString, nil
}

func (s *AuthService) GenerateToken(userID int64, email, role string) (string, error) {
	now := s.now()
	return s.sign(&Claims{
		UserID:    userID,
		Email:     email,
		Role:      role,
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(accessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	})
}

func (s *AuthService) GenerateRefreshToken(userID int64) (string, error) {
	now := s.now()
	return s.sign(&Claims{
		UserID:    userID,
		TokenType: tokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(refreshTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
}

func (s *AuthService) parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secretKey, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, models.WrapError(models.CodeUnauthorized, "invalid token", err)
	}
	if !token.Valid {
		return nil, models.NewError(models.CodeUnauthorized, "invalid token")
	}
	return claims, nil
}

// ValidateToken accepts access tokens only.
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenTypeAccess {
		return nil, models.NewError(models.CodeUnauthorized, "not an access token")
	}
	return claims, nil
}

// RefreshToken exchanges a refresh token for a new access token, reloading
// the user so a changed role takes effect.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (string, *models.User, error) {
	claims, err := s.parse(refreshToken)
	if err != nil {
		return "", nil, err
	}
	if claims.TokenType != tokenTypeRefresh {
		return "", nil, models.NewError(models.CodeUnauthorized, "invalid refresh token")
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, models.ErrNotFound) {
		return "", nil, models.NewError(models.CodeUnauthorized, "invalid refresh token")
	}
	if err != nil {
		return "", nil, err
	}

	token, err := s.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}
