package services

import (
	"context"
	"testing"
	"time"

	"skillarena/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func register(t *testing.T, env *testEnv, username, email string) *models.User {
	t.Helper()
	u, err := env.users.Register(context.Background(), &models.RegisterRequest{
		Username: username,
		Email:    email,
		Password: "correct-horse",
	})
	require.NoError(t, err)
	return u
}

func TestRegisterCreatesUserAndWallet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	u := register(t, env, "wendy", "  Wendy@Example.com ")
	assert.Equal(t, "wendy@example.com", u.Email)
	assert.Equal(t, string(models.RoleUser), u.Role)
	assert.NotEqual(t, "correct-horse", u.PasswordHash)

	w, err := env.store.GetWallet(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, w.Balance.IsZero())

	_, err = env.users.Register(ctx, &models.RegisterRequest{Username: "wendy2", Email: "wendy@example.com", Password: "correct-horse"})
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	cases := map[string]models.RegisterRequest{
		"missing username": {Email: "a@example.com", Password: "long-enough"},
		"bad email":        {Username: "a", Email: "not-an-email", Password: "long-enough"},
		"short password":   {Username: "a", Email: "a@example.com", Password: "short"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := env.users.Register(context.Background(), &req)
			assert.ErrorIs(t, err, models.ErrInvalidRequest)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := register(t, env, "xavier", "xavier@example.com")

	got, err := env.users.Authenticate(ctx, &models.LoginRequest{Email: "XAVIER@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = env.users.Authenticate(ctx, &models.LoginRequest{Email: "xavier@example.com", Password: "wrong-horse"})
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	_, err = env.users.Authenticate(ctx, &models.LoginRequest{Email: "nobody@example.com", Password: "correct-horse"})
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestUpdateUserRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := register(t, env, "yolanda", "yolanda@example.com")

	require.NoError(t, env.users.UpdateUserRole(ctx, u.ID, "admin", 1))
	got, err := env.users.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "admin", got.Role)

	assert.ErrorIs(t, env.users.UpdateUserRole(ctx, u.ID, "superuser", 1), models.ErrInvalidRequest)
	assert.ErrorIs(t, env.users.UpdateUserRole(ctx, 9999, "admin", 1), models.ErrNotFound)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	auth := NewAuthService("test-secret", env.store, zerolog.Nop())

	token, err := auth.GenerateToken(7, "zed@example.com", "admin")
	require.NoError(t, err)

	claims, err := auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, "admin", claims.Role)

	other := NewAuthService("other-secret", env.store, zerolog.Nop())
	_, err = other.ValidateToken(token)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestExpiredTokenRejected(t *testing.T) {
	env := newTestEnv(t)
	auth := NewAuthService("test-secret", env.store, zerolog.Nop())
	auth.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }

	token, err := auth.GenerateToken(7, "zed@example.com", "user")
	require.NoError(t, err)

	auth.now = time.Now
	_, err = auth.ValidateToken(token)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestNoneAlgorithmRejected(t *testing.T) {
	env := newTestEnv(t)
	auth := NewAuthService("test-secret", env.store, zerolog.Nop())

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: 1, Role: "admin", TokenType: tokenTypeAccess})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = auth.ValidateToken(token)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestRefreshToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	auth := NewAuthService("test-secret", env.store, zerolog.Nop())
	u := register(t, env, "zara", "zara@example.com")

	refresh, err := auth.GenerateRefreshToken(u.ID)
	require.NoError(t, err)

	_, err = auth.ValidateToken(refresh)
	assert.ErrorIs(t, err, models.ErrUnauthorized, "refresh tokens must not authenticate requests")

	require.NoError(t, env.users.UpdateUserRole(ctx, u.ID, "admin", 1))
	access, user, err := auth.RefreshToken(ctx, refresh)
	require.NoError(t, err)
	assert.Equal(t, u.ID, user.ID)

	claims, err := auth.ValidateToken(access)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Role)

	_, _, err = auth.RefreshToken(ctx, access)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	orphan, err := auth.GenerateRefreshToken(9999)
	require.NoError(t, err)
	_, _, err = auth.RefreshToken(ctx, orphan)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestResultValidator(t *testing.T) {
	v := NewResultValidator()
	cases := []struct {
		name      string
		score     string
		timeTaken int
		issues    int
		risk      RiskLevel
	}{
		{"plausible", "75", 300, 0, RiskLow},
		{"too fast", "75", 10, 1, RiskMedium},
		{"over max", "150", 300, 1, RiskMedium},
		{"negative time and score", "-5", -1, 2, RiskMedium},
		{"fast and over max", "101", 1, 2, RiskMedium},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := v.Validate(mustDecimal(t, tc.score), tc.timeTaken, 600)
			assert.Len(t, got.Issues, tc.issues)
			assert.Equal(t, tc.risk, got.RiskLevel)
			assert.Equal(t, tc.issues > 0, got.Flagged())
		})
	}
	assert.Equal(t, RiskHigh, riskLevel(3))
}
