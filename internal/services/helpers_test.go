package services

import (
	"context"
	"sync"
	"testing"

	"skillarena/internal/events"
	"skillarena/internal/gateway"
	"skillarena/internal/models"
	"skillarena/internal/store"
	"skillarena/internal/store/memory"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string) (*gateway.Order, error) {
	args := m.Called(ctx, amount, currency, receipt)
	order, _ := args.Get(0).(*gateway.Order)
	return order, args.Error(1)
}

func (m *mockGateway) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return m.Called(orderID, paymentID, signature).Bool(0)
}

func (m *mockGateway) VerifyWebhookSignature(body []byte, signature string) bool {
	return m.Called(body, signature).Bool(0)
}

func (m *mockGateway) CreatePayout(ctx context.Context, req gateway.PayoutRequest) (*gateway.Payout, error) {
	args := m.Called(ctx, req)
	payout, _ := args.Get(0).(*gateway.Payout)
	return payout, args.Error(1)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, 0, len(p.events))
	for _, e := range p.events {
		keys = append(keys, e.RoutingKey)
	}
	return keys
}

type testEnv struct {
	store        *memory.Store
	gateway      *mockGateway
	publisher    *recordingPublisher
	wallets      *WalletService
	transactions *TransactionService
	contests     *ContestService
	payments     *PaymentService
	users        *UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.Nop()
	st := memory.New()
	gw := &mockGateway{}
	pub := &recordingPublisher{}

	wallets := NewWalletService(st, logger, "INR")
	transactions := NewTransactionService(st, logger, pub, "INR")
	return &testEnv{
		store:        st,
		gateway:      gw,
		publisher:    pub,
		wallets:      wallets,
		transactions: transactions,
		contests:     NewContestService(st, wallets, transactions, NewResultValidator(), pub, logger, decimal.NewFromInt(10)),
		payments:     NewPaymentService(st, wallets, transactions, gw, logger, "INR"),
		users:        NewUserService(st, wallets, logger),
	}
}

// createUser inserts a user directly, bypassing bcrypt.
func (e *testEnv) createUser(t *testing.T, name string) int64 {
	t.Helper()
	u := &models.User{Username: name, Email: name + "@example.com", Role: string(models.RoleUser)}
	err := e.store.WithinTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.CreateUser(ctx, u)
	})
	require.NoError(t, err)
	return u.ID
}

func (e *testEnv) fund(t *testing.T, userID int64, amount int64) {
	t.Helper()
	_, err := e.wallets.FundWallet(context.Background(), userID, decimal.NewFromInt(amount), models.CreditDeposit)
	require.NoError(t, err)
}

func (e *testEnv) balance(t *testing.T, userID int64) decimal.Decimal {
	t.Helper()
	w, err := e.wallets.GetOrCreateWallet(context.Background(), userID)
	require.NoError(t, err)
	return w.Balance
}

func requireAmount(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	require.True(t, got.Equal(decimal.NewFromInt(want)), "want %d, got %s", want, got)
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}
