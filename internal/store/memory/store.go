// Package memory implements store.Store in process memory. Units of work are
// serialized by a single lock and commit by swapping in a staged snapshot.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"skillarena/internal/models"
	"skillarena/internal/store"

	"github.com/shopspring/decimal"
)

type resultKey struct {
	contestID string
	userID    int64
}

// state entries are never mutated in place: writers store fresh clones, so a
// snapshot only needs to copy the maps and slices.
type state struct {
	wallets       map[int64]*models.Wallet
	history       []*models.WalletHistory
	transactions  map[string]*models.Transaction
	txOrder       []string
	contests      map[string]*models.Contest
	contestOrder  []string
	results       map[resultKey]*models.ContestResult
	resultOrder   []resultKey
	users         map[int64]*models.User
	subscriptions map[int64]*models.Subscription
	nextUserID    int64
	nextHistoryID int64
}

func newState() *state {
	return &state{
		wallets:       make(map[int64]*models.Wallet),
		transactions:  make(map[string]*models.Transaction),
		contests:      make(map[string]*models.Contest),
		results:       make(map[resultKey]*models.ContestResult),
		users:         make(map[int64]*models.User),
		subscriptions: make(map[int64]*models.Subscription),
	}
}

func (s *state) snapshot() *state {
	c := &state{
		wallets:       make(map[int64]*models.Wallet, len(s.wallets)),
		history:       append([]*models.WalletHistory(nil), s.history...),
		transactions:  make(map[string]*models.Transaction, len(s.transactions)),
		txOrder:       append([]string(nil), s.txOrder...),
		contests:      make(map[string]*models.Contest, len(s.contests)),
		contestOrder:  append([]string(nil), s.contestOrder...),
		results:       make(map[resultKey]*models.ContestResult, len(s.results)),
		resultOrder:   append([]resultKey(nil), s.resultOrder...),
		users:         make(map[int64]*models.User, len(s.users)),
		subscriptions: make(map[int64]*models.Subscription, len(s.subscriptions)),
		nextUserID:    s.nextUserID,
		nextHistoryID: s.nextHistoryID,
	}
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	for k, v := range s.contests {
		c.contests[k] = v
	}
	for k, v := range s.results {
		c.results[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.subscriptions {
		c.subscriptions[k] = v
	}
	return c
}

// Store implements store.Store using in-memory storage.
type Store struct {
	mu    sync.RWMutex
	state *state
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{state: newState()}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.state.snapshot()
	if err := fn(ctx, &tx{state: staged}); err != nil {
		return err
	}
	s.state = staged
	return nil
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) read() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Reads outside a unit of work see the last committed state. Committed
// states are never modified, so the pointer can be used after unlocking.

func (s *Store) GetWallet(ctx context.Context, userID int64) (*models.Wallet, error) {
	return s.read().getWallet(userID)
}

func (s *Store) GetBalanceHistory(ctx context.Context, userID int64, limit, offset int) ([]*models.WalletHistory, error) {
	return s.read().balanceHistory(userID, limit, offset), nil
}

func (s *Store) SumHistory(ctx context.Context, userID int64) (decimal.Decimal, error) {
	return s.read().sumHistory(userID), nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	return s.read().getTransaction(id)
}

func (s *Store) FindTransactionByReference(ctx context.Context, referenceID string, txType models.TransactionType) (*models.Transaction, error) {
	return s.read().findByReference(referenceID, txType)
}

func (s *Store) ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, error) {
	return s.read().listTransactions(filter), nil
}

func (s *Store) GetContest(ctx context.Context, id string) (*models.Contest, error) {
	return s.read().getContest(id)
}

func (s *Store) ListContests(ctx context.Context, filter models.ContestFilter) ([]*models.Contest, error) {
	return s.read().listContests(filter), nil
}

func (s *Store) ListResults(ctx context.Context, contestID string) ([]*models.ContestResult, error) {
	return s.read().listResults(contestID), nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.read().getUser(id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.read().getUserByEmail(email)
}

func (s *Store) UserExists(ctx context.Context, email, username string) (bool, error) {
	return s.read().userExists(email, username), nil
}

func (s *Store) GetSubscription(ctx context.Context, userID int64) (*models.Subscription, error) {
	return s.read().getSubscription(userID)
}

func notFound(what string) error {
	return models.NewError(models.CodeNotFound, what+" not found")
}

func (s *state) getWallet(userID int64) (*models.Wallet, error) {
	w, ok := s.wallets[userID]
	if !ok {
		return nil, notFound("wallet")
	}
	c := *w
	return &c, nil
}

func (s *state) balanceHistory(userID int64, limit, offset int) []*models.WalletHistory {
	var out []*models.WalletHistory
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].UserID == userID {
			c := *s.history[i]
			out = append(out, &c)
		}
	}
	return page(out, limit, offset)
}

func (s *state) sumHistory(userID int64) decimal.Decimal {
	sum := decimal.Zero
	for _, h := range s.history {
		if h.UserID == userID {
			sum = sum.Add(h.ChangeAmount)
		}
	}
	return sum
}

func (s *state) getTransaction(id string) (*models.Transaction, error) {
	t, ok := s.transactions[id]
	if !ok {
		return nil, notFound("transaction")
	}
	return t.Clone(), nil
}

func (s *state) findByReference(referenceID string, txType models.TransactionType) (*models.Transaction, error) {
	for _, id := range s.txOrder {
		t := s.transactions[id]
		if t.ReferenceID == referenceID && t.Type == txType {
			return t.Clone(), nil
		}
	}
	return nil, notFound("transaction")
}

func (s *state) listTransactions(filter models.TransactionFilter) []*models.Transaction {
	var out []*models.Transaction
	for i := len(s.txOrder) - 1; i >= 0; i-- {
		t := s.transactions[s.txOrder[i]]
		if filter.UserID != nil && t.UserID != *filter.UserID {
			continue
		}
		if filter.Type != "" && t.Type != filter.Type {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.ReferenceID != "" && t.ReferenceID != filter.ReferenceID {
			continue
		}
		out = append(out, t.Clone())
	}
	return page(out, filter.Limit, filter.Offset)
}

func (s *state) getContest(id string) (*models.Contest, error) {
	c, ok := s.contests[id]
	if !ok {
		return nil, notFound("contest")
	}
	return c.Clone(), nil
}

func (s *state) listContests(filter models.ContestFilter) []*models.Contest {
	var out []*models.Contest
	for i := len(s.contestOrder) - 1; i >= 0; i-- {
		c := s.contests[s.contestOrder[i]]
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.GameType != "" && c.GameType != filter.GameType {
			continue
		}
		if filter.Difficulty != "" && c.Difficulty != filter.Difficulty {
			continue
		}
		out = append(out, c.Clone())
	}
	return page(out, filter.Limit, filter.Offset)
}

func (s *state) listResults(contestID string) []*models.ContestResult {
	var out []*models.ContestResult
	for _, k := range s.resultOrder {
		if k.contestID == contestID {
			r := *s.results[k]
			out = append(out, &r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Score.Equal(out[j].Score) {
			return out[i].Score.GreaterThan(out[j].Score)
		}
		return out[i].TimeTaken < out[j].TimeTaken
	})
	return out
}

func (s *state) getUser(id int64) (*models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, notFound("user")
	}
	c := *u
	return &c, nil
}

func (s *state) getUserByEmail(email string) (*models.User, error) {
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			c := *u
			return &c, nil
		}
	}
	return nil, notFound("user")
}

func (s *state) userExists(email, username string) bool {
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) || u.Username == username {
			return true
		}
	}
	return false
}

func (s *state) getSubscription(userID int64) (*models.Subscription, error) {
	sub, ok := s.subscriptions[userID]
	if !ok {
		return nil, notFound("subscription")
	}
	c := *sub
	return &c, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
