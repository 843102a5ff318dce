package memory

import (
	"context"
	"strings"

	"skillarena/internal/models"
	"skillarena/internal/store"

	"github.com/shopspring/decimal"
)

// tx operates on a staged state owned by a single WithinTx call. The store
// lock is held for its whole lifetime, so ForUpdate reads need no extra
// locking.
type tx struct {
	state *state
}

var _ store.Tx = (*tx)(nil)

func (t *tx) GetWallet(ctx context.Context, userID int64) (*models.Wallet, error) {
	return t.state.getWallet(userID)
}

func (t *tx) GetBalanceHistory(ctx context.Context, userID int64, limit, offset int) ([]*models.WalletHistory, error) {
	return t.state.balanceHistory(userID, limit, offset), nil
}

func (t *tx) SumHistory(ctx context.Context, userID int64) (decimal.Decimal, error) {
	return t.state.sumHistory(userID), nil
}

func (t *tx) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	return t.state.getTransaction(id)
}

func (t *tx) FindTransactionByReference(ctx context.Context, referenceID string, txType models.TransactionType) (*models.Transaction, error) {
	return t.state.findByReference(referenceID, txType)
}

func (t *tx) ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, error) {
	return t.state.listTransactions(filter), nil
}

func (t *tx) GetContest(ctx context.Context, id string) (*models.Contest, error) {
	return t.state.getContest(id)
}

func (t *tx) ListContests(ctx context.Context, filter models.ContestFilter) ([]*models.Contest, error) {
	return t.state.listContests(filter), nil
}

func (t *tx) ListResults(ctx context.Context, contestID string) ([]*models.ContestResult, error) {
	return t.state.listResults(contestID), nil
}

func (t *tx) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return t.state.getUser(id)
}

func (t *tx) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return t.state.getUserByEmail(email)
}

func (t *tx) UserExists(ctx context.Context, email, username string) (bool, error) {
	return t.state.userExists(email, username), nil
}

func (t *tx) GetSubscription(ctx context.Context, userID int64) (*models.Subscription, error) {
	return t.state.getSubscription(userID)
}

func (t *tx) GetWalletForUpdate(ctx context.Context, userID int64) (*models.Wallet, error) {
	return t.state.getWallet(userID)
}

func (t *tx) EnsureWallet(ctx context.Context, w *models.Wallet) error {
	if _, ok := t.state.wallets[w.UserID]; ok {
		return nil
	}
	c := *w
	t.state.wallets[w.UserID] = &c
	return nil
}

func (t *tx) SaveWallet(ctx context.Context, w *models.Wallet) error {
	if _, ok := t.state.wallets[w.UserID]; !ok {
		return notFound("wallet")
	}
	c := *w
	t.state.wallets[w.UserID] = &c
	return nil
}

func (t *tx) AppendHistory(ctx context.Context, h *models.WalletHistory) error {
	t.state.nextHistoryID++
	h.ID = t.state.nextHistoryID
	c := *h
	t.state.history = append(t.state.history, &c)
	return nil
}

func (t *tx) GetTransactionForUpdate(ctx context.Context, id string) (*models.Transaction, error) {
	return t.state.getTransaction(id)
}

func (t *tx) FindTransactionByReferenceForUpdate(ctx context.Context, referenceID string, txType models.TransactionType) (*models.Transaction, error) {
	return t.state.findByReference(referenceID, txType)
}

func (t *tx) InsertTransaction(ctx context.Context, txn *models.Transaction) error {
	if _, ok := t.state.transactions[txn.ID]; ok {
		return models.NewError(models.CodeConflict, "transaction "+txn.ID+" already exists")
	}
	t.state.transactions[txn.ID] = txn.Clone()
	t.state.txOrder = append(t.state.txOrder, txn.ID)
	return nil
}

func (t *tx) UpdateTransaction(ctx context.Context, txn *models.Transaction) error {
	if _, ok := t.state.transactions[txn.ID]; !ok {
		return notFound("transaction")
	}
	t.state.transactions[txn.ID] = txn.Clone()
	return nil
}

func (t *tx) GetContestForUpdate(ctx context.Context, id string) (*models.Contest, error) {
	return t.state.getContest(id)
}

func (t *tx) InsertContest(ctx context.Context, c *models.Contest) error {
	if _, ok := t.state.contests[c.ID]; ok {
		return models.NewError(models.CodeConflict, "contest "+c.ID+" already exists")
	}
	t.state.contests[c.ID] = c.Clone()
	t.state.contestOrder = append(t.state.contestOrder, c.ID)
	return nil
}

func (t *tx) SaveContest(ctx context.Context, c *models.Contest) error {
	if _, ok := t.state.contests[c.ID]; !ok {
		return notFound("contest")
	}
	t.state.contests[c.ID] = c.Clone()
	return nil
}

func (t *tx) InsertResult(ctx context.Context, r *models.ContestResult) error {
	key := resultKey{contestID: r.ContestID, userID: r.UserID}
	if _, ok := t.state.results[key]; ok {
		return models.ErrAlreadySubmitted
	}
	c := *r
	t.state.results[key] = &c
	t.state.resultOrder = append(t.state.resultOrder, key)
	return nil
}

func (t *tx) CreateUser(ctx context.Context, u *models.User) error {
	for _, existing := range t.state.users {
		if strings.EqualFold(existing.Email, u.Email) || existing.Username == u.Username {
			return models.NewError(models.CodeConflict, "user already exists")
		}
	}
	t.state.nextUserID++
	u.ID = t.state.nextUserID
	c := *u
	t.state.users[u.ID] = &c
	return nil
}

func (t *tx) UpdateUserRole(ctx context.Context, userID int64, role string) error {
	u, ok := t.state.users[userID]
	if !ok {
		return notFound("user")
	}
	c := *u
	c.Role = role
	t.state.users[userID] = &c
	return nil
}

func (t *tx) UpsertSubscription(ctx context.Context, s *models.Subscription) error {
	c := *s
	t.state.subscriptions[s.UserID] = &c
	return nil
}
