package services

import (
	"context"
	"strings"
	"time"

	"skillarena/internal/events"
	"skillarena/internal/models"
	"skillarena/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type ContestService struct {
	store        store.Store
	wallets      *WalletService
	transactions *TransactionService
	validator    *ResultValidator
	publisher    events.Publisher
	logger       zerolog.Logger
	commission   decimal.Decimal
	now          func() time.Time
}

func NewContestService(
	st store.Store,
	wallets *WalletService,
	transactions *TransactionService,
	validator *ResultValidator,
	publisher events.Publisher,
	logger zerolog.Logger,
	commissionPercent decimal.Decimal,
) *ContestService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &ContestService{
		store:        st,
		wallets:      wallets,
		transactions: transactions,
		validator:    validator,
		publisher:    publisher,
		logger:       logger,
		commission:   commissionPercent,
		now:          time.Now,
	}
}

// outbox collects events raised inside a unit of work; they go out only
// after commit.
type outbox struct {
	txns     []txnEvent
	contests []contestEvent
}

type txnEvent struct {
	key string
	t   *models.Transaction
}

type contestEvent struct {
	key string
	c   *models.Contest
}

func (o *outbox) transaction(key string, t *models.Transaction) {
	o.txns = append(o.txns, txnEvent{key: key, t: t})
}

func (o *outbox) contest(key string, c *models.Contest) {
	o.contests = append(o.contests, contestEvent{key: key, c: c})
}

func (s *ContestService) flush(ctx context.Context, o *outbox) {
	for _, e := range o.txns {
		s.transactions.publish(ctx, e.key, e.t)
	}
	for _, e := range o.contests {
		if err := s.publisher.Publish(ctx, events.ContestEvent(e.key, e.c, s.now())); err != nil {
			s.logger.Warn().Err(err).Str("contest_id", e.c.ID).Str("routing_key", e.key).Msg("Failed to publish contest event")
		}
	}
}

func (s *ContestService) CreateContest(ctx context.Context, adminID int64, req *models.CreateContestRequest) (*models.Contest, error) {
	now := s.now()
	switch {
	case strings.TrimSpace(req.Title) == "":
		return nil, models.NewError(models.CodeInvalidRequest, "title is required")
	case !req.GameType.Valid():
		return nil, models.NewError(models.CodeInvalidRequest, "unknown game type")
	case req.EntryFee.IsNegative():
		return nil, models.NewError(models.CodeInvalidAmount, "entry fee cannot be negative")
	case req.MaxPlayers <= 0:
		return nil, models.NewError(models.CodeInvalidRequest, "max players must be greater than zero")
	case !req.StartTime.After(now):
		return nil, models.NewError(models.CodeInvalidRequest, "start time must be in the future")
	case req.Duration <= 0:
		return nil, models.NewError(models.CodeInvalidRequest, "duration must be greater than zero")
	case req.IsPrivate && req.AccessCode == "":
		return nil, models.NewError(models.CodeInvalidRequest, "private contests need an access code")
	}

	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = models.DifficultyBeginner
	}
	if !difficulty.Valid() {
		return nil, models.NewError(models.CodeInvalidRequest, "unknown difficulty")
	}

	c := &models.Contest{
		ID:                 "CTST-" + uuid.NewString(),
		Title:              strings.TrimSpace(req.Title),
		Description:        req.Description,
		GameType:           req.GameType,
		EntryFee:           req.EntryFee,
		PrizePool:          decimal.Zero,
		PlatformCommission: decimal.Zero,
		MaxPlayers:         req.MaxPlayers,
		Status:             models.ContestStatusUpcoming,
		StartTime:          req.StartTime,
		Duration:           req.Duration,
		CreatedBy:          adminID,
		Participants:       []int64{},
		Winners:            []models.Winner{},
		Difficulty:         difficulty,
		IsPrivate:          req.IsPrivate,
		AccessCode:         req.AccessCode,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertContest(ctx, c)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Error creating contest")
		return nil, err
	}

	s.logger.Info().Str("contest_id", c.ID).Str("game_type", string(c.GameType)).Msg("Contest created")
	return c, nil
}

func (s *ContestService) GetContest(ctx context.Context, id string) (*models.Contest, error) {
	return s.store.GetContest(ctx, id)
}

func (s *ContestService) ListContests(ctx context.Context, filter models.ContestFilter) ([]*models.Contest, error) {
	filter.Limit, filter.Offset = normalizePage(filter.Limit, filter.Offset)
	contests, err := s.store.ListContests(ctx, filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error listing contests")
		return nil, err
	}
	return contests, nil
}

// JoinContest admits userID, charging the entry fee. Either every step
// happens (fee debited, entry recorded, participant added) or none does.
func (s *ContestService) JoinContest(ctx context.Context, contestID string, userID int64, accessCode string) (*models.JoinContestResponse, error) {
	var (
		contest *models.Contest
		wallet  *models.Wallet
		out     outbox
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		c, err := tx.GetContestForUpdate(ctx, contestID)
		if err != nil {
			return err
		}
		now := s.now()

		if c.HasParticipant(userID) {
			return models.ErrAlreadyJoined
		}
		// A full contest has already auto-started, so capacity is checked
		// before status.
		if c.CurrentPlayers >= c.MaxPlayers {
			return models.ErrContestFull
		}
		if !c.IsJoinable(now) {
			return models.ErrContestNotJoinable
		}
		if c.IsPrivate && c.AccessCode != accessCode {
			return models.NewError(models.CodeForbidden, "invalid access code")
		}

		if c.EntryFee.IsPositive() {
			entryID := newTransactionID()
			wallet, err = s.wallets.deductInTx(ctx, tx, userID, c.EntryFee, models.DebitSpend, entryID)
			if err != nil {
				return err
			}
			entry, err := s.transactions.createInTx(ctx, tx, models.NewTransaction{
				ID:          entryID,
				UserID:      userID,
				Type:        models.TransactionTypeContestEntry,
				Amount:      c.EntryFee,
				ReferenceID: c.ID,
				Description: "Entry fee for " + c.Title,
				Metadata:    &models.ContestEntryMeta{ContestID: c.ID},
			})
			if err != nil {
				return err
			}
			out.transaction(events.TransactionCreated, entry)
		} else {
			wallet, err = s.wallets.lockWallet(ctx, tx, userID)
			if err != nil {
				return err
			}
		}

		if err := c.AddParticipant(userID, now); err != nil {
			return err
		}
		if c.Status == models.ContestStatusOngoing {
			if _, err := c.LockCommission(s.commission, now); err != nil {
				return err
			}
			out.contest(events.ContestStarted, c)
		}
		if err := tx.SaveContest(ctx, c); err != nil {
			return err
		}
		contest = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("contest_id", contestID).
		Int64("user_id", userID).
		Int("current_players", contest.CurrentPlayers).
		Msg("User joined contest")
	s.flush(ctx, &out)

	return &models.JoinContestResponse{Contest: contest, Balance: wallet.Balance}, nil
}

func (s *ContestService) StartContest(ctx context.Context, contestID string) (*models.Contest, error) {
	c, err := s.mutate(ctx, contestID, func(c *models.Contest, now time.Time) error {
		if err := c.Start(now); err != nil {
			return err
		}
		if !c.CommissionLocked {
			if _, err := c.LockCommission(s.commission, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("contest_id", contestID).Str("prize_pool", c.PrizePool.String()).Msg("Contest started")
	s.flush(ctx, &outbox{contests: []contestEvent{{key: events.ContestStarted, c: c}}})
	return c, nil
}

// LockCommission fixes the prize pool and platform cut from the current
// number of players. It can be applied once per contest.
func (s *ContestService) LockCommission(ctx context.Context, contestID string) (*models.Contest, error) {
	c, err := s.mutate(ctx, contestID, func(c *models.Contest, now time.Time) error {
		if c.Status == models.ContestStatusCancelled {
			return models.NewError(models.CodeAlreadyTerminal, "contest is cancelled")
		}
		_, err := c.LockCommission(s.commission, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("contest_id", contestID).
		Str("prize_pool", c.PrizePool.String()).
		Str("platform_commission", c.PlatformCommission.String()).
		Msg("Commission locked")
	return c, nil
}

func (s *ContestService) mutate(ctx context.Context, contestID string, fn func(c *models.Contest, now time.Time) error) (*models.Contest, error) {
	var contest *models.Contest
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		c, err := tx.GetContestForUpdate(ctx, contestID)
		if err != nil {
			return err
		}
		if err := fn(c, s.now()); err != nil {
			return err
		}
		if err := tx.SaveContest(ctx, c); err != nil {
			return err
		}
		contest = c
		return nil
	})
	return contest, err
}

// EndContest completes an ongoing contest and pays each winner's prize into
// their earnings.
func (s *ContestService) EndContest(ctx context.Context, contestID string, winners []models.Winner) (*models.Contest, error) {
	var (
		contest *models.Contest
		out     outbox
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		c, err := tx.GetContestForUpdate(ctx, contestID)
		if err != nil {
			return err
		}
		if c.Status != models.ContestStatusOngoing {
			return models.ErrNotOngoing
		}
		now := s.now()
		if !c.CommissionLocked {
			if _, err := c.LockCommission(s.commission, now); err != nil {
				return err
			}
		}
		if err := c.ValidateWinners(winners); err != nil {
			return err
		}
		if err := c.End(winners, now); err != nil {
			return err
		}

		for _, w := range winners {
			if !w.Prize.IsPositive() {
				continue
			}
			winID := newTransactionID()
			if _, err := s.wallets.fundInTx(ctx, tx, w.UserID, w.Prize, models.CreditEarning, winID); err != nil {
				return err
			}
			win, err := s.transactions.createInTx(ctx, tx, models.NewTransaction{
				ID:          winID,
				UserID:      w.UserID,
				Type:        models.TransactionTypeContestWin,
				Amount:      w.Prize,
				ReferenceID: c.ID,
				Description: "Prize for " + c.Title,
				Metadata:    &models.ContestWinMeta{ContestID: c.ID, Rank: w.Rank},
			})
			if err != nil {
				return err
			}
			out.transaction(events.TransactionCreated, win)
		}

		if err := tx.SaveContest(ctx, c); err != nil {
			return err
		}
		out.contest(events.ContestEnded, c)
		contest = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("contest_id", contestID).Int("winners", len(winners)).Msg("Contest ended")
	s.flush(ctx, &out)
	return contest, nil
}

// CancelContest cancels an upcoming or ongoing contest and refunds the entry
// fee to every participant who paid one.
func (s *ContestService) CancelContest(ctx context.Context, contestID, reason string) (*models.Contest, error) {
	var (
		contest *models.Contest
		out     outbox
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		c, err := tx.GetContestForUpdate(ctx, contestID)
		if err != nil {
			return err
		}
		if err := c.Cancel(s.now()); err != nil {
			return err
		}

		for _, userID := range c.Participants {
			uid := userID
			entries, err := tx.ListTransactions(ctx, models.TransactionFilter{
				UserID:      &uid,
				Type:        models.TransactionTypeContestEntry,
				Status:      models.TransactionStatusCompleted,
				ReferenceID: c.ID,
				Limit:       1,
			})
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				continue
			}
			entry := entries[0]

			refundID := newTransactionID()
			if _, err := s.wallets.fundInTx(ctx, tx, uid, entry.Amount, models.CreditRefund, refundID); err != nil {
				return err
			}
			refund, err := s.transactions.createInTx(ctx, tx, models.NewTransaction{
				ID:          refundID,
				UserID:      uid,
				Type:        models.TransactionTypeRefund,
				Amount:      entry.Amount,
				ReferenceID: c.ID,
				Description: "Refund for cancelled contest " + c.Title,
				Metadata: &models.RefundMeta{
					ContestID:             c.ID,
					OriginalTransactionID: entry.ID,
					Reason:                reason,
				},
			})
			if err != nil {
				return err
			}
			out.transaction(events.TransactionCreated, refund)
		}

		if err := tx.SaveContest(ctx, c); err != nil {
			return err
		}
		out.contest(events.ContestCancelled, c)
		contest = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("contest_id", contestID).
		Int("refunds", len(out.txns)).
		Str("reason", reason).
		Msg("Contest cancelled")
	s.flush(ctx, &out)
	return contest, nil
}

type SubmitResultResponse struct {
	Result     *models.ContestResult `json:"result"`
	Validation Validation            `json:"validation"`
}

// SubmitResult records a participant's score for an ongoing contest.
func (s *ContestService) SubmitResult(ctx context.Context, contestID string, userID int64, req *models.SubmitResultRequest) (*SubmitResultResponse, error) {
	var resp *SubmitResultResponse
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		c, err := tx.GetContest(ctx, contestID)
		if err != nil {
			return err
		}
		if c.Status != models.ContestStatusOngoing {
			return models.ErrNotOngoing
		}
		if !c.HasParticipant(userID) {
			return models.NewError(models.CodeForbidden, "user is not a participant")
		}

		validation := s.validator.Validate(req.Score, req.TimeTaken, c.Duration*60)
		result := &models.ContestResult{
			ContestID:   contestID,
			UserID:      userID,
			Score:       req.Score,
			TimeTaken:   req.TimeTaken,
			Flagged:     validation.Flagged(),
			SubmittedAt: s.now(),
		}
		if err := tx.InsertResult(ctx, result); err != nil {
			return err
		}
		resp = &SubmitResultResponse{Result: result, Validation: validation}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if resp.Validation.Flagged() {
		s.logger.Warn().
			Str("contest_id", contestID).
			Int64("user_id", userID).
			Strs("issues", resp.Validation.Issues).
			Msg("Suspicious result submitted")
	}
	return resp, nil
}

// Leaderboard returns results ordered by score, fastest first on ties.
func (s *ContestService) Leaderboard(ctx context.Context, contestID string) ([]*models.ContestResult, error) {
	if _, err := s.store.GetContest(ctx, contestID); err != nil {
		return nil, err
	}
	return s.store.ListResults(ctx, contestID)
}
