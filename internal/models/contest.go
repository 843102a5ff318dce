package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ContestStatus string

const (
	ContestStatusUpcoming  ContestStatus = "upcoming"
	ContestStatusOngoing   ContestStatus = "ongoing"
	ContestStatusCompleted ContestStatus = "completed"
	ContestStatusCancelled ContestStatus = "cancelled"
)

func (s ContestStatus) Terminal() bool {
	return s == ContestStatusCompleted || s == ContestStatusCancelled
}

type GameType string

const (
	GameTypeCoding GameType = "coding"
	GameTypeMath   GameType = "math"
	GameTypeMemory GameType = "memory"
	GameTypeTyping GameType = "typing"
)

func (g GameType) Valid() bool {
	switch g {
	case GameTypeCoding, GameTypeMath, GameTypeMemory, GameTypeTyping:
		return true
	}
	return false
}

type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyExpert       Difficulty = "expert"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyExpert:
		return true
	}
	return false
}

type Winner struct {
	UserID int64           `json:"user_id"`
	Rank   int             `json:"rank"`
	Prize  decimal.Decimal `json:"prize"`
}

type Contest struct {
	ID                 string          `json:"contest_id"`
	Title              string          `json:"title"`
	Description        string          `json:"description,omitempty"`
	GameType           GameType        `json:"game_type"`
	EntryFee           decimal.Decimal `json:"entry_fee"`
	PrizePool          decimal.Decimal `json:"prize_pool"`
	PlatformCommission decimal.Decimal `json:"platform_commission"`
	CommissionLocked   bool            `json:"commission_locked"`
	MaxPlayers         int             `json:"max_players"`
	CurrentPlayers     int             `json:"current_players"`
	Status             ContestStatus   `json:"status"`
	StartTime          time.Time       `json:"start_time"`
	EndTime            *time.Time      `json:"end_time,omitempty"`
	Duration           int             `json:"duration"`
	CreatedBy          int64           `json:"created_by"`
	Participants       []int64         `json:"participants"`
	Winners            []Winner        `json:"winners"`
	Difficulty         Difficulty      `json:"difficulty"`
	IsPrivate          bool            `json:"is_private"`
	AccessCode         string          `json:"-"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func (c *Contest) Clone() *Contest {
	cp := *c
	cp.Participants = append([]int64(nil), c.Participants...)
	cp.Winners = append([]Winner(nil), c.Winners...)
	if c.EndTime != nil {
		at := *c.EndTime
		cp.EndTime = &at
	}
	return &cp
}

func (c *Contest) HasParticipant(userID int64) bool {
	for _, id := range c.Participants {
		if id == userID {
			return true
		}
	}
	return false
}

// IsJoinable reports whether a new participant may be admitted at now.
func (c *Contest) IsJoinable(now time.Time) bool {
	return c.Status == ContestStatusUpcoming &&
		c.CurrentPlayers < c.MaxPlayers &&
		now.Before(c.StartTime)
}

// AddParticipant admits userID. Reaching MaxPlayers starts the contest
// immediately, regardless of the scheduled start time.
func (c *Contest) AddParticipant(userID int64, now time.Time) error {
	if c.CurrentPlayers >= c.MaxPlayers {
		return ErrContestFull
	}
	if c.HasParticipant(userID) {
		return ErrAlreadyJoined
	}
	c.Participants = append(c.Participants, userID)
	c.CurrentPlayers++
	c.UpdatedAt = now

	if c.CurrentPlayers == c.MaxPlayers {
		c.Status = ContestStatusOngoing
		c.StartTime = now
	}
	return nil
}

func (c *Contest) Start(now time.Time) error {
	if c.Status != ContestStatusUpcoming {
		return NewError(CodeConflict, "contest cannot be started from "+string(c.Status))
	}
	c.Status = ContestStatusOngoing
	c.StartTime = now
	c.UpdatedAt = now
	return nil
}

func (c *Contest) End(winners []Winner, now time.Time) error {
	if c.Status != ContestStatusOngoing {
		return ErrNotOngoing
	}
	c.Status = ContestStatusCompleted
	c.EndTime = &now
	c.Winners = append([]Winner(nil), winners...)
	c.UpdatedAt = now
	return nil
}

func (c *Contest) Cancel(now time.Time) error {
	if c.Status.Terminal() {
		return NewError(CodeAlreadyTerminal, "contest is already "+string(c.Status))
	}
	c.Status = ContestStatusCancelled
	c.EndTime = &now
	c.UpdatedAt = now
	return nil
}

// CommissionSplit is the result of CalculateCommission.
type CommissionSplit struct {
	PrizePool          decimal.Decimal `json:"prize_pool"`
	PlatformCommission decimal.Decimal `json:"platform_commission"`
}

// CalculateCommission splits the collected entry fees. It is a pure function
// of EntryFee and CurrentPlayers.
func (c *Contest) CalculateCommission(percent decimal.Decimal) CommissionSplit {
	collected := c.EntryFee.Mul(decimal.NewFromInt(int64(c.CurrentPlayers)))
	commission := collected.Mul(percent).Div(decimal.NewFromInt(100))
	return CommissionSplit{
		PrizePool:          collected.Sub(commission),
		PlatformCommission: commission,
	}
}

// LockCommission applies CalculateCommission once per contest.
func (c *Contest) LockCommission(percent decimal.Decimal, now time.Time) (CommissionSplit, error) {
	if c.CommissionLocked {
		return CommissionSplit{}, ErrCommissionLocked
	}
	split := c.CalculateCommission(percent)
	c.PrizePool = split.PrizePool
	c.PlatformCommission = split.PlatformCommission
	c.CommissionLocked = true
	c.UpdatedAt = now
	return split, nil
}

// ValidateWinners checks a winners list against the participant set and the
// locked prize pool.
func (c *Contest) ValidateWinners(winners []Winner) error {
	seenUsers := make(map[int64]bool, len(winners))
	seenRanks := make(map[int]bool, len(winners))
	total := decimal.Zero
	for _, w := range winners {
		if !c.HasParticipant(w.UserID) {
			return NewError(CodeInvalidWinners, "winner is not a participant")
		}
		if seenUsers[w.UserID] {
			return NewError(CodeInvalidWinners, "duplicate winner")
		}
		if w.Rank < 1 || seenRanks[w.Rank] {
			return NewError(CodeInvalidWinners, "ranks must be unique and start at 1")
		}
		if w.Prize.IsNegative() {
			return NewError(CodeInvalidWinners, "prize cannot be negative")
		}
		seenUsers[w.UserID] = true
		seenRanks[w.Rank] = true
		total = total.Add(w.Prize)
	}
	if total.GreaterThan(c.PrizePool) {
		return NewError(CodeInvalidWinners, "prizes exceed the prize pool")
	}
	return nil
}

type ContestFilter struct {
	Status     ContestStatus
	GameType   GameType
	Difficulty Difficulty
	Limit      int
	Offset     int
}

type ContestResult struct {
	ContestID   string          `json:"contest_id"`
	UserID      int64           `json:"user_id"`
	Score       decimal.Decimal `json:"score"`
	TimeTaken   int             `json:"time_taken"`
	Flagged     bool            `json:"flagged"`
	SubmittedAt time.Time       `json:"submitted_at"`
}

type CreateContestRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	GameType    GameType        `json:"game_type"`
	EntryFee    decimal.Decimal `json:"entry_fee"`
	MaxPlayers  int             `json:"max_players"`
	StartTime   time.Time       `json:"start_time"`
	Duration    int             `json:"duration"`
	Difficulty  Difficulty      `json:"difficulty"`
	IsPrivate   bool            `json:"is_private"`
	AccessCode  string          `json:"access_code"`
}

type JoinContestRequest struct {
	AccessCode string `json:"access_code"`
}

type JoinContestResponse struct {
	Contest *Contest        `json:"contest"`
	Balance decimal.Decimal `json:"balance"`
}

type EndContestRequest struct {
	Winners []Winner `json:"winners"`
}

type CancelContestRequest struct {
	Reason string `json:"reason"`
}

type SubmitResultRequest struct {
	Score     decimal.Decimal `json:"score"`
	TimeTaken int             `json:"time_taken"`
}
