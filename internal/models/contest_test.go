package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContest(maxPlayers int, fee int64, start time.Time) *Contest {
	return &Contest{
		ID:         "CTST-test",
		Title:      "Weekly sprint",
		GameType:   GameTypeMath,
		EntryFee:   decimal.NewFromInt(fee),
		MaxPlayers: maxPlayers,
		Status:     ContestStatusUpcoming,
		StartTime:  start,
		Duration:   30,
	}
}

func TestAddParticipantAutoStartsWhenFull(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	c := newTestContest(2, 10, now.Add(time.Hour))

	require.NoError(t, c.AddParticipant(1, now))
	assert.Equal(t, ContestStatusUpcoming, c.Status)
	assert.True(t, c.IsJoinable(now))

	later := now.Add(time.Minute)
	require.NoError(t, c.AddParticipant(2, later))
	assert.Equal(t, ContestStatusOngoing, c.Status)
	assert.Equal(t, later, c.StartTime)
	assert.Equal(t, 2, c.CurrentPlayers)
	assert.False(t, c.IsJoinable(later))
}

func TestAddParticipantRejectsDuplicatesAndOverflow(t *testing.T) {
	now := time.Now()
	c := newTestContest(1, 10, now.Add(time.Hour))

	require.NoError(t, c.AddParticipant(1, now))
	assert.ErrorIs(t, c.AddParticipant(2, now), ErrContestFull)

	c = newTestContest(3, 10, now.Add(time.Hour))
	require.NoError(t, c.AddParticipant(1, now))
	assert.ErrorIs(t, c.AddParticipant(1, now), ErrAlreadyJoined)
	assert.Equal(t, 1, c.CurrentPlayers)
}

func TestIsJoinableAfterStartTime(t *testing.T) {
	now := time.Now()
	c := newTestContest(5, 10, now.Add(-time.Second))
	assert.False(t, c.IsJoinable(now))
}

func TestCalculateCommission(t *testing.T) {
	tests := []struct {
		name       string
		fee        string
		players    int
		percent    int64
		prizePool  string
		commission string
	}{
		{"ten players ten percent", "10", 10, 10, "90", "10"},
		{"fractional fee", "12.50", 3, 10, "33.75", "3.75"},
		{"no players", "10", 0, 10, "0", "0"},
		{"free contest", "0", 4, 10, "0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Contest{EntryFee: decimal.RequireFromString(tt.fee), CurrentPlayers: tt.players}
			split := c.CalculateCommission(decimal.NewFromInt(tt.percent))
			assert.True(t, split.PrizePool.Equal(decimal.RequireFromString(tt.prizePool)), "prize pool %s", split.PrizePool)
			assert.True(t, split.PlatformCommission.Equal(decimal.RequireFromString(tt.commission)), "commission %s", split.PlatformCommission)

			collected := c.EntryFee.Mul(decimal.NewFromInt(int64(tt.players)))
			assert.True(t, split.PrizePool.Add(split.PlatformCommission).Equal(collected))
		})
	}
}

func TestLockCommissionOnce(t *testing.T) {
	now := time.Now()
	c := &Contest{EntryFee: decimal.NewFromInt(10), CurrentPlayers: 10}

	split, err := c.LockCommission(decimal.NewFromInt(10), now)
	require.NoError(t, err)
	assert.True(t, split.PrizePool.Equal(decimal.NewFromInt(90)))
	assert.True(t, c.CommissionLocked)

	c.CurrentPlayers = 20
	_, err = c.LockCommission(decimal.NewFromInt(10), now)
	assert.ErrorIs(t, err, ErrCommissionLocked)
	assert.True(t, c.PrizePool.Equal(decimal.NewFromInt(90)))
}

func TestEndRequiresOngoing(t *testing.T) {
	now := time.Now()
	c := newTestContest(2, 10, now.Add(time.Hour))
	assert.ErrorIs(t, c.End(nil, now), ErrNotOngoing)

	require.NoError(t, c.Start(now))
	require.NoError(t, c.End([]Winner{{UserID: 1, Rank: 1}}, now))
	assert.Equal(t, ContestStatusCompleted, c.Status)
	require.NotNil(t, c.EndTime)

	assert.ErrorIs(t, c.Cancel(now), ErrAlreadyTerminal)
}

func TestValidateWinners(t *testing.T) {
	c := &Contest{
		Participants: []int64{1, 2, 3},
		PrizePool:    decimal.NewFromInt(90),
	}

	assert.NoError(t, c.ValidateWinners([]Winner{
		{UserID: 1, Rank: 1, Prize: decimal.NewFromInt(60)},
		{UserID: 2, Rank: 2, Prize: decimal.NewFromInt(30)},
	}))

	cases := map[string][]Winner{
		"not a participant": {{UserID: 9, Rank: 1, Prize: decimal.NewFromInt(10)}},
		"duplicate user": {
			{UserID: 1, Rank: 1, Prize: decimal.NewFromInt(10)},
			{UserID: 1, Rank: 2, Prize: decimal.NewFromInt(10)},
		},
		"duplicate rank": {
			{UserID: 1, Rank: 1, Prize: decimal.NewFromInt(10)},
			{UserID: 2, Rank: 1, Prize: decimal.NewFromInt(10)},
		},
		"negative prize": {{UserID: 1, Rank: 1, Prize: decimal.NewFromInt(-1)}},
		"above pool": {
			{UserID: 1, Rank: 1, Prize: decimal.NewFromInt(60)},
			{UserID: 2, Rank: 2, Prize: decimal.RequireFromString("30.01")},
		},
	}
	for name, winners := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, c.ValidateWinners(winners), ErrInvalidWinners)
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	end := time.Now()
	c := &Contest{Participants: []int64{1}, Winners: []Winner{{UserID: 1, Rank: 1}}, EndTime: &end}
	cp := c.Clone()

	cp.Participants[0] = 2
	cp.Winners[0].Rank = 5
	*cp.EndTime = end.Add(time.Hour)

	assert.Equal(t, int64(1), c.Participants[0])
	assert.Equal(t, 1, c.Winners[0].Rank)
	assert.Equal(t, end, *c.EndTime)
}
