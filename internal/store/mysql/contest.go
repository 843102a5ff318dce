package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"skillarena/internal/models"
)

const contestColumns = `id, title, description, game_type, entry_fee, prize_pool, platform_commission,
	commission_locked, max_players, current_players, status, start_time, end_time, duration,
	created_by, participants, winners, difficulty, is_private, access_code, created_at, updated_at`

func scanContest(row rowScanner) (*models.Contest, error) {
	var (
		c            models.Contest
		description  sql.NullString
		endTime      sql.NullTime
		accessCode   sql.NullString
		participants []byte
		winners      []byte
	)
	if err := row.Scan(
		&c.ID, &c.Title, &description, &c.GameType, &c.EntryFee, &c.PrizePool, &c.PlatformCommission,
		&c.CommissionLocked, &c.MaxPlayers, &c.CurrentPlayers, &c.Status, &c.StartTime, &endTime, &c.Duration,
		&c.CreatedBy, &participants, &winners, &c.Difficulty, &c.IsPrivate, &accessCode, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c.Description = description.String
	c.AccessCode = accessCode.String
	if endTime.Valid {
		at := endTime.Time
		c.EndTime = &at
	}
	if len(participants) > 0 {
		if err := json.Unmarshal(participants, &c.Participants); err != nil {
			return nil, fmt.Errorf("failed to decode participants: %w", err)
		}
	}
	if len(winners) > 0 {
		if err := json.Unmarshal(winners, &c.Winners); err != nil {
			return nil, fmt.Errorf("failed to decode winners: %w", err)
		}
	}
	return &c, nil
}

func contestArgs(c *models.Contest) ([]any, error) {
	participants, err := json.Marshal(nonNilInts(c.Participants))
	if err != nil {
		return nil, fmt.Errorf("failed to encode participants: %w", err)
	}
	winners, err := json.Marshal(nonNilWinners(c.Winners))
	if err != nil {
		return nil, fmt.Errorf("failed to encode winners: %w", err)
	}
	return []any{
		c.Title, nullString(c.Description), c.GameType, c.EntryFee, c.PrizePool, c.PlatformCommission,
		c.CommissionLocked, c.MaxPlayers, c.CurrentPlayers, c.Status, c.StartTime, c.EndTime, c.Duration,
		c.CreatedBy, participants, winners, c.Difficulty, c.IsPrivate, nullString(c.AccessCode), c.CreatedAt, c.UpdatedAt,
	}, nil
}

func (q *queries) GetContest(ctx context.Context, id string) (*models.Contest, error) {
	return q.getContest(ctx, id, false)
}

func (q *queries) getContest(ctx context.Context, id string, forUpdate bool) (*models.Contest, error) {
	c, err := scanContest(q.q.QueryRowContext(ctx,
		"SELECT "+contestColumns+" FROM contests WHERE id = ?"+lockClause(forUpdate),
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("contest")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch contest: %w", err)
	}
	return c, nil
}

func (q *queries) ListContests(ctx context.Context, filter models.ContestFilter) ([]*models.Contest, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.GameType != "" {
		where = append(where, "game_type = ?")
		args = append(args, filter.GameType)
	}
	if filter.Difficulty != "" {
		where = append(where, "difficulty = ?")
		args = append(args, filter.Difficulty)
	}

	query := "SELECT " + contestColumns + " FROM contests"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit, offset := pageArgs(filter.Limit, filter.Offset)
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list contests: %w", err)
	}
	defer rows.Close()

	var contests []*models.Contest
	for rows.Next() {
		c, err := scanContest(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning contest: %w", err)
		}
		contests = append(contests, c)
	}
	return contests, rows.Err()
}

func (q *queries) InsertContest(ctx context.Context, c *models.Contest) error {
	args, err := contestArgs(c)
	if err != nil {
		return err
	}
	_, err = q.q.ExecContext(ctx,
		`INSERT INTO contests (`+contestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		append([]any{c.ID}, args...)...,
	)
	if isDuplicate(err) {
		return models.WrapError(models.CodeConflict, "contest "+c.ID+" already exists", err)
	}
	if err != nil {
		return fmt.Errorf("failed to insert contest: %w", err)
	}
	return nil
}

func (q *queries) SaveContest(ctx context.Context, c *models.Contest) error {
	args, err := contestArgs(c)
	if err != nil {
		return err
	}
	_, err = q.q.ExecContext(ctx,
		`UPDATE contests SET title = ?, description = ?, game_type = ?, entry_fee = ?, prize_pool = ?,
			platform_commission = ?, commission_locked = ?, max_players = ?, current_players = ?,
			status = ?, start_time = ?, end_time = ?, duration = ?, created_by = ?, participants = ?,
			winners = ?, difficulty = ?, is_private = ?, access_code = ?, created_at = ?, updated_at = ?
		WHERE id = ?`,
		append(args, c.ID)...,
	)
	if err != nil {
		return fmt.Errorf("failed to update contest: %w", err)
	}
	return nil
}

func (q *queries) InsertResult(ctx context.Context, r *models.ContestResult) error {
	_, err := q.q.ExecContext(ctx,
		`INSERT INTO contest_results (contest_id, user_id, score, time_taken, flagged, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ContestID, r.UserID, r.Score, r.TimeTaken, r.Flagged, r.SubmittedAt,
	)
	if isDuplicate(err) {
		return models.WrapError(models.CodeAlreadySubmitted, "result already submitted", err)
	}
	if err != nil {
		return fmt.Errorf("failed to insert contest result: %w", err)
	}
	return nil
}

func (q *queries) ListResults(ctx context.Context, contestID string) ([]*models.ContestResult, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT contest_id, user_id, score, time_taken, flagged, submitted_at
		FROM contest_results
		WHERE contest_id = ?
		ORDER BY score DESC, time_taken ASC`,
		contestID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list contest results: %w", err)
	}
	defer rows.Close()

	var results []*models.ContestResult
	for rows.Next() {
		var r models.ContestResult
		if err := rows.Scan(&r.ContestID, &r.UserID, &r.Score, &r.TimeTaken, &r.Flagged, &r.SubmittedAt); err != nil {
			return nil, fmt.Errorf("error scanning contest result: %w", err)
		}
		results = append(results, &r)
	}
	return results, rows.Err()
}

func nonNilInts(v []int64) []int64 {
	if v == nil {
		return []int64{}
	}
	return v
}

func nonNilWinners(v []models.Winner) []models.Winner {
	if v == nil {
		return []models.Winner{}
	}
	return v
}
