package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"derby-bot/internal/model"
)

var (
	ErrStatsNotFound = errors.New("stats not found")
	ErrUnknownGame   = errors.New("unknown game kind")
)

const statsColumns = `chat_id, user_id, username, messages, duel_wins, duel_losses,
	coin_wins, coin_losses, word_explained, word_guessed, word_points`

// StatsRepository stores per-chat activity counters.
type StatsRepository struct {
	pool *pgxpool.Pool
}

// NewStatsRepository creates a new StatsRepository instance.
func NewStatsRepository(pool *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{pool: pool}
}

func scanStats(row pgx.Row) (*model.ChatStats, error) {
	var s model.ChatStats
	err := row.Scan(
		&s.ChatID,
		&s.UserID,
		&s.Username,
		&s.Messages,
		&s.DuelWins,
		&s.DuelLosses,
		&s.CoinWins,
		&s.CoinLosses,
		&s.WordExplained,
		&s.WordGuessed,
		&s.WordPoints,
	)
	return &s, err
}

type counter struct {
	column string
	delta  int64
}

// bump increments counters of one row, creating the row on first use.
// Column names come from the fixed values in this file, never from input.
func (r *StatsRepository) bump(ctx context.Context, chatID, userID int64, username string, counters ...counter) error {
	insertCols, insertVals, updates := "", "", ""
	args := []any{chatID, userID, username}
	for _, c := range counters {
		args = append(args, c.delta)
		n := len(args)
		insertCols += ", " + c.column
		insertVals += fmt.Sprintf(", $%d", n)
		updates += fmt.Sprintf(", %s = chat_stats.%s + $%d", c.column, c.column, n)
	}

	query := `
		INSERT INTO chat_stats (chat_id, user_id, username` + insertCols + `, updated_at)
		VALUES ($1, $2, $3` + insertVals + `, NOW())
		ON CONFLICT (chat_id, user_id) DO UPDATE SET
			username = CASE WHEN EXCLUDED.username <> '' THEN EXCLUDED.username ELSE chat_stats.username END,
			updated_at = NOW()` + updates

	_, err := r.pool.Exec(ctx, query, args...)
	return err
}

// IncrementMessages counts one chat message.
func (r *StatsRepository) IncrementMessages(ctx context.Context, chatID, userID int64, username string) error {
	if err := r.bump(ctx, chatID, userID, username, counter{"messages", 1}); err != nil {
		return fmt.Errorf("failed to count message: %w", err)
	}
	return nil
}

var outcomeColumns = map[model.GameKind][2]string{
	model.GameDuel: {"duel_wins", "duel_losses"},
	model.GameCoin: {"coin_wins", "coin_losses"},
}

// RecordOutcome counts a win or a loss of a head-to-head game.
func (r *StatsRepository) RecordOutcome(ctx context.Context, chatID, userID int64, username string, kind model.GameKind, won bool) error {
	cols, ok := outcomeColumns[kind]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownGame, kind)
	}
	col := cols[1]
	if won {
		col = cols[0]
	}
	if err := r.bump(ctx, chatID, userID, username, counter{col, 1}); err != nil {
		return fmt.Errorf("failed to record %s outcome: %w", kind, err)
	}
	return nil
}

// RecordWordRound counts a finished word round and adds its points.
func (r *StatsRepository) RecordWordRound(ctx context.Context, chatID, userID int64, username string, role model.WordRole, points int) error {
	col := "word_guessed"
	if role == model.RoleExplained {
		col = "word_explained"
	}
	if err := r.bump(ctx, chatID, userID, username, counter{col, 1}, counter{"word_points", int64(points)}); err != nil {
		return fmt.Errorf("failed to record word round: %w", err)
	}
	return nil
}

// Get returns a user's counters in a chat, or ErrStatsNotFound.
func (r *StatsRepository) Get(ctx context.Context, chatID, userID int64) (*model.ChatStats, error) {
	query := `SELECT ` + statsColumns + ` FROM chat_stats WHERE chat_id = $1 AND user_id = $2`
	s, err := scanStats(r.pool.QueryRow(ctx, query, chatID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStatsNotFound
		}
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return s, nil
}

// TopByWordPoints returns the chat's best word players.
func (r *StatsRepository) TopByWordPoints(ctx context.Context, chatID int64, limit int) ([]*model.ChatStats, error) {
	query := `
		SELECT ` + statsColumns + `
		FROM chat_stats
		WHERE chat_id = $1 AND word_points > 0
		ORDER BY word_points DESC, user_id
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top stats: %w", err)
	}
	defer rows.Close()

	var out []*model.ChatStats
	for rows.Next() {
		s, err := scanStats(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stats: %w", err)
	}
	return out, nil
}

// Reset deletes a user's counters in a chat. It reports false when there were none.
func (r *StatsRepository) Reset(ctx context.Context, chatID, userID int64) (bool, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM chat_stats WHERE chat_id = $1 AND user_id = $2`, chatID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to reset stats: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// ChatsWithPoints lists chats where someone has scored in the word game.
func (r *StatsRepository) ChatsWithPoints(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT chat_id FROM chat_stats WHERE word_points > 0`)
	if err != nil {
		return nil, fmt.Errorf("failed to list scored chats: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chats: %w", err)
	}
	return ids, nil
}
