package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"derby-bot/internal/model"
)

// ParticipantRepository stores per-chat derby rosters.
type ParticipantRepository struct {
	pool *pgxpool.Pool
}

// NewParticipantRepository creates a new ParticipantRepository instance.
func NewParticipantRepository(pool *pgxpool.Pool) *ParticipantRepository {
	return &ParticipantRepository{pool: pool}
}

// Add puts a user on the chat's roster. It reports false when the user was already there;
// the existing entry and its position are kept.
func (r *ParticipantRepository) Add(ctx context.Context, p model.Participant) (bool, error) {
	const query = `
		INSERT INTO participants (chat_id, user_id, username, display_name, joined_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (chat_id, user_id) DO NOTHING
	`
	result, err := r.pool.Exec(ctx, query, p.ChatID, p.UserID, p.Username, p.DisplayName)
	if err != nil {
		return false, fmt.Errorf("failed to add participant: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// Remove takes a user off the chat's roster.
func (r *ParticipantRepository) Remove(ctx context.Context, chatID, userID int64) (bool, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM participants WHERE chat_id = $1 AND user_id = $2`, chatID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to remove participant: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// List returns the chat's roster in join order.
func (r *ParticipantRepository) List(ctx context.Context, chatID int64) ([]model.Participant, error) {
	const query = `
		SELECT chat_id, user_id, username, display_name, joined_at
		FROM participants
		WHERE chat_id = $1
		ORDER BY joined_at, user_id
	`
	rows, err := r.pool.Query(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	var out []model.Participant
	for rows.Next() {
		var p model.Participant
		if err := rows.Scan(&p.ChatID, &p.UserID, &p.Username, &p.DisplayName, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}
	return out, nil
}

// Clear empties the chat's roster and returns how many entries were removed.
func (r *ParticipantRepository) Clear(ctx context.Context, chatID int64) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM participants WHERE chat_id = $1`, chatID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear participants: %w", err)
	}
	return result.RowsAffected(), nil
}
