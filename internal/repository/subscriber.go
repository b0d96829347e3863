// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SubscriberRepository stores the chats that receive scheduled broadcasts.
type SubscriberRepository struct {
	pool *pgxpool.Pool
}

// NewSubscriberRepository creates a new SubscriberRepository instance.
func NewSubscriberRepository(pool *pgxpool.Pool) *SubscriberRepository {
	return &SubscriberRepository{pool: pool}
}

// Add subscribes a chat. It reports false when the chat was already subscribed.
func (r *SubscriberRepository) Add(ctx context.Context, chatID int64) (bool, error) {
	const query = `
		INSERT INTO subscribers (chat_id, created_at)
		VALUES ($1, NOW())
		ON CONFLICT (chat_id) DO NOTHING
	`
	result, err := r.pool.Exec(ctx, query, chatID)
	if err != nil {
		return false, fmt.Errorf("failed to add subscriber: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// Remove unsubscribes a chat. It reports false when the chat was not subscribed.
func (r *SubscriberRepository) Remove(ctx context.Context, chatID int64) (bool, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM subscribers WHERE chat_id = $1`, chatID)
	if err != nil {
		return false, fmt.Errorf("failed to remove subscriber: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// Exists reports whether a chat is subscribed.
func (r *SubscriberRepository) Exists(ctx context.Context, chatID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM subscribers WHERE chat_id = $1)`, chatID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check subscriber: %w", err)
	}
	return exists, nil
}

// ListChatIDs returns every subscribed chat in subscription order.
func (r *SubscriberRepository) ListChatIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT chat_id FROM subscribers ORDER BY created_at, chat_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan subscriber: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subscribers: %w", err)
	}
	return ids, nil
}
