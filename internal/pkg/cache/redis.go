// Package cache provides the optional Redis mirror of the word-points leaderboard.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"derby-bot/internal/config"
)

// Client wraps the Redis client.
type Client struct {
	*redis.Client
}

// Score is one leaderboard row.
type Score struct {
	UserID int64
	Points int64
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("Connected to Redis")
	return &Client{rdb}, nil
}

func wordPointsKey(chatID int64) string {
	return fmt.Sprintf("derby:word_points:%d", chatID)
}

func member(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// AddWordPoints increments a user's points in the chat's leaderboard.
func (c *Client) AddWordPoints(ctx context.Context, chatID, userID int64, points int) error {
	if err := c.ZIncrBy(ctx, wordPointsKey(chatID), float64(points), member(userID)).Err(); err != nil {
		return fmt.Errorf("failed to add word points: %w", err)
	}
	return nil
}

// TopWordPoints returns the chat's best players, highest first.
func (c *Client) TopWordPoints(ctx context.Context, chatID int64, limit int) ([]Score, error) {
	zs, err := c.ZRevRangeWithScores(ctx, wordPointsKey(chatID), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get top word points: %w", err)
	}

	out := make([]Score, 0, len(zs))
	for _, z := range zs {
		m, _ := z.Member.(string)
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, Score{UserID: id, Points: int64(z.Score)})
	}
	return out, nil
}

// LoadWordPoints replaces the chat's leaderboard, e.g. when warming the cache from PostgreSQL.
func (c *Client) LoadWordPoints(ctx context.Context, chatID int64, scores []Score) error {
	key := wordPointsKey(chatID)
	pipe := c.TxPipeline()
	pipe.Del(ctx, key)
	for _, s := range scores {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(s.Points), Member: member(s.UserID)})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to load word points: %w", err)
	}
	return nil
}

// RemoveUser drops a user from the chat's leaderboard.
func (c *Client) RemoveUser(ctx context.Context, chatID, userID int64) error {
	if err := c.ZRem(ctx, wordPointsKey(chatID), member(userID)).Err(); err != nil {
		return fmt.Errorf("failed to remove user from leaderboard: %w", err)
	}
	return nil
}

// Close closes the client.
func (c *Client) Close() error {
	err := c.Client.Close()
	log.Info().Msg("Redis connection closed")
	return err
}
