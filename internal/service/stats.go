// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"derby-bot/internal/game"
	"derby-bot/internal/model"
	"derby-bot/internal/pkg/cache"
	"derby-bot/internal/repository"
)

// StatsStore persists per-chat counters.
type StatsStore interface {
	IncrementMessages(ctx context.Context, chatID, userID int64, username string) error
	RecordOutcome(ctx context.Context, chatID, userID int64, username string, kind model.GameKind, won bool) error
	RecordWordRound(ctx context.Context, chatID, userID int64, username string, role model.WordRole, points int) error
	Get(ctx context.Context, chatID, userID int64) (*model.ChatStats, error)
	TopByWordPoints(ctx context.Context, chatID int64, limit int) ([]*model.ChatStats, error)
	Reset(ctx context.Context, chatID, userID int64) (bool, error)
	ChatsWithPoints(ctx context.Context) ([]int64, error)
}

// Leaderboard is the optional fast word-points ranking.
type Leaderboard interface {
	AddWordPoints(ctx context.Context, chatID, userID int64, points int) error
	TopWordPoints(ctx context.Context, chatID int64, limit int) ([]cache.Score, error)
	LoadWordPoints(ctx context.Context, chatID int64, scores []cache.Score) error
	RemoveUser(ctx context.Context, chatID, userID int64) error
}

// LeaderRow is one line of /top.
type LeaderRow struct {
	UserID   int64
	Username string
	Points   int64
}

// StatsService records game results and serves the stats commands.
// Recording never fails the caller: errors are logged and dropped.
type StatsService struct {
	store       StatsStore
	leaderboard Leaderboard
}

// NewStatsService creates a stats service. leaderboard may be nil.
func NewStatsService(store StatsStore, leaderboard Leaderboard) *StatsService {
	return &StatsService{store: store, leaderboard: leaderboard}
}

var _ game.Recorder = (*StatsService)(nil)

// RecordMessage counts a chat message.
func (s *StatsService) RecordMessage(ctx context.Context, chatID, userID int64, username string) {
	if err := s.store.IncrementMessages(ctx, chatID, userID, username); err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Int64("user_id", userID).Msg("Failed to count message")
	}
}

// RecordOutcome implements game.Recorder.
func (s *StatsService) RecordOutcome(ctx context.Context, chatID int64, p game.Player, kind model.GameKind, won bool) {
	if err := s.store.RecordOutcome(ctx, chatID, p.ID, p.Username, kind, won); err != nil {
		log.Warn().Err(err).
			Int64("chat_id", chatID).
			Int64("user_id", p.ID).
			Str("game", string(kind)).
			Bool("won", won).
			Msg("Failed to record game outcome")
	}
}

// RecordWordRound implements game.Recorder.
func (s *StatsService) RecordWordRound(ctx context.Context, chatID int64, p game.Player, role model.WordRole, points int) {
	if err := s.store.RecordWordRound(ctx, chatID, p.ID, p.Username, role, points); err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Int64("user_id", p.ID).Msg("Failed to record word round")
		return
	}
	if s.leaderboard == nil {
		return
	}
	if err := s.leaderboard.AddWordPoints(ctx, chatID, p.ID, points); err != nil {
		log.Debug().Err(err).Int64("chat_id", chatID).Msg("Failed to mirror word points to Redis")
	}
}

// Get returns a user's counters; a user with no activity gets zeroes.
func (s *StatsService) Get(ctx context.Context, chatID, userID int64) (*model.ChatStats, error) {
	st, err := s.store.Get(ctx, chatID, userID)
	if errors.Is(err, repository.ErrStatsNotFound) {
		return &model.ChatStats{ChatID: chatID, UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return st, nil
}

// Top returns the chat's word-points leaders, from Redis when available.
func (s *StatsService) Top(ctx context.Context, chatID int64, limit int) ([]LeaderRow, error) {
	if s.leaderboard != nil {
		rows, err := s.topFromLeaderboard(ctx, chatID, limit)
		if err == nil {
			return rows, nil
		}
		log.Debug().Err(err).Int64("chat_id", chatID).Msg("Redis leaderboard unavailable, falling back to PostgreSQL")
	}

	stats, err := s.store.TopByWordPoints(ctx, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}
	rows := make([]LeaderRow, 0, len(stats))
	for _, st := range stats {
		rows = append(rows, LeaderRow{UserID: st.UserID, Username: st.Username, Points: st.WordPoints})
	}
	return rows, nil
}

func (s *StatsService) topFromLeaderboard(ctx context.Context, chatID int64, limit int) ([]LeaderRow, error) {
	scores, err := s.leaderboard.TopWordPoints(ctx, chatID, limit)
	if err != nil {
		return nil, err
	}
	rows := make([]LeaderRow, 0, len(scores))
	for _, sc := range scores {
		row := LeaderRow{UserID: sc.UserID, Points: sc.Points}
		if st, err := s.store.Get(ctx, chatID, sc.UserID); err == nil {
			row.Username = st.Username
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Reset wipes a user's counters in a chat.
func (s *StatsService) Reset(ctx context.Context, chatID, userID int64) (bool, error) {
	ok, err := s.store.Reset(ctx, chatID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to reset stats: %w", err)
	}
	if s.leaderboard != nil {
		if err := s.leaderboard.RemoveUser(ctx, chatID, userID); err != nil {
			log.Warn().Err(err).Int64("chat_id", chatID).Int64("user_id", userID).Msg("Failed to remove user from Redis leaderboard")
		}
	}
	log.Info().Int64("chat_id", chatID).Int64("user_id", userID).Bool("existed", ok).Msg("Stats reset")
	return ok, nil
}

// WarmLeaderboard copies every chat's PostgreSQL ranking into Redis.
func (s *StatsService) WarmLeaderboard(ctx context.Context, depth int) error {
	if s.leaderboard == nil {
		return nil
	}
	chats, err := s.store.ChatsWithPoints(ctx)
	if err != nil {
		return fmt.Errorf("failed to warm leaderboard: %w", err)
	}
	for _, chatID := range chats {
		stats, err := s.store.TopByWordPoints(ctx, chatID, depth)
		if err != nil {
			return fmt.Errorf("failed to warm leaderboard: %w", err)
		}
		scores := make([]cache.Score, 0, len(stats))
		for _, st := range stats {
			scores = append(scores, cache.Score{UserID: st.UserID, Points: st.WordPoints})
		}
		if err := s.leaderboard.LoadWordPoints(ctx, chatID, scores); err != nil {
			return fmt.Errorf("failed to warm leaderboard: %w", err)
		}
	}
	log.Info().Int("chats", len(chats)).Msg("Redis leaderboard warmed")
	return nil
}
