package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"derby-bot/internal/game"
	"derby-bot/internal/model"
)

// Errors shown to users.
var (
	ErrAlreadyJoined = game.UserError("Вы уже в списке участников!")
	ErrNotJoined     = game.UserError("Вы не в списке участников.")
	ErrNobodyToPing  = game.UserError("Нет участников для пинга. Используйте /join")
)

// ParticipantStore persists per-chat rosters.
type ParticipantStore interface {
	Add(ctx context.Context, p model.Participant) (bool, error)
	Remove(ctx context.Context, chatID, userID int64) (bool, error)
	List(ctx context.Context, chatID int64) ([]model.Participant, error)
	Clear(ctx context.Context, chatID int64) (int64, error)
}

// Mentioner renders a chat's roster as a mention line.
type Mentioner interface {
	Mentions(ctx context.Context, chatID int64) string
}

// RosterService manages derby participants per chat.
type RosterService struct {
	store     ParticipantStore
	mentioner Mentioner
}

// NewRosterService creates a new RosterService instance.
func NewRosterService(store ParticipantStore, mentioner Mentioner) *RosterService {
	return &RosterService{store: store, mentioner: mentioner}
}

// Join adds the user and returns the roster size afterwards.
func (s *RosterService) Join(ctx context.Context, p model.Participant) (int, error) {
	added, err := s.store.Add(ctx, p)
	if err != nil {
		return 0, fmt.Errorf("failed to join: %w", err)
	}
	if !added {
		return 0, ErrAlreadyJoined
	}

	list, err := s.store.List(ctx, p.ChatID)
	if err != nil {
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}
	log.Info().Int64("chat_id", p.ChatID).Int64("user_id", p.UserID).Msg("Participant joined")
	return len(list), nil
}

// Leave removes the user and returns the roster size afterwards.
func (s *RosterService) Leave(ctx context.Context, chatID, userID int64) (int, error) {
	removed, err := s.store.Remove(ctx, chatID, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to leave: %w", err)
	}
	if !removed {
		return 0, ErrNotJoined
	}

	list, err := s.store.List(ctx, chatID)
	if err != nil {
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}
	log.Info().Int64("chat_id", chatID).Int64("user_id", userID).Msg("Participant left")
	return len(list), nil
}

// List returns the roster in join order.
func (s *RosterService) List(ctx context.Context, chatID int64) ([]model.Participant, error) {
	list, err := s.store.List(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	return list, nil
}

// Clear empties the roster.
func (s *RosterService) Clear(ctx context.Context, chatID int64) error {
	n, err := s.store.Clear(ctx, chatID)
	if err != nil {
		return fmt.Errorf("failed to clear participants: %w", err)
	}
	log.Info().Int64("chat_id", chatID).Int64("removed", n).Msg("Participants cleared")
	return nil
}

// Ping returns the mention line for the whole roster.
func (s *RosterService) Ping(ctx context.Context, chatID int64) (string, error) {
	mentions := s.mentioner.Mentions(ctx, chatID)
	if mentions == "" {
		return "", ErrNobodyToPing
	}
	return mentions, nil
}
