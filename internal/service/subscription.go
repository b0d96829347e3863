package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// SubscriberStore persists broadcast subscriptions.
type SubscriberStore interface {
	Add(ctx context.Context, chatID int64) (bool, error)
	Remove(ctx context.Context, chatID int64) (bool, error)
	Exists(ctx context.Context, chatID int64) (bool, error)
}

// SubscriptionService manages which chats receive scheduled broadcasts.
type SubscriptionService struct {
	store SubscriberStore
}

// NewSubscriptionService creates a new SubscriptionService instance.
func NewSubscriptionService(store SubscriberStore) *SubscriptionService {
	return &SubscriptionService{store: store}
}

// Subscribe adds a chat. Subscribing twice is harmless.
func (s *SubscriptionService) Subscribe(ctx context.Context, chatID int64) error {
	added, err := s.store.Add(ctx, chatID)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	if added {
		log.Info().Int64("chat_id", chatID).Msg("Chat subscribed")
	}
	return nil
}

// Unsubscribe removes a chat.
func (s *SubscriptionService) Unsubscribe(ctx context.Context, chatID int64) error {
	removed, err := s.store.Remove(ctx, chatID)
	if err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}
	if removed {
		log.Info().Int64("chat_id", chatID).Msg("Chat unsubscribed")
	}
	return nil
}

// IsSubscribed reports whether a chat receives broadcasts.
func (s *SubscriptionService) IsSubscribed(ctx context.Context, chatID int64) (bool, error) {
	ok, err := s.store.Exists(ctx, chatID)
	if err != nil {
		return false, fmt.Errorf("failed to check subscription: %w", err)
	}
	return ok, nil
}
