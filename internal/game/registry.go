package game

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Registry routes free text to games in registration order; the first game that consumes
// a message wins. Register session-contextual games before generic responders.
type Registry struct {
	games []TextGame
	mu    sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a game at the lowest priority so far.
func (r *Registry) Register(g TextGame) error {
	if g == nil {
		return fmt.Errorf("cannot register nil game")
	}
	if g.Name() == "" {
		return fmt.Errorf("game name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.games {
		if existing.Name() == g.Name() {
			return fmt.Errorf("game %q already registered", g.Name())
		}
	}
	r.games = append(r.games, g)
	return nil
}

// Dispatch offers msg to each game in priority order.
func (r *Registry) Dispatch(ctx context.Context, msg Message) (*Reply, bool) {
	r.mu.RLock()
	games := make([]TextGame, len(r.games))
	copy(games, r.games)
	r.mu.RUnlock()

	for _, g := range games {
		if reply, ok := g.HandleText(ctx, msg); ok {
			log.Debug().
				Str("game", g.Name()).
				Int64("chat_id", msg.ChatID).
				Int64("user_id", msg.From.ID).
				Msg("Text intent matched")
			return reply, true
		}
	}
	return nil, false
}

// Names returns the registered game names in priority order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.games))
	for _, g := range r.games {
		names = append(names, g.Name())
	}
	return names
}

// Count returns the number of registered games.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.games)
}
