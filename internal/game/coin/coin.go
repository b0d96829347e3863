// Package coin implements the coin-flip challenge: one player opens, another calls a side,
// the opener takes the other side and a single fair toss decides.
package coin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"derby-bot/internal/game"
	"derby-bot/internal/model"
)

// Errors shown to users.
var (
	ErrBusy          = game.UserError("В этом чате уже брошен вызов на монетку")
	ErrSelfChallenge = game.UserError("Нельзя играть в монетку с самим собой")
	ErrSelfAccept    = game.UserError("Нельзя принять собственный вызов")
	ErrNotTarget     = game.UserError("Этот вызов адресован не вам")
	ErrNotChallenger = game.UserError("Отменить вызов может только тот, кто его бросил")
)

// Side is one face of the coin.
type Side int

const (
	Heads Side = iota
	Tails
)

// Opposite returns the other face.
func (s Side) Opposite() Side {
	if s == Heads {
		return Tails
	}
	return Heads
}

func (s Side) String() string {
	if s == Heads {
		return "орёл"
	}
	return "решка"
}

// ParseSide recognises a call in chat text.
func ParseSide(text string) (Side, bool) {
	switch game.Intent(text) {
	case "орёл", "орел", "heads":
		return Heads, true
	case "решка", "tails":
		return Tails, true
	}
	return 0, false
}

// Config holds the coin flip tuning.
type Config struct {
	MuteDuration time.Duration
	ChallengeTTL time.Duration
}

// DefaultConfig mutes the loser for one minute.
var DefaultConfig = Config{
	MuteDuration: time.Minute,
	ChallengeTTL: 5 * time.Minute,
}

// Challenge is an open coin-flip invitation.
type Challenge struct {
	Challenger game.Player
	Target     string
	IssuedAt   time.Time
}

// Result is a finished toss.
type Result struct {
	Caller         game.Player
	Challenger     game.Player
	CallerSide     Side
	ChallengerSide Side
	Outcome        Side
	Winner, Loser  game.Player
	Muted          bool
}

// Manager owns the open coin challenges, one per chat.
type Manager struct {
	cfg       Config
	recorder  game.Recorder
	muter     game.Restricter
	rnd       game.Rand
	overrides game.Overrides
	clock     clockwork.Clock

	mu         sync.Mutex
	challenges map[int64]*Challenge
}

// NewManager creates a coin-flip manager.
func NewManager(cfg Config, recorder game.Recorder, muter game.Restricter, rnd game.Rand, overrides game.Overrides, clock clockwork.Clock) *Manager {
	if rnd == nil {
		rnd = game.DefaultRand
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Manager{
		cfg:        cfg,
		recorder:   recorder,
		muter:      muter,
		rnd:        rnd,
		overrides:  overrides,
		clock:      clock,
		challenges: make(map[int64]*Challenge),
	}
}

// liveLocked returns the chat's challenge unless it has expired. Must be called with m.mu held.
func (m *Manager) liveLocked(chatID int64) (*Challenge, bool) {
	ch, ok := m.challenges[chatID]
	if !ok {
		return nil, false
	}
	if m.cfg.ChallengeTTL > 0 && m.clock.Since(ch.IssuedAt) > m.cfg.ChallengeTTL {
		delete(m.challenges, chatID)
		log.Debug().Int64("chat_id", chatID).Msg("Coin challenge expired")
		return nil, false
	}
	return ch, true
}

// Open creates a challenge from challenger, optionally aimed at target.
func (m *Manager) Open(chatID int64, challenger game.Player, target string) (*Challenge, error) {
	target = game.NormalizeHandle(target)
	if target != "" && challenger.Is(target) {
		return nil, ErrSelfChallenge
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.liveLocked(chatID); ok {
		return nil, ErrBusy
	}
	ch := &Challenge{Challenger: challenger, Target: target, IssuedAt: m.clock.Now()}
	m.challenges[chatID] = ch
	return ch, nil
}

// Pending reports whether the chat has a live challenge.
func (m *Manager) Pending(chatID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.liveLocked(chatID)
	return ok
}

// Call answers the open challenge with side and resolves it.
// A nil result with a nil error means there was no challenge to answer.
func (m *Manager) Call(ctx context.Context, chatID int64, caller game.Player, side Side) (*Result, error) {
	m.mu.Lock()
	ch, ok := m.liveLocked(chatID)
	if !ok {
		m.mu.Unlock()
		return nil, nil
	}
	if ch.Challenger.ID == caller.ID {
		m.mu.Unlock()
		return nil, ErrSelfAccept
	}
	if ch.Target != "" && !caller.Is(ch.Target) {
		m.mu.Unlock()
		return nil, ErrNotTarget
	}
	delete(m.challenges, chatID)
	m.mu.Unlock()

	res := &Result{
		Caller:         caller,
		Challenger:     ch.Challenger,
		CallerSide:     side,
		ChallengerSide: side.Opposite(),
	}
	res.Outcome = m.toss(res)
	if res.Outcome == res.CallerSide {
		res.Winner, res.Loser = caller, ch.Challenger
	} else {
		res.Winner, res.Loser = ch.Challenger, caller
	}

	m.recorder.RecordOutcome(ctx, chatID, res.Winner, model.GameCoin, true)
	m.recorder.RecordOutcome(ctx, chatID, res.Loser, model.GameCoin, false)

	until := m.clock.Now().Add(m.cfg.MuteDuration)
	if err := m.muter.Restrict(ctx, chatID, res.Loser.ID, until); err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Int64("user_id", res.Loser.ID).Msg("Failed to mute coin loser")
	} else {
		res.Muted = true
	}

	log.Info().
		Int64("chat_id", chatID).
		Int64("winner", res.Winner.ID).
		Int64("loser", res.Loser.ID).
		Str("outcome", res.Outcome.String()).
		Msg("Coin flip resolved")

	return res, nil
}

// toss lands on a forced winner's side when exactly one player is forced.
func (m *Manager) toss(res *Result) Side {
	callerOut, callerForced := m.overrides.For(res.Caller)
	challengerOut, challengerForced := m.overrides.For(res.Challenger)

	switch {
	case callerForced && !challengerForced:
		if callerOut == game.ForceWin {
			return res.CallerSide
		}
		return res.ChallengerSide
	case challengerForced && !callerForced:
		if challengerOut == game.ForceWin {
			return res.ChallengerSide
		}
		return res.CallerSide
	}
	return Side(m.rnd.IntN(2))
}

// Cancel withdraws the caller's open challenge.
func (m *Manager) Cancel(chatID int64, p game.Player) (*Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch, ok := m.liveLocked(chatID)
	if !ok {
		return nil, nil
	}
	if ch.Challenger.ID != p.ID {
		return nil, ErrNotChallenger
	}
	delete(m.challenges, chatID)
	return ch, nil
}

// Name implements game.TextGame.
func (m *Manager) Name() string { return "coin" }

// HandleText resolves the open challenge when someone calls a side.
func (m *Manager) HandleText(ctx context.Context, msg game.Message) (*game.Reply, bool) {
	side, ok := ParseSide(msg.Text)
	if !ok || !m.Pending(msg.ChatID) {
		return nil, false
	}

	res, err := m.Call(ctx, msg.ChatID, msg.From, side)
	if err != nil {
		var ue game.UserError
		if errors.As(err, &ue) {
			return game.TextReply("❌ " + ue.Error()), true
		}
		log.Error().Err(err).Int64("chat_id", msg.ChatID).Msg("Coin call failed")
		return nil, true
	}
	if res == nil {
		return nil, false
	}
	return game.TextReply(res.Text(m.cfg.MuteDuration)), true
}

// FormatChallenge renders an opened challenge.
func FormatChallenge(ch *Challenge) string {
	who := "Кто угодно может ответить"
	if ch.Target != "" {
		who = fmt.Sprintf("Ответить может только @%s", ch.Target)
	}
	return fmt.Sprintf("🪙 %s бросает монетку! %s: напишите «орёл» или «решка».", ch.Challenger.Mention(), who)
}

// Text renders a toss.
func (r *Result) Text(mute time.Duration) string {
	msg := fmt.Sprintf("🪙 %s: %s, %s: %s.\nВыпало: <b>%s</b>! Побеждает %s.",
		r.Caller.Mention(), r.CallerSide, r.Challenger.Mention(), r.ChallengerSide, r.Outcome, r.Winner.Mention())
	if r.Muted {
		msg += fmt.Sprintf("\n🤐 %s молчит %d мин.", r.Loser.Mention(), int(mute.Minutes()))
	}
	return msg
}
