// Package word implements the host/guesser word game: the bot whispers a secret word to a
// host, who explains it in chat until someone types it or the round times out.
package word

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"derby-bot/internal/game"
	"derby-bot/internal/model"
	"derby-bot/internal/pkg/lock"
	"derby-bot/internal/repository"
)

// Errors shown to users.
var (
	ErrBusy           = game.UserError("В этом чате уже идёт раунд «Угадай слово»")
	ErrNoWords        = game.UserError("Нет слов под выбранные категорию и сложность")
	ErrDeliveryFailed = game.UserError("Не могу написать вам в личку. Откройте чат с ботом, нажмите /start и попробуйте снова")
	ErrNotHost        = game.UserError("Это может сделать только ведущий")
	ErrHintUsed       = game.UserError("Подсказка уже была")
	ErrNoRound        = game.UserError("Сейчас нет активного раунда")
)

// Bank draws words. It returns repository.ErrWordNotFound when nothing matches.
type Bank interface {
	RandomWord(ctx context.Context, category string, difficulty int) (*model.Word, error)
}

// Courier delivers a private message to a user.
type Courier interface {
	SendPrivate(ctx context.Context, userID int64, text string) error
}

// Announcer posts to a chat outside of any inbound message, e.g. when a round times out.
type Announcer interface {
	Announce(ctx context.Context, chatID int64, text string) error
}

// Config holds word game tuning.
type Config struct {
	RoundDuration time.Duration
	PointsPerTier int
}

// DefaultConfig is a 90 second round worth 10 points per difficulty tier.
var DefaultConfig = Config{
	RoundDuration: 90 * time.Second,
	PointsPerTier: 10,
}

// Filter narrows the word draw. Zero values mean any.
type Filter struct {
	Category   string
	Difficulty int
}

// Round is a snapshot of a live or finished round.
type Round struct {
	ID        uuid.UUID
	ChatID    int64
	Host      game.Player
	Word      model.Word
	StartedAt time.Time
	Guessed   bool
	HintGiven bool
}

type session struct {
	Round
	timer clockwork.Timer
}

// Manager owns the rounds, at most one per chat.
type Manager struct {
	cfg       Config
	bank      Bank
	courier   Courier
	announcer Announcer
	recorder  game.Recorder
	clock     clockwork.Clock
	locks     *lock.KeyLock

	mu       sync.Mutex
	sessions map[int64]*session
}

// NewManager creates a word game manager.
func NewManager(cfg Config, bank Bank, courier Courier, announcer Announcer, recorder game.Recorder, clock clockwork.Clock, locks *lock.KeyLock) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if locks == nil {
		locks = lock.NewKeyLock()
	}
	return &Manager{
		cfg:       cfg,
		bank:      bank,
		courier:   courier,
		announcer: announcer,
		recorder:  recorder,
		clock:     clock,
		locks:     locks,
		sessions:  make(map[int64]*session),
	}
}

// Points is the award for a word of the given difficulty.
func (m *Manager) Points(difficulty int) int {
	return difficulty * m.cfg.PointsPerTier
}

// Start draws a word, whispers it to host and opens the round. A start that finds another
// start for the same chat still in flight fails with ErrBusy instead of waiting for it.
func (m *Manager) Start(ctx context.Context, chatID int64, host game.Player, f Filter) (*Round, error) {
	if !m.locks.TryLock(chatID) {
		return nil, ErrBusy
	}
	defer m.locks.Unlock(chatID)

	if _, active := m.Active(chatID); active {
		return nil, ErrBusy
	}

	w, err := m.bank.RandomWord(ctx, f.Category, f.Difficulty)
	if err != nil {
		if errors.Is(err, repository.ErrWordNotFound) {
			return nil, ErrNoWords
		}
		return nil, fmt.Errorf("failed to draw word: %w", err)
	}

	if err := m.courier.SendPrivate(ctx, host.ID, m.privateText(w)); err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Int64("host", host.ID).Msg("Word delivery to host failed, round aborted")
		return nil, ErrDeliveryFailed
	}

	id := uuid.New()
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[chatID]; ok {
		return nil, ErrBusy
	}

	s := &session{Round: Round{
		ID:        id,
		ChatID:    chatID,
		Host:      host,
		Word:      *w,
		StartedAt: m.clock.Now(),
	}}
	s.timer = m.clock.AfterFunc(m.cfg.RoundDuration, func() { m.expire(chatID, id) })
	m.sessions[chatID] = s

	log.Info().
		Int64("chat_id", chatID).
		Int64("host", host.ID).
		Str("round", id.String()).
		Str("category", w.Category).
		Int("difficulty", w.Difficulty).
		Msg("Word round started")

	r := s.Round
	return &r, nil
}

// GuessResult is a correctly guessed round.
type GuessResult struct {
	Round   Round
	Guesser game.Player
	Points  int
	Elapsed time.Duration
}

// Guess checks text from p against the chat's secret word. The host never scores a guess.
func (m *Manager) Guess(ctx context.Context, chatID int64, p game.Player, text string) (*GuessResult, bool) {
	m.mu.Lock()
	s, ok := m.sessions[chatID]
	if !ok || s.Guessed || s.Host.ID == p.ID || Normalize(text) != Normalize(s.Word.Text) {
		m.mu.Unlock()
		return nil, false
	}
	s.Guessed = true
	s.timer.Stop()
	delete(m.sessions, chatID)
	round := s.Round
	m.mu.Unlock()

	points := m.Points(round.Word.Difficulty)
	m.recorder.RecordWordRound(ctx, chatID, round.Host, model.RoleExplained, points)
	m.recorder.RecordWordRound(ctx, chatID, p, model.RoleGuessed, points)

	elapsed := m.clock.Since(round.StartedAt)
	log.Info().
		Int64("chat_id", chatID).
		Int64("guesser", p.ID).
		Str("round", round.ID.String()).
		Dur("elapsed", elapsed).
		Msg("Word guessed")

	return &GuessResult{Round: round, Guesser: p, Points: points, Elapsed: elapsed}, true
}

// Hint reveals the masked word once per round. Only the host may ask.
func (m *Manager) Hint(chatID int64, p game.Player) (*Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[chatID]
	if !ok {
		return nil, ErrNoRound
	}
	if s.Host.ID != p.ID {
		return nil, ErrNotHost
	}
	if s.HintGiven {
		return nil, ErrHintUsed
	}
	s.HintGiven = true
	r := s.Round
	return &r, nil
}

// Skip ends the round early and reveals the word. Only the host may skip.
func (m *Manager) Skip(chatID int64, p game.Player) (*Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[chatID]
	if !ok {
		return nil, ErrNoRound
	}
	if s.Host.ID != p.ID {
		return nil, ErrNotHost
	}
	s.timer.Stop()
	delete(m.sessions, chatID)

	log.Info().Int64("chat_id", chatID).Str("round", s.ID.String()).Msg("Word round skipped")
	r := s.Round
	return &r, nil
}

// expire ends an unguessed round. Callbacks of rounds that already ended are ignored.
func (m *Manager) expire(chatID int64, id uuid.UUID) {
	m.mu.Lock()
	s, ok := m.sessions[chatID]
	if !ok || s.ID != id || s.Guessed {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, chatID)
	round := s.Round
	m.mu.Unlock()

	log.Info().Int64("chat_id", chatID).Str("round", id.String()).Msg("Word round timed out")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.announcer.Announce(ctx, chatID, TimeoutText(&round)); err != nil {
		log.Debug().Err(err).Int64("chat_id", chatID).Msg("Failed to announce word timeout")
	}
}

// Active returns a snapshot of the chat's round.
func (m *Manager) Active(chatID int64) (*Round, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[chatID]
	if !ok {
		return nil, false
	}
	r := s.Round
	return &r, true
}

// Name implements game.TextGame.
func (m *Manager) Name() string { return "word" }

// HandleText consumes a message only when it is the correct guess.
func (m *Manager) HandleText(ctx context.Context, msg game.Message) (*game.Reply, bool) {
	res, ok := m.Guess(ctx, msg.ChatID, msg.From, msg.Text)
	if !ok {
		return nil, false
	}
	return game.TextReply(res.Text()), true
}

func stars(difficulty int) string {
	if difficulty < 1 {
		difficulty = 1
	}
	if difficulty > 3 {
		difficulty = 3
	}
	return strings.Repeat("★", difficulty) + strings.Repeat("☆", 3-difficulty)
}

// categoryLabel is the escaped category, or "любая" for an uncategorised word.
func categoryLabel(category string) string {
	if category == "" {
		return "любая"
	}
	return html.EscapeString(category)
}

func (m *Manager) privateText(w *model.Word) string {
	return fmt.Sprintf("🤫 Ваше слово: <b>%s</b>\nКатегория: %s\nСложность: %s (%d очков)\nПодсказка: %s\n\nОбъясняйте в чате, не называя слово!",
		html.EscapeString(w.Text), categoryLabel(w.Category), stars(w.Difficulty), m.Points(w.Difficulty), html.EscapeString(Edges(w.Text)))
}

// StartText announces a new round to the chat.
func (m *Manager) StartText(r *Round) string {
	return fmt.Sprintf("🎯 %s объясняет слово!\nКатегория: %s\nСложность: %s (%d очков)\nУ вас %d секунд, пишите ответы в чат.",
		r.Host.Mention(), categoryLabel(r.Word.Category), stars(r.Word.Difficulty), m.Points(r.Word.Difficulty), int(m.cfg.RoundDuration.Seconds()))
}

// HintText renders the masked word.
func HintText(r *Round) string {
	return fmt.Sprintf("💡 Подсказка (%d букв): %s", Letters(r.Word.Text), html.EscapeString(Mask(r.Word.Text)))
}

// SkipText reveals a skipped word.
func SkipText(r *Round) string {
	return fmt.Sprintf("⏭ %s пропускает раунд. Слово было: <b>%s</b>", r.Host.Mention(), html.EscapeString(r.Word.Text))
}

// TimeoutText reveals a word nobody guessed.
func TimeoutText(r *Round) string {
	return fmt.Sprintf("⏰ Время вышло! Никто не угадал слово <b>%s</b>.", html.EscapeString(r.Word.Text))
}

// Text renders a correct guess.
func (g *GuessResult) Text() string {
	return fmt.Sprintf("🎉 %s угадывает слово <b>%s</b> за %d сек!\n+%d очков: %s и %s",
		g.Guesser.Mention(), html.EscapeString(g.Round.Word.Text), int(g.Elapsed.Seconds()), g.Points, g.Guesser.Mention(), g.Round.Host.Mention())
}
