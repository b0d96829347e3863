// Package duel implements the turn-based pistol duel: a challenge/accept handshake followed by
// alternating shots whose hit chance grows with aiming.
package duel

import (
	"context"
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
	ErrBusy           = game.UserError("В этом чате уже идёт дуэль или есть открытый вызов")
	ErrSelfChallenge  = game.UserError("Нельзя вызвать на дуэль самого себя")
	ErrSelfAccept     = game.UserError("Нельзя принять собственный вызов")
	ErrNotTarget      = game.UserError("Этот вызов адресован не вам")
	ErrNotChallenger  = game.UserError("Отменить вызов может только тот, кто его бросил")
	ErrNotParticipant = game.UserError("Вы не участвуете в этой дуэли")
	ErrNotYourTurn    = game.UserError("Сейчас не ваш ход")
)

// Config holds the duel tuning.
type Config struct {
	BaseHitChance int           // percent
	AimBonus      int           // percent added per aim
	MuteDuration  time.Duration // loser's mute
	ChallengeTTL  time.Duration // open challenges older than this are dropped
}

// DefaultConfig matches the classic rules: 60% base, +20% per aim, 5 minute mute.
var DefaultConfig = Config{
	BaseHitChance: 60,
	AimBonus:      20,
	MuteDuration:  5 * time.Minute,
	ChallengeTTL:  5 * time.Minute,
}

// HitChance is the capped chance in percent for a shot with the given aim bonus.
func HitChance(base, bonus int) int {
	chance := base + bonus
	if chance > 100 {
		return 100
	}
	if chance < 0 {
		return 0
	}
	return chance
}

// Challenge is an open invitation to duel.
type Challenge struct {
	Challenger game.Player
	Target     string // username without @, empty for anyone
	IssuedAt   time.Time
}

// Session is a duel in progress.
type Session struct {
	A, B  game.Player
	Turn  int64
	Bonus map[int64]int
}

func (s *Session) player(id int64) (game.Player, bool) {
	switch id {
	case s.A.ID:
		return s.A, true
	case s.B.ID:
		return s.B, true
	}
	return game.Player{}, false
}

func (s *Session) opponent(id int64) game.Player {
	if id == s.A.ID {
		return s.B
	}
	return s.A
}

// Manager owns every duel challenge and session, keyed by chat.
type Manager struct {
	cfg       Config
	recorder  game.Recorder
	muter     game.Restricter
	rnd       game.Rand
	overrides game.Overrides
	clock     clockwork.Clock

	mu         sync.Mutex
	challenges map[int64]*Challenge
	sessions   map[int64]*Session
}

// NewManager creates a duel manager.
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
		sessions:   make(map[int64]*Session),
	}
}

// expireLocked drops a stale challenge. Must be called with m.mu held.
func (m *Manager) expireLocked(chatID int64) {
	ch, ok := m.challenges[chatID]
	if !ok || m.cfg.ChallengeTTL <= 0 {
		return
	}
	if m.clock.Since(ch.IssuedAt) > m.cfg.ChallengeTTL {
		delete(m.challenges, chatID)
		log.Debug().Int64("chat_id", chatID).Msg("Duel challenge expired")
	}
}

// Open creates a challenge from challenger, optionally aimed at target.
func (m *Manager) Open(chatID int64, challenger game.Player, target string) (*Challenge, error) {
	target = game.NormalizeHandle(target)
	if target != "" && challenger.Is(target) {
		return nil, ErrSelfChallenge
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.expireLocked(chatID)
	if _, ok := m.challenges[chatID]; ok {
		return nil, ErrBusy
	}
	if _, ok := m.sessions[chatID]; ok {
		return nil, ErrBusy
	}

	ch := &Challenge{Challenger: challenger, Target: target, IssuedAt: m.clock.Now()}
	m.challenges[chatID] = ch
	return ch, nil
}

// Accept turns the open challenge into a session and picks who shoots first.
// A nil session with a nil error means there was nothing to accept.
func (m *Manager) Accept(chatID int64, p game.Player) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.expireLocked(chatID)
	ch, ok := m.challenges[chatID]
	if !ok {
		return nil, nil
	}
	if ch.Challenger.ID == p.ID {
		return nil, ErrSelfAccept
	}
	if ch.Target != "" && !p.Is(ch.Target) {
		return nil, ErrNotTarget
	}

	delete(m.challenges, chatID)
	s := &Session{
		A:     ch.Challenger,
		B:     p,
		Bonus: map[int64]int{ch.Challenger.ID: 0, p.ID: 0},
	}
	s.Turn = s.A.ID
	if m.rnd.IntN(2) == 1 {
		s.Turn = s.B.ID
	}
	m.sessions[chatID] = s

	log.Info().
		Int64("chat_id", chatID).
		Int64("player_a", s.A.ID).
		Int64("player_b", s.B.ID).
		Int64("first_turn", s.Turn).
		Msg("Duel started")

	cp := *s
	return &cp, nil
}

// Decline removes an open challenge. Untargeted challenges may be declined by anyone,
// targeted ones only by the target or the challenger.
func (m *Manager) Decline(chatID int64, p game.Player) (*Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.expireLocked(chatID)
	ch, ok := m.challenges[chatID]
	if !ok {
		return nil, nil
	}
	if ch.Target != "" && ch.Challenger.ID != p.ID && !p.Is(ch.Target) {
		return nil, ErrNotTarget
	}
	delete(m.challenges, chatID)
	return ch, nil
}

// CancelResult describes what a cancel did.
type CancelResult struct {
	Challenge *Challenge // set when an open challenge was withdrawn
	Forfeit   *Forfeit   // set when a running duel was abandoned
}

// Forfeit is a duel abandoned by one of its players.
type Forfeit struct {
	Winner, Loser game.Player
}

// Cancel withdraws the caller's open challenge or forfeits the caller's running duel.
func (m *Manager) Cancel(ctx context.Context, chatID int64, p game.Player) (*CancelResult, error) {
	m.mu.Lock()
	if s, ok := m.sessions[chatID]; ok {
		loser, isPlayer := s.player(p.ID)
		if !isPlayer {
			m.mu.Unlock()
			return nil, ErrNotParticipant
		}
		winner := s.opponent(p.ID)
		delete(m.sessions, chatID)
		m.mu.Unlock()

		m.recorder.RecordOutcome(ctx, chatID, winner, model.GameDuel, true)
		m.recorder.RecordOutcome(ctx, chatID, loser, model.GameDuel, false)
		log.Info().Int64("chat_id", chatID).Int64("loser", loser.ID).Msg("Duel forfeited")
		return &CancelResult{Forfeit: &Forfeit{Winner: winner, Loser: loser}}, nil
	}
	defer m.mu.Unlock()

	m.expireLocked(chatID)
	ch, ok := m.challenges[chatID]
	if !ok {
		return nil, nil
	}
	if ch.Challenger.ID != p.ID {
		return nil, ErrNotChallenger
	}
	delete(m.challenges, chatID)
	return &CancelResult{Challenge: ch}, nil
}

// ShotResult is the outcome of one shot.
type ShotResult struct {
	Shooter game.Player
	Target  game.Player
	Chance  int
	Hit     bool
	Muted   bool // loser was muted successfully
}

// turnLocked returns the session if p may act now. Must be called with m.mu held.
func (m *Manager) turnLocked(chatID int64, p game.Player) (*Session, bool, error) {
	s, ok := m.sessions[chatID]
	if !ok {
		return nil, false, nil
	}
	if _, isPlayer := s.player(p.ID); !isPlayer {
		return nil, false, nil
	}
	if s.Turn != p.ID {
		return nil, false, ErrNotYourTurn
	}
	return s, true, nil
}

// Shoot fires the turn holder's pistol. The shooter's aim bonus is consumed either way.
// A nil result with a nil error means the caller has no duel here.
func (m *Manager) Shoot(ctx context.Context, chatID int64, p game.Player) (*ShotResult, error) {
	m.mu.Lock()
	s, ok, err := m.turnLocked(chatID, p)
	if !ok {
		m.mu.Unlock()
		return nil, err
	}

	shooter, _ := s.player(p.ID)
	target := s.opponent(p.ID)
	chance := HitChance(m.cfg.BaseHitChance, s.Bonus[p.ID])
	s.Bonus[p.ID] = 0

	hit := m.decide(shooter, target, chance)
	res := &ShotResult{Shooter: shooter, Target: target, Chance: chance, Hit: hit}
	if !hit {
		s.Turn = target.ID
		m.mu.Unlock()
		return res, nil
	}
	delete(m.sessions, chatID)
	m.mu.Unlock()

	m.recorder.RecordOutcome(ctx, chatID, shooter, model.GameDuel, true)
	m.recorder.RecordOutcome(ctx, chatID, target, model.GameDuel, false)

	until := m.clock.Now().Add(m.cfg.MuteDuration)
	if err := m.muter.Restrict(ctx, chatID, target.ID, until); err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Int64("user_id", target.ID).Msg("Failed to mute duel loser")
	} else {
		res.Muted = true
	}

	log.Info().
		Int64("chat_id", chatID).
		Int64("winner", shooter.ID).
		Int64("loser", target.ID).
		Int("chance", chance).
		Msg("Duel finished")

	return res, nil
}

// decide draws a hit. A forced outcome of the shooter wins first; otherwise the target's.
func (m *Manager) decide(shooter, target game.Player, chance int) bool {
	if out, ok := m.overrides.For(shooter); ok {
		return out == game.ForceWin
	}
	if out, ok := m.overrides.For(target); ok {
		return out == game.ForceLose
	}
	return m.rnd.IntN(100) < chance
}

// AimResult is the state after an aim or aim reset.
type AimResult struct {
	Player   game.Player
	Next     game.Player // who acts next
	Bonus    int
	HitRatio int
}

// Aim raises the turn holder's bonus and passes the turn.
func (m *Manager) Aim(chatID int64, p game.Player) (*AimResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok, err := m.turnLocked(chatID, p)
	if !ok {
		return nil, err
	}
	s.Bonus[p.ID] += m.cfg.AimBonus
	next := s.opponent(p.ID)
	s.Turn = next.ID

	me, _ := s.player(p.ID)
	return &AimResult{
		Player:   me,
		Next:     next,
		Bonus:    s.Bonus[p.ID],
		HitRatio: HitChance(m.cfg.BaseHitChance, s.Bonus[p.ID]),
	}, nil
}

// ResetAim zeroes the turn holder's bonus. The turn is kept.
func (m *Manager) ResetAim(chatID int64, p game.Player) (*AimResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok, err := m.turnLocked(chatID, p)
	if !ok {
		return nil, err
	}
	s.Bonus[p.ID] = 0

	me, _ := s.player(p.ID)
	return &AimResult{
		Player:   me,
		Next:     me,
		Bonus:    0,
		HitRatio: HitChance(m.cfg.BaseHitChance, 0),
	}, nil
}

// Active reports whether a duel is in progress in the chat.
func (m *Manager) Active(chatID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[chatID]
	return ok
}

// Snapshot returns a copy of the chat's running session.
func (m *Manager) Snapshot(chatID int64) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[chatID]
	if !ok {
		return Session{}, false
	}
	cp := *s
	cp.Bonus = make(map[int64]int, len(s.Bonus))
	for k, v := range s.Bonus {
		cp.Bonus[k] = v
	}
	return cp, true
}

// FormatChallenge renders an opened challenge.
func FormatChallenge(ch *Challenge) string {
	who := "любого желающего"
	if ch.Target != "" {
		who = "@" + ch.Target
	}
	return fmt.Sprintf("⚔️ %s вызывает %s на дуэль!\n/accept — принять, /decline — отказаться", ch.Challenger.Mention(), who)
}

// FormatStart renders an accepted challenge.
func FormatStart(s *Session) string {
	first := s.A
	if s.Turn == s.B.ID {
		first = s.B
	}
	return fmt.Sprintf("🔫 Дуэль: %s против %s!\nПервым стреляет %s.\nКоманды: «выстрел», «прицел», «сброс прицела».",
		s.A.Mention(), s.B.Mention(), first.Mention())
}

// Text renders a shot.
func (r *ShotResult) Text(mute time.Duration) string {
	if !r.Hit {
		return fmt.Sprintf("💨 %s стреляет (%d%%) и промахивается! Ход переходит к %s.",
			r.Shooter.Mention(), r.Chance, r.Target.Mention())
	}
	msg := fmt.Sprintf("💥 %s стреляет (%d%%) и попадает! %s побеждает в дуэли.",
		r.Shooter.Mention(), r.Chance, r.Shooter.Mention())
	if r.Muted {
		msg += fmt.Sprintf("\n🤐 %s молчит %d мин.", r.Target.Mention(), int(mute.Minutes()))
	}
	return msg
}

// Text renders an aim result.
func (r *AimResult) Text() string {
	if r.Next.ID == r.Player.ID {
		return fmt.Sprintf("🎯 %s сбрасывает прицел. Шанс попадания: %d%%. Ваш ход.", r.Player.Mention(), r.HitRatio)
	}
	return fmt.Sprintf("🎯 %s целится: шанс попадания %d%%. Ход переходит к %s.",
		r.Player.Mention(), r.HitRatio, r.Next.Mention())
}

// Text renders a cancel result.
func (r *CancelResult) Text() string {
	if r.Forfeit != nil {
		return fmt.Sprintf("🏳️ %s сдаётся. Победа за %s!", r.Forfeit.Loser.Mention(), r.Forfeit.Winner.Mention())
	}
	return fmt.Sprintf("Вызов %s отменён.", r.Challenge.Challenger.Mention())
}
