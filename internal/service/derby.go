package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"derby-bot/internal/broadcast"
	"derby-bot/internal/game"
	"derby-bot/internal/model"
	"derby-bot/internal/pkg/tz"
	"derby-bot/internal/repository"
	"derby-bot/internal/schedule"
)

// Errors shown to users.
var (
	ErrNoDerby     = game.UserError("Дерби не установлено. Используйте /setderby")
	ErrDerbyFormat = game.UserError("Неверный формат. Пример: /setderby 10.02.2026 10:00")
)

// SettingsStore is a key/value settings store.
type SettingsStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Broadcaster fans a message out to every subscribed chat.
type Broadcaster interface {
	Broadcast(ctx context.Context, text string, withMentions bool) broadcast.Report
}

// Reanchorer replaces the derby reset timers.
type Reanchorer interface {
	Reanchor(anchor *time.Time, fn schedule.AnchoredFunc) int
}

// DerbyService owns the derby start time. Changes are persisted first and then
// applied to the scheduler, one at a time.
type DerbyService struct {
	settings    SettingsStore
	scheduler   Reanchorer
	broadcaster Broadcaster
	loc         *time.Location
	clock       clockwork.Clock

	mu     sync.Mutex
	anchor *time.Time
}

// NewDerbyService creates a new DerbyService instance.
func NewDerbyService(settings SettingsStore, scheduler Reanchorer, broadcaster Broadcaster, loc *time.Location, clock clockwork.Clock) *DerbyService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &DerbyService{
		settings:    settings,
		scheduler:   scheduler,
		broadcaster: broadcaster,
		loc:         loc,
		clock:       clock,
	}
}

// Load restores the persisted anchor and schedules its remaining resets.
func (s *DerbyService) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.settings.Get(ctx, model.SettingDerbyStart)
	if errors.Is(err, repository.ErrSettingNotFound) {
		log.Info().Msg("No derby start stored")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load derby start: %w", err)
	}

	anchor, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		log.Warn().Err(err).Str("value", raw).Msg("Stored derby start is unreadable, ignoring it")
		return nil
	}

	s.anchor = &anchor
	s.scheduler.Reanchor(&anchor, s.fire)
	log.Info().Time("anchor", anchor).Msg("Derby start restored")
	return nil
}

// Anchor returns the current derby start, or nil.
func (s *DerbyService) Anchor() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.anchor == nil {
		return nil
	}
	a := *s.anchor
	return &a
}

// SetFromInput parses a local "DD.MM.YYYY HH:MM" and makes it the derby start.
func (s *DerbyService) SetFromInput(ctx context.Context, input string) (time.Time, error) {
	at, err := tz.ParseLocal(input, s.loc)
	if err != nil {
		return time.Time{}, ErrDerbyFormat
	}
	return at, s.SetAnchor(ctx, at)
}

// SetAnchor persists a new derby start and rebuilds the reset timers.
func (s *DerbyService) SetAnchor(ctx context.Context, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.settings.Set(ctx, model.SettingDerbyStart, at.UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to store derby start: %w", err)
	}
	s.anchor = &at
	timers := s.scheduler.Reanchor(&at, s.fire)
	log.Info().Time("anchor", at).Int("timers", timers).Msg("Derby start set")
	return nil
}

// Clear removes the derby start and cancels its timers.
func (s *DerbyService) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.settings.Delete(ctx, model.SettingDerbyStart); err != nil {
		return fmt.Errorf("failed to clear derby start: %w", err)
	}
	s.anchor = nil
	s.scheduler.Reanchor(nil, s.fire)
	log.Info().Msg("Derby start cleared")
	return nil
}

// Upcoming returns at most limit resets that are still ahead.
func (s *DerbyService) Upcoming(limit int) ([]schedule.ResetEvent, error) {
	anchor := s.Anchor()
	if anchor == nil {
		return nil, ErrNoDerby
	}
	return schedule.Upcoming(*anchor, s.clock.Now(), limit), nil
}

func (s *DerbyService) fire(ev schedule.ResetEvent, kind schedule.Kind) {
	text := ResetText(ev)
	if kind == schedule.KindReminder {
		text = ResetReminderText(ev)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	report := s.broadcaster.Broadcast(ctx, text, true)
	log.Info().
		Int("reset", ev.Number()).
		Str("kind", kind.String()).
		Int("delivered", report.Delivered).
		Int("failed", report.Failed).
		Msg("Derby broadcast sent")
}

// ResetText announces a reset.
func ResetText(ev schedule.ResetEvent) string {
	return fmt.Sprintf("🏇 <b>%s</b>\n\nСброс #%d из %d", ev.Label(), ev.Number(), len(schedule.ResetOffsets))
}

// ResetReminderText warns about a reset.
func ResetReminderText(ev schedule.ResetEvent) string {
	return fmt.Sprintf("⏰ <b>Через %d минут сброс заданий!</b>\n\n%s", int(schedule.ReminderLead.Minutes()), ev.Label())
}

// ScheduleText lists every reset of the derby with done/pending markers.
func (s *DerbyService) ScheduleText() (string, error) {
	anchor := s.Anchor()
	if anchor == nil {
		return "", ErrNoDerby
	}
	now := s.clock.Now()

	var b strings.Builder
	b.WriteString("🏇 <b>Расписание сбросов дерби</b>\n\n")
	for _, ev := range schedule.ResetEvents(*anchor) {
		marker := "⏳"
		if !ev.At.After(now) {
			marker = "✅"
		}
		step := "Старт"
		if gap := ev.Gap(); gap > 0 {
			step = fmt.Sprintf("+%dч", int(gap.Hours()))
		}
		fmt.Fprintf(&b, "%s %d. %s (%d заданий)\n   %s\n\n", marker, ev.Number(), step, ev.Tasks, tz.Format(ev.At, s.loc))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
