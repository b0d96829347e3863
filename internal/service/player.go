package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"derby-bot/internal/game"
	"derby-bot/internal/model"
	"derby-bot/internal/repository"
)

// Errors shown to users.
var (
	ErrPlayerFormat   = game.UserError("Неверный формат. Пример: /addplayer Монблан | @Matricariay | Лана | 14.07")
	ErrBirthdayFormat = game.UserError("Неверный формат. Пример: /setbirthday Монблан | 14.07")
	ErrBadBirthday    = game.UserError("Дата рождения должна быть в формате ДД.ММ, например 14.07")
	ErrPlayerExists   = game.UserError("Игрок с таким ником уже есть")
)

// PlayerNotFound is the user-facing error for a failed lookup.
func PlayerNotFound(query string) error {
	return game.UserError(fmt.Sprintf("Игрок \"%s\" не найден.", query))
}

// NoHandle marks a directory entry without a Telegram account.
const NoHandle = "-"

var monthsGenitive = []string{
	"января", "февраля", "марта", "апреля", "мая", "июня",
	"июля", "августа", "сентября", "октября", "ноября", "декабря",
}

// PlayerStore persists the player directory.
type PlayerStore interface {
	Add(ctx context.Context, p model.Player) (*model.Player, error)
	List(ctx context.Context) ([]*model.Player, error)
	Find(ctx context.Context, needle string) ([]*model.Player, error)
	Remove(ctx context.Context, key string) (*model.Player, error)
	SetBirthday(ctx context.Context, nick string, birthday *string) (*model.Player, error)
	WithBirthdays(ctx context.Context) ([]*model.Player, error)
	BornOn(ctx context.Context, day string) ([]*model.Player, error)
}

// PlayerService manages the global player directory.
type PlayerService struct {
	store PlayerStore
}

// NewPlayerService creates a new PlayerService instance.
func NewPlayerService(store PlayerStore) *PlayerService {
	return &PlayerService{store: store}
}

// Birthday is a validated day of the year.
type Birthday struct {
	Day   int
	Month time.Month
}

// ParseBirthday accepts D.M or DD.MM. 29.02 is valid.
func ParseBirthday(s string) (Birthday, error) {
	t, err := time.Parse("2.1.2006", strings.TrimSpace(s)+".2000")
	if err != nil {
		return Birthday{}, ErrBadBirthday
	}
	return Birthday{Day: t.Day(), Month: t.Month()}, nil
}

// String renders the canonical DD.MM form that is stored.
func (b Birthday) String() string {
	return fmt.Sprintf("%02d.%02d", b.Day, int(b.Month))
}

// Human renders e.g. "14 июля".
func (b Birthday) Human() string {
	return fmt.Sprintf("%d %s", b.Day, monthsGenitive[b.Month-1])
}

func splitFields(input string) []string {
	parts := strings.Split(input, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// ParseEntry parses "Nick | @telegram | Name | DD.MM"; the birthday is optional.
func ParseEntry(input string) (model.Player, error) {
	parts := splitFields(input)
	if len(parts) < 3 || len(parts) > 4 || parts[0] == "" {
		return model.Player{}, ErrPlayerFormat
	}

	p := model.Player{GameNick: parts[0], Telegram: parts[1], Name: parts[2]}
	if p.Telegram == "" {
		p.Telegram = NoHandle
	}
	if len(parts) == 4 && parts[3] != "" {
		b, err := ParseBirthday(parts[3])
		if err != nil {
			return model.Player{}, err
		}
		day := b.String()
		p.Birthday = &day
	}
	return p, nil
}

// Add parses and stores a directory entry.
func (s *PlayerService) Add(ctx context.Context, input string) (*model.Player, error) {
	entry, err := ParseEntry(input)
	if err != nil {
		return nil, err
	}
	p, err := s.store.Add(ctx, entry)
	if errors.Is(err, repository.ErrPlayerExists) {
		return nil, ErrPlayerExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to add player: %w", err)
	}
	log.Info().Str("nick", p.GameNick).Msg("Player added")
	return p, nil
}

// List returns the whole directory.
func (s *PlayerService) List(ctx context.Context) ([]*model.Player, error) {
	players, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	return players, nil
}

// Find returns the first player whose nickname, handle or name contains query.
func (s *PlayerService) Find(ctx context.Context, query string) (*model.Player, error) {
	query = strings.TrimSpace(query)
	found, err := s.store.Find(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to find player: %w", err)
	}
	if len(found) == 0 {
		return nil, PlayerNotFound(query)
	}
	return found[0], nil
}

// Remove deletes the player with the exact nickname or handle.
func (s *PlayerService) Remove(ctx context.Context, key string) (*model.Player, error) {
	key = strings.TrimSpace(key)
	p, err := s.store.Remove(ctx, key)
	if errors.Is(err, repository.ErrPlayerNotFound) {
		return nil, PlayerNotFound(key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to remove player: %w", err)
	}
	log.Info().Str("nick", p.GameNick).Msg("Player removed")
	return p, nil
}

// SetBirthday parses "Nick | DD.MM" and updates the player.
func (s *PlayerService) SetBirthday(ctx context.Context, input string) (*model.Player, error) {
	parts := splitFields(input)
	if len(parts) != 2 || parts[0] == "" {
		return nil, ErrBirthdayFormat
	}
	b, err := ParseBirthday(parts[1])
	if err != nil {
		return nil, err
	}
	day := b.String()

	p, err := s.store.SetBirthday(ctx, parts[0], &day)
	if errors.Is(err, repository.ErrPlayerNotFound) {
		return nil, PlayerNotFound(parts[0])
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set birthday: %w", err)
	}
	return p, nil
}

// BirthdayEntry is a player with a parsed birthday.
type BirthdayEntry struct {
	Player   *model.Player
	Birthday Birthday
}

// Birthdays returns every player with a birthday, ordered by month then day.
// Entries whose stored date no longer parses are skipped.
func (s *PlayerService) Birthdays(ctx context.Context) ([]BirthdayEntry, error) {
	players, err := s.store.WithBirthdays(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list birthdays: %w", err)
	}
	return SortBirthdays(players), nil
}

// SortBirthdays orders players by birthday within the calendar year.
func SortBirthdays(players []*model.Player) []BirthdayEntry {
	out := make([]BirthdayEntry, 0, len(players))
	for _, p := range players {
		if p.Birthday == nil {
			continue
		}
		b, err := ParseBirthday(*p.Birthday)
		if err != nil {
			log.Debug().Str("nick", p.GameNick).Str("birthday", *p.Birthday).Msg("Skipping unparsable birthday")
			continue
		}
		out = append(out, BirthdayEntry{Player: p, Birthday: b})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Birthday, out[j].Birthday
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		return a.Day < b.Day
	})
	return out
}

// BornOn returns the players celebrating on the given local date.
func (s *PlayerService) BornOn(ctx context.Context, day time.Time) ([]*model.Player, error) {
	key := Birthday{Day: day.Day(), Month: day.Month()}.String()
	players, err := s.store.BornOn(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to find birthdays: %w", err)
	}
	return players, nil
}

// Greeting addresses a player by handle when they have one, by name otherwise.
func Greeting(p *model.Player) string {
	if p.Telegram != "" && p.Telegram != NoHandle {
		return p.Telegram
	}
	if p.Name != "" {
		return p.Name
	}
	return p.GameNick
}
