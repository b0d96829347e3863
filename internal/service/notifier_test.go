package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"derby-bot/internal/model"
	"derby-bot/internal/pkg/tz"
	"derby-bot/internal/schedule"
)

type fakeBirthdays struct {
	mu      sync.Mutex
	days    []time.Time
	players []*model.Player
}

func (f *fakeBirthdays) BornOn(_ context.Context, day time.Time) ([]*model.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.days = append(f.days, day)
	return f.players, nil
}

func TestNotifier_RabbitAndBirthdays(t *testing.T) {
	loc, err := tz.Load("Europe/Kyiv")
	require.NoError(t, err)
	// Tuesday 14:00 in Kyiv.
	clock := clockwork.NewFakeClockAt(time.Date(2026, 5, 5, 14, 0, 0, 0, loc))
	sched := schedule.New(clock)
	bc := newFakeBroadcaster()
	bdays := &fakeBirthdays{players: []*model.Player{{GameNick: "Sunny", Telegram: "@sunny"}}}

	n := NewNotifier(NotifierConfig{
		Rabbits:    []tz.Weekly{{Weekday: time.Tuesday, Hour: 14, Minute: 35, Label: "Вторник", Loc: loc}},
		RabbitLead: 10 * time.Minute,
		Birthdays:  tz.Daily{Loc: loc},
	}, sched, bc, bdays)
	n.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 3))

	recv := func() sent {
		select {
		case s := <-bc.ch:
			return s
		case <-time.After(2 * time.Second):
			t.Fatal("no broadcast")
			return sent{}
		}
	}

	clock.Advance(25 * time.Minute)
	s := recv()
	assert.True(t, s.mentions)
	assert.Equal(t, "⏰ <b>Через 10 минут прискачет кролик!</b>\n\nГотовьте задания!", s.text)

	clock.Advance(10 * time.Minute)
	s = recv()
	assert.True(t, s.mentions)
	assert.Contains(t, s.text, "КРОЛИК ПРИСКАКАЛ!")
	assert.Contains(t, s.text, "Вторник 14:35 по Киеву")

	clock.Advance(9*time.Hour + 25*time.Minute)
	s = recv()
	assert.False(t, s.mentions)
	assert.Contains(t, s.text, "@sunny, поздравляем тебя")

	bdays.mu.Lock()
	defer bdays.mu.Unlock()
	require.Len(t, bdays.days, 1)
	assert.Equal(t, 6, bdays.days[0].Day())
	assert.Equal(t, time.May, bdays.days[0].Month())
}

func TestNotifier_NextRabbit(t *testing.T) {
	loc, err := tz.Load("Europe/Kyiv")
	require.NoError(t, err)
	n := NewNotifier(NotifierConfig{Rabbits: []tz.Weekly{
		{Weekday: time.Tuesday, Hour: 14, Minute: 35, Label: "Вторник", Loc: loc},
		{Weekday: time.Friday, Hour: 19, Minute: 50, Label: "Пятница", Loc: loc},
	}}, nil, nil, nil)

	w, at, ok := n.NextRabbit(time.Date(2026, 5, 6, 12, 0, 0, 0, loc))
	require.True(t, ok)
	assert.Equal(t, "Пятница", w.Label)
	assert.Equal(t, 8, at.Day())
	assert.Len(t, n.Rabbits(), 2)
}

func TestBirthdayText(t *testing.T) {
	assert.Contains(t, BirthdayText(&model.Player{GameNick: "X", Telegram: "-", Name: "Tom & Jerry"}), "Tom &amp; Jerry, поздравляем")
	assert.Contains(t, BirthdayText(&model.Player{GameNick: "Nick", Telegram: NoHandle}), "Nick, поздравляем")
}
