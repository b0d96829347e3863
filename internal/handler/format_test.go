package handler

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"derby-bot/internal/game"
	"derby-bot/internal/model"
	"derby-bot/internal/pkg/tz"
	"derby-bot/internal/schedule"
	"derby-bot/internal/service"
)

func kyiv(t *testing.T) *time.Location {
	t.Helper()
	loc, err := tz.Load("Europe/Kyiv")
	require.NoError(t, err)
	return loc
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "❌ Вы уже в списке участников!", UserMessage(service.ErrAlreadyJoined))
	assert.Equal(t, "❌ Вы уже в списке участников!", UserMessage(fmt.Errorf("join: %w", service.ErrAlreadyJoined)))
	assert.Equal(t, MsgInternalError, UserMessage(errors.New("connection refused")))
}

// TestUserMessageNeverLeaksProperty: *for any* internal error text, the reply is the generic one.
func TestUserMessageNeverLeaksProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.String().Draw(t, "text")
		if got := UserMessage(errors.New(text)); got != MsgInternalError {
			t.Fatalf("internal error %q rendered as %q", text, got)
		}
		if got := UserMessage(game.UserError(text)); got != "❌ "+text {
			t.Fatalf("user error %q rendered as %q", text, got)
		}
	})
}

func TestStatusText(t *testing.T) {
	loc := kyiv(t)
	rabbit := tz.Weekly{Weekday: time.Tuesday, Hour: 14, Minute: 35, Label: "Вторник", Loc: loc}
	rabbitAt := time.Date(2026, 5, 5, 14, 35, 0, 0, loc)

	text := StatusText(rabbit, rabbitAt, true, nil, nil, loc)
	assert.Contains(t, text, "Следующий кролик: Вторник 14:35 (Киев), 05.05.2026 14:35")
	assert.True(t, strings.HasSuffix(text, "Дерби не установлено. Используйте /setderby"))

	anchor := time.Date(2026, 5, 1, 10, 0, 0, 0, loc)
	upcoming := schedule.Upcoming(anchor, anchor.Add(time.Hour), 3)
	require.Len(t, upcoming, 3)

	text = StatusText(rabbit, rabbitAt, true, &anchor, upcoming, loc)
	assert.Contains(t, text, "Дерби стартовало: 01.05.2026 10:00")
	assert.Contains(t, text, "• Сброс #2 (10 заданий): 01.05.2026 21:00")
	assert.Contains(t, text, "• Сброс #3 (15 заданий): 02.05.2026 16:00")
	assert.Contains(t, text, "• Сброс #4 (20 заданий): 03.05.2026 16:00")

	text = StatusText(tz.Weekly{}, time.Time{}, false, nil, nil, loc)
	assert.Contains(t, text, "Расписание кроликов пусто")
}

func TestRabbitScheduleText(t *testing.T) {
	loc := kyiv(t)
	rabbits := []tz.Weekly{
		{Weekday: time.Tuesday, Hour: 14, Minute: 35, Label: "Вторник", Loc: loc},
		{Weekday: time.Wednesday, Hour: 20, Minute: 50, Label: "Среда", Loc: loc},
		{Weekday: time.Friday, Hour: 19, Minute: 5, Label: "Пятница", Loc: loc},
	}
	text := RabbitScheduleText(rabbits, rabbits[2], true)
	assert.Contains(t, text, "• Вторник - 14:35\n• Среда - 20:50\n• Пятница - 19:05")
	assert.True(t, strings.HasSuffix(text, "Следующий: <b>Пятница 19:05</b>"))

	assert.NotContains(t, RabbitScheduleText(nil, tz.Weekly{}, false), "Следующий")
}

func TestParticipantsText(t *testing.T) {
	assert.Contains(t, ParticipantsText(nil), "Список участников пуст")

	text := ParticipantsText([]model.Participant{
		{UserID: 1, Username: "alice", DisplayName: "Alice"},
		{UserID: 2, DisplayName: "<Bob>"},
	})
	assert.Contains(t, text, "Участники скачек (2)")
	assert.Contains(t, text, "1. @alice\n2. &lt;Bob&gt;")
}

func TestPlayerTexts(t *testing.T) {
	assert.Equal(t, "📋 Список игроков пуст.", PlayersText(nil))

	birthday := "14.07"
	lana := &model.Player{GameNick: "Монблан", Telegram: "@Matricariay", Name: "Лана", Birthday: &birthday}
	oleg := &model.Player{GameNick: "Ферма", Telegram: "-", Name: "Олег"}

	text := PlayersText([]*model.Player{lana, oleg})
	assert.Contains(t, text, "Список игроков (2)")
	assert.Contains(t, text, "1. 🎮 Монблан\n   📱 @Matricariay\n   👤 Лана\n   🎂 14.07")
	assert.Contains(t, text, "2. 🎮 Ферма\n   📱 -\n   👤 Олег")

	card := PlayerCardText(lana)
	assert.Equal(t, "🎮 <b>Монблан</b>\n📱 Telegram: @Matricariay\n👤 Имя: Лана\n🎂 День рождения: 14.07", card)
	assert.NotContains(t, PlayerCardText(oleg), "День рождения")
}

func TestBirthdaysText(t *testing.T) {
	assert.Equal(t, "🎂 Нет записей о днях рождения.", BirthdaysText(nil))

	day := func(s string) *string { return &s }
	entries := service.SortBirthdays([]*model.Player{
		{GameNick: "B", Name: "Боря", Birthday: day("03.12")},
		{GameNick: "A", Name: "Аня", Birthday: day("14.07")},
		{GameNick: "C", Name: "Вика", Birthday: day("1.1")},
	})
	text := BirthdaysText(entries)
	assert.Contains(t, text, "1 января - Вика (C)\n14 июля - Аня (A)\n3 декабря - Боря (B)")
}

func TestStatsText(t *testing.T) {
	text := StatsText("@alice", &model.ChatStats{Messages: 12, DuelWins: 3, DuelLosses: 1, CoinWins: 2, WordExplained: 4, WordGuessed: 5, WordPoints: 90})
	assert.Contains(t, text, "Сообщений: 12")
	assert.Contains(t, text, "Дуэли: 3 побед / 1 поражений")
	assert.Contains(t, text, "Монетка: 2 побед / 0 поражений")
	assert.Contains(t, text, "объяснил 4, угадал 5")
	assert.Contains(t, text, "Очки: 90")
}

func TestTopText(t *testing.T) {
	assert.Contains(t, TopText(nil), "Пока никто")

	text := TopText([]service.LeaderRow{
		{UserID: 1, Username: "alice", Points: 60},
		{UserID: 2, Username: "bob", Points: 40},
		{UserID: 3, Points: 30},
		{UserID: 4, Username: "dave", Points: 10},
	})
	assert.Contains(t, text, "🥇 @alice: 60\n🥈 @bob: 40\n🥉 Игрок 3: 30\n4. @dave: 10")
}
