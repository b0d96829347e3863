package handler

import (
	"fmt"
	"html"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"derby-bot/internal/model"
	"derby-bot/internal/service"
)

// Usage replies for the directory commands called without arguments.
const (
	AddPlayerUsage = `➕ <b>Добавить игрока</b>

Формат: /addplayer Ник | @telegram | Имя | ДД.ММ

Пример: /addplayer Монблан | @Matricariay | Лана | 14.07

День рождения можно не указывать.`

	SetBirthdayUsage = `🎂 <b>Установить день рождения</b>

Формат: /setbirthday Ник | ДД.ММ

Пример: /setbirthday Монблан | 14.07`

	PlayerUsage       = "❓ Укажите ник или имя игрока.\n\nПример: /player Монблан"
	RemovePlayerUsage = "❓ Укажите ник игрока для удаления.\n\nПример: /removeplayer Монблан"
)

// PlayerHandler handles the player directory and birthdays.
type PlayerHandler struct {
	players *service.PlayerService
	timeout time.Duration
}

// NewPlayerHandler creates a new PlayerHandler.
func NewPlayerHandler(players *service.PlayerService, timeout time.Duration) *PlayerHandler {
	return &PlayerHandler{players: players, timeout: timeout}
}

// HandlePlayers lists the directory.
func (h *PlayerHandler) HandlePlayers(c tele.Context) error {
	ctx, cancel := requestContext(h.timeout)
	defer cancel()

	players, err := h.players.List(ctx)
	if err != nil {
		return replyError(c, err, "players")
	}
	return c.Send(PlayersText(players), tele.ModeHTML)
}

// HandlePlayer handles /player <query>.
func (h *PlayerHandler) HandlePlayer(c tele.Context) error {
	query := payload(c)
	if query == "" {
		return c.Send(PlayerUsage)
	}
	ctx, cancel := requestContext(h.timeout)
	defer cancel()

	p, err := h.players.Find(ctx, query)
	if err != nil {
		return replyError(c, err, "player")
	}
	return c.Send(PlayerCardText(p), tele.ModeHTML)
}

// HandleAddPlayer handles /addplayer Nick | @tg | Name | DD.MM.
func (h *PlayerHandler) HandleAddPlayer(c tele.Context) error {
	input := payload(c)
	if input == "" {
		return c.Send(AddPlayerUsage, tele.ModeHTML)
	}
	ctx, cancel := requestContext(h.timeout)
	defer cancel()

	p, err := h.players.Add(ctx, input)
	if err != nil {
		return replyError(c, err, "addplayer")
	}
	return c.Send("✅ Игрок добавлен!\n\n"+playerLines(p), tele.ModeHTML)
}

// HandleRemovePlayer handles /removeplayer <nick|@tg>.
func (h *PlayerHandler) HandleRemovePlayer(c tele.Context) error {
	key := payload(c)
	if key == "" {
		return c.Send(RemovePlayerUsage)
	}
	ctx, cancel := requestContext(h.timeout)
	defer cancel()

	p, err := h.players.Remove(ctx, key)
	if err != nil {
		return replyError(c, err, "removeplayer")
	}
	return c.Send("✅ Игрок удалён!\n\n"+playerLines(p), tele.ModeHTML)
}

// HandleSetBirthday handles /setbirthday Nick | DD.MM.
func (h *PlayerHandler) HandleSetBirthday(c tele.Context) error {
	input := payload(c)
	if input == "" {
		return c.Send(SetBirthdayUsage, tele.ModeHTML)
	}
	ctx, cancel := requestContext(h.timeout)
	defer cancel()

	p, err := h.players.SetBirthday(ctx, input)
	if err != nil {
		return replyError(c, err, "setbirthday")
	}
	return c.Send(fmt.Sprintf("✅ День рождения установлен!\n\n🎮 %s\n🎂 %s", html.EscapeString(p.GameNick), *p.Birthday), tele.ModeHTML)
}

// HandleBirthdays lists birthdays through the year.
func (h *PlayerHandler) HandleBirthdays(c tele.Context) error {
	ctx, cancel := requestContext(h.timeout)
	defer cancel()

	entries, err := h.players.Birthdays(ctx)
	if err != nil {
		return replyError(c, err, "birthdays")
	}
	return c.Send(BirthdaysText(entries), tele.ModeHTML)
}

func playerLines(p *model.Player) string {
	s := fmt.Sprintf("🎮 %s\n📱 %s\n👤 %s", html.EscapeString(p.GameNick), html.EscapeString(p.Telegram), html.EscapeString(p.Name))
	if p.Birthday != nil {
		s += "\n🎂 " + *p.Birthday
	}
	return s
}

// PlayersText renders /players.
func PlayersText(players []*model.Player) string {
	if len(players) == 0 {
		return "📋 Список игроков пуст."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🎮 <b>Список игроков (%d):</b>\n\n", len(players))
	for i, p := range players {
		fmt.Fprintf(&b, "%d. 🎮 %s\n   📱 %s\n   👤 %s\n", i+1,
			html.EscapeString(p.GameNick), html.EscapeString(p.Telegram), html.EscapeString(p.Name))
		if p.Birthday != nil {
			fmt.Fprintf(&b, "   🎂 %s\n", *p.Birthday)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// PlayerCardText renders /player.
func PlayerCardText(p *model.Player) string {
	s := fmt.Sprintf("🎮 <b>%s</b>\n📱 Telegram: %s\n👤 Имя: %s",
		html.EscapeString(p.GameNick), html.EscapeString(p.Telegram), html.EscapeString(p.Name))
	if p.Birthday != nil {
		s += "\n🎂 День рождения: " + *p.Birthday
	}
	return s
}

// BirthdaysText renders /birthdays from entries already in calendar order.
func BirthdaysText(entries []service.BirthdayEntry) string {
	if len(entries) == 0 {
		return "🎂 Нет записей о днях рождения."
	}
	var b strings.Builder
	b.WriteString("🎂 <b>Дни рождения:</b>\n\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "%s - %s (%s)\n", e.Birthday.Human(), html.EscapeString(e.Player.Name), html.EscapeString(e.Player.GameNick))
	}
	return strings.TrimRight(b.String(), "\n")
}
