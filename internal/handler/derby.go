package handler

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"derby-bot/internal/pkg/tz"
	"derby-bot/internal/schedule"
	"derby-bot/internal/service"
)

// HelpText is the /start and /help reply.
const HelpText = `🐰 <b>Hay Day Derby Bot</b>

Добро пожаловать! Я буду уведомлять вас о:
• Появлении кролика
• Сбросах лимитов заданий

<b>Основные команды:</b>
/status - Текущий статус
/rabbit - Время следующего кролика
/resets - Расписание сбросов

<b>Участники скачек:</b>
/join - Присоединиться к скачкам
/leave - Покинуть скачки
/participants - Список участников
/ping - Пингануть всех участников

<b>Игроки:</b>
/players - Список всех игроков
/player [ник] - Найти игрока
/addplayer - Добавить игрока
/removeplayer [ник] - Удалить игрока
/birthdays - Дни рождения
/setbirthday - Установить день рождения

<b>Игры:</b>
/duel [@ник] - Вызвать на дуэль
/coin [@ник] - Бросить монетку
/word - Угадай слово
/stats - Моя статистика
/top - Лучшие по очкам

<b>Настройки:</b>
/setderby - Установить время старта дерби
/subscribe - Подписаться на уведомления
/unsubscribe - Отписаться`

// SetDerbyUsage is the /setderby reply without arguments.
const SetDerbyUsage = `⚙️ <b>Установка времени старта дерби</b>

Формат: /setderby ДД.ММ.ГГГГ ЧЧ:ММ

Пример: /setderby 10.02.2026 10:00

Время указывайте по Киеву!`

// DerbyHandler handles subscriptions, the derby countdown and the rabbit timetable.
type DerbyHandler struct {
	derby         *service.DerbyService
	subscriptions *service.SubscriptionService
	notifier      *service.Notifier
	loc           *time.Location
	clock         clockwork.Clock
	timeout       time.Duration
}

// NewDerbyHandler creates a new DerbyHandler.
func NewDerbyHandler(derby *service.DerbyService, subscriptions *service.SubscriptionService, notifier *service.Notifier, loc *time.Location, clock clockwork.Clock, timeout time.Duration) *DerbyHandler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &DerbyHandler{
		derby:         derby,
		subscriptions: subscriptions,
		notifier:      notifier,
		loc:           loc,
		clock:         clock,
		timeout:       timeout,
	}
}

// HandleStart subscribes the chat and shows the command list.
func (h *DerbyHandler) HandleStart(c tele.Context) error {
	chat := c.Chat()
	if chat == nil {
		return nil
	}
	ctx, cancel := requestContext(h.timeout)
	defer cancel()

	if err := h.subscriptions.Subscribe(ctx, chat.ID); err != nil {
		log.Error().Err(err).Int64("chat_id", chat.ID).Msg("Failed to subscribe on /start")
	}
	return c.Send(HelpText, tele.ModeHTML)
}

// HandleHelp shows the command list.
func (h *DerbyHandler) HandleHelp(c tele.Context) error {
	return c.Send(HelpText, tele.ModeHTML)
}

// HandleSubscribe handles the /subscribe command.
func (h *DerbyHandler) HandleSubscribe(c tele.Context) error {
	chat := c.Chat()
	if chat == nil {
		return nil
	}
	ctx, cancel := requestContext(h.timeout)
	defer cancel()

	if err := h.subscriptions.Subscribe(ctx, chat.ID); err != nil {
		return replyError(c, err, "subscribe")
	}
	return c.Send("✅ Вы подписаны на уведомления!")
}

// HandleUnsubscribe handles the /unsubscribe command.
func (h *DerbyHandler) HandleUnsubscribe(c tele.Context) error {
	chat := c.Chat()
	if chat == nil {
		return nil
	}
	ctx, cancel := requestContext(h.timeout)
	defer cancel()

	if err := h.subscriptions.Unsubscribe(ctx, chat.ID); err != nil {
		return replyError(c, err, "unsubscribe")
	}
	return c.Send("❌ Вы отписаны от уведомлений.")
}

// HandleStatus shows the next rabbit and the nearest derby resets.
func (h *DerbyHandler) HandleStatus(c tele.Context) error {
	next, at, ok := h.notifier.NextRabbit(h.clock.Now())
	upcoming, err := h.derby.Upcoming(3)
	if err != nil && !errors.Is(err, service.ErrNoDerby) {
		return replyError(c, err, "status")
	}
	return c.Send(StatusText(next, at, ok, h.derby.Anchor(), upcoming, h.loc), tele.ModeHTML)
}

// HandleRabbit shows the weekly rabbit timetable.
func (h *DerbyHandler) HandleRabbit(c tele.Context) error {
	next, _, ok := h.notifier.NextRabbit(h.clock.Now())
	return c.Send(RabbitScheduleText(h.notifier.Rabbits(), next, ok), tele.ModeHTML)
}

// HandleResets lists every reset of the current derby.
func (h *DerbyHandler) HandleResets(c tele.Context) error {
	text, err := h.derby.ScheduleText()
	if err != nil {
		return replyError(c, err, "resets")
	}
	return c.Send(text, tele.ModeHTML)
}

// HandleSetDerby handles /setderby DD.MM.YYYY HH:MM, local time.
func (h *DerbyHandler) HandleSetDerby(c tele.Context) error {
	input := payload(c)
	if input == "" {
		return c.Send(SetDerbyUsage, tele.ModeHTML)
	}
	ctx, cancel := requestContext(h.timeout)
	defer cancel()

	at, err := h.derby.SetFromInput(ctx, input)
	if err != nil {
		return replyError(c, err, "setderby")
	}

	if sender := c.Sender(); sender != nil {
		log.Info().Int64("user_id", sender.ID).Time("anchor", at).Msg("Derby start changed")
	}
	return c.Send(fmt.Sprintf("✅ <b>Дерби установлено!</b>\n\nСтарт: %s (Киев)\n\nЯ буду уведомлять о всех сбросах заданий.",
		tz.Format(at, h.loc)), tele.ModeHTML)
}

// HandleClearDerby forgets the derby start and cancels its reset notifications.
func (h *DerbyHandler) HandleClearDerby(c tele.Context) error {
	ctx, cancel := requestContext(h.timeout)
	defer cancel()

	if err := h.derby.Clear(ctx); err != nil {
		return replyError(c, err, "clearderby")
	}
	return c.Send("✅ Дерби сброшено.")
}

// StatusText renders /status.
func StatusText(rabbit tz.Weekly, rabbitAt time.Time, hasRabbit bool, anchor *time.Time, upcoming []schedule.ResetEvent, loc *time.Location) string {
	var b strings.Builder
	b.WriteString("📊 <b>Статус</b>\n\n")
	if hasRabbit {
		fmt.Fprintf(&b, "🐰 Следующий кролик: %s %s (Киев), %s\n\n", rabbit.Label, rabbit.Clock(), tz.Format(rabbitAt, loc))
	} else {
		b.WriteString("🐰 Расписание кроликов пусто\n\n")
	}

	if anchor == nil {
		b.WriteString("🏇 Дерби не установлено. Используйте /setderby")
		return b.String()
	}
	fmt.Fprintf(&b, "🏇 Дерби стартовало: %s\n", tz.Format(*anchor, loc))
	if len(upcoming) > 0 {
		b.WriteString("\nБлижайшие сбросы:\n")
		for _, ev := range upcoming {
			fmt.Fprintf(&b, "• Сброс #%d (%d заданий): %s\n", ev.Number(), ev.Tasks, tz.Format(ev.At, loc))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// RabbitScheduleText renders /rabbit.
func RabbitScheduleText(rabbits []tz.Weekly, next tz.Weekly, hasNext bool) string {
	var b strings.Builder
	b.WriteString("🐰 <b>Расписание кроликов (по Киеву)</b>\n\n")
	for _, w := range rabbits {
		fmt.Fprintf(&b, "• %s - %s\n", w.Label, w.Clock())
	}
	if hasNext {
		fmt.Fprintf(&b, "\nСледующий: <b>%s %s</b>", next.Label, next.Clock())
	}
	return strings.TrimRight(b.String(), "\n")
}
