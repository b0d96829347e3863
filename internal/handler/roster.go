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

// RosterHandler handles the per-chat derby participant list.
type RosterHandler struct {
	roster  *service.RosterService
	timeout time.Duration
}

// NewRosterHandler creates a new RosterHandler.
func NewRosterHandler(roster *service.RosterService, timeout time.Duration) *RosterHandler {
	return &RosterHandler{roster: roster, timeout: timeout}
}

// HandleJoin handles the /join command.
func (h *RosterHandler) HandleJoin(c tele.Context) error {
	chat, sender := c.Chat(), c.Sender()
	if chat == nil || sender == nil {
		return nil
	}
	ctx, cancel := requestContext(h.timeout)
	defer cancel()

	count, err := h.roster.Join(ctx, model.Participant{
		ChatID:      chat.ID,
		UserID:      sender.ID,
		Username:    sender.Username,
		DisplayName: displayName(sender),
	})
	if err != nil {
		return replyError(c, err, "join")
	}
	return c.Send(fmt.Sprintf("✅ %s присоединился к скачкам!\n\nУчастников: %d", html.EscapeString(shortName(sender)), count), tele.ModeHTML)
}

// HandleLeave handles the /leave command.
func (h *RosterHandler) HandleLeave(c tele.Context) error {
	chat, sender := c.Chat(), c.Sender()
	if chat == nil || sender == nil {
		return nil
	}
	ctx, cancel := requestContext(h.timeout)
	defer cancel()

	count, err := h.roster.Leave(ctx, chat.ID, sender.ID)
	if err != nil {
		return replyError(c, err, "leave")
	}
	return c.Send(fmt.Sprintf("👋 %s покинул скачки.\n\nОсталось участников: %d", html.EscapeString(shortName(sender)), count), tele.ModeHTML)
}

// HandleParticipants lists the roster in join order.
func (h *RosterHandler) HandleParticipants(c tele.Context) error {
	chat := c.Chat()
	if chat == nil {
		return nil
	}
	ctx, cancel := requestContext(h.timeout)
	defer cancel()

	list, err := h.roster.List(ctx, chat.ID)
	if err != nil {
		return replyError(c, err, "participants")
	}
	return c.Send(ParticipantsText(list), tele.ModeHTML)
}

// HandleClearParticipants empties the roster.
func (h *RosterHandler) HandleClearParticipants(c tele.Context) error {
	chat := c.Chat()
	if chat == nil {
		return nil
	}
	ctx, cancel := requestContext(h.timeout)
	defer cancel()

	if err := h.roster.Clear(ctx, chat.ID); err != nil {
		return replyError(c, err, "clearparticipants")
	}
	return c.Send("✅ Список участников очищен.")
}

// HandlePing mentions every participant.
func (h *RosterHandler) HandlePing(c tele.Context) error {
	chat := c.Chat()
	if chat == nil {
		return nil
	}
	ctx, cancel := requestContext(h.timeout)
	defer cancel()

	mentions, err := h.roster.Ping(ctx, chat.ID)
	if err != nil {
		return replyError(c, err, "ping")
	}
	return c.Send(mentions+"\n\n📢 <b>Внимание участникам скачек!</b>", tele.ModeHTML)
}

// ParticipantsText renders /participants.
func ParticipantsText(list []model.Participant) string {
	if len(list) == 0 {
		return "📋 Список участников пуст.\n\nИспользуйте /join чтобы присоединиться!"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📋 <b>Участники скачек (%d):</b>\n\n", len(list))
	for i, p := range list {
		name := p.DisplayName
		if p.Username != "" {
			name = "@" + p.Username
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, html.EscapeString(name))
	}
	return strings.TrimRight(b.String(), "\n")
}
