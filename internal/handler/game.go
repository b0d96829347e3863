package handler

import (
	"time"

	tele "gopkg.in/telebot.v3"

	"derby-bot/internal/game"
	"derby-bot/internal/game/coin"
	"derby-bot/internal/game/duel"
	"derby-bot/internal/service"
)

// GameHandler handles the duel and coin commands and routes free text to the games.
type GameHandler struct {
	duels    *duel.Manager
	coins    *coin.Manager
	registry *game.Registry
	stats    *service.StatsService
	timeout  time.Duration
}

// NewGameHandler creates a new GameHandler.
func NewGameHandler(duels *duel.Manager, coins *coin.Manager, registry *game.Registry, stats *service.StatsService, timeout time.Duration) *GameHandler {
	return &GameHandler{
		duels:    duels,
		coins:    coins,
		registry: registry,
		stats:    stats,
		timeout:  timeout,
	}
}

func groupOnly(c tele.Context) bool {
	chat := c.Chat()
	return chat != nil && chat.Type != tele.ChatPrivate
}

// HandleDuel handles /duel [@user].
func (h *GameHandler) HandleDuel(c tele.Context) error {
	sender := c.Sender()
	if sender == nil || !groupOnly(c) {
		return nil
	}

	ch, err := h.duels.Open(c.Chat().ID, playerOf(sender), payload(c))
	if err != nil {
		return replyError(c, err, "duel")
	}
	return replyHTML(c, duel.FormatChallenge(ch))
}

// HandleAccept handles /accept. Without an open challenge it stays silent.
func (h *GameHandler) HandleAccept(c tele.Context) error {
	sender := c.Sender()
	if sender == nil || !groupOnly(c) {
		return nil
	}

	s, err := h.duels.Accept(c.Chat().ID, playerOf(sender))
	if err != nil {
		return replyError(c, err, "accept")
	}
	if s == nil {
		return nil
	}
	return replyHTML(c, duel.FormatStart(s))
}

// HandleDecline handles /decline.
func (h *GameHandler) HandleDecline(c tele.Context) error {
	sender := c.Sender()
	if sender == nil || !groupOnly(c) {
		return nil
	}

	ch, err := h.duels.Decline(c.Chat().ID, playerOf(sender))
	if err != nil {
		return replyError(c, err, "decline")
	}
	if ch == nil {
		return nil
	}
	return replyHTML(c, "🙅 "+playerOf(sender).Mention()+" отказывается от дуэли.")
}

// HandleCancel withdraws the caller's duel or coin challenge, or forfeits a running duel.
// With nothing to cancel it stays silent.
func (h *GameHandler) HandleCancel(c tele.Context) error {
	sender := c.Sender()
	if sender == nil || !groupOnly(c) {
		return nil
	}
	chatID := c.Chat().ID
	p := playerOf(sender)

	ctx, cancel := requestContext(h.timeout)
	defer cancel()

	res, duelErr := h.duels.Cancel(ctx, chatID, p)
	if duelErr == nil && res != nil {
		return replyHTML(c, res.Text())
	}

	ch, coinErr := h.coins.Cancel(chatID, p)
	if coinErr == nil && ch != nil {
		return replyHTML(c, "🪙 Монетка "+ch.Challenger.Mention()+" отменена.")
	}

	switch {
	case duelErr != nil:
		return replyError(c, duelErr, "cancel")
	case coinErr != nil:
		return replyError(c, coinErr, "cancel")
	}
	return nil
}

// HandleCoin handles /coin [@user].
func (h *GameHandler) HandleCoin(c tele.Context) error {
	sender := c.Sender()
	if sender == nil || !groupOnly(c) {
		return nil
	}

	ch, err := h.coins.Open(c.Chat().ID, playerOf(sender), payload(c))
	if err != nil {
		return replyError(c, err, "coin")
	}
	return replyHTML(c, coin.FormatChallenge(ch))
}

// HandleText counts the message and offers it to the text games.
func (h *GameHandler) HandleText(c tele.Context) error {
	chat, sender, msg := c.Chat(), c.Sender(), c.Message()
	if chat == nil || sender == nil || msg == nil || sender.IsBot {
		return nil
	}
	if chat.Type == tele.ChatPrivate {
		return nil
	}

	ctx, cancel := requestContext(h.timeout)
	defer cancel()

	h.stats.RecordMessage(ctx, chat.ID, sender.ID, sender.Username)

	reply, ok := h.registry.Dispatch(ctx, game.Message{ChatID: chat.ID, From: playerOf(sender), Text: msg.Text})
	if !ok || reply == nil {
		return nil
	}
	if reply.Markup != nil {
		return replyHTML(c, reply.Text, reply.Markup)
	}
	return replyHTML(c, reply.Text)
}
