package handler

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"derby-bot/internal/model"
	"derby-bot/internal/service"
)

// TopSize is the number of rows shown by /top.
const TopSize = 10

// StatsHandler handles the per-chat statistics commands.
type StatsHandler struct {
	stats   *service.StatsService
	timeout time.Duration
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(stats *service.StatsService, timeout time.Duration) *StatsHandler {
	return &StatsHandler{stats: stats, timeout: timeout}
}

// HandleStats shows the sender's counters, or those of the replied-to user.
func (h *StatsHandler) HandleStats(c tele.Context) error {
	chat, sender := c.Chat(), c.Sender()
	if chat == nil || sender == nil || !groupOnly(c) {
		return nil
	}
	target := sender
	if msg := c.Message(); msg != nil && msg.ReplyTo != nil && msg.ReplyTo.Sender != nil {
		target = msg.ReplyTo.Sender
	}

	ctx, cancel := requestContext(h.timeout)
	defer cancel()

	st, err := h.stats.Get(ctx, chat.ID, target.ID)
	if err != nil {
		return replyError(c, err, "stats")
	}
	return replyHTML(c, StatsText(playerOf(target).Mention(), st))
}

// HandleTop shows the chat's word-points leaders.
func (h *StatsHandler) HandleTop(c tele.Context) error {
	chat := c.Chat()
	if chat == nil || !groupOnly(c) {
		return nil
	}
	ctx, cancel := requestContext(h.timeout)
	defer cancel()

	rows, err := h.stats.Top(ctx, chat.ID, TopSize)
	if err != nil {
		return replyError(c, err, "top")
	}
	return replyHTML(c, TopText(rows))
}

// HandleResetStats wipes the counters of the replied-to user. Admin only.
func (h *StatsHandler) HandleResetStats(c tele.Context) error {
	chat, sender, msg := c.Chat(), c.Sender(), c.Message()
	if chat == nil || sender == nil || msg == nil {
		return nil
	}
	if msg.ReplyTo == nil || msg.ReplyTo.Sender == nil {
		return c.Reply("❓ Ответьте этой командой на сообщение пользователя, чью статистику нужно сбросить.")
	}
	target := msg.ReplyTo.Sender

	ctx, cancel := requestContext(h.timeout)
	defer cancel()

	existed, err := h.stats.Reset(ctx, chat.ID, target.ID)
	if err != nil {
		return replyError(c, err, "resetstats")
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Int64("target_id", target.ID).
		Int64("chat_id", chat.ID).
		Str("operation", "reset_stats").
		Msg("Admin operation executed")

	if !existed {
		return replyHTML(c, "ℹ️ У "+playerOf(target).Mention()+" ещё нет статистики.")
	}
	return replyHTML(c, "✅ Статистика "+playerOf(target).Mention()+" сброшена.")
}

// StatsText renders /stats.
func StatsText(who string, st *model.ChatStats) string {
	return fmt.Sprintf("📊 <b>Статистика</b> %s\n\n"+
		"💬 Сообщений: %d\n"+
		"🔫 Дуэли: %d побед / %d поражений\n"+
		"🪙 Монетка: %d побед / %d поражений\n"+
		"🎯 Угадай слово: объяснил %d, угадал %d\n"+
		"⭐ Очки: %d",
		who, st.Messages, st.DuelWins, st.DuelLosses, st.CoinWins, st.CoinLosses,
		st.WordExplained, st.WordGuessed, st.WordPoints)
}

// TopText renders /top.
func TopText(rows []service.LeaderRow) string {
	if len(rows) == 0 {
		return "🏆 Пока никто не набрал очков в «Угадай слово»."
	}
	medals := []string{"🥇", "🥈", "🥉"}
	var b strings.Builder
	b.WriteString("🏆 <b>Лучшие в «Угадай слово»</b>\n\n")
	for i, r := range rows {
		rank := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			rank = medals[i]
		}
		name := "@" + r.Username
		if r.Username == "" {
			name = fmt.Sprintf("Игрок %d", r.UserID)
		}
		fmt.Fprintf(&b, "%s %s: %d\n", rank, html.EscapeString(name), r.Points)
	}
	return strings.TrimRight(b.String(), "\n")
}
