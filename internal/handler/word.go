package handler

import (
	"context"
	"errors"
	"fmt"
	"html"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"derby-bot/internal/game"
	"derby-bot/internal/game/word"
)

// CategoryLister lists the word bank categories.
type CategoryLister interface {
	Categories(ctx context.Context) ([]string, error)
}

// WordHandler handles the word game commands and its inline keyboard.
type WordHandler struct {
	words      *word.Manager
	categories CategoryLister
	timeout    time.Duration
}

// NewWordHandler creates a new WordHandler.
func NewWordHandler(words *word.Manager, categories CategoryLister, timeout time.Duration) *WordHandler {
	return &WordHandler{words: words, categories: categories, timeout: timeout}
}

// HandleWord offers the category picker.
func (h *WordHandler) HandleWord(c tele.Context) error {
	if c.Sender() == nil || !groupOnly(c) {
		return nil
	}
	if _, active := h.words.Active(c.Chat().ID); active {
		return replyError(c, word.ErrBusy, "word")
	}

	ctx, cancel := requestContext(h.timeout)
	defer cancel()

	categories, err := h.categories.Categories(ctx)
	if err != nil {
		return replyError(c, err, "word")
	}
	if len(categories) == 0 {
		return replyError(c, word.ErrNoWords, "word")
	}
	return c.Reply("🎯 <b>Угадай слово</b>\n\nВыберите категорию:", tele.ModeHTML, word.BuildCategoryPanel(categories))
}

// HandleHint handles /hint from the host. Without a round it stays silent.
func (h *WordHandler) HandleHint(c tele.Context) error {
	sender := c.Sender()
	if sender == nil || !groupOnly(c) {
		return nil
	}
	r, err := h.words.Hint(c.Chat().ID, playerOf(sender))
	if errors.Is(err, word.ErrNoRound) {
		return nil
	}
	if err != nil {
		return replyError(c, err, "hint")
	}
	return replyHTML(c, word.HintText(r))
}

// HandleSkip handles /skip from the host. Without a round it stays silent.
func (h *WordHandler) HandleSkip(c tele.Context) error {
	sender := c.Sender()
	if sender == nil || !groupOnly(c) {
		return nil
	}
	r, err := h.words.Skip(c.Chat().ID, playerOf(sender))
	if errors.Is(err, word.ErrNoRound) {
		return nil
	}
	if err != nil {
		return replyError(c, err, "skip")
	}
	return replyHTML(c, word.SkipText(r))
}

// HandleCallback handles the word_* inline buttons.
func (h *WordHandler) HandleCallback(c tele.Context) error {
	cb, sender, chat := c.Callback(), c.Sender(), c.Chat()
	if cb == nil || sender == nil || chat == nil {
		return nil
	}
	p := playerOf(sender)

	action, param := word.DecodeCallback(cb.Data)
	log.Debug().Str("action", action).Str("param", param).Int64("chat_id", chat.ID).Msg("Word callback")

	switch action {
	case word.ActionCategory:
		category := param
		if category == word.AnyCategory {
			category = ""
		}
		label := "любая"
		if category != "" {
			label = html.EscapeString(category)
		}
		_ = c.Respond()
		return c.Edit(fmt.Sprintf("🎯 <b>Угадай слово</b>\n\nКатегория: %s\nВыберите сложность:", label),
			tele.ModeHTML, word.BuildDifficultyPanel(category))

	case word.ActionDifficulty:
		f, ok := word.DecodeFilter(param)
		if !ok {
			return c.Respond(&tele.CallbackResponse{Text: "Кнопка устарела"})
		}
		return h.start(c, chat.ID, p, f)

	case word.ActionHint:
		r, err := h.words.Hint(chat.ID, p)
		if err != nil {
			return respondError(c, err, "hint")
		}
		_ = c.Respond()
		return c.Send(word.HintText(r), tele.ModeHTML)

	case word.ActionSkip:
		r, err := h.words.Skip(chat.ID, p)
		if err != nil {
			return respondError(c, err, "skip")
		}
		_ = c.Respond()
		if err := c.Edit(word.SkipText(r), tele.ModeHTML); err != nil {
			return c.Send(word.SkipText(r), tele.ModeHTML)
		}
		return nil
	}
	return c.Respond()
}

// start opens a round hosted by whoever pressed the difficulty button.
func (h *WordHandler) start(c tele.Context, chatID int64, host game.Player, f word.Filter) error {
	ctx, cancel := requestContext(h.timeout)
	defer cancel()

	r, err := h.words.Start(ctx, chatID, host, f)
	if errors.Is(err, word.ErrDeliveryFailed) {
		// Replace the picker with the failure, visible to the whole chat.
		_ = c.Respond(&tele.CallbackResponse{Text: UserMessage(err), ShowAlert: true})
		return c.Edit(host.Mention()+"\n"+UserMessage(err), tele.ModeHTML)
	}
	if err != nil {
		return respondError(c, err, "word start")
	}
	_ = c.Respond(&tele.CallbackResponse{Text: "Слово отправлено вам в личку"})
	return c.Edit(h.words.StartText(r), tele.ModeHTML, word.BuildRoundPanel())
}

// respondError shows user errors as a callback alert and logs the rest.
func respondError(c tele.Context, err error, action string) error {
	var ue game.UserError
	if !errors.As(err, &ue) {
		log.Error().Err(err).Str("action", action).Msg("Callback failed")
	}
	return c.Respond(&tele.CallbackResponse{Text: UserMessage(err), ShowAlert: true})
}
