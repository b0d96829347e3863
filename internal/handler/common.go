// Package handler provides Telegram bot command handlers.
package handler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"derby-bot/internal/game"
	"derby-bot/internal/pkg/db"
)

// MsgInternalError is the reply to any failure that is not the user's fault.
const MsgInternalError = "❌ Что-то пошло не так, попробуйте позже."

// defaultTimeout bounds a handler's storage calls when no other limit is configured.
const defaultTimeout = 5 * time.Second

func requestContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return db.WithTimeout(context.Background(), timeout)
}

// playerOf converts a Telegram user into a game participant.
func playerOf(u *tele.User) game.Player {
	return game.Player{ID: u.ID, Username: u.Username, Name: displayName(u)}
}

// displayName joins a user's first and last name.
func displayName(u *tele.User) string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// shortName is @username when present, the first name otherwise.
func shortName(u *tele.User) string {
	if u.Username != "" {
		return "@" + u.Username
	}
	return u.FirstName
}

// payload returns the command argument text.
func payload(c tele.Context) string {
	if msg := c.Message(); msg != nil {
		return strings.TrimSpace(msg.Payload)
	}
	return ""
}

// UserMessage renders err for the chat: user errors verbatim, anything else as a generic
// failure.
func UserMessage(err error) string {
	var ue game.UserError
	if errors.As(err, &ue) {
		return "❌ " + ue.Error()
	}
	return MsgInternalError
}

// replyError answers with UserMessage and logs unexpected failures.
func replyError(c tele.Context, err error, action string) error {
	var ue game.UserError
	if !errors.As(err, &ue) {
		ev := log.Error().Err(err).Str("action", action)
		if chat := c.Chat(); chat != nil {
			ev = ev.Int64("chat_id", chat.ID)
		}
		if sender := c.Sender(); sender != nil {
			ev = ev.Int64("user_id", sender.ID)
		}
		ev.Msg("Command failed")
	}
	return c.Reply(UserMessage(err), tele.ModeHTML)
}

func replyHTML(c tele.Context, text string, opts ...interface{}) error {
	return c.Reply(text, append([]interface{}{tele.ModeHTML, tele.NoPreview}, opts...)...)
}
