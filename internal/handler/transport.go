package handler

import (
	"context"
	"fmt"
	"time"

	tele "gopkg.in/telebot.v3"
)

// Transport adapts the telebot client to the outbound contracts used by the broadcast
// gateway and the games.
type Transport struct {
	bot *tele.Bot
}

// NewTransport creates a Transport over b.
func NewTransport(b *tele.Bot) *Transport {
	return &Transport{bot: b}
}

// Send posts an HTML message to a chat.
func (t *Transport) Send(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.bot.Send(&tele.Chat{ID: chatID}, text, tele.ModeHTML, tele.NoPreview); err != nil {
		return fmt.Errorf("failed to send to chat %d: %w", chatID, err)
	}
	return nil
}

// Announce posts an unsolicited game message to a chat.
func (t *Transport) Announce(ctx context.Context, chatID int64, text string) error {
	return t.Send(ctx, chatID, text)
}

// SendPrivate delivers a message to a user's private chat. Telegram refuses it until the
// user has opened the bot.
func (t *Transport) SendPrivate(ctx context.Context, userID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.bot.Send(&tele.User{ID: userID}, text, tele.ModeHTML); err != nil {
		return fmt.Errorf("failed to send to user %d: %w", userID, err)
	}
	return nil
}

// Restrict takes away a member's right to post until the given instant.
func (t *Transport) Restrict(ctx context.Context, chatID, userID int64, until time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	member := &tele.ChatMember{
		User:            &tele.User{ID: userID},
		Rights:          tele.Rights{CanSendMessages: false},
		RestrictedUntil: until.Unix(),
	}
	if err := t.bot.Restrict(&tele.Chat{ID: chatID}, member); err != nil {
		return fmt.Errorf("failed to restrict user %d in chat %d: %w", userID, chatID, err)
	}
	return nil
}
