// Package broadcast fans a message out to every subscribed chat.
package broadcast

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"derby-bot/internal/model"
)

// SubscriberLister lists the chats that receive broadcasts.
type SubscriberLister interface {
	ListChatIDs(ctx context.Context) ([]int64, error)
}

// RosterLister lists a chat's participants in join order.
type RosterLister interface {
	List(ctx context.Context, chatID int64) ([]model.Participant, error)
}

// Sender delivers an HTML message to a chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Report summarises one broadcast.
type Report struct {
	Recipients int
	Delivered  int
	Failed     int
}

// Gateway is a best-effort fan-out: each recipient is tried once and failures are ignored.
type Gateway struct {
	subscribers SubscriberLister
	roster      RosterLister
	sender      Sender
}

// NewGateway creates a broadcast gateway.
func NewGateway(subscribers SubscriberLister, roster RosterLister, sender Sender) *Gateway {
	return &Gateway{subscribers: subscribers, roster: roster, sender: sender}
}

// Broadcast sends text to every subscriber. With mentions, each chat's roster is
// prepended so its participants get pinged.
func (g *Gateway) Broadcast(ctx context.Context, text string, withMentions bool) Report {
	chats, err := g.subscribers.ListChatIDs(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load subscribers for broadcast")
		return Report{}
	}

	report := Report{Recipients: len(chats)}
	for _, chatID := range chats {
		msg := text
		if withMentions {
			if mentions := g.Mentions(ctx, chatID); mentions != "" {
				msg = mentions + "\n\n" + text
			}
		}

		if err := g.sender.Send(ctx, chatID, msg); err != nil {
			report.Failed++
			log.Debug().Err(err).Int64("chat_id", chatID).Msg("Broadcast delivery failed")
			continue
		}
		report.Delivered++
	}

	log.Info().
		Int("recipients", report.Recipients).
		Int("delivered", report.Delivered).
		Int("failed", report.Failed).
		Msg("Broadcast finished")

	return report
}

// Mentions renders the chat's roster as a space-separated ping line.
// An empty roster or a lookup failure yields an empty string.
func (g *Gateway) Mentions(ctx context.Context, chatID int64) string {
	participants, err := g.roster.List(ctx, chatID)
	if err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to load roster for mentions")
		return ""
	}
	return FormatMentions(participants)
}

// FormatMentions renders participants for an HTML message.
func FormatMentions(participants []model.Participant) string {
	parts := make([]string, 0, len(participants))
	for _, p := range participants {
		parts = append(parts, p.Mention())
	}
	return strings.Join(parts, " ")
}
