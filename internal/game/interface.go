// Package game defines the contracts shared by the chat mini-games and the registry that
// routes free-text messages to them.
package game

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"derby-bot/internal/model"
)

// Player is a chat member taking part in a game.
type Player struct {
	ID       int64
	Username string // without @, empty when the user has none
	Name     string
}

// Mention renders the player for an HTML reply.
func (p Player) Mention() string {
	return model.Mention(p.ID, p.Username, p.Name)
}

// Is reports whether the player's username matches handle, ignoring case and a leading @.
func (p Player) Is(handle string) bool {
	return p.Username != "" && strings.EqualFold(p.Username, NormalizeHandle(handle))
}

// NormalizeHandle strips whitespace and a leading @ from a username argument.
func NormalizeHandle(handle string) string {
	return strings.TrimPrefix(strings.TrimSpace(handle), "@")
}

// Message is an inbound group text addressed to the games.
type Message struct {
	ChatID int64
	From   Player
	Text   string
}

// Reply is an HTML-formatted answer to post back to the chat.
type Reply struct {
	Text   string
	Markup *tele.ReplyMarkup
}

// TextReply builds a plain reply.
func TextReply(text string) *Reply {
	return &Reply{Text: text}
}

// UserError is an input error whose text is safe to show in the chat.
type UserError string

func (e UserError) Error() string { return string(e) }

// Recorder receives the outcome of finished rounds. Implementations log their own failures.
type Recorder interface {
	RecordOutcome(ctx context.Context, chatID int64, p Player, kind model.GameKind, won bool)
	RecordWordRound(ctx context.Context, chatID int64, p Player, role model.WordRole, points int)
}

// Restricter temporarily mutes a chat member.
type Restricter interface {
	Restrict(ctx context.Context, chatID, userID int64, until time.Time) error
}

// Rand is the random source of the games. *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// DefaultRand draws from the process-wide generator.
var DefaultRand Rand = globalRand{}

// TextGame is a game that reacts to plain chat text.
type TextGame interface {
	// Name identifies the game in logs.
	Name() string

	// HandleText reports whether the message was consumed. A consumed message with a nil
	// reply needs no answer.
	HandleText(ctx context.Context, msg Message) (*Reply, bool)
}

// Outcome is a forced result for one user.
type Outcome string

const (
	ForceWin  Outcome = "win"
	ForceLose Outcome = "lose"
)

// Overrides maps lower-cased usernames to a forced outcome.
type Overrides map[string]Outcome

// NewOverrides builds Overrides from the config map.
func NewOverrides(raw map[string]string) Overrides {
	o := make(Overrides, len(raw))
	for user, outcome := range raw {
		o[strings.ToLower(NormalizeHandle(user))] = Outcome(strings.ToLower(outcome))
	}
	return o
}

// For returns the player's forced outcome, if any.
func (o Overrides) For(p Player) (Outcome, bool) {
	if len(o) == 0 || p.Username == "" {
		return "", false
	}
	out, ok := o[strings.ToLower(p.Username)]
	return out, ok
}

// Intent lower-cases text and collapses its whitespace for exact phrase matching.
func Intent(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}
