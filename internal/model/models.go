// Package model defines the data models for the derby bot.
package model

import (
	"fmt"
	"html"
	"time"
)

// Subscriber is a chat that receives scheduled broadcasts.
type Subscriber struct {
	ChatID    int64     `db:"chat_id"`
	CreatedAt time.Time `db:"created_at"`
}

// Participant is a roster entry: a user who opted in to derby pings in a chat.
type Participant struct {
	ChatID      int64     `db:"chat_id"`
	UserID      int64     `db:"user_id"`
	Username    string    `db:"username"` // empty when the user has no public username
	DisplayName string    `db:"display_name"`
	JoinedAt    time.Time `db:"joined_at"`
}

// Player is an entry of the global player directory.
type Player struct {
	ID       int64   `db:"id"`
	GameNick string  `db:"game_nick"`
	Telegram string  `db:"telegram"` // "@handle" or "-"
	Name     string  `db:"name"`
	Birthday *string `db:"birthday"` // DD.MM
}

// Word is a word bank entry for the guessing game.
type Word struct {
	ID         int64  `db:"id"`
	Text       string `db:"text"`
	Category   string `db:"category"`
	Difficulty int    `db:"difficulty"`
}

// ChatStats accumulates a user's activity in one chat.
type ChatStats struct {
	ChatID        int64  `db:"chat_id"`
	UserID        int64  `db:"user_id"`
	Username      string `db:"username"`
	Messages      int64  `db:"messages"`
	DuelWins      int64  `db:"duel_wins"`
	DuelLosses    int64  `db:"duel_losses"`
	CoinWins      int64  `db:"coin_wins"`
	CoinLosses    int64  `db:"coin_losses"`
	WordExplained int64  `db:"word_explained"`
	WordGuessed   int64  `db:"word_guessed"`
	WordPoints    int64  `db:"word_points"`
}

// GameKind identifies a head-to-head game for win/loss accounting.
type GameKind string

const (
	GameDuel GameKind = "duel"
	GameCoin GameKind = "coin"
)

// WordRole is the part a user played in a finished word round.
type WordRole string

const (
	RoleExplained WordRole = "explained" // host whose word was guessed
	RoleGuessed   WordRole = "guessed"   // user who typed the word
)

// Settings keys.
const (
	SettingDerbyStart = "derby_start"
)

// Mention renders an HTML-mode reference to a user: @username when known,
// otherwise a tg://user link labelled with the escaped display name.
func Mention(userID int64, username, name string) string {
	if username != "" {
		return "@" + username
	}
	if name == "" {
		name = "игрок"
	}
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, userID, html.EscapeString(name))
}

// Mention renders the participant for a roster ping.
func (p Participant) Mention() string {
	return Mention(p.UserID, p.Username, p.DisplayName)
}
