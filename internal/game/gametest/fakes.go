// Package gametest provides in-memory collaborators for game tests.
package gametest

import (
	"context"
	"sync"
	"time"

	"derby-bot/internal/game"
	"derby-bot/internal/model"
)

// Outcome is one recorded win or loss.
type Outcome struct {
	ChatID int64
	UserID int64
	Kind   model.GameKind
	Won    bool
}

// WordRound is one recorded word-game award.
type WordRound struct {
	ChatID int64
	UserID int64
	Role   model.WordRole
	Points int
}

// Recorder collects everything the games report.
type Recorder struct {
	mu       sync.Mutex
	outcomes []Outcome
	rounds   []WordRound
}

func (r *Recorder) RecordOutcome(_ context.Context, chatID int64, p game.Player, kind model.GameKind, won bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, Outcome{ChatID: chatID, UserID: p.ID, Kind: kind, Won: won})
}

func (r *Recorder) RecordWordRound(_ context.Context, chatID int64, p game.Player, role model.WordRole, points int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rounds = append(r.rounds, WordRound{ChatID: chatID, UserID: p.ID, Role: role, Points: points})
}

// Outcomes returns a copy of the recorded outcomes.
func (r *Recorder) Outcomes() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Outcome(nil), r.outcomes...)
}

// WordRounds returns a copy of the recorded word awards.
func (r *Recorder) WordRounds() []WordRound {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]WordRound(nil), r.rounds...)
}

// Mute is one Restrict call.
type Mute struct {
	ChatID int64
	UserID int64
	Until  time.Time
}

// Restricter records mutes and optionally fails them.
type Restricter struct {
	Err error

	mu    sync.Mutex
	mutes []Mute
}

func (r *Restricter) Restrict(_ context.Context, chatID, userID int64, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mutes = append(r.mutes, Mute{ChatID: chatID, UserID: userID, Until: until})
	return r.Err
}

// Mutes returns a copy of the recorded mutes.
func (r *Restricter) Mutes() []Mute {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Mute(nil), r.mutes...)
}

// FixedRand always returns Value, clamped to n-1.
type FixedRand struct {
	Value int
}

func (f FixedRand) IntN(n int) int {
	if f.Value >= n {
		return n - 1
	}
	return f.Value
}
