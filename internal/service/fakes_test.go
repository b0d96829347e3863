package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"derby-bot/internal/broadcast"
	"derby-bot/internal/model"
	"derby-bot/internal/pkg/cache"
	"derby-bot/internal/repository"
)

var errStorage = errors.New("connection refused")

type sent struct {
	text     string
	mentions bool
}

type fakeBroadcaster struct {
	ch chan sent
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{ch: make(chan sent, 64)}
}

func (b *fakeBroadcaster) Broadcast(_ context.Context, text string, withMentions bool) broadcast.Report {
	b.ch <- sent{text: text, mentions: withMentions}
	return broadcast.Report{Recipients: 1, Delivered: 1}
}

type memSettings struct {
	mu   sync.Mutex
	data map[string]string
	err  error
}

func newMemSettings() *memSettings {
	return &memSettings{data: make(map[string]string)}
}

func (m *memSettings) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.data[key]
	if !ok {
		return "", repository.ErrSettingNotFound
	}
	return v, nil
}

func (m *memSettings) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[key] = value
	return nil
}

func (m *memSettings) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.data, key)
	return nil
}

type memParticipants struct {
	mu   sync.Mutex
	list []model.Participant
	err  error
}

func (m *memParticipants) Add(_ context.Context, p model.Participant) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	for _, e := range m.list {
		if e.ChatID == p.ChatID && e.UserID == p.UserID {
			return false, nil
		}
	}
	m.list = append(m.list, p)
	return true, nil
}

func (m *memParticipants) Remove(_ context.Context, chatID, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.list {
		if e.ChatID == chatID && e.UserID == userID {
			m.list = append(m.list[:i], m.list[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memParticipants) List(_ context.Context, chatID int64) ([]model.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Participant
	for _, e := range m.list {
		if e.ChatID == chatID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memParticipants) Clear(_ context.Context, chatID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []model.Participant
	for _, e := range m.list {
		if e.ChatID != chatID {
			kept = append(kept, e)
		}
	}
	n := int64(len(m.list) - len(kept))
	m.list = kept
	return n, nil
}

type memPlayers struct {
	mu      sync.Mutex
	players []*model.Player
	nextID  int64
}

func (m *memPlayers) Add(_ context.Context, p model.Player) (*model.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.players {
		if strings.EqualFold(e.GameNick, p.GameNick) {
			return nil, repository.ErrPlayerExists
		}
	}
	m.nextID++
	p.ID = m.nextID
	m.players = append(m.players, &p)
	return &p, nil
}

func (m *memPlayers) List(_ context.Context) ([]*model.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]*model.Player(nil), m.players...)
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].GameNick) < strings.ToLower(out[j].GameNick) })
	return out, nil
}

func (m *memPlayers) Find(ctx context.Context, needle string) ([]*model.Player, error) {
	all, _ := m.List(ctx)
	needle = strings.ToLower(needle)
	var out []*model.Player
	for _, p := range all {
		if strings.Contains(strings.ToLower(p.GameNick), needle) ||
			strings.Contains(strings.ToLower(p.Telegram), needle) ||
			strings.Contains(strings.ToLower(p.Name), needle) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memPlayers) Remove(_ context.Context, key string) (*model.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.players {
		if strings.EqualFold(p.GameNick, key) || (p.Telegram != NoHandle && strings.EqualFold(p.Telegram, key)) {
			m.players = append(m.players[:i], m.players[i+1:]...)
			return p, nil
		}
	}
	return nil, repository.ErrPlayerNotFound
}

func (m *memPlayers) SetBirthday(_ context.Context, nick string, birthday *string) (*model.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.players {
		if strings.EqualFold(p.GameNick, nick) {
			p.Birthday = birthday
			return p, nil
		}
	}
	return nil, repository.ErrPlayerNotFound
}

func (m *memPlayers) WithBirthdays(_ context.Context) ([]*model.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Player
	for _, p := range m.players {
		if p.Birthday != nil {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memPlayers) BornOn(_ context.Context, day string) ([]*model.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Player
	for _, p := range m.players {
		if p.Birthday != nil && *p.Birthday == day {
			out = append(out, p)
		}
	}
	return out, nil
}

type statsKey struct{ chat, user int64 }

type memStats struct {
	mu    sync.Mutex
	rows  map[statsKey]*model.ChatStats
	err   error
	calls int
}

func newMemStats() *memStats {
	return &memStats{rows: make(map[statsKey]*model.ChatStats)}
}

func (m *memStats) row(chatID, userID int64, username string) *model.ChatStats {
	k := statsKey{chatID, userID}
	r, ok := m.rows[k]
	if !ok {
		r = &model.ChatStats{ChatID: chatID, UserID: userID}
		m.rows[k] = r
	}
	if username != "" {
		r.Username = username
	}
	return r
}

func (m *memStats) IncrementMessages(_ context.Context, chatID, userID int64, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.row(chatID, userID, username).Messages++
	return nil
}

func (m *memStats) RecordOutcome(_ context.Context, chatID, userID int64, username string, kind model.GameKind, won bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	r := m.row(chatID, userID, username)
	switch {
	case kind == model.GameDuel && won:
		r.DuelWins++
	case kind == model.GameDuel:
		r.DuelLosses++
	case kind == model.GameCoin && won:
		r.CoinWins++
	case kind == model.GameCoin:
		r.CoinLosses++
	default:
		return repository.ErrUnknownGame
	}
	return nil
}

func (m *memStats) RecordWordRound(_ context.Context, chatID, userID int64, username string, role model.WordRole, points int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	r := m.row(chatID, userID, username)
	if role == model.RoleExplained {
		r.WordExplained++
	} else {
		r.WordGuessed++
	}
	r.WordPoints += int64(points)
	return nil
}

func (m *memStats) Get(_ context.Context, chatID, userID int64) (*model.ChatStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	r, ok := m.rows[statsKey{chatID, userID}]
	if !ok {
		return nil, repository.ErrStatsNotFound
	}
	c := *r
	return &c, nil
}

func (m *memStats) TopByWordPoints(_ context.Context, chatID int64, limit int) ([]*model.ChatStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []*model.ChatStats
	for k, r := range m.rows {
		if k.chat == chatID && r.WordPoints > 0 {
			c := *r
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].WordPoints != out[j].WordPoints {
			return out[i].WordPoints > out[j].WordPoints
		}
		return out[i].UserID < out[j].UserID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStats) Reset(_ context.Context, chatID, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := statsKey{chatID, userID}
	_, ok := m.rows[k]
	delete(m.rows, k)
	return ok, nil
}

func (m *memStats) ChatsWithPoints(_ context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[int64]bool{}
	var out []int64
	for k, r := range m.rows {
		if r.WordPoints > 0 && !seen[k.chat] {
			seen[k.chat] = true
			out = append(out, k.chat)
		}
	}
	return out, nil
}

type memLeaderboard struct {
	mu     sync.Mutex
	scores map[int64]map[int64]int64
	err    error
}

func newMemLeaderboard() *memLeaderboard {
	return &memLeaderboard{scores: make(map[int64]map[int64]int64)}
}

func (l *memLeaderboard) AddWordPoints(_ context.Context, chatID, userID int64, points int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	if l.scores[chatID] == nil {
		l.scores[chatID] = make(map[int64]int64)
	}
	l.scores[chatID][userID] += int64(points)
	return nil
}

func (l *memLeaderboard) TopWordPoints(_ context.Context, chatID int64, limit int) ([]cache.Score, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	var out []cache.Score
	for id, pts := range l.scores[chatID] {
		out = append(out, cache.Score{UserID: id, Points: pts})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Points > out[j].Points })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *memLeaderboard) LoadWordPoints(_ context.Context, chatID int64, scores []cache.Score) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.scores[chatID] = make(map[int64]int64)
	for _, s := range scores {
		l.scores[chatID][s.UserID] = s.Points
	}
	return nil
}

func (l *memLeaderboard) RemoveUser(_ context.Context, chatID, userID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.scores[chatID], userID)
	return nil
}
