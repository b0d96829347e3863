// Package phrase answers ordinary chat chatter with canned one-liners.
package phrase

import (
	"context"
	"strings"

	"derby-bot/internal/game"
)

// Rule maps trigger stems to a pool of replies. A single-word stem matches any word that
// starts with it; a multi-word stem must appear verbatim.
type Rule struct {
	Name    string
	Stems   []string
	Replies []string
}

// DefaultRules is the built-in repertoire, checked in order.
var DefaultRules = []Rule{
	{
		Name:  "races",
		Stems: []string{"скачк", "скакать"},
		Replies: []string{
			"Стояночка, минуточка",
			"На дальнем.",
			"На ближнем.",
			"Не торопи лошадей!",
		},
	},
	{
		Name:  "tea",
		Stems: []string{"чай", "чаю", "кофе"},
		Replies: []string{
			"Какой ещё чай?!",
			"Чай подождёт, задания сами себя не сделают",
			"Мне без сахара, спасибо",
		},
	},
	{
		Name:  "give",
		Stems: []string{"дайте", "пожалуйста"},
		Replies: []string{
			"Не дам",
			"А зачем тебе?",
			"Если я тебе дам, у меня не останется",
			"Уговори меня",
		},
	},
	{
		Name:  "work",
		Stems: []string{"работаю", "на работе", "тружусь"},
		Replies: []string{
			"Какая работа, дерби идёт!",
			"От работы кони дохнут",
			"Сколько можно работать!",
		},
	},
	{
		Name:  "bot",
		Stems: []string{"бот"},
		Replies: []string{
			"Я НЕ БОТ!",
			"Хватит обзывать меня ботом!",
			"Сами вы боты",
		},
	},
}

// Responder picks a random reply from the first matching rule.
type Responder struct {
	rules []Rule
	rnd   game.Rand
}

// NewResponder creates a responder. Nil rules means DefaultRules.
func NewResponder(rules []Rule, rnd game.Rand) *Responder {
	if rules == nil {
		rules = DefaultRules
	}
	if rnd == nil {
		rnd = game.DefaultRand
	}
	return &Responder{rules: rules, rnd: rnd}
}

// Match returns the first rule triggered by text.
func (r *Responder) Match(text string) (*Rule, bool) {
	normalized := game.Intent(text)
	if normalized == "" || strings.HasPrefix(normalized, "/") {
		return nil, false
	}
	words := strings.Fields(normalized)

	for i := range r.rules {
		rule := &r.rules[i]
		for _, stem := range rule.Stems {
			if strings.Contains(stem, " ") {
				if strings.Contains(normalized, stem) {
					return rule, true
				}
				continue
			}
			for _, w := range words {
				if strings.HasPrefix(strings.Trim(w, ".,!?:;…\"'()"), stem) {
					return rule, true
				}
			}
		}
	}
	return nil, false
}

// Name implements game.TextGame.
func (r *Responder) Name() string { return "phrase" }

// HandleText answers with a canned line when a rule matches.
func (r *Responder) HandleText(_ context.Context, msg game.Message) (*game.Reply, bool) {
	rule, ok := r.Match(msg.Text)
	if !ok || len(rule.Replies) == 0 {
		return nil, false
	}
	return game.TextReply(rule.Replies[r.rnd.IntN(len(rule.Replies))]), true
}
