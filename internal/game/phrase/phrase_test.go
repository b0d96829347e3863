package phrase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"derby-bot/internal/game"
	"derby-bot/internal/game/gametest"
)

func TestMatch(t *testing.T) {
	r := NewResponder(nil, gametest.FixedRand{})

	cases := map[string]string{
		"Кто на скачки?":         "races",
		"пойду попью ЧАЮ":        "tea",
		"дайте кристаллов":       "give",
		"я сейчас на работе":     "work",
		"это что, бот отвечает?": "bot",
		"ботаника":               "bot",
		"скачки и чай":           "races",
	}
	for text, want := range cases {
		rule, ok := r.Match(text)
		require.True(t, ok, text)
		assert.Equal(t, want, rule.Name, text)
	}

	for _, text := range []string{"", "привет всем", "/start", "заработаю"} {
		_, ok := r.Match(text)
		assert.False(t, ok, text)
	}
}

// TestRepliesComeFromRuleProperty: every answer belongs to the matched rule's pool.
func TestRepliesComeFromRuleProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		idx := rapid.IntRange(0, len(DefaultRules)-1).Draw(t, "rule")
		pick := rapid.IntRange(0, 10).Draw(t, "pick")
		rule := DefaultRules[idx]

		r := NewResponder([]Rule{rule}, gametest.FixedRand{Value: pick})
		reply, ok := r.HandleText(context.Background(), game.Message{Text: rule.Stems[0]})
		if !ok {
			t.Fatalf("stem %q did not match its own rule", rule.Stems[0])
		}
		found := false
		for _, candidate := range rule.Replies {
			if candidate == reply.Text {
				found = true
			}
		}
		if !found {
			t.Fatalf("reply %q is not in rule %s", reply.Text, rule.Name)
		}
	})
}
