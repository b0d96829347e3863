package game

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type stubGame struct {
	name  string
	match string
	calls int
}

func (s *stubGame) Name() string { return s.name }

func (s *stubGame) HandleText(_ context.Context, msg Message) (*Reply, bool) {
	s.calls++
	if Intent(msg.Text) != s.match {
		return nil, false
	}
	return TextReply(s.name), true
}

func TestRegistry_PriorityOrder(t *testing.T) {
	r := NewRegistry()
	word := &stubGame{name: "word", match: "яблоко"}
	duel := &stubGame{name: "duel", match: "выстрел"}
	phrase := &stubGame{name: "phrase", match: "выстрел"}

	require.NoError(t, r.Register(word))
	require.NoError(t, r.Register(duel))
	require.NoError(t, r.Register(phrase))
	assert.Equal(t, []string{"word", "duel", "phrase"}, r.Names())

	reply, ok := r.Dispatch(context.Background(), Message{Text: "  ВЫСТРЕЛ "})
	require.True(t, ok)
	assert.Equal(t, "duel", reply.Text)
	assert.Equal(t, 0, phrase.calls)

	_, ok = r.Dispatch(context.Background(), Message{Text: "привет"})
	assert.False(t, ok)
	assert.Equal(t, 1, phrase.calls)
}

func TestRegistry_RegisterValidation(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register(nil))
	assert.Error(t, r.Register(&stubGame{}))
	require.NoError(t, r.Register(&stubGame{name: "coin"}))
	assert.Error(t, r.Register(&stubGame{name: "coin"}))
	assert.Equal(t, 1, r.Count())
}

// TestIntentProperty: Intent is idempotent and ignores surrounding whitespace.
func TestIntentProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.StringMatching(`[ \tA-Za-zА-Яа-я]{0,20}`).Draw(t, "text")
		once := Intent(s)
		if Intent(once) != once {
			t.Fatalf("Intent not idempotent: %q -> %q", once, Intent(once))
		}
		if Intent("  "+s+"\t") != once {
			t.Fatalf("surrounding whitespace changed the intent of %q", s)
		}
	})
}

func TestOverrides(t *testing.T) {
	o := NewOverrides(map[string]string{"@Lucky": "WIN", "unlucky": "lose"})

	out, ok := o.For(Player{ID: 1, Username: "lucky"})
	require.True(t, ok)
	assert.Equal(t, ForceWin, out)

	out, ok = o.For(Player{ID: 2, Username: "Unlucky"})
	require.True(t, ok)
	assert.Equal(t, ForceLose, out)

	_, ok = o.For(Player{ID: 3, Name: "No Handle"})
	assert.False(t, ok)
}

func TestPlayerMention(t *testing.T) {
	assert.Equal(t, "@alice", Player{ID: 1, Username: "alice"}.Mention())
	assert.Equal(t, `<a href="tg://user?id=42">Bob &amp; Co</a>`, Player{ID: 42, Name: "Bob & Co"}.Mention())
	assert.True(t, Player{Username: "Alice"}.Is("@alice"))
	assert.False(t, Player{Name: "Alice"}.Is("alice"))
}
