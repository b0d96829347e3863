package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"derby-bot/internal/broadcast"
	"derby-bot/internal/model"
)

func newRoster(store *memParticipants) *RosterService {
	return NewRosterService(store, broadcast.NewGateway(nil, store, nil))
}

func TestRoster_JoinLeave(t *testing.T) {
	store := &memParticipants{}
	svc := newRoster(store)
	ctx := context.Background()

	n, err := svc.Join(ctx, model.Participant{ChatID: -1, UserID: 1, Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = svc.Join(ctx, model.Participant{ChatID: -1, UserID: 2, DisplayName: "Bob"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = svc.Join(ctx, model.Participant{ChatID: -1, UserID: 1, Username: "alice"})
	assert.ErrorIs(t, err, ErrAlreadyJoined)

	mentions, err := svc.Ping(ctx, -1)
	require.NoError(t, err)
	assert.Equal(t, `@alice <a href="tg://user?id=2">Bob</a>`, mentions)

	n, err = svc.Leave(ctx, -1, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = svc.Leave(ctx, -1, 1)
	assert.ErrorIs(t, err, ErrNotJoined)

	require.NoError(t, svc.Clear(ctx, -1))
	_, err = svc.Ping(ctx, -1)
	assert.ErrorIs(t, err, ErrNobodyToPing)
}

func TestRoster_StorageError(t *testing.T) {
	store := &memParticipants{err: errStorage}
	_, err := newRoster(store).Join(context.Background(), model.Participant{ChatID: -1, UserID: 1})
	assert.ErrorIs(t, err, errStorage)
}

// TestRosterUniqueProperty: *for any* sequence of joins and leaves, the roster holds each user
// at most once and in first-join order.
func TestRosterUniqueProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		store := &memParticipants{}
		svc := newRoster(store)
		ctx := context.Background()

		var want []int64
		ops := rapid.SliceOfN(rapid.IntRange(-5, 5), 1, 40).Draw(t, "ops")
		for _, op := range ops {
			if op >= 0 {
				uid := int64(op)
				_, err := svc.Join(ctx, model.Participant{ChatID: 7, UserID: uid})
				present := false
				for _, id := range want {
					present = present || id == uid
				}
				if present != (err == ErrAlreadyJoined) {
					t.Fatalf("join %d: present=%v err=%v", uid, present, err)
				}
				if !present {
					want = append(want, uid)
				}
			} else {
				uid := int64(-op)
				_, _ = svc.Leave(ctx, 7, uid)
				for i, id := range want {
					if id == uid {
						want = append(want[:i], want[i+1:]...)
						break
					}
				}
			}
		}

		list, err := svc.List(ctx, 7)
		if err != nil {
			t.Fatal(err)
		}
		if len(list) != len(want) {
			t.Fatalf("roster %v, want %v", list, want)
		}
		for i := range list {
			if list[i].UserID != want[i] {
				t.Fatalf("roster order %v, want %v", list, want)
			}
		}
	})
}
