package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

// TestResetEventsProperty: reset i is anchor + offsets[i] with (i+1)*5 tasks.
func TestResetEventsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		anchor := time.Unix(rapid.Int64Range(0, 4_000_000_000).Draw(t, "anchor"), 0)

		events := ResetEvents(anchor)
		if len(events) != len(ResetOffsets) {
			t.Fatalf("expected %d events, got %d", len(ResetOffsets), len(events))
		}
		for i, ev := range events {
			if ev.Index != i {
				t.Fatalf("event %d has index %d", i, ev.Index)
			}
			if !ev.At.Equal(anchor.Add(ResetOffsets[i])) {
				t.Fatalf("event %d at %v, want %v", i, ev.At, anchor.Add(ResetOffsets[i]))
			}
			if ev.Tasks != (i+1)*TasksPerReset {
				t.Fatalf("event %d has %d tasks, want %d", i, ev.Tasks, (i+1)*TasksPerReset)
			}
			if !ev.ReminderAt().Equal(ev.At.Add(-30 * time.Minute)) {
				t.Fatalf("event %d reminder at %v", i, ev.ReminderAt())
			}
		}
	})
}

// TestUpcomingProperty: only resets strictly after now are returned, in order, limited.
func TestUpcomingProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		anchor := time.Unix(1_770_000_000, 0)
		now := anchor.Add(time.Duration(rapid.Int64Range(-10, 140).Draw(t, "hours")) * time.Hour)
		limit := rapid.IntRange(0, 8).Draw(t, "limit")

		got := Upcoming(anchor, now, limit)
		if limit > 0 && len(got) > limit {
			t.Fatalf("limit %d exceeded: %d", limit, len(got))
		}
		for i, ev := range got {
			if !ev.At.After(now) {
				t.Fatalf("event %d at %v is not after now %v", ev.Index, ev.At, now)
			}
			if i > 0 && ev.Index != got[i-1].Index+1 {
				t.Fatalf("events out of order: %d after %d", ev.Index, got[i-1].Index)
			}
		}
	})
}

func TestResetEvent_Label(t *testing.T) {
	events := ResetEvents(time.Unix(0, 0))
	assert.Equal(t, "Старт дерби! Доступно 5 заданий", events[0].Label())
	assert.Equal(t, "Первый сброс! +5 заданий (всего 10)", events[1].Label())
	assert.Equal(t, "Шестой сброс! +5 заданий (всего 35)", events[6].Label())
	assert.Equal(t, 7, events[6].Number())
}

func TestResetEvent_Gap(t *testing.T) {
	events := ResetEvents(time.Unix(0, 0))
	assert.Equal(t, time.Duration(0), events[0].Gap())
	assert.Equal(t, 11*time.Hour, events[1].Gap())
	assert.Equal(t, 19*time.Hour, events[2].Gap())
	assert.Equal(t, 24*time.Hour, events[3].Gap())
}
