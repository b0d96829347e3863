package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"derby-bot/internal/pkg/tz"
)

type firing struct {
	ev   ResetEvent
	kind Kind
}

func collector() (AnchoredFunc, chan firing) {
	ch := make(chan firing, 64)
	return func(ev ResetEvent, kind Kind) { ch <- firing{ev: ev, kind: kind} }, ch
}

// drain waits for exactly n firings and then checks that nothing else arrives.
func drain(t *testing.T, ch chan firing, n int) []firing {
	t.Helper()
	var got []firing
	for len(got) < n {
		select {
		case f := <-ch:
			got = append(got, f)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d of %d firings", len(got), n)
		}
	}
	select {
	case f := <-ch:
		t.Fatalf("unexpected extra firing: reset %d %s", f.ev.Number(), f.kind)
	case <-time.After(50 * time.Millisecond):
	}
	return got
}

func TestScheduleAnchoredSequence_NilAnchor(t *testing.T) {
	s := New(clockwork.NewFakeClock())
	fn, _ := collector()
	assert.Equal(t, 0, s.ScheduleAnchoredSequence(nil, fn))
	assert.Equal(t, 0, s.AnchoredCount())
}

func TestScheduleAnchoredSequence_SkipsPast(t *testing.T) {
	start := time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(start)
	s := New(clock)
	fn, _ := collector()

	// Anchor exactly now: the start event and its reminder are not in the future.
	anchor := start
	assert.Equal(t, 12, s.ScheduleAnchoredSequence(&anchor, fn))

	// Anchor an hour in the future: the start reminder is still ahead too.
	s2 := New(clock)
	future := start.Add(time.Hour)
	assert.Equal(t, 14, s2.ScheduleAnchoredSequence(&future, fn))

	// Derby already over.
	s3 := New(clock)
	old := start.Add(-200 * time.Hour)
	assert.Equal(t, 0, s3.ScheduleAnchoredSequence(&old, fn))
}

func TestAnchoredSequence_FiresFirstResetNotStart(t *testing.T) {
	start := time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(start)
	s := New(clock)
	fn, ch := collector()

	anchor := start
	s.ScheduleAnchoredSequence(&anchor, fn)

	clock.Advance(11*time.Hour + time.Second)

	got := drain(t, ch, 2)
	kinds := map[Kind]ResetEvent{}
	for _, f := range got {
		kinds[f.kind] = f.ev
		assert.NotEqual(t, 0, f.ev.Index, "the start event was already past")
	}
	require.Contains(t, kinds, KindReset)
	require.Contains(t, kinds, KindReminder)
	assert.Equal(t, "Первый сброс! +5 заданий (всего 10)", kinds[KindReset].Label())
	assert.Equal(t, 10, kinds[KindReset].Tasks)
	assert.Equal(t, 1, kinds[KindReminder].Index)
}

func TestReanchor_OldTimersNeverFire(t *testing.T) {
	start := time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(start)
	s := New(clock)
	fn, ch := collector()

	oldAnchor := start.Add(time.Hour)
	s.ScheduleAnchoredSequence(&oldAnchor, fn)

	newAnchor := start.Add(1000 * time.Hour)
	armed := s.Reanchor(&newAnchor, fn)
	assert.Equal(t, 14, armed)
	assert.Equal(t, 14, s.AnchoredCount())

	// Past every event of the old anchor, before any of the new one.
	clock.Advance(200 * time.Hour)
	drain(t, ch, 0)

	// The new anchor's start reminder fires.
	clock.Advance(800*time.Hour - 29*time.Minute)
	got := drain(t, ch, 1)
	assert.Equal(t, KindReminder, got[0].kind)
	assert.True(t, got[0].ev.At.Equal(newAnchor))
}

func TestReanchor_WaitsForRunningCallback(t *testing.T) {
	start := time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(start)
	s := New(clock)

	entered := make(chan Kind, 1)
	release := make(chan struct{})
	fn := func(_ ResetEvent, kind Kind) {
		entered <- kind
		<-release
	}

	anchor := start.Add(time.Hour)
	s.ScheduleAnchoredSequence(&anchor, fn)

	// The start reminder fires and blocks mid-broadcast.
	go clock.Advance(30 * time.Minute)
	select {
	case kind := <-entered:
		assert.Equal(t, KindReminder, kind)
	case <-time.After(2 * time.Second):
		t.Fatal("reminder did not fire")
	}

	done := make(chan struct{})
	go func() {
		s.Reanchor(nil, fn)
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("anchor changed while a callback of the old anchor was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Reanchor did not return")
	}
	assert.Equal(t, 0, s.AnchoredCount())
}

func TestCancelAll(t *testing.T) {
	start := time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(start)
	s := New(clock)
	fn, ch := collector()

	anchor := start.Add(time.Minute)
	s.ScheduleAnchoredSequence(&anchor, fn)
	s.CancelAll()
	assert.Equal(t, 0, s.AnchoredCount())

	clock.Advance(200 * time.Hour)
	drain(t, ch, 0)

	// A cleared anchor schedules nothing.
	assert.Equal(t, 0, s.Reanchor(nil, fn))
}

func TestScheduleRecurring_FiresWeekly(t *testing.T) {
	loc, err := tz.Load("Europe/Kyiv")
	require.NoError(t, err)

	// Monday 2026-02-09 12:00 Kyiv
	clock := clockwork.NewFakeClockAt(time.Date(2026, 2, 9, 12, 0, 0, 0, loc))
	s := New(clock)

	fired := make(chan time.Time, 8)
	rule := tz.Weekly{Weekday: time.Tuesday, Hour: 14, Minute: 35, Loc: loc}
	s.ScheduleRecurring("rabbit-tue", rule, func(at time.Time) { fired <- at })

	clock.Advance(26*time.Hour + 35*time.Minute)
	select {
	case at := <-fired:
		assert.True(t, at.Equal(time.Date(2026, 2, 10, 14, 35, 0, 0, loc)))
	case <-time.After(2 * time.Second):
		t.Fatal("recurring trigger did not fire")
	}

	// The trigger re-arms itself for the following week.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	clock.Advance(7 * 24 * time.Hour)
	select {
	case at := <-fired:
		assert.True(t, at.Equal(time.Date(2026, 2, 17, 14, 35, 0, 0, loc)))
	case <-time.After(2 * time.Second):
		t.Fatal("recurring trigger did not fire a second time")
	}

	// CancelAll never touches recurring triggers.
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	s.CancelAll()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
}

func TestStop(t *testing.T) {
	start := time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(start)
	s := New(clock)
	fn, ch := collector()

	anchor := start.Add(time.Minute)
	s.ScheduleAnchoredSequence(&anchor, fn)
	fired := make(chan time.Time, 1)
	s.ScheduleRecurring("daily", tz.Daily{Hour: 0, Minute: 0, Loc: time.UTC}, func(at time.Time) { fired <- at })

	s.Stop()
	clock.Advance(300 * time.Hour)
	drain(t, ch, 0)
	select {
	case <-fired:
		t.Fatal("stopped scheduler fired a recurring trigger")
	case <-time.After(50 * time.Millisecond):
	}

	assert.Equal(t, 0, s.ScheduleAnchoredSequence(&anchor, fn))
}
