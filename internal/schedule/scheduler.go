// Package schedule fires the bot's timed broadcasts: weekly/daily recurring triggers and the
// derby reset sequence anchored to a mutable start time.
package schedule

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"derby-bot/internal/pkg/tz"
)

// Kind tells an anchored callback which of a reset's two triggers fired.
type Kind int

const (
	KindReset Kind = iota
	KindReminder
)

func (k Kind) String() string {
	if k == KindReminder {
		return "reminder"
	}
	return "reset"
}

// AnchoredFunc is invoked when a reset or its reminder fires.
type AnchoredFunc func(ev ResetEvent, kind Kind)

// Scheduler owns two timer groups. Recurring timers live for the whole process;
// anchored timers are cancelled and rebuilt as one group whenever the anchor changes.
type Scheduler struct {
	clock clockwork.Clock

	// firing is held across an anchored callback and across every anchor change, so a
	// callback of a replaced anchor never runs once the change has returned.
	firing sync.Mutex

	mu         sync.Mutex
	recurring  map[string]clockwork.Timer
	anchored   []clockwork.Timer
	generation uint64
	stopped    bool
}

// New creates a scheduler. Pass clockwork.NewRealClock() in production.
func New(clock clockwork.Clock) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		clock:     clock,
		recurring: make(map[string]clockwork.Timer),
	}
}

// ScheduleRecurring registers a rule that fires for as long as the scheduler runs.
// Occurrences missed while the process was down are not replayed.
func (s *Scheduler) ScheduleRecurring(name string, rule tz.Rule, fn func(at time.Time)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armRecurring(name, rule, fn, s.clock.Now())
}

// armRecurring must be called with s.mu held.
func (s *Scheduler) armRecurring(name string, rule tz.Rule, fn func(at time.Time), after time.Time) {
	if s.stopped {
		return
	}

	next := rule.Next(after)
	if next.IsZero() {
		log.Warn().Str("trigger", name).Msg("Recurring trigger has no next occurrence, not scheduled")
		return
	}

	s.recurring[name] = s.clock.AfterFunc(next.Sub(s.clock.Now()), func() {
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}
		from := s.clock.Now()
		if from.Before(next) {
			from = next
		}
		s.armRecurring(name, rule, fn, from)
		s.mu.Unlock()

		log.Debug().Str("trigger", name).Time("at", next).Msg("Recurring trigger fired")
		fn(next)
	})

	log.Debug().Str("trigger", name).Time("next", next).Msg("Recurring trigger armed")
}

// ScheduleAnchoredSequence arms one timer per future reset and per future reminder of the
// derby started at anchor. A nil anchor schedules nothing. It returns the number of timers armed.
func (s *Scheduler) ScheduleAnchoredSequence(anchor *time.Time, fn AnchoredFunc) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduleAnchored(anchor, fn)
}

// scheduleAnchored must be called with s.mu held.
func (s *Scheduler) scheduleAnchored(anchor *time.Time, fn AnchoredFunc) int {
	if anchor == nil || s.stopped {
		return 0
	}

	now := s.clock.Now()
	gen := s.generation
	armed := 0

	for _, ev := range ResetEvents(*anchor) {
		if !ev.At.After(now) {
			continue
		}
		s.anchored = append(s.anchored, s.armAnchored(gen, ev.At.Sub(now), ev, KindReset, fn))
		armed++

		if ev.ReminderAt().After(now) {
			s.anchored = append(s.anchored, s.armAnchored(gen, ev.ReminderAt().Sub(now), ev, KindReminder, fn))
			armed++
		}
	}

	log.Info().
		Time("anchor", *anchor).
		Int("timers", armed).
		Msg("Derby reset timers scheduled")

	return armed
}

func (s *Scheduler) armAnchored(gen uint64, d time.Duration, ev ResetEvent, kind Kind, fn AnchoredFunc) clockwork.Timer {
	return s.clock.AfterFunc(d, func() {
		s.firing.Lock()
		defer s.firing.Unlock()

		s.mu.Lock()
		live := !s.stopped && gen == s.generation
		s.mu.Unlock()
		if !live {
			log.Debug().Int("reset", ev.Number()).Str("kind", kind.String()).Msg("Stale derby timer dropped")
			return
		}

		log.Debug().
			Int("reset", ev.Number()).
			Str("kind", kind.String()).
			Msg("Derby timer fired")
		fn(ev, kind)
	})
}

// CancelAll cancels every anchored timer. Recurring triggers are untouched.
func (s *Scheduler) CancelAll() {
	s.firing.Lock()
	defer s.firing.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelAnchored()
}

// cancelAnchored must be called with s.mu held.
func (s *Scheduler) cancelAnchored() {
	s.generation++
	for _, t := range s.anchored {
		t.Stop()
	}
	if n := len(s.anchored); n > 0 {
		log.Debug().Int("timers", n).Msg("Derby reset timers cancelled")
	}
	s.anchored = nil
}

// Reanchor replaces the anchored group in one step, so timers of the old and the new anchor
// never coexist. It waits for a callback that is already running to return. fn must not
// call back into the scheduler.
func (s *Scheduler) Reanchor(anchor *time.Time, fn AnchoredFunc) int {
	s.firing.Lock()
	defer s.firing.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelAnchored()
	return s.scheduleAnchored(anchor, fn)
}

// AnchoredCount reports how many anchored timers the current anchor produced.
func (s *Scheduler) AnchoredCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.anchored)
}

// Stop cancels every timer. The scheduler cannot be restarted.
func (s *Scheduler) Stop() {
	s.firing.Lock()
	defer s.firing.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	s.cancelAnchored()
	for name, t := range s.recurring {
		t.Stop()
		delete(s.recurring, name)
	}
	log.Info().Msg("Scheduler stopped")
}
