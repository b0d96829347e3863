package schedule

import (
	"fmt"
	"time"
)

// ResetOffsets are the task-limit resets of a derby, measured from its start.
var ResetOffsets = []time.Duration{
	0,
	11 * time.Hour,
	30 * time.Hour,
	54 * time.Hour,
	78 * time.Hour,
	102 * time.Hour,
	126 * time.Hour,
}

const (
	// TasksPerReset is how many derby tasks each reset unlocks.
	TasksPerReset = 5
	// ReminderLead is how long before a reset its reminder fires.
	ReminderLead = 30 * time.Minute
)

var ordinals = []string{"Первый", "Второй", "Третий", "Четвёртый", "Пятый", "Шестой"}

// ResetEvent is one derived derby reset. It is never stored: it is recomputed from the anchor.
type ResetEvent struct {
	Index int // 0-based position in ResetOffsets
	At    time.Time
	Tasks int // cumulative tasks available after this reset
}

// Number is the 1-based reset number shown to users.
func (e ResetEvent) Number() int {
	return e.Index + 1
}

// ReminderAt is when the pre-reset reminder fires.
func (e ResetEvent) ReminderAt() time.Time {
	return e.At.Add(-ReminderLead)
}

// Gap is the time since the previous reset (zero for the start).
func (e ResetEvent) Gap() time.Duration {
	if e.Index == 0 {
		return 0
	}
	return ResetOffsets[e.Index] - ResetOffsets[e.Index-1]
}

// Label is the broadcast headline for the reset.
func (e ResetEvent) Label() string {
	if e.Index == 0 {
		return fmt.Sprintf("Старт дерби! Доступно %d заданий", e.Tasks)
	}
	name := fmt.Sprintf("%d-й", e.Index)
	if e.Index-1 < len(ordinals) {
		name = ordinals[e.Index-1]
	}
	return fmt.Sprintf("%s сброс! +%d заданий (всего %d)", name, TasksPerReset, e.Tasks)
}

// ResetEvents derives the full reset sequence of a derby started at anchor.
func ResetEvents(anchor time.Time) []ResetEvent {
	events := make([]ResetEvent, len(ResetOffsets))
	for i, off := range ResetOffsets {
		events[i] = ResetEvent{
			Index: i,
			At:    anchor.Add(off),
			Tasks: (i + 1) * TasksPerReset,
		}
	}
	return events
}

// Upcoming returns at most limit resets strictly after now. A limit <= 0 means no limit.
func Upcoming(anchor, now time.Time, limit int) []ResetEvent {
	var out []ResetEvent
	for _, e := range ResetEvents(anchor) {
		if !e.At.After(now) {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
