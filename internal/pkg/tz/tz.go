// Package tz resolves civil times in the community's fixed timezone.
// Every rule is evaluated in its own location so DST shifts keep wall-clock times stable.
package tz

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // the container image has no zoneinfo
)

// Layout is the user-facing date-time format (DD.MM.YYYY HH:MM).
const Layout = "02.01.2006 15:04"

// ErrBadFormat is returned when a date-time string does not match Layout.
var ErrBadFormat = errors.New("expected DD.MM.YYYY HH:MM")

// Rule yields the next firing instant strictly after a given time.
// A zero result means the rule has no further occurrence.
type Rule interface {
	Next(after time.Time) time.Time
}

// Load resolves an IANA location name.
func Load(name string) (*time.Location, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", name, err)
	}
	return loc, nil
}

// Weekly fires every week at Weekday Hour:Minute in Loc.
type Weekly struct {
	Weekday time.Weekday
	Hour    int
	Minute  int
	Label   string
	Loc     *time.Location
}

// Next returns the first occurrence strictly after the given instant.
func (w Weekly) Next(after time.Time) time.Time {
	local := after.In(w.Loc)
	delta := (int(w.Weekday) - int(local.Weekday()) + 7) % 7
	for i := 0; i < 3; i++ {
		candidate := time.Date(local.Year(), local.Month(), local.Day()+delta, w.Hour, w.Minute, 0, 0, w.Loc)
		if candidate.After(after) {
			return candidate
		}
		delta += 7
	}
	return time.Time{}
}

// Clock renders the trigger time as HH:MM.
func (w Weekly) Clock() string {
	return fmt.Sprintf("%d:%02d", w.Hour, w.Minute)
}

// Daily fires every day at Hour:Minute in Loc.
type Daily struct {
	Hour   int
	Minute int
	Loc    *time.Location
}

// Next returns the first occurrence strictly after the given instant.
func (d Daily) Next(after time.Time) time.Time {
	local := after.In(d.Loc)
	for i := 0; i < 3; i++ {
		candidate := time.Date(local.Year(), local.Month(), local.Day()+i, d.Hour, d.Minute, 0, 0, d.Loc)
		if candidate.After(after) {
			return candidate
		}
	}
	return time.Time{}
}

// Lead fires By before every occurrence of Rule.
type Lead struct {
	Rule Rule
	By   time.Duration
}

// Next returns the first lead instant strictly after the given instant.
func (l Lead) Next(after time.Time) time.Time {
	next := l.Rule.Next(after.Add(l.By))
	if next.IsZero() {
		return next
	}
	return next.Add(-l.By)
}

// NextWeekly picks the soonest upcoming trigger; ok is false for an empty list.
func NextWeekly(now time.Time, triggers []Weekly) (Weekly, time.Time, bool) {
	var (
		best   Weekly
		bestAt time.Time
		found  bool
	)
	for _, w := range triggers {
		at := w.Next(now)
		if at.IsZero() {
			continue
		}
		if !found || at.Before(bestAt) {
			best, bestAt, found = w, at, true
		}
	}
	return best, bestAt, found
}

// ParseLocal parses a DD.MM.YYYY HH:MM string as a civil time in loc.
// Single-digit day, month and hour are accepted.
func ParseLocal(s string, loc *time.Location) (time.Time, error) {
	s = strings.Join(strings.Fields(s), " ")
	for _, layout := range []string{Layout, "2.1.2006 15:04"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrBadFormat
}

// Format renders t as DD.MM.YYYY HH:MM in loc.
func Format(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(Layout)
}
