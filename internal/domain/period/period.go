// Package period computes the calendar windows used by quotas, missions and
// draws in a guild's configured timezone.
package period

import (
	"fmt"
	"time"
)

const DrawPeriodStartDay = 17

// Clock pins "now" and the business timezone.
type Clock struct {
	Location *time.Location
	Now      func() time.Time
}

func NewClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return Clock{Location: loc, Now: time.Now}
}

func (c Clock) Today() (time.Time, time.Time) {
	return c.Day(c.Now())
}

// Day returns the [start, end) bounds of the calendar day containing t.
func (c Clock) Day(t time.Time) (time.Time, time.Time) {
	local := t.In(c.Location)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.Location)
	return start, start.AddDate(0, 0, 1)
}

func (c Clock) SameDay(a, b time.Time) bool {
	start, end := c.Day(a)
	return !b.Before(start) && b.Before(end)
}

// DrawPeriod returns the monthly window starting on the 17th at midnight
// that contains t.
func (c Clock) DrawPeriod(t time.Time) (time.Time, time.Time) {
	local := t.In(c.Location)
	start := time.Date(local.Year(), local.Month(), DrawPeriodStartDay, 0, 0, 0, 0, c.Location)
	if local.Before(start) {
		start = start.AddDate(0, -1, 0)
	}
	return start, start.AddDate(0, 1, 0)
}

// PreviousMonth returns the calendar month before the one containing t.
func (c Clock) PreviousMonth(t time.Time) (time.Time, time.Time) {
	local := t.In(c.Location)
	end := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, c.Location)
	return end.AddDate(0, -1, 0), end
}

// NextAt returns the next occurrence of the hh:mm wall clock time after t.
func (c Clock) NextAt(t time.Time, hhmm string) (time.Time, error) {
	at, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time of day %q: %w", hhmm, err)
	}
	local := t.In(c.Location)
	next := time.Date(local.Year(), local.Month(), local.Day(), at.Hour(), at.Minute(), 0, 0, c.Location)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next, nil
}
