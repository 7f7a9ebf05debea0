// Package datemath provides calendar-day interval arithmetic. All functions
// normalize their inputs to local midnight first, so callers never have to
// reason about time-of-day drift.
package datemath

import (
	"fmt"
	"time"
)

const dayKeyLayout = "2006-01-02"

// StartOfDay returns t truncated to midnight in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DaysBetween returns the number of whole calendar days from a to b.
// Negative when b is before a.
func DaysBetween(a, b time.Time) int {
	a = StartOfDay(a)
	b = StartOfDay(b)
	// AddDate-based counting would be O(n); hour division is safe here because
	// both ends sit on local midnight and DST shifts are under 12 hours.
	hours := b.Sub(a).Hours()
	if hours >= 0 {
		return int((hours + 11) / 24)
	}
	return -int((-hours + 11) / 24)
}

// WeeksBetween returns floor(DaysBetween/7).
func WeeksBetween(a, b time.Time) int {
	days := DaysBetween(a, b)
	if days < 0 && days%7 != 0 {
		return days/7 - 1
	}
	return days / 7
}

// MonthsBetween returns the calendar-month difference, ignoring day of month.
func MonthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

// FormatDayKey renders a date as its YYYY-MM-DD storage key.
func FormatDayKey(t time.Time) string {
	return t.Format(dayKeyLayout)
}

// ParseDayKey parses a YYYY-MM-DD key into local midnight of that day.
func ParseDayKey(key string) (time.Time, error) {
	t, err := time.ParseInLocation(dayKeyLayout, key, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day key %q: %w", key, err)
	}
	return t, nil
}
