// Package recurrence decides whether a recurring template fires on a given
// calendar date. Matching is pure modulo arithmetic over day/week/month
// offsets from the template's anchor; there is no occurrence expansion.
package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/daybook/internal/datemath"
	"github.com/dukerupert/daybook/internal/model"
)

// AppliesOn reports whether the template fires on the given date. It is a
// total function: malformed bounds, unknown recurrence types, and zero
// intervals all resolve to defined behavior instead of errors.
func AppliesOn(tmpl model.RecurringTemplate, date time.Time) bool {
	date = datemath.StartOfDay(date)

	start, hasStart := parseBound(tmpl.StartDate)
	if hasStart && date.Before(start) {
		return false
	}
	if end, ok := parseBound(tmpl.EndDate); ok && date.After(end) {
		return false
	}

	interval := tmpl.Recurrence.Interval
	if interval < 1 {
		interval = 1
	}

	// Anchoring to StartDate makes interval phase deterministic. Without an
	// anchor the evaluated date anchors itself, which degrades interval>1 to
	// interval=1; Validate rejects that combination at template creation.
	anchor := date
	if hasStart {
		anchor = start
	}

	switch tmpl.Recurrence.Type {
	case model.RecurDaily:
		return datemath.DaysBetween(anchor, date)%interval == 0

	case model.RecurWeekly:
		if !containsInt(tmpl.Recurrence.DaysOfWeek, int(date.Weekday())) {
			return false
		}
		return datemath.WeeksBetween(anchor, date)%interval == 0

	case model.RecurMonthly:
		if !containsInt(tmpl.Recurrence.DaysOfMonth, date.Day()) {
			return false
		}
		return datemath.MonthsBetween(anchor, date)%interval == 0
	}

	// Unknown type: silently inert.
	return false
}

// parseBound parses a YYYY-MM-DD bound. Empty or malformed values are treated
// as unset so a hand-edited templates file cannot break rendering.
func parseBound(key string) (time.Time, bool) {
	if key == "" {
		return time.Time{}, false
	}
	t, err := datemath.ParseDayKey(key)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func containsInt(list []int, v int) bool {
	for _, n := range list {
		if n == v {
			return true
		}
	}
	return false
}

// Validate checks a template's recurrence at create/update time. Stored data
// is never validated on read; the engine tolerates whatever it finds.
func Validate(tmpl model.RecurringTemplate) error {
	r := tmpl.Recurrence

	switch r.Type {
	case model.RecurDaily, model.RecurWeekly, model.RecurMonthly:
	default:
		return fmt.Errorf("unknown recurrence type %q", r.Type)
	}

	if r.Interval < 1 {
		return fmt.Errorf("interval must be at least 1, got %d", r.Interval)
	}
	if r.Interval > 1 && tmpl.StartDate == "" {
		return fmt.Errorf("interval %d requires a start date to anchor the cycle", r.Interval)
	}

	if tmpl.StartDate != "" {
		if _, err := datemath.ParseDayKey(tmpl.StartDate); err != nil {
			return fmt.Errorf("invalid start date: %w", err)
		}
	}
	if tmpl.EndDate != "" {
		if _, err := datemath.ParseDayKey(tmpl.EndDate); err != nil {
			return fmt.Errorf("invalid end date: %w", err)
		}
	}

	switch r.Type {
	case model.RecurWeekly:
		if len(r.DaysOfWeek) == 0 {
			return fmt.Errorf("weekly recurrence requires at least one day of week")
		}
		for _, d := range r.DaysOfWeek {
			if d < 0 || d > 6 {
				return fmt.Errorf("day of week out of range: %d", d)
			}
		}
	case model.RecurMonthly:
		if len(r.DaysOfMonth) == 0 {
			return fmt.Errorf("monthly recurrence requires at least one day of month")
		}
		for _, d := range r.DaysOfMonth {
			if d < 1 || d > 31 {
				return fmt.Errorf("day of month out of range: %d", d)
			}
		}
	}

	return nil
}

// Normalize converts the legacy flat recurrence shape written by old versions
// into the canonical nested form, in place. Templates already in the new shape
// pass through untouched except for defaulting a zero interval to 1.
func Normalize(tmpl *model.RecurringTemplate) {
	if tmpl.Recurrence.Type == "" && tmpl.LegacyType != "" {
		tmpl.Recurrence.Type = tmpl.LegacyType
		tmpl.Recurrence.Interval = tmpl.LegacyInterval
		if tmpl.LegacyDayOfWeek != nil {
			tmpl.Recurrence.DaysOfWeek = []int{*tmpl.LegacyDayOfWeek}
		}
		if tmpl.LegacyDayOfMonth != nil {
			tmpl.Recurrence.DaysOfMonth = []int{*tmpl.LegacyDayOfMonth}
		}
	}
	if tmpl.Recurrence.Interval < 1 {
		tmpl.Recurrence.Interval = 1
	}

	tmpl.LegacyType = ""
	tmpl.LegacyInterval = 0
	tmpl.LegacyDayOfWeek = nil
	tmpl.LegacyDayOfMonth = nil
}

var weekdayNames = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// Describe returns a human-readable description of the recurrence.
func Describe(r model.Recurrence) string {
	interval := r.Interval
	if interval < 1 {
		interval = 1
	}

	switch r.Type {
	case model.RecurDaily:
		if interval > 1 {
			return fmt.Sprintf("Repeats every %d days", interval)
		}
		return "Repeats daily"
	case model.RecurWeekly:
		prefix := "Repeats weekly"
		if interval == 2 {
			prefix = "Repeats every 2 weeks"
		} else if interval > 2 {
			prefix = fmt.Sprintf("Repeats every %d weeks", interval)
		}
		if len(r.DaysOfWeek) > 0 {
			var names []string
			for _, d := range r.DaysOfWeek {
				if d >= 0 && d <= 6 {
					names = append(names, weekdayNames[d])
				}
			}
			if len(names) > 0 {
				return prefix + " on " + strings.Join(names, ", ")
			}
		}
		return prefix
	case model.RecurMonthly:
		if interval > 1 {
			return fmt.Sprintf("Repeats every %d months", interval)
		}
		return "Repeats monthly"
	}
	return ""
}
