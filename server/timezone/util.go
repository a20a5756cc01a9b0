// Package timezone provides timezone utilities for the agenda server.
//
// This package handles timezone parsing and the date and time formats
// accepted by the HTTP API.
package timezone

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// UTC is the coordinated universal time timezone
var UTC = time.UTC

const (
	// LocalDateTimeLayout is the wall-clock input format, e.g. "2025-03-10T14:30".
	LocalDateTimeLayout = "2006-01-02T15:04"
	// DateLayout is the date input format.
	DateLayout = time.DateOnly
)

// ParseTimezone parses an IANA timezone identifier (e.g., "America/New_York").
// If the timezone is invalid, returns UTC and an error.
func ParseTimezone(tz string) (*time.Location, error) {
	if tz == "" || tz == "UTC" {
		return UTC, nil
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return UTC, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}

	return loc, nil
}

// MustParseTimezone parses a timezone or panics if invalid.
func MustParseTimezone(tz string) *time.Location {
	loc, err := ParseTimezone(tz)
	if err != nil {
		panic(err)
	}
	return loc
}

// IsValidTimezone checks if a timezone identifier is valid.
func IsValidTimezone(tz string) bool {
	_, err := ParseTimezone(tz)
	return err == nil
}

// ParseDateTime parses "YYYY-MM-DDTHH:MM" as wall-clock time in loc, or an
// RFC3339 timestamp, which is converted to loc.
func ParseDateTime(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = UTC
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("datetime is required")
	}
	if t, err := time.ParseInLocation(LocalDateTimeLayout, s, loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	return time.Time{}, fmt.Errorf("invalid datetime %q, expected YYYY-MM-DDTHH:MM or RFC3339", s)
}

// ParseDate parses "YYYY-MM-DD" as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = UTC
	}
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// MaxDurationMinutes is the longest accepted duration, one day.
const MaxDurationMinutes = 24 * 60

var digits = regexp.MustCompile(`-?\d+`)

// ParseDurationMinutes extracts the first run of digits, so "60" and
// "60 minutes" are both 60. Negative and longer-than-a-day values are rejected.
func ParseDurationMinutes(s string) (int, error) {
	match := digits.FindString(s)
	if match == "" {
		return 0, fmt.Errorf("invalid duration format")
	}
	if strings.HasPrefix(match, "-") {
		return 0, fmt.Errorf("duration must not be negative")
	}
	minutes, err := strconv.Atoi(match)
	if err != nil || minutes > MaxDurationMinutes {
		return 0, fmt.Errorf("duration must be at most %d minutes", MaxDurationMinutes)
	}
	return minutes, nil
}

// FormatLocal formats t in loc using LocalDateTimeLayout.
func FormatLocal(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = UTC
	}
	return t.In(loc).Format(LocalDateTimeLayout)
}

// FormatEventTime formats a span for display.
// Rules:
//   - Same day: "2006-01-02 15:04 - 16:00"
//   - Otherwise: "2006-01-02 15:04 - 2006-01-03 09:00"
func FormatEventTime(start, end time.Time, tz *time.Location) string {
	if tz == nil {
		tz = UTC
	}
	start, end = start.In(tz), end.In(tz)
	if start.Format(DateLayout) == end.Format(DateLayout) {
		return fmt.Sprintf("%s - %s", start.Format("2006-01-02 15:04"), end.Format("15:04"))
	}
	return fmt.Sprintf("%s - %s", start.Format("2006-01-02 15:04"), end.Format("2006-01-02 15:04"))
}

// StartOfDay returns the start of the day (00:00:00) in the given timezone.
func StartOfDay(t time.Time, tz *time.Location) time.Time {
	if tz == nil {
		tz = UTC
	}
	local := t.In(tz)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, tz)
}

// NowInTimezone returns the current time in the given timezone.
func NowInTimezone(tz *time.Location) time.Time {
	if tz == nil {
		tz = UTC
	}
	return time.Now().In(tz)
}
