package schedule

import (
	"fmt"
	"time"
)

// Precision selects how the working-hours rules compare times.
type Precision string

const (
	// PrecisionHour compares only the hour component of start and end.
	// An event ending at 17:15 with close hour 17 is accepted, and an
	// event ending at 09:30 with open hour 9 is rejected.
	PrecisionHour Precision = "hour"
	// PrecisionMinute compares full wall-clock times against open:00 and close:00.
	PrecisionMinute Precision = "minute"
)

// WorkingHours is the daily window in the deployment timezone within which events must fit.
type WorkingHours struct {
	Open      int
	Close     int
	Precision Precision
}

// DefaultWorkingHours returns the (9,17) window with hour precision.
func DefaultWorkingHours() WorkingHours {
	return WorkingHours{Open: DefaultOpenHour, Close: DefaultCloseHour, Precision: PrecisionHour}
}

// Validate checks that the window is within [0,24) and open < close.
func (w WorkingHours) Validate() error {
	if w.Open < 0 || w.Open > 23 || w.Close < 0 || w.Close > 23 {
		return fmt.Errorf("working hours must be within [0,24), got (%d,%d)", w.Open, w.Close)
	}
	if w.Open >= w.Close {
		return fmt.Errorf("open hour %d must be before close hour %d", w.Open, w.Close)
	}
	switch w.Precision {
	case "", PrecisionHour, PrecisionMinute:
		return nil
	default:
		return fmt.Errorf("unknown working hours precision %q", w.Precision)
	}
}

// Minutes returns the length of the window in minutes.
func (w WorkingHours) Minutes() int {
	return (w.Close - w.Open) * 60
}

// DayWindow returns [open:00, close:00) on the calendar date of day, in day's location.
func (w WorkingHours) DayWindow(day time.Time) Span {
	y, m, d := day.Date()
	loc := day.Location()
	return Span{
		Start: time.Date(y, m, d, w.Open, 0, 0, 0, loc),
		End:   time.Date(y, m, d, w.Close, 0, 0, 0, loc),
	}
}

// ValidateWorkingHours applies the working-hours rules in order; the first failure wins.
// Both timestamps are compared in their own location, which callers set to the
// deployment timezone.
func ValidateWorkingHours(start, end time.Time, window WorkingHours) (bool, string) {
	if !sameDate(start, end) {
		return false, "Event crosses a day boundary"
	}

	if window.Precision == PrecisionMinute {
		day := window.DayWindow(start)
		switch {
		case start.Before(day.Start):
			return false, fmt.Sprintf("Event starts before opening hour (%02d:00)", window.Open)
		case end.After(day.End):
			return false, fmt.Sprintf("Event ends after closing hour (%02d:00)", window.Close)
		case !start.Before(day.End):
			return false, fmt.Sprintf("Event starts at or after closing hour (%02d:00)", window.Close)
		case !end.After(day.Start):
			return false, fmt.Sprintf("Event ends at or before opening hour (%02d:00)", window.Open)
		}
		return true, "Event is within working hours"
	}

	switch {
	case start.Hour() < window.Open:
		return false, fmt.Sprintf("Event starts before opening hour (%02d:00)", window.Open)
	case end.Hour() > window.Close:
		return false, fmt.Sprintf("Event ends after closing hour (%02d:00)", window.Close)
	case start.Hour() >= window.Close:
		return false, fmt.Sprintf("Event starts at or after closing hour (%02d:00)", window.Close)
	case end.Hour() <= window.Open:
		return false, fmt.Sprintf("Event ends at or before opening hour (%02d:00)", window.Open)
	}
	return true, "Event is within working hours"
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
