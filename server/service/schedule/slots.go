package schedule

import (
	"time"

	"github.com/hrygo/agenda/store"
)

// enumerateSlots walks [open:00, close:00) on day in fixed steps and returns
// every candidate of the given duration that overlaps no event starting on day.
func enumerateSlots(day time.Time, duration time.Duration, events []*store.Event, window WorkingHours, step time.Duration) []Span {
	slots := []Span{}
	if duration <= 0 || step <= 0 {
		return slots
	}

	dayWindow := window.DayWindow(day)
	busy := make([]Span, 0, len(events))
	for _, e := range events {
		if sameDate(e.Start.In(day.Location()), day) {
			busy = append(busy, SpanOf(e))
		}
	}

	for cursor := dayWindow.Start; !cursor.Add(duration).After(dayWindow.End); cursor = cursor.Add(step) {
		candidate := Span{Start: cursor, End: cursor.Add(duration)}
		free := true
		for _, b := range busy {
			if Overlaps(candidate, b) {
				free = false
				break
			}
		}
		if free {
			slots = append(slots, candidate)
		}
	}
	return slots
}
