package schedule

import (
	"github.com/hrygo/agenda/store"
)

// findConflict returns the first event overlapping span, skipping excludeID.
// The scan is linear; event sets of a single calendar are small.
func findConflict(span Span, events []*store.Event, excludeID string) *store.Event {
	for _, e := range events {
		if excludeID != "" && e.ID == excludeID {
			continue
		}
		if Overlaps(span, SpanOf(e)) {
			return e
		}
	}
	return nil
}

// checkAvailability gates span through the working-hours policy, then scans events for a conflict.
func checkAvailability(span Span, events []*store.Event, window WorkingHours, excludeID string) *Availability {
	if ok, reason := ValidateWorkingHours(span.Start, span.End, window); !ok {
		return &Availability{Span: span, Kind: KindPolicyViolation, Reason: reason}
	}
	if conflict := findConflict(span, events, excludeID); conflict != nil {
		return &Availability{Span: span, Kind: KindConflict, Reason: conflictMessage(conflict), Conflict: conflict}
	}
	return &Availability{Span: span, Available: true, Reason: "Time slot is available"}
}

// findOverlaps reports every overlapping pair among events sorted by start.
func findOverlaps(events []*store.Event) []Overlap {
	overlaps := []Overlap{}
	for i := 0; i < len(events); i++ {
		for j := i + 1; j < len(events); j++ {
			// Sorted by start: no later event can overlap events[i].
			if !events[j].Start.Before(events[i].End) {
				break
			}
			overlaps = append(overlaps, Overlap{First: events[i], Second: events[j]})
		}
	}
	return overlaps
}
