package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/hrygo/agenda/store"
)

// TimeSlot is a suggested alternative span.
type TimeSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	// Reason is "same_day" or "days_after:N" for clients to render.
	Reason string `json:"reason"`
	// Score orders suggestions; higher is better.
	Score      int  `json:"score"`
	IsAdjacent bool `json:"is_adjacent"`
}

// ConflictResolver proposes alternatives for a span that cannot be booked.
type ConflictResolver struct {
	window WorkingHours
	step   time.Duration
}

// NewConflictResolver creates a new conflict resolver.
func NewConflictResolver(window WorkingHours) *ConflictResolver {
	return &ConflictResolver{window: window, step: SlotStep}
}

// Suggest returns bookable spans with the requested length: same-day slots
// nearest to the requested start first, then slots on the following days when
// the same day offers fewer than three. At most MaxAlternatives are returned.
func (r *ConflictResolver) Suggest(requested Span, events []*store.Event) []TimeSlot {
	duration := requested.Duration()
	if duration <= 0 {
		return []TimeSlot{}
	}

	sameDay := r.bookable(requested.Start, duration, events)
	alternatives := make([]TimeSlot, 0, len(sameDay))
	for _, slot := range sameDay {
		if slot.Start.Equal(requested.Start) {
			continue
		}
		alternatives = append(alternatives, TimeSlot{
			Start:  slot.Start,
			End:    slot.End,
			Reason: "same_day",
			Score:  3000 - int(absDuration(slot.Start.Sub(requested.Start))/time.Minute),
		})
	}

	if len(alternatives) < minSameDayAlternatives {
		for dayOffset := 1; dayOffset <= AlternativeDayRange && len(alternatives) < MaxAlternatives; dayOffset++ {
			day := requested.Start.AddDate(0, 0, dayOffset)
			for _, slot := range r.bookable(day, duration, events) {
				alternatives = append(alternatives, TimeSlot{
					Start:      slot.Start,
					End:        slot.End,
					Reason:     fmt.Sprintf("days_after:%d", dayOffset),
					Score:      1000 - dayOffset*200 - int(absDuration(clockOffset(slot.Start, requested.Start))/time.Minute)/10,
					IsAdjacent: true,
				})
			}
		}
	}

	sort.SliceStable(alternatives, func(i, j int) bool {
		if alternatives[i].Score != alternatives[j].Score {
			return alternatives[i].Score > alternatives[j].Score
		}
		return alternatives[i].Start.Before(alternatives[j].Start)
	})
	if len(alternatives) > MaxAlternatives {
		alternatives = alternatives[:MaxAlternatives]
	}
	return alternatives
}

// bookable returns free slots on day that also pass the working-hours policy.
func (r *ConflictResolver) bookable(day time.Time, duration time.Duration, events []*store.Event) []Span {
	slots := enumerateSlots(day, duration, events, r.window, r.step)
	list := slots[:0]
	for _, slot := range slots {
		if ok, _ := ValidateWorkingHours(slot.Start, slot.End, r.window); ok {
			list = append(list, slot)
		}
	}
	return list
}

// SuggestAlternatives returns alternatives around [start, end) against the current event set.
func (s *service) SuggestAlternatives(ctx context.Context, start, end time.Time) ([]TimeSlot, error) {
	requested := Span{Start: start, End: end}.In(s.loc)
	events, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	alternatives := NewConflictResolver(s.window).Suggest(requested, events)
	slog.Debug("alternatives suggested",
		"requested_start", requested.Start,
		"count", len(alternatives),
	)
	return alternatives, nil
}

// clockOffset is the difference between the wall-clock times of a and b, ignoring dates.
func clockOffset(a, b time.Time) time.Duration {
	ah, am, _ := a.Clock()
	bh, bm, _ := b.Clock()
	return time.Duration((ah-bh)*60+(am-bm)) * time.Minute
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
