package schedule

import (
	"time"

	"github.com/hrygo/agenda/store"
)

// Span is a time range with half-open semantics: [Start, End).
type Span struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// SpanOf returns the span of an event.
func SpanOf(e *store.Event) Span {
	return Span{Start: e.Start, End: e.End}
}

// Overlaps reports whether a and b share any instant.
// Touching spans (a.End == b.Start) do not overlap.
func Overlaps(a, b Span) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Overlaps reports whether s and o share any instant.
func (s Span) Overlaps(o Span) bool {
	return Overlaps(s, o)
}

// Duration returns End - Start.
func (s Span) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// IsValid reports whether both bounds are set and End is after Start.
func (s Span) IsValid() bool {
	return !s.Start.IsZero() && !s.End.IsZero() && s.End.After(s.Start)
}

// In returns the span with both bounds in loc.
func (s Span) In(loc *time.Location) Span {
	return Span{Start: s.Start.In(loc), End: s.End.In(loc)}
}
