package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOverlaps(t *testing.T) {
	base := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	span := func(fromMin, toMin int) Span {
		return Span{Start: base.Add(time.Duration(fromMin) * time.Minute), End: base.Add(time.Duration(toMin) * time.Minute)}
	}

	tests := []struct {
		name string
		a, b Span
		want bool
	}{
		{"identical", span(0, 60), span(0, 60), true},
		{"partial overlap", span(0, 60), span(30, 90), true},
		{"contained", span(0, 60), span(15, 45), true},
		{"touching end to start", span(0, 60), span(60, 120), false},
		{"touching start to end", span(60, 120), span(0, 60), false},
		{"disjoint", span(0, 30), span(90, 120), false},
		{"one minute overlap", span(0, 61), span(60, 120), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(tt.a, tt.b))
			assert.Equal(t, tt.want, tt.b.Overlaps(tt.a), "overlap must be symmetric")
		})
	}
}

func TestOverlapsSymmetricAndStrict(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	var spans []Span
	for start := 0; start < 8; start++ {
		for length := 1; length <= 4; length++ {
			s := base.Add(time.Duration(start) * 30 * time.Minute)
			spans = append(spans, Span{Start: s, End: s.Add(time.Duration(length) * 30 * time.Minute)})
		}
	}
	for _, a := range spans {
		for _, b := range spans {
			assert.Equal(t, Overlaps(a, b), Overlaps(b, a))
			if a.End.Equal(b.Start) {
				assert.False(t, Overlaps(a, b), "touching spans %v and %v must not overlap", a, b)
			}
		}
	}
}

func TestSpanIsValid(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	assert.True(t, Span{Start: start, End: start.Add(time.Minute)}.IsValid())
	assert.False(t, Span{Start: start, End: start}.IsValid())
	assert.False(t, Span{Start: start, End: start.Add(-time.Minute)}.IsValid())
	assert.False(t, Span{End: start}.IsValid())
}
