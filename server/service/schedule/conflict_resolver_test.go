package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/agenda/store"
)

func TestConflictResolver_SameDay(t *testing.T) {
	loc := newYork(t)
	events := []*store.Event{{ID: "e1", Start: at(loc, 10, 0), End: at(loc, 11, 0)}}
	resolver := NewConflictResolver(DefaultWorkingHours())

	alternatives := resolver.Suggest(Span{Start: at(loc, 10, 0), End: at(loc, 11, 0)}, events)
	require.Len(t, alternatives, 7)

	want := []int{9, 11, 12, 13, 14, 15, 16}
	for i, hour := range want {
		assert.Equal(t, at(loc, hour, 0), alternatives[i].Start)
		assert.Equal(t, time.Hour, alternatives[i].End.Sub(alternatives[i].Start))
		assert.Equal(t, "same_day", alternatives[i].Reason)
		assert.False(t, alternatives[i].IsAdjacent)
	}
	// Equal distance ties are broken by the earlier start.
	assert.Equal(t, alternatives[0].Score, alternatives[1].Score)
	assert.Greater(t, alternatives[1].Score, alternatives[2].Score)
}

func TestConflictResolver_FollowingDays(t *testing.T) {
	loc := newYork(t)
	events := []*store.Event{{ID: "busy", Start: at(loc, 9, 0), End: at(loc, 17, 0)}}
	resolver := NewConflictResolver(DefaultWorkingHours())

	alternatives := resolver.Suggest(Span{Start: at(loc, 10, 0), End: at(loc, 11, 0)}, events)
	require.Len(t, alternatives, MaxAlternatives)

	tomorrow := at(loc, 10, 0).AddDate(0, 0, 1)
	assert.Equal(t, tomorrow, alternatives[0].Start, "same clock time on the next day scores highest")
	assert.Equal(t, "days_after:1", alternatives[0].Reason)
	assert.True(t, alternatives[0].IsAdjacent)

	for i := 0; i < 8; i++ {
		assert.Equal(t, "days_after:1", alternatives[i].Reason)
	}
	assert.Equal(t, at(loc, 10, 0).AddDate(0, 0, 2), alternatives[8].Start)
	assert.Equal(t, at(loc, 9, 0).AddDate(0, 0, 2), alternatives[9].Start)

	for i := 1; i < len(alternatives); i++ {
		assert.GreaterOrEqual(t, alternatives[i-1].Score, alternatives[i].Score)
	}
}

func TestConflictResolver_RespectsPolicy(t *testing.T) {
	loc := newYork(t)
	resolver := NewConflictResolver(DefaultWorkingHours())

	// With hour precision 09:00-09:30 ends at hour 9 and is not bookable.
	alternatives := resolver.Suggest(Span{Start: at(loc, 12, 0), End: at(loc, 12, 30)}, nil)
	require.NotEmpty(t, alternatives)
	for _, alt := range alternatives {
		assert.NotEqual(t, at(loc, 9, 0), alt.Start)
		assert.NotEqual(t, at(loc, 12, 0), alt.Start, "requested start is not an alternative")
		ok, _ := ValidateWorkingHours(alt.Start, alt.End, DefaultWorkingHours())
		assert.True(t, ok)
	}
	assert.Equal(t, at(loc, 11, 30), alternatives[0].Start)
	assert.Equal(t, at(loc, 12, 30), alternatives[1].Start)
}

func TestConflictResolver_InvalidSpan(t *testing.T) {
	loc := newYork(t)
	resolver := NewConflictResolver(DefaultWorkingHours())
	assert.Empty(t, resolver.Suggest(Span{Start: at(loc, 12, 0), End: at(loc, 12, 0)}, nil))
	assert.Empty(t, resolver.Suggest(Span{Start: at(loc, 12, 0), End: at(loc, 11, 0)}, nil))
}

func TestSuggestAlternatives(t *testing.T) {
	ctx := context.Background()
	loc := newYork(t)
	st := newMockStore(&store.Event{Start: at(loc, 10, 0), End: at(loc, 11, 0), Description: "Planning"})
	svc := newTestService(t, st)

	alternatives, err := svc.SuggestAlternatives(ctx, at(loc, 10, 30).UTC(), at(loc, 11, 30).UTC())
	require.NoError(t, err)
	require.NotEmpty(t, alternatives)
	for _, alt := range alternatives {
		assert.False(t, Overlaps(Span{Start: alt.Start, End: alt.End}, Span{Start: at(loc, 10, 0), End: at(loc, 11, 0)}))
	}
	// 11:00 is the free start nearest to 10:30.
	assert.Equal(t, at(loc, 11, 0), alternatives[0].Start)
}
