package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDriver struct {
	events []*Event
	err    error
}

func (d *fakeDriver) Close() error                   { return nil }
func (d *fakeDriver) IdentityScheme() IdentityScheme { return IdentityOpaque }
func (d *fakeDriver) ListEvents(context.Context) ([]*Event, error) {
	return d.events, d.err
}
func (d *fakeDriver) InsertEvent(_ context.Context, e *Event) (string, error) {
	d.events = append(d.events, e)
	return e.ID, nil
}
func (d *fakeDriver) RemoveEvent(context.Context, string) (bool, error) { return false, nil }
func (d *fakeDriver) ReplaceEvent(context.Context, string, *Event) (bool, error) {
	return false, nil
}

type countingLocker struct {
	locked, unlocked int
	err              error
}

func (l *countingLocker) Lock(context.Context) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.locked++
	return func() { l.unlocked++ }, nil
}

func at(hour, minute int) time.Time {
	return time.Date(2025, 3, 10, hour, minute, 0, 0, time.UTC)
}

func TestListEventsSortsByStart(t *testing.T) {
	d := &fakeDriver{events: []*Event{
		{ID: "c", Start: at(14, 0), End: at(15, 0)},
		{ID: "a", Start: at(9, 0), End: at(10, 0)},
		{ID: "b", Start: at(11, 0), End: at(12, 0)},
	}}
	s := New(d, nil, nil)

	list, err := s.ListEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
	assert.Equal(t, "c", list[2].ID)
}

func TestListEventsMalformed(t *testing.T) {
	tests := []struct {
		name   string
		events []*Event
	}{
		{"nil event", []*Event{nil}},
		{"zero start", []*Event{{ID: "x", End: at(10, 0)}}},
		{"end before start", []*Event{{ID: "x", Start: at(10, 0), End: at(9, 0)}}},
		{"empty span", []*Event{{ID: "x", Start: at(10, 0), End: at(10, 0)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(&fakeDriver{events: tt.events}, nil, nil)
			_, err := s.ListEvents(context.Background())
			assert.ErrorIs(t, err, ErrMalformedEvent)
		})
	}
}

func TestListEventsDriverError(t *testing.T) {
	boom := errors.New("disk gone")
	s := New(&fakeDriver{err: boom}, nil, nil)
	_, err := s.ListEvents(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestWithLock(t *testing.T) {
	locker := &countingLocker{}
	s := New(&fakeDriver{}, nil, locker)

	called := false
	err := s.WithLock(context.Background(), func(ctx context.Context) error {
		called = true
		assert.Equal(t, 1, locker.locked)
		assert.Equal(t, 0, locker.unlocked)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, 1, locker.unlocked)

	locker.err = errors.New("lock unavailable")
	err = s.WithLock(context.Background(), func(ctx context.Context) error {
		t.Fatal("fn must not run without the lock")
		return nil
	})
	assert.Error(t, err)
}

func TestMatch(t *testing.T) {
	e := &Event{ID: "id-1", Start: at(10, 0), End: at(11, 0), Description: "Review"}
	other := "Standup"
	review := "Review"

	assert.True(t, (&Match{ID: "id-1"}).Matches(e))
	assert.False(t, (&Match{ID: "id-2", Start: at(10, 0)}).Matches(e))
	assert.True(t, (&Match{Start: at(10, 0)}).Matches(e))
	assert.True(t, (&Match{Start: at(10, 0), End: at(11, 0), Description: &review}).Matches(e))
	assert.False(t, (&Match{Start: at(10, 0), End: at(10, 30)}).Matches(e))
	assert.False(t, (&Match{Start: at(10, 0), Description: &other}).Matches(e))
	assert.False(t, (&Match{Start: at(10, 1)}).Matches(e))
}

func TestEventHelpers(t *testing.T) {
	e := &Event{Start: at(10, 0), End: at(10, 45)}
	assert.Equal(t, 45*time.Minute, e.Duration())
	assert.True(t, e.IsActiveAt(at(10, 0)))
	assert.True(t, e.IsActiveAt(at(10, 44)))
	assert.False(t, e.IsActiveAt(at(10, 45)))
	assert.False(t, e.IsActiveAt(at(9, 59)))

	assert.Equal(t, ContentKey(at(10, 0), at(10, 45), "x"), ContentKey(at(10, 0).In(time.Local), at(10, 45), "x"))
	assert.NotEqual(t, ContentKey(at(10, 0), at(10, 45), "x"), ContentKey(at(10, 0), at(10, 45), "y"))
}
