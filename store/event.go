package store

import (
	"fmt"
	"time"
)

// IdentityScheme describes how a driver identifies events.
type IdentityScheme string

const (
	// IdentityContent derives the id from (start, end, description).
	IdentityContent IdentityScheme = "content"
	// IdentityOpaque uses an identifier assigned by the store.
	IdentityOpaque IdentityScheme = "opaque"
)

// Event is the object representing a calendar event.
type Event struct {
	ID          string    `json:"id"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Description string    `json:"description"`
}

// Match selects existing events.
// When ID is set it is the only criterion. Otherwise an event matches when its
// start equals Start exactly, and End and Description narrow the match when set.
type Match struct {
	ID          string
	Start       time.Time
	End         time.Time
	Description *string
}

// Matches reports whether the event satisfies the match.
func (m *Match) Matches(e *Event) bool {
	if m.ID != "" {
		return e.ID == m.ID
	}
	if !e.Start.Equal(m.Start) {
		return false
	}
	if !m.End.IsZero() && !e.End.Equal(m.End) {
		return false
	}
	if m.Description != nil && e.Description != *m.Description {
		return false
	}
	return true
}

// Clone returns a copy of the event.
func (e *Event) Clone() *Event {
	c := *e
	return &c
}

// Duration returns the length of the event.
func (e *Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// IsActiveAt reports whether the event covers the instant, using start <= t < end.
func (e *Event) IsActiveAt(t time.Time) bool {
	return !t.Before(e.Start) && t.Before(e.End)
}

// In returns a copy of the event with timestamps in the given location.
func (e *Event) In(loc *time.Location) *Event {
	c := e.Clone()
	c.Start = c.Start.In(loc)
	c.End = c.End.In(loc)
	return c
}

// ContentKey returns the identity derived from the event content.
func ContentKey(start, end time.Time, description string) string {
	return fmt.Sprintf("%d-%d-%s", start.Unix(), end.Unix(), description)
}

func (e *Event) validate() error {
	if e.Start.IsZero() || e.End.IsZero() {
		return fmt.Errorf("event %q has a zero timestamp", e.ID)
	}
	if !e.End.After(e.Start) {
		return fmt.Errorf("event %q ends at or before its start", e.ID)
	}
	return nil
}
