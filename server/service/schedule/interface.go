package schedule

import (
	"context"
	"time"

	"github.com/hrygo/agenda/store"
)

// Service defines the core scheduling operations exposed to the transport layer.
type Service interface {
	// CheckAvailability reports whether [start, end) can be booked.
	CheckAvailability(ctx context.Context, start, end time.Time) (*Availability, error)

	// FindFreeSlots returns the free slots of the given length on date.
	FindFreeSlots(ctx context.Context, date time.Time, durationMinutes int) (*SlotList, error)

	// CreateEvent books [start, end) if it is within working hours and conflict free.
	CreateEvent(ctx context.Context, start, end time.Time, description string) (*Result, error)

	// DeleteEvent removes the first event selected by match.
	DeleteEvent(ctx context.Context, match store.Match) (*Result, error)

	// UpdateEvent moves the event selected by update.Match to a new span.
	// The store is left unmodified unless the update succeeds.
	UpdateEvent(ctx context.Context, update *UpdateEventRequest) (*UpdateResult, error)

	// ListEventsForDate returns the events starting on date.
	ListEventsForDate(ctx context.Context, date time.Time) (*DaySchedule, error)

	// ListEventsAt returns the events with start <= instant < end.
	ListEventsAt(ctx context.Context, instant time.Time) ([]*store.Event, error)

	// ListEventsBetween returns the events overlapping [from, to).
	ListEventsBetween(ctx context.Context, from, to time.Time) ([]*store.Event, error)

	// SuggestAlternatives proposes free spans of the same length near a requested one.
	SuggestAlternatives(ctx context.Context, start, end time.Time) ([]TimeSlot, error)

	// Location returns the deployment timezone.
	Location() *time.Location
}

// Store is the interface for store operations needed by the schedule service.
// *store.Store satisfies it.
type Store interface {
	ListEvents(ctx context.Context) ([]*store.Event, error)
	InsertEvent(ctx context.Context, create *store.Event) (string, error)
	RemoveEvent(ctx context.Context, id string) (bool, error)
	ReplaceEvent(ctx context.Context, id string, replace *store.Event) (bool, error)
	// IdentityScheme reports how ids are assigned; content ids change when an event is replaced.
	IdentityScheme() store.IdentityScheme
	// WithLock runs fn while holding the calendar lock.
	WithLock(ctx context.Context, fn func(ctx context.Context) error) error
}

// ChangeType names a committed mutation.
type ChangeType string

const (
	ChangeCreated ChangeType = "event.created.v1"
	ChangeUpdated ChangeType = "event.updated.v1"
	ChangeDeleted ChangeType = "event.deleted.v1"
)

// Change describes a committed mutation.
type Change struct {
	Type       ChangeType   `json:"type"`
	Event      *store.Event `json:"event"`
	Previous   *store.Event `json:"previous,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// Notifier is told about every committed mutation.
// Errors are logged and never fail the mutation.
type Notifier interface {
	Notify(ctx context.Context, change *Change) error
}

// UpdateEventRequest selects an event and gives its new span and description.
type UpdateEventRequest struct {
	Match store.Match
	Start time.Time
	End   time.Time
	// Description replaces the old description when set.
	Description *string
}
