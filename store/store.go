package store

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/hrygo/agenda/internal/profile"
)

// ErrMalformedEvent is returned when the driver yields data that cannot be a valid event.
var ErrMalformedEvent = errors.New("malformed event data")

// ErrSpanConflict is matched by driver errors reporting that the backend itself
// rejected a span overlapping a stored event.
var ErrSpanConflict = errors.New("span overlaps an existing event")

// Locker serializes mutations of the single calendar resource.
type Locker interface {
	// Lock blocks until the lock is held or ctx is done.
	Lock(ctx context.Context) (unlock func(), err error)
}

// Store provides access to the event set of the calendar.
type Store struct {
	profile *profile.Profile
	driver  Driver
	locker  Locker
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile, locker Locker) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
		locker:  locker,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// WithLock runs fn while holding the calendar lock.
// The whole read-check-write of a mutation must happen inside fn.
func (s *Store) WithLock(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}
	unlock, err := s.locker.Lock(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to acquire calendar lock")
	}
	defer unlock()
	return fn(ctx)
}

// ListEvents returns the current snapshot ordered by start time.
func (s *Store) ListEvents(ctx context.Context) ([]*Event, error) {
	list, err := s.driver.ListEvents(ctx)
	if err != nil {
		return nil, err
	}
	for i, e := range list {
		if e == nil {
			return nil, errors.Wrapf(ErrMalformedEvent, "nil event at position %d", i)
		}
		if err := e.validate(); err != nil {
			return nil, errors.Wrap(ErrMalformedEvent, err.Error())
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Start.Before(list[j].Start)
	})
	return list, nil
}

// InsertEvent inserts an event and returns its id.
func (s *Store) InsertEvent(ctx context.Context, create *Event) (string, error) {
	return s.driver.InsertEvent(ctx, create)
}

// RemoveEvent removes an event by id.
func (s *Store) RemoveEvent(ctx context.Context, id string) (bool, error) {
	return s.driver.RemoveEvent(ctx, id)
}

// ReplaceEvent replaces an event by id.
func (s *Store) ReplaceEvent(ctx context.Context, id string, replace *Event) (bool, error) {
	return s.driver.ReplaceEvent(ctx, id, replace)
}

// IdentityScheme reports the identity scheme of the underlying driver.
func (s *Store) IdentityScheme() IdentityScheme {
	return s.driver.IdentityScheme()
}
