// Package memory is an in-process event store. It backs tests and demo mode.
package memory

import (
	"context"
	"sync"

	"github.com/hrygo/agenda/internal/util"
	"github.com/hrygo/agenda/store"
)

type DB struct {
	mu     sync.RWMutex
	events []*store.Event
}

// NewDB creates an empty store seeded with the given events.
// Events without an id get a generated one.
func NewDB(seed ...*store.Event) *DB {
	d := &DB{}
	for _, e := range seed {
		c := e.Clone()
		if c.ID == "" {
			c.ID = util.GenUUID()
		}
		d.events = append(d.events, c)
	}
	return d
}

func (*DB) Close() error {
	return nil
}

func (*DB) IdentityScheme() store.IdentityScheme {
	return store.IdentityOpaque
}

func (d *DB) ListEvents(_ context.Context) ([]*store.Event, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	list := make([]*store.Event, 0, len(d.events))
	for _, e := range d.events {
		list = append(list, e.Clone())
	}
	return list, nil
}

func (d *DB) InsertEvent(_ context.Context, create *store.Event) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e := create.Clone()
	e.ID = util.GenUUID()
	d.events = append(d.events, e)
	return e.ID, nil
}

func (d *DB) RemoveEvent(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, e := range d.events {
		if e.ID == id {
			d.events = append(d.events[:i], d.events[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (d *DB) ReplaceEvent(_ context.Context, id string, replace *store.Event) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, e := range d.events {
		if e.ID == id {
			next := replace.Clone()
			next.ID = id
			d.events[i] = next
			return true, nil
		}
	}
	return false, nil
}
