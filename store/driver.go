package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that an event store backend should implement.
type Driver interface {
	Close() error

	// IdentityScheme reports how the driver identifies events.
	IdentityScheme() IdentityScheme

	// ListEvents returns the full current snapshot of events.
	ListEvents(ctx context.Context) ([]*Event, error)
	// InsertEvent appends one event and returns its id.
	InsertEvent(ctx context.Context, create *Event) (string, error)
	// RemoveEvent removes the event by id. It returns false if no such event exists.
	RemoveEvent(ctx context.Context, id string) (bool, error)
	// ReplaceEvent atomically replaces span and description of the event by id.
	// It returns false if no such event exists.
	ReplaceEvent(ctx context.Context, id string, replace *Event) (bool, error)
}

// SQLDriver is implemented by drivers backed by database/sql.
type SQLDriver interface {
	Driver

	GetDB() *sql.DB
	// Type is the migration directory name, e.g. "sqlite" or "postgres".
	Type() string
	IsInitialized(ctx context.Context) (bool, error)
}
