package lock

import (
	"context"
)

// Local is an in-process calendar lock.
type Local struct {
	sem chan struct{}
}

// NewLocal creates an unlocked in-process lock.
func NewLocal() *Local {
	return &Local{sem: make(chan struct{}, 1)}
}

// Lock acquires the lock or returns ctx.Err() if ctx is done first.
func (l *Local) Lock(ctx context.Context) (func(), error) {
	select {
	case l.sem <- struct{}{}:
		return func() { <-l.sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
