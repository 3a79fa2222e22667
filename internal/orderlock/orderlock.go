// Package orderlock serializes read-modify-write cycles on a single order so
// operator actions, authorized rollbacks and the reconciliation merge never
// interleave on the same id.
package orderlock

import (
	"sync"

	"github.com/google/uuid"
)

type entry struct {
	mu   sync.Mutex
	refs int
}

// Locker hands out one mutex per order id. Entries are dropped when no one
// holds or waits for them.
type Locker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*entry
}

// New creates an empty Locker.
func New() *Locker {
	return &Locker{locks: make(map[uuid.UUID]*entry)}
}

// Lock blocks until id is free and returns the unlock func.
func (l *Locker) Lock(id uuid.UUID) func() {
	l.mu.Lock()
	e, ok := l.locks[id]
	if !ok {
		e = &entry{}
		l.locks[id] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

// Len returns the number of ids currently locked or awaited.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
