package session

import (
	"sync"
)

// Locks serializes mutations per session id. The engine allows at most
// one in-flight execute per session; a second concurrent caller fails
// fast rather than blocking (the caller can retry).
type Locks struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocks returns an empty lock table.
func NewLocks() *Locks {
	return &Locks{held: make(map[string]struct{})}
}

// TryAcquire attempts to take the lock for id. On success it returns a
// release function and true; if the lock is already held it returns
// false and the caller must not proceed.
func (l *Locks) TryAcquire(id string) (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, held := l.held[id]; held {
		return nil, false
	}
	l.held[id] = struct{}{}
	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, id)
	}
	return release, true
}

// Held reports whether id is currently locked. Intended for tests.
func (l *Locks) Held(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, held := l.held[id]
	return held
}
