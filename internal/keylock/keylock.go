// Package keylock serializes operations per string key, so concurrent
// callers touching the same part number or VIN never interleave a
// read-then-write, while callers on different keys proceed in parallel.
package keylock

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// Locker hands out one mutex per key. Entries are reference-counted and
// discarded once the last holder unlocks, so the key set stays bounded.
type Locker struct {
	mu   sync.Mutex
	keys map[string]*entry
}

// New creates an empty Locker.
func New() *Locker {
	return &Locker{keys: make(map[string]*entry)}
}

// Lock acquires the mutex for key, blocking until it is available.
func (l *Locker) Lock(key string) {
	l.mu.Lock()
	e, ok := l.keys[key]
	if !ok {
		e = &entry{}
		l.keys[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
}

// Unlock releases the mutex for key. Unlocking a key that was never
// locked panics, same as sync.Mutex.
func (l *Locker) Unlock(key string) {
	l.mu.Lock()
	e, ok := l.keys[key]
	if !ok {
		l.mu.Unlock()
		panic("keylock: unlock of unlocked key " + key)
	}
	e.refs--
	if e.refs == 0 {
		delete(l.keys, key)
	}
	l.mu.Unlock()

	e.mu.Unlock()
}
