package resource

import "sync"

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Locker is a keyed mutex. Entries are reference counted and dropped when
// the last holder or waiter releases, so the map only grows with contention.
type Locker struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

func NewLocker() *Locker {
	return &Locker{entries: make(map[string]*lockEntry)}
}

// Lock blocks until key is free and returns the matching unlock function.
func (l *Locker) Lock(key string) func() {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &lockEntry{}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			l.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(l.entries, key)
			}
			l.mu.Unlock()
		})
	}
}

// Held is the number of keys currently locked or waited on.
func (l *Locker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
