package locks

import "sync"

// Keyed hands out one mutex per key so callers can serialize work scoped to a
// single resource (here: the active bill of one table) without blocking the
// rest of the system. Entries are reference-counted and removed once the last
// holder releases, so the map does not grow with the key space.
type Keyed struct {
	mu      sync.Mutex
	entries map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func NewKeyed() *Keyed {
	return &Keyed{entries: make(map[string]*keyedEntry)}
}

// Lock blocks until the key's mutex is held and returns the matching unlock.
func (k *Keyed) Lock(key string) (unlock func()) {
	k.mu.Lock()
	entry := k.entries[key]
	if entry == nil {
		entry = &keyedEntry{}
		k.entries[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
