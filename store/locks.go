package store

import "sync"

// KeyedLocks serializes work per key, keyed here by normalized phone
// number. Duplicate or retried webhook deliveries for the same player run
// one at a time so their history writes never interleave; different
// players proceed in parallel.
type KeyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewKeyedLocks() *KeyedLocks {
	return &KeyedLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the lock for key, creating it on first use. The returned
// function releases it.
func (k *KeyedLocks) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = new(sync.Mutex)
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
