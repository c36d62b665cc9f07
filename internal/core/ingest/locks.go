package ingest

import (
	"sort"
	"sync"
)

// KeyedLocks is the advisory lock table serializing graph mutation per
// normalized entity-name cluster. Unrelated entities commit in parallel;
// episodes sharing a name key serialize for the dedupe+commit phase only.
type KeyedLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedLocks() *KeyedLocks {
	return &KeyedLocks{locks: make(map[string]*lockEntry)}
}

// Lock claims all keys, in sorted order so two episodes with overlapping
// clusters cannot deadlock. Duplicate keys are claimed once.
func (k *KeyedLocks) Lock(keys []string) []string {
	unique := make(map[string]bool, len(keys))
	for _, key := range keys {
		if key != "" {
			unique[key] = true
		}
	}
	sorted := make([]string, 0, len(unique))
	for key := range unique {
		sorted = append(sorted, key)
	}
	sort.Strings(sorted)

	for _, key := range sorted {
		k.mu.Lock()
		e, ok := k.locks[key]
		if !ok {
			e = &lockEntry{}
			k.locks[key] = e
		}
		e.refs++
		k.mu.Unlock()
		e.mu.Lock()
	}
	return sorted
}

// Unlock releases keys previously returned by Lock, in reverse order, and
// drops entries nobody waits on.
func (k *KeyedLocks) Unlock(keys []string) {
	for i := len(keys) - 1; i >= 0; i-- {
		key := keys[i]
		k.mu.Lock()
		e, ok := k.locks[key]
		if !ok {
			k.mu.Unlock()
			continue
		}
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
		e.mu.Unlock()
	}
}
