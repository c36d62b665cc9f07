package ingest

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedLocks_DedupesAndSorts(t *testing.T) {
	k := NewKeyedLocks()

	held := k.Lock([]string{"b", "a", "b", ""})
	assert.Equal(t, []string{"a", "b"}, held)
	k.Unlock(held)

	k.mu.Lock()
	assert.Empty(t, k.locks, "released keys must not leak entries")
	k.mu.Unlock()
}

func TestKeyedLocks_SerializesSameKey(t *testing.T) {
	k := NewKeyedLocks()

	var mu sync.Mutex
	inSection := 0
	maxInSection := 0

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			held := k.Lock([]string{"alice"})
			defer k.Unlock(held)

			mu.Lock()
			inSection++
			if inSection > maxInSection {
				maxInSection = inSection
			}
			mu.Unlock()

			mu.Lock()
			inSection--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInSection, "same key must never admit two holders")
}

func TestKeyedLocks_OverlappingSetsDoNotDeadlock(t *testing.T) {
	k := NewKeyedLocks()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Opposite acquisition orders; sorted locking makes this safe.
			if i%2 == 0 {
				held := k.Lock([]string{"x", "y", "z"})
				k.Unlock(held)
			} else {
				held := k.Lock([]string{"z", "y", "x"})
				k.Unlock(held)
			}
		}(i)
	}
	wg.Wait()

	k.mu.Lock()
	assert.Empty(t, k.locks)
	k.mu.Unlock()
}

func TestKeyedLocks_DisjointKeysRunConcurrently(t *testing.T) {
	k := NewKeyedLocks()

	held1 := k.Lock([]string{"a"})
	done := make(chan struct{})
	go func() {
		held2 := k.Lock([]string{"b"})
		k.Unlock(held2)
		close(done)
	}()

	<-done // would hang if "b" waited on "a"
	k.Unlock(held1)
}
