package latches

import (
	"sync"
)

// Latching makes the validate and apply phases of a commit exclusive among commits which touch the same keys.
// Without latches every key is validated and applied on its own, so two commits with overlapping write sets can
// interleave their applies. Latching all the keys a commit read or will write, at once, before validation closes
// that gap at the cost of making overlapping commits wait for each other.
//
// A latch is a per-key lock. Only one goroutine can hold a latch at a time and all keys of a commit must be latched
// together in one call, which rules out deadlock between commits.
//
// Latching is implemented using a single map which maps keys to a Go WaitGroup. Access to this map is guarded by a
// mutex to ensure that latching is atomic and consistent. The mutex is global to the store.

type Latches struct {
	// Before committing writes to a key, the goroutine must hold the latch for that key. `latchMap` maps each latched
	// key to a WaitGroup. Goroutines which find a key latched wait on that WaitGroup.
	latchMap map[string]*sync.WaitGroup
	// Mutex to guard latchMap. A goroutine must hold this mutex while it makes any change to latchMap.
	latchGuard sync.Mutex
	// An optional validation function, only used for testing.
	Validation func(keys [][]byte)
}

// NewLatches creates a new Latches object. There should only be one such object per store, shared between all
// goroutines committing to it.
func NewLatches() *Latches {
	l := new(Latches)
	l.latchMap = make(map[string]*sync.WaitGroup)
	return l
}

// AcquireLatches tries to latch all keys. If this succeeds, nil is returned. If any of the keys are latched, then
// AcquireLatches returns a WaitGroup which the caller can use to be woken when that latch is released.
func (l *Latches) AcquireLatches(keysToLatch [][]byte) *sync.WaitGroup {
	l.latchGuard.Lock()
	defer l.latchGuard.Unlock()

	// Check none of the keys we want to latch are held.
	for _, key := range keysToLatch {
		if latchWg, ok := l.latchMap[string(key)]; ok {
			return latchWg
		}
	}

	// All latches are available, hold them all with a new wait group.
	wg := new(sync.WaitGroup)
	wg.Add(1)
	for _, key := range keysToLatch {
		l.latchMap[string(key)] = wg
	}

	return nil
}

// ReleaseLatches releases the latches for all keys in keysToUnlatch and wakes up any goroutine blocked on them. All
// keys in keysToUnlatch must have been latched together in one call to AcquireLatches.
func (l *Latches) ReleaseLatches(keysToUnlatch [][]byte) {
	l.latchGuard.Lock()
	defer l.latchGuard.Unlock()

	first := true
	for _, key := range keysToUnlatch {
		if first {
			if wg, ok := l.latchMap[string(key)]; ok {
				wg.Done()
			}
			first = false
		}
		delete(l.latchMap, string(key))
	}
}

// WaitForLatches latches all keys in keysToLatch using AcquireLatches. If a latch is already held, WaitForLatches
// waits for it to be released and then tries again, so it may block for an unbounded length of time.
func (l *Latches) WaitForLatches(keysToLatch [][]byte) {
	for {
		wg := l.AcquireLatches(keysToLatch)
		if wg == nil {
			return
		}
		wg.Wait()
	}
}

// Validate calls the function in Validation, if it exists.
func (l *Latches) Validate(latched [][]byte) {
	if l.Validation != nil {
		l.Validation(latched)
	}
}
