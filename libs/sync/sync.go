// Package sync provides the locking primitives used by the ledger.
package sync

import "sync"

type Mutex struct {
	sync.Mutex
}

type RWMutex struct {
	sync.RWMutex
}

// KeyedMutex hands out one mutex per key. Holders of different keys never
// block each other. Entries are dropped once nobody holds or waits on them.
type KeyedMutex[K comparable] struct {
	mtx   Mutex
	locks map[K]*keyedEntry
}

type keyedEntry struct {
	mtx  Mutex
	refs int
}

func NewKeyedMutex[K comparable]() *KeyedMutex[K] {
	return &KeyedMutex[K]{locks: make(map[K]*keyedEntry)}
}

// Lock blocks until key is free and returns the function that releases it.
func (km *KeyedMutex[K]) Lock(key K) (unlock func()) {
	km.mtx.Lock()
	e, ok := km.locks[key]
	if !ok {
		e = &keyedEntry{}
		km.locks[key] = e
	}
	e.refs++
	km.mtx.Unlock()

	e.mtx.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mtx.Unlock()

			km.mtx.Lock()
			e.refs--
			if e.refs == 0 {
				delete(km.locks, key)
			}
			km.mtx.Unlock()
		})
	}
}

// Len returns the number of keys currently held or waited on.
func (km *KeyedMutex[K]) Len() int {
	km.mtx.Lock()
	defer km.mtx.Unlock()
	return len(km.locks)
}
