package services

import (
	"sync"

	"github.com/vytor/phonicsmastery/internal/models"
)

// keyLock serializes read-modify-write cycles per progress key. Entries are
// dropped once no caller holds or waits on them.
type keyLock struct {
	mu    sync.Mutex
	locks map[models.ProgressKey]*keyLockEntry
}

type keyLockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[models.ProgressKey]*keyLockEntry)}
}

// lock blocks until key is free and returns the matching unlock.
func (l *keyLock) lock(key models.ProgressKey) func() {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &keyLockEntry{}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

func (l *keyLock) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
