package session

import "sync"

// turnLocks serializes turn processing per conversation. Each conversation id
// maps to a reference-counted mutex that is created lazily and removed once
// no turn holds or waits on it, so the map does not grow with the lifetime
// set of conversation ids.
type turnLocks struct {
	mu    sync.Mutex
	locks map[string]*turnLock
}

type turnLock struct {
	mu   sync.Mutex
	refs int
}

func newTurnLocks() *turnLocks {
	return &turnLocks{locks: make(map[string]*turnLock)}
}

// acquire blocks until the caller owns the lock for id.
func (t *turnLocks) acquire(id string) {
	t.mu.Lock()
	l, ok := t.locks[id]
	if !ok {
		l = &turnLock{}
		t.locks[id] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()
}

// release returns ownership of id's lock and drops the entry when the last
// holder or waiter is gone.
func (t *turnLocks) release(id string) {
	t.mu.Lock()
	l, ok := t.locks[id]
	if !ok {
		t.mu.Unlock()
		return
	}
	l.refs--
	if l.refs == 0 {
		delete(t.locks, id)
	}
	t.mu.Unlock()

	l.mu.Unlock()
}

// size reports the number of live lock entries. Test hook.
func (t *turnLocks) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
