package chat

import "sync"

// LaneLock provides per-conversation serialization. It ensures that turns
// within the same conversation are processed one at a time (serial), while
// turns for different conversations proceed concurrently (parallel).
//
// Design: a global mutex protects the lane map; each lane has its own
// mutex for intra-conversation serialization. The global mutex is held
// only briefly to look up or create the per-conversation mutex.
type LaneLock struct {
	mu    sync.Mutex
	lanes map[ConversationKey]*lane
}

// lane stores per-conversation synchronization metadata.
// refs counts goroutines that acquired (or are waiting on) this lane.
// stale marks lanes eligible for cleanup once refs drops to zero.
type lane struct {
	mu    sync.Mutex
	refs  int
	stale bool
}

// NewLaneLock creates a ready-to-use LaneLock.
func NewLaneLock() *LaneLock {
	return &LaneLock{
		lanes: make(map[ConversationKey]*lane),
	}
}

// Acquire gets or creates the per-conversation mutex and locks it.
// The caller must call Release with the same key when done.
func (l *LaneLock) Acquire(key ConversationKey) {
	l.mu.Lock()
	ln, ok := l.lanes[key]
	if !ok {
		ln = &lane{}
		l.lanes[key] = ln
	}
	ln.refs++
	ln.stale = false
	l.mu.Unlock()

	// Lock outside the global mutex so other conversations are not blocked.
	ln.mu.Lock()
}

// Release unlocks the per-conversation mutex for the given key.
// The caller must have previously called Acquire with the same key.
func (l *LaneLock) Release(key ConversationKey) {
	l.mu.Lock()
	ln, ok := l.lanes[key]
	if !ok {
		l.mu.Unlock()
		return
	}
	ln.refs--
	deleteNow := ln.refs == 0 && ln.stale
	if deleteNow {
		delete(l.lanes, key)
	}
	l.mu.Unlock()

	ln.mu.Unlock()
}

// Cleanup removes lane entries for conversations that are no longer active.
// activeKeys should contain only the keys of currently live conversations.
// This prevents unbounded growth of the lane map over time.
func (l *LaneLock) Cleanup(activeKeys map[ConversationKey]struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, ln := range l.lanes {
		if _, active := activeKeys[key]; !active {
			ln.stale = true
			if ln.refs == 0 {
				delete(l.lanes, key)
			}
			continue
		}
		ln.stale = false
	}
}
