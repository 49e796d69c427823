package chat

import (
	"sync"
	"testing"
	"time"
)

func TestLaneLock_SerializesSameKey(t *testing.T) {
	t.Parallel()

	l := NewLaneLock()
	key := ConversationKey{User: "alice", Chat: "c1"}

	var mu sync.Mutex
	var order []int

	var wg sync.WaitGroup
	l.Acquire(key)

	wg.Add(1)
	go func() {
		defer wg.Done()
		l.Acquire(key)
		defer l.Release(key)
		mu.Lock()
		order = append(order, 2)
		mu.Unlock()
	}()

	// The goroutine must block until the first holder releases.
	time.Sleep(10 * time.Millisecond)
	mu.Lock()
	order = append(order, 1)
	mu.Unlock()
	l.Release(key)

	wg.Wait()
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("order = %v, want [1 2]", order)
	}
}

func TestLaneLock_DifferentKeysDoNotBlock(t *testing.T) {
	t.Parallel()

	l := NewLaneLock()
	a := ConversationKey{User: "alice", Chat: "c1"}
	b := ConversationKey{User: "bob", Chat: "c1"}

	l.Acquire(a)
	defer l.Release(a)

	done := make(chan struct{})
	go func() {
		l.Acquire(b)
		l.Release(b)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("acquiring a different key should not block")
	}
}

func TestLaneLock_CleanupRemovesInactive(t *testing.T) {
	t.Parallel()

	l := NewLaneLock()
	active := ConversationKey{User: "alice", Chat: "live"}
	gone := ConversationKey{User: "alice", Chat: "dead"}

	l.Acquire(active)
	l.Release(active)
	l.Acquire(gone)
	l.Release(gone)

	l.Cleanup(map[ConversationKey]struct{}{active: {}})

	l.mu.Lock()
	_, hasActive := l.lanes[active]
	_, hasGone := l.lanes[gone]
	l.mu.Unlock()

	if !hasActive {
		t.Error("active lane should survive cleanup")
	}
	if hasGone {
		t.Error("inactive lane should be removed")
	}
}

func TestLaneLock_CleanupDefersHeldLane(t *testing.T) {
	t.Parallel()

	l := NewLaneLock()
	key := ConversationKey{User: "alice", Chat: "c1"}

	l.Acquire(key)
	l.Cleanup(map[ConversationKey]struct{}{})

	// Held lanes are only marked stale, not removed.
	l.mu.Lock()
	_, present := l.lanes[key]
	l.mu.Unlock()
	if !present {
		t.Fatal("held lane must not be removed by cleanup")
	}

	// Release of a stale lane with no other holders drops the entry.
	l.Release(key)
	l.mu.Lock()
	_, present = l.lanes[key]
	l.mu.Unlock()
	if present {
		t.Error("stale lane should be dropped on release")
	}
}
