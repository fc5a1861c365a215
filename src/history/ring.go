package history

import (
	"fmt"
	"sync"
)

/*
Ring is a fixed-capacity rolling window. Push overwrites the oldest entry
once the ring is full; Snapshot returns what has actually been pushed,
oldest first, so a ring that has only seen two entries hands back two.

Push and Snapshot take the same lock, so a producer and a decoder may run
on different goroutines without a snapshot observing a half-written slot.
*/
type Ring[T any] struct {
	mu   sync.Mutex
	buf  []T
	seen uint64
}

// New creates a Ring holding at most capacity entries.
func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		panic(fmt.Errorf("history: capacity must be positive, got %d", capacity))
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push inserts v as the newest entry, evicting the oldest when full.
func (r *Ring[T]) Push(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.seen%uint64(len(r.buf))] = v
	r.seen++
}

// Snapshot returns min(Seen, Cap) entries, oldest first.
func (r *Ring[T]) Snapshot() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Ring[T]) snapshotLocked() []T {
	size := uint64(len(r.buf))
	n := min(r.seen, size)
	out := make([]T, n)
	start := r.seen - n
	for i := range n {
		out[i] = r.buf[(start+i)%size]
	}
	return out
}

// Seen is the total number of entries ever pushed since the last Reset.
func (r *Ring[T]) Seen() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seen
}

// Len is the number of entries Snapshot would return.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int(min(r.seen, uint64(len(r.buf))))
}

func (r *Ring[T]) Cap() int { return len(r.buf) }

// Reset forgets every entry and restarts warm-up.
func (r *Ring[T]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.buf)
	r.seen = 0
}
