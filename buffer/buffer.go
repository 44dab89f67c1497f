// Package buffer implements the bounded in-memory event sequence from
// spec §4.5: push/drain/len, with the critical re-insert-at-front rule a
// failed flush must honor so no event is ever silently discarded.
package buffer

import (
	"sync"

	"github.com/tomtom215/mallardmetrics/event"
)

// Buffer is a mutex-guarded, insertion-ordered sequence of event.Event.
// Drain is the sole mutator during its critical section — concurrent
// pushers block for its duration, per spec §4.5 and the concurrency
// discipline table in spec §5.
type Buffer struct {
	mu     sync.Mutex
	events []event.Event
}

// New creates an empty buffer.
func New() *Buffer {
	return &Buffer{}
}

// Push appends e and returns the buffer's length after the append.
func (b *Buffer) Push(e event.Event) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
	return len(b.events)
}

// Drain atomically removes and returns every buffered event, in insertion
// order, leaving the buffer empty.
func (b *Buffer) Drain() []event.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) == 0 {
		return nil
	}
	drained := b.events
	b.events = nil
	return drained
}

// Restore re-inserts a previously drained batch at the front of the
// buffer, ahead of anything pushed while the flush attempt was in
// flight. This is the failure-recovery path spec §4.5 requires: a flush
// that fails partway must never lose events, only delay them.
func (b *Buffer) Restore(drained []event.Event) {
	if len(drained) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(append([]event.Event{}, drained...), b.events...)
}

// Len reports the buffer's current size. Advisory only — it may be stale
// the instant it is read under concurrent pushes.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}
