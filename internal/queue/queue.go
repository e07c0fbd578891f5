// Package queue implements the bounded FIFO that is the sole
// synchronization point between the upstream producers (HTTP poller,
// WebSocket client) and the downstream database writer.
package queue

import (
	"sync"

	"github.com/projectyurei/yurei-jsonrpc-client/internal/event"
	"github.com/projectyurei/yurei-jsonrpc-client/internal/ingesterr"
)

// DefaultCapacity is used when a caller configures a non-positive capacity.
const DefaultCapacity = 1024

// Queue is a thread-safe, fixed-capacity FIFO of Events. It is built on a
// mutex and two condition variables (not-full, not-empty) rather than a
// plain buffered channel so that push-on-closed can return an error instead
// of panicking, and so Close can wake every blocked waiter at once.
type Queue struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond

	buf      []event.Event
	head     int // index of the oldest element
	size     int
	capacity int
	closed   bool
}

// New creates a Queue with the given capacity, clamping non-positive values
// to DefaultCapacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	q := &Queue{
		buf:      make([]event.Event, capacity),
		capacity: capacity,
	}
	q.notFull = sync.NewCond(&q.mu)
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Push blocks while the queue is full and open, copies ev into the buffer,
// and wakes at most one waiting popper. It returns ErrQueueClosed without
// enqueueing if the queue has already been closed.
func (q *Queue) Push(ev event.Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.size == q.capacity && !q.closed {
		q.notFull.Wait()
	}
	if q.closed {
		return ingesterr.ErrQueueClosed
	}

	tail := (q.head + q.size) % q.capacity
	q.buf[tail] = ev
	q.size++

	q.notEmpty.Signal()
	return nil
}

// Pop blocks while the queue is empty and open. Once the queue is closed and
// drained, it returns ok=false to signal end-of-stream.
func (q *Queue) Pop() (ev event.Event, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.size == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if q.size == 0 {
		return event.Event{}, false
	}

	ev = q.buf[q.head]
	q.buf[q.head] = event.Event{}
	q.head = (q.head + 1) % q.capacity
	q.size--

	q.notFull.Signal()
	return ev, true
}

// Close transitions the queue to its closed terminal state and wakes every
// waiter. Idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.notFull.Broadcast()
	q.notEmpty.Broadcast()
}

// Len returns the current number of buffered events. Intended for metrics
// and tests; the value can be stale the instant it's read under concurrent
// access.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Cap returns the queue's fixed capacity.
func (q *Queue) Cap() int {
	return q.capacity
}
