package engine

import (
	"sync"

	"github.com/roach88/kobzar/internal/ident"
)

// EventType distinguishes between event kinds.
type EventType int

const (
	// EventTypeRequested asks the loop to confirm whatever request the
	// thread has pending that the loop is responsible for.
	EventTypeRequested EventType = iota + 1
	// EventTypeExited reports that a thread body returned.
	EventTypeExited
)

func (t EventType) String() string {
	switch t {
	case EventTypeRequested:
		return "requested"
	case EventTypeExited:
		return "exited"
	}
	return "unknown"
}

// Event is a confirmation request for the scheduler loop.
type Event struct {
	Type   EventType
	Thread ident.Uid
	// Err is the body's return value for EventTypeExited.
	Err error
}

// eventQueue is the loop's unbounded FIFO inbox. Owners and bodies
// enqueue from any goroutine without blocking; only Run dequeues.
//
// A Requested event for a thread that already has one queued is dropped:
// the loop reads the thread's state when it confirms, so the queued event
// covers the newer request too. Exited events are never merged.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	head   int
	queued map[ident.Uid]bool // threads with a Requested event waiting
	merged int
	closed bool
	signal chan struct{} // buffered 1; closed by Close
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 64),
		queued: make(map[ident.Uid]bool),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends e. It reports false once the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if e.Type == EventTypeRequested {
		if q.queued[e.Thread] {
			q.merged++
			return true
		}
		q.queued[e.Thread] = true
	}
	q.events = append(q.events, e)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue pops the oldest event, or reports false when empty.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head == len(q.events) {
		return Event{}, false
	}
	e := q.events[q.head]
	q.events[q.head] = Event{} // drop the Err reference
	q.head++
	if e.Type == EventTypeRequested {
		delete(q.queued, e.Thread)
	}

	// Reclaim the consumed prefix once it dominates the slice.
	switch {
	case q.head == len(q.events):
		q.events, q.head = q.events[:0], 0
	case q.head > 32 && q.head*2 > len(q.events):
		n := copy(q.events, q.events[q.head:])
		clear(q.events[n:])
		q.events, q.head = q.events[:n], 0
	}
	return e, true
}

// Wait returns a channel that receives when events may be available and
// is closed by Close. Pair it with TryDequeue in a select on ctx.Done().
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued events.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events) - q.head
}

// Merged returns how many Requested events were folded into one already
// queued for the same thread.
func (q *eventQueue) Merged() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.merged
}

// Close stops further enqueues and wakes waiters. Queued events stay
// available to TryDequeue.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// Closed reports whether Close has been called.
func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
