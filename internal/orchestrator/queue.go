package orchestrator

import (
	"log"
	"sync"
)

// EventQueue is a bounded FIFO of orchestration events with a capped
// history ring of consumed events. When the queue is full the oldest
// pending event is evicted: dropping stale triggers is preferable to
// unbounded growth, since a single fresh dispatch observes current board
// state anyway.
type EventQueue struct {
	mu      sync.Mutex
	pending []Event
	cap     int

	history    []Event
	historyCap int
	dropped    uint64
}

// NewEventQueue creates a queue holding at most capacity pending events and
// historyCap consumed events.
func NewEventQueue(capacity, historyCap int) *EventQueue {
	return &EventQueue{
		pending:    make([]Event, 0, capacity),
		cap:        capacity,
		historyCap: historyCap,
	}
}

// Enqueue appends an event, evicting the oldest pending event when full.
func (q *EventQueue) Enqueue(ev Event) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) >= q.cap {
		q.dropped++
		log.Printf("[queue] full (%d), dropping oldest event %s (total dropped: %d)",
			q.cap, q.pending[0].Type, q.dropped)
		copy(q.pending, q.pending[1:])
		q.pending[len(q.pending)-1] = ev
		return
	}
	q.pending = append(q.pending, ev)
}

// Pop removes and returns the oldest pending event. Consumed events are
// retained in the history ring for context building.
func (q *EventQueue) Pop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return Event{}, false
	}
	ev := q.pending[0]
	copy(q.pending, q.pending[1:])
	q.pending = q.pending[:len(q.pending)-1]

	q.history = append(q.history, ev)
	if len(q.history) > q.historyCap {
		q.history = q.history[len(q.history)-q.historyCap:]
	}
	return ev, true
}

// Len returns the number of pending events.
func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// History returns a copy of the consumed-event ring, oldest first.
func (q *EventQueue) History() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Event, len(q.history))
	copy(out, q.history)
	return out
}

// Dropped returns the number of events evicted due to saturation.
func (q *EventQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
