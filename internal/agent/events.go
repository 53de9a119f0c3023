package agent

import (
	"log"
	"sync/atomic"
	"time"
)

// EventType represents the kind of process event.
type EventType string

const (
	// EventOutput carries a decoded line from a process stream.
	EventOutput EventType = "output"
	// EventExit indicates a process terminated.
	EventExit EventType = "exit"
	// EventError indicates a spawn or stream failure.
	EventError EventType = "error"
)

// Channel identifies which stream a line arrived on.
type Channel string

const (
	// ChannelStdout is the structured output stream.
	ChannelStdout Channel = "stdout"
	// ChannelStderr is the diagnostic stream.
	ChannelStderr Channel = "stderr"
)

// Event is emitted by the Manager as processes produce output and exit.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// AgentID is the slot that produced the event.
	AgentID string
	// Channel is the stream the text arrived on (output events).
	Channel Channel
	// Text is the line content (output events).
	Text string
	// Record is the decoded record behind the text, when structured.
	Record *Record
	// ExitCode is the process exit code (exit events; -1 when signaled).
	ExitCode int
	// Signal is the terminating signal name, if any (exit events).
	Signal string
	// ContinuityID is the slot's tracked session id at exit, if known.
	ContinuityID string
	// Message holds error details (error events).
	Message string
	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// Emitter delivers events to the Manager's single subscriber without
// blocking process goroutines indefinitely.
type Emitter struct {
	events       chan Event
	droppedCount atomic.Uint64
}

// NewEmitter creates an Emitter with the given buffer size.
func NewEmitter(bufferSize int) *Emitter {
	return &Emitter{
		events: make(chan Event, bufferSize),
	}
}

// Emit sends an event to the events channel. If the channel stays full past
// a short grace period the event is dropped and counted.
func (e *Emitter) Emit(event Event) {
	select {
	case e.events <- event:
		return
	default:
	}

	select {
	case e.events <- event:
	case <-time.After(100 * time.Millisecond):
		count := e.droppedCount.Add(1)
		if count%10 == 1 {
			log.Printf("[agent] WARNING: event channel full, dropped event (total dropped: %d): type=%s agent=%s",
				count, event.Type, event.AgentID)
		}
	}
}

// DroppedCount returns the total number of events that have been dropped.
func (e *Emitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Events returns the read-only channel subscribers drain.
func (e *Emitter) Events() <-chan Event {
	return e.events
}
