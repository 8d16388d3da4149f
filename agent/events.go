package agent

import (
	"sync"
	"time"
)

// EventKind identifies the type of run event.
type EventKind string

const (
	EventRunStart      EventKind = "run_start"
	EventStepStart     EventKind = "step_start"
	EventModelResponse EventKind = "model_response"
	EventActionPlanned EventKind = "action_planned"
	EventParseFallback EventKind = "parse_fallback"
	EventToolResult    EventKind = "tool_result"
	EventLoopDetected  EventKind = "loop_detected"
	EventError         EventKind = "error"
	EventRunEnd        EventKind = "run_end"
)

// RunEvent is a typed event emitted during a run.
type RunEvent struct {
	Kind      EventKind      `json:"kind"`
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id"`
	Step      int            `json:"step,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// EventEmitter delivers typed events to the host application via a channel.
// Emission never blocks the loop: when the buffer is full the event is
// dropped.
type EventEmitter struct {
	runID  string
	ch     chan RunEvent
	closed bool
	mu     sync.Mutex
}

// NewEventEmitter creates an EventEmitter with a buffered channel.
func NewEventEmitter(runID string, bufferSize int) *EventEmitter {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &EventEmitter{
		runID: runID,
		ch:    make(chan RunEvent, bufferSize),
	}
}

// Emit sends an event. If the emitter is closed or the buffer is full, the
// event is silently dropped.
func (e *EventEmitter) Emit(kind EventKind, step int, data map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	event := RunEvent{
		Kind:      kind,
		Timestamp: time.Now(),
		RunID:     e.runID,
		Step:      step,
		Data:      data,
	}
	select {
	case e.ch <- event:
	default:
		// Buffer full; drop instead of blocking the loop.
	}
}

// Events returns the read-only event channel.
func (e *EventEmitter) Events() <-chan RunEvent {
	return e.ch
}

// Close closes the event channel. Safe to call multiple times.
func (e *EventEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.ch)
	}
}
