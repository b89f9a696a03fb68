package events

import (
	"sync"

	"rebasevault/core/types"
)

// Event represents a structured state change emitted by the vault.
type Event interface {
	EventType() string
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Buffer holds events raised inside a unit of work until the work commits.
// Events from discarded work are dropped with Reset.
type Buffer struct {
	pending []Event
}

// Emit implements the Emitter interface.
func (b *Buffer) Emit(e Event) {
	if b == nil || e == nil {
		return
	}
	b.pending = append(b.pending, e)
}

// Events returns the buffered events in emission order.
func (b *Buffer) Events() []Event {
	if b == nil {
		return nil
	}
	return append([]Event(nil), b.pending...)
}

// Flush forwards the buffered events to the downstream emitter and clears the
// buffer.
func (b *Buffer) Flush(to Emitter) {
	if b == nil {
		return
	}
	if to != nil {
		for _, e := range b.pending {
			to.Emit(e)
		}
	}
	b.pending = nil
}

// Reset drops every buffered event.
func (b *Buffer) Reset() {
	if b != nil {
		b.pending = nil
	}
}

// Recorder keeps the most recent events in memory for query endpoints.
type Recorder struct {
	mu     sync.RWMutex
	limit  int
	events []types.Event
}

// NewRecorder retains up to limit events; non-positive limits default to 256.
func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = 256
	}
	return &Recorder{limit: limit}
}

// Emit implements the Emitter interface.
func (r *Recorder) Emit(e Event) {
	if r == nil || e == nil {
		return
	}
	rendered := e.Event()
	if rendered == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *rendered)
	if over := len(r.events) - r.limit; over > 0 {
		r.events = append([]types.Event(nil), r.events[over:]...)
	}
}

// Recent returns up to n of the newest events, oldest first.
func (r *Recorder) Recent(n int) []types.Event {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n <= 0 || n > len(r.events) {
		n = len(r.events)
	}
	return append([]types.Event(nil), r.events[len(r.events)-n:]...)
}

// Fanout forwards every event to each emitter in order.
type Fanout []Emitter

// Emit implements the Emitter interface.
func (f Fanout) Emit(e Event) {
	for _, emitter := range f {
		if emitter != nil {
			emitter.Emit(e)
		}
	}
}
