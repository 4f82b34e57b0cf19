// Package event describes philosopher lifecycle events and where they go.
package event // "github.com/nickng/dinephil/event"

import (
	"fmt"
	"sync"
	"time"
)

// Kind is the kind of a lifecycle transition.
type Kind int

const (
	ThinkingStart Kind = iota
	Acquiring
	Acquired
	EatingStart
	EatingEnd
)

var kindNames = [...]string{
	ThinkingStart: "THINKING_START",
	Acquiring:     "ACQUIRING",
	Acquired:      "ACQUIRED",
	EatingStart:   "EATING_START",
	EatingEnd:     "EATING_END",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Event is one lifecycle transition of a philosopher.
type Event struct {
	Philosopher int
	Kind        Kind
	Time        time.Time

	// Duration annotates the event: planned think time for ThinkingStart,
	// time spent acquiring for Acquired, planned eat time for EatingStart
	// and actual eat time for EatingEnd.
	Duration time.Duration
}

func (e Event) String() string {
	if e.Duration > 0 {
		return fmt.Sprintf("philosopher %d %s %s", e.Philosopher, e.Kind, e.Duration)
	}
	return fmt.Sprintf("philosopher %d %s", e.Philosopher, e.Kind)
}

// Sink receives events. Emit is called concurrently by all philosophers.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// Discard drops all events.
var Discard Sink = SinkFunc(func(Event) {})

type multi []Sink

func (m multi) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

// Multi emits every event to all sinks in order. Nil sinks are skipped.
func Multi(sinks ...Sink) Sink {
	var m multi
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	if len(m) == 1 {
		return m[0]
	}
	return m
}

// Recorder keeps the most recent events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	limit  int
}

// NewRecorder creates a Recorder keeping at most limit events, or all events
// if limit <= 0.
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	if r.limit > 0 && len(r.events) > r.limit {
		r.events = append(r.events[:0], r.events[len(r.events)-r.limit:]...)
	}
}

// Events returns a copy of the recorded events, oldest first.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Count returns the number of recorded events of kind k.
func (r *Recorder) Count(k Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == k {
			n++
		}
	}
	return n
}
