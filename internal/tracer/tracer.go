// Package tracer records the per-request diagnostic trace returned with every answer.
package tracer

import (
	"sync"
	"time"
)

// Event is one named step of a request. Rows and MS are nil when not measured.
type Event struct {
	Step   string `json:"step"`
	Detail string `json:"detail"`
	Rows   *int   `json:"rows"`
	MS     *int64 `json:"ms"`
}

// Tracer is an append-only log of events for a single request.
// Append order is temporal order; events are never merged.
type Tracer struct {
	mu     sync.Mutex
	events []Event
}

func New() *Tracer {
	return &Tracer{}
}

// Record appends an event with a row count and elapsed milliseconds.
func (t *Tracer) Record(step, detail string, rows int, ms int64) {
	t.append(Event{Step: step, Detail: detail, Rows: &rows, MS: &ms})
}

func (t *Tracer) append(e Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, e)
}

// Events returns a copy of the recorded events in append order.
func (t *Tracer) Events() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}

// Len returns the number of recorded events.
func (t *Tracer) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.events)
}

// Measurement is the row count and elapsed time of one finished step.
type Measurement struct {
	Rows int
	MS   int64
}

// Measure runs fn and times it. Callers that run steps concurrently measure in
// each goroutine and Record afterwards in a fixed order.
func Measure(fn func() (int, error)) (Measurement, error) {
	start := time.Now()
	rows, err := fn()
	return Measurement{Rows: rows, MS: time.Since(start).Milliseconds()}, err
}

// RecordMeasurement appends step with a measurement taken by Measure.
func (t *Tracer) RecordMeasurement(step, detail string, m Measurement) {
	t.Record(step, detail, m.Rows, m.MS)
}
