// Package telemetry accumulates structured events for oracle and agent calls
// during a task run and provides a pure aggregation fold over the event
// stream for external metrics consumers.
package telemetry

import (
	"sync"
	"time"

	"github.com/hupe1980/crewmesh/core"
)

// Recorder collects the telemetry event stream of one task run. Events are
// append-only and write-once: Begin opens an event, the returned closer seals
// it exactly once, and Events exposes defensive copies only. Safe for
// concurrent use.
type Recorder struct {
	taskID string

	mu     sync.Mutex
	events []core.TelemetryEvent
}

// NewRecorder constructs a recorder attributed to one task.
func NewRecorder(taskID string) *Recorder {
	return &Recorder{taskID: taskID}
}

// EndFunc seals a telemetry event opened by Begin. err == nil marks success;
// usage may be zero for agent calls.
type EndFunc func(usage core.TokenUsage, err error)

// Begin opens a telemetry event for a call against target. The event is
// appended when the returned EndFunc runs; calling it more than once is a
// no-op.
func (r *Recorder) Begin(kind core.TelemetryKind, target string) EndFunc {
	start := time.Now().UTC()
	var once sync.Once

	return func(usage core.TokenUsage, err error) {
		once.Do(func() {
			ev := core.TelemetryEvent{
				ID:               core.NewID(),
				TaskID:           r.taskID,
				Kind:             kind,
				Target:           target,
				Start:            start,
				End:              time.Now().UTC(),
				Success:          err == nil,
				PromptTokens:     usage.PromptTokens,
				CompletionTokens: usage.CompletionTokens,
			}
			if err != nil {
				ev.Error = err.Error()
			}
			r.mu.Lock()
			r.events = append(r.events, ev)
			r.mu.Unlock()
		})
	}
}

// Events returns a copy of all recorded events in append order.
func (r *Recorder) Events() []core.TelemetryEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := make([]core.TelemetryEvent, len(r.events))
	copy(events, r.events)
	return events
}

// Count returns the number of recorded events of the given kind.
func (r *Recorder) Count(kind core.TelemetryKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}
