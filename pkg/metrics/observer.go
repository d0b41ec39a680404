// Package metrics carries the recorder's telemetry: every stage of a
// session (rolling windows, suggestion analysis, finalization, quota
// policy) reports named events to an Observer. Observers compose, so
// the same stream can feed Prometheus, a JSONL audit file, or an
// in-memory sink for tests.
package metrics

import "time"

// MetricsEvent is one telemetry sample. Name is one of the Event*
// constants; Tags carry low-cardinality dimensions (component,
// session), Fields carry everything else.
type MetricsEvent struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

// Observer consumes telemetry events. Implementations must be safe
// for concurrent use; RecordEvent is called from session goroutines
// and must not block.
type Observer interface {
	RecordEvent(ev MetricsEvent)
}

// NoopObserver discards everything. It is the default when no
// observability backend is configured.
type NoopObserver struct{}

func (NoopObserver) RecordEvent(MetricsEvent) {}
