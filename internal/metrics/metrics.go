// Package metrics records load counters and step timings through a global,
// pluggable Backend. The default backend discards everything, so callers never
// need to check whether metrics are configured.
package metrics

import (
	"sync"
	"time"
)

// Metric names understood by the concrete backends.
const (
	StepTotal    = "load_step_total"
	StepDuration = "load_step_duration_seconds"
	RecordsTotal = "load_records_total"
)

// Record kinds reported through RecordRows.
const (
	KindRead            = "read"
	KindKeyDropped      = "key_dropped"
	KindDuplicate       = "duplicate"
	KindCoercionFailed  = "coercion_failed"
	KindSkippedExisting = "skipped_existing"
	KindInserted        = "inserted"
	KindInsertFailed    = "insert_failed"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is implemented by each metrics system.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes buffered data, if the backend buffers at all.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b. A nil b restores the no-op backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		b = nopBackend{}
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the installed backend.
func Flush() error { return current().Flush() }

// RecordStep counts one step execution for an entity and observes its
// duration. The status label is "success" or "failure" depending on err.
func RecordStep(entity, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"entity": entity, "step": step, "status": status}
	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRows adds n records of the given kind. Non-positive n is ignored.
func RecordRows(entity, kind string, n int) {
	if n <= 0 {
		return
	}
	current().IncCounter(RecordsTotal, float64(n), Labels{"entity": entity, "kind": kind})
}
