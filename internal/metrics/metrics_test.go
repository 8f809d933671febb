package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type call struct {
	name   string
	value  float64
	labels Labels
}

type fakeBackend struct {
	mu       sync.Mutex
	counters []call
	hists    []call
	flushed  int
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters = append(f.counters, call{name, delta, labels})
}

func (f *fakeBackend) ObserveHistogram(name string, value float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hists = append(f.hists, call{name, value, labels})
}

func (f *fakeBackend) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushed++
	return nil
}

func install(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{}
	SetBackend(fb)
	t.Cleanup(func() { SetBackend(nil) })
	return fb
}

func TestRecordStep(t *testing.T) {
	fb := install(t)

	RecordStep("zlecenia", "load", nil, 2*time.Second)
	RecordStep("linie", "transform", errors.New("boom"), 500*time.Millisecond)

	if len(fb.counters) != 2 || len(fb.hists) != 2 {
		t.Fatalf("counters=%d hists=%d", len(fb.counters), len(fb.hists))
	}
	if c := fb.counters[0]; c.name != StepTotal || c.value != 1 || c.labels["status"] != "success" || c.labels["entity"] != "zlecenia" {
		t.Fatalf("counter[0]=%+v", c)
	}
	if c := fb.counters[1]; c.labels["status"] != "failure" || c.labels["step"] != "transform" {
		t.Fatalf("counter[1]=%+v", c)
	}
	if h := fb.hists[1]; h.name != StepDuration || h.value != 0.5 {
		t.Fatalf("hist[1]=%+v", h)
	}
}

func TestRecordRows_IgnoresNonPositive(t *testing.T) {
	fb := install(t)

	RecordRows("zlecenia", KindInserted, 0)
	RecordRows("zlecenia", KindInserted, -3)
	RecordRows("zlecenia", KindInserted, 7)

	if len(fb.counters) != 1 {
		t.Fatalf("counters=%+v", fb.counters)
	}
	if c := fb.counters[0]; c.name != RecordsTotal || c.value != 7 || c.labels["kind"] != KindInserted {
		t.Fatalf("counter=%+v", c)
	}
}

func TestFlushAndNilBackend(t *testing.T) {
	fb := install(t)
	if err := Flush(); err != nil || fb.flushed != 1 {
		t.Fatalf("err=%v flushed=%d", err, fb.flushed)
	}

	SetBackend(nil)
	RecordRows("x", KindRead, 1)
	if err := Flush(); err != nil {
		t.Fatalf("nop flush: %v", err)
	}
	if len(fb.counters) != 0 {
		t.Fatal("replaced backend still receives calls")
	}
}
