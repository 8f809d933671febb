// Package datadog is a metrics.Backend that forwards to a DogStatsD agent.
// Labels become sorted "key:value" tags.
package datadog

import (
	"fmt"
	"sort"

	"plantload/internal/metrics"

	"github.com/DataDog/datadog-go/v5/statsd"
)

// Config holds the agent address and tagging.
type Config struct {
	// Addr is "host:port" or "unix:///path/to/dsd.socket".
	Addr string
	// Namespace prefixes every metric name, e.g. "plantload.".
	Namespace string
	// Tags are added to every metric, e.g. "env:prod".
	Tags []string
}

// Backend wraps a statsd client.
type Backend struct {
	client statsd.ClientInterface
}

// NewBackend dials the agent described by cfg.
func NewBackend(cfg Config) (*Backend, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("datadog: Addr is required")
	}
	var opts []statsd.Option
	if cfg.Namespace != "" {
		opts = append(opts, statsd.WithNamespace(cfg.Namespace))
	}
	if len(cfg.Tags) > 0 {
		opts = append(opts, statsd.WithTags(cfg.Tags))
	}
	c, err := statsd.New(cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("datadog: create client for %s: %w", cfg.Addr, err)
	}
	return &Backend{client: c}, nil
}

// IncCounter sends a count. DogStatsD counts are integral.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	_ = b.client.Count(name, int64(delta), tags(labels), 1)
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	_ = b.client.Histogram(name, value, tags(labels), 1)
}

// Flush sends everything buffered. The client stays usable, so scheduled
// runs can flush after every batch.
func (b *Backend) Flush() error {
	if err := b.client.Flush(); err != nil {
		return fmt.Errorf("datadog: flush: %w", err)
	}
	return nil
}

// Close flushes and releases the client.
func (b *Backend) Close() error { return b.client.Close() }

func tags(l metrics.Labels) []string {
	if len(l) == 0 {
		return nil
	}
	out := make([]string, 0, len(l))
	for k, v := range l {
		out = append(out, k+":"+v)
	}
	sort.Strings(out)
	return out
}
