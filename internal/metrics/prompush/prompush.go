// Package prompush is a metrics.Backend that collects into a private
// Prometheus registry and pushes it to a Pushgateway on Flush. Batch runs are
// short-lived, so there is no scrape endpoint.
package prompush

import (
	"fmt"

	"plantload/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Backend pushes load metrics to a Pushgateway.
type Backend struct {
	gatewayURL string
	job        string
	instance   string
	reg        *prometheus.Registry

	steps    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	records  *prometheus.CounterVec
}

// NewBackend registers the load collectors. job defaults to "plantload".
// instance, when set, becomes a Pushgateway grouping key so that concurrent
// runs on different hosts do not overwrite each other.
func NewBackend(job, instance, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if job == "" {
		job = "plantload"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		job:        job,
		instance:   instance,
		reg:        prometheus.NewRegistry(),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Entity file steps executed, by entity, step and status.",
		}, []string{"entity", "step", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metrics.StepDuration,
			Help:    "Duration of entity file steps in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 4, 8),
		}, []string{"entity", "step", "status"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Records per entity and outcome (read, inserted, skipped_existing, ...).",
		}, []string{"entity", "kind"}),
	}
	for _, c := range []prometheus.Collector{b.steps, b.duration, b.records} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register: %w", err)
		}
	}
	return b, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		b.steps.WithLabelValues(labels["entity"], labels["step"], labels["status"]).Add(delta)
	case metrics.RecordsTotal:
		b.records.WithLabelValues(labels["entity"], labels["kind"]).Add(delta)
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDuration {
		return
	}
	b.duration.WithLabelValues(labels["entity"], labels["step"], labels["status"]).Observe(value)
}

// Flush replaces the job's metric group on the Pushgateway.
func (b *Backend) Flush() error {
	p := push.New(b.gatewayURL, b.job).Gatherer(b.reg)
	if b.instance != "" {
		p = p.Grouping("instance", b.instance)
	}
	if err := p.Push(); err != nil {
		return fmt.Errorf("prompush: push to %s: %w", b.gatewayURL, err)
	}
	return nil
}
