// Package metrics counts dispatch outcomes for a single run and can dump
// them in the Prometheus text format for the node_exporter textfile
// collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Correlation results.
const (
	CorrelationFound  = "found"
	CorrelationMissed = "missed"
	CorrelationError  = "error"
)

// Recorder holds the run's collectors on a private registry. All methods
// are safe on a nil Recorder.
type Recorder struct {
	registry *prometheus.Registry

	items              *prometheus.CounterVec
	correlations       *prometheus.CounterVec
	correlationSeconds prometheus.Histogram
	runSeconds         prometheus.Gauge
	lastRun            prometheus.Gauge
}

// NewRecorder registers a fresh set of collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auditmailer_items_total",
			Help: "Total number of dispatch items processed, by outcome",
		}, []string{"outcome"}),
		correlations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auditmailer_correlation_total",
			Help: "Total number of sent-mailbox lookups, by result",
		}, []string{"result"}),
		correlationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "auditmailer_correlation_seconds",
			Help:    "Time spent waiting for and searching the sent mailbox",
			Buckets: []float64{1, 2, 3, 5, 10, 20, 30, 60},
		}),
		runSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "auditmailer_run_duration_seconds",
			Help: "Wall-clock duration of the last dispatch run",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "auditmailer_last_run_timestamp_seconds",
			Help: "Unix time the last dispatch run finished",
		}),
	}

	r.registry.MustRegister(r.items, r.correlations, r.correlationSeconds, r.runSeconds, r.lastRun)
	return r
}

// ItemProcessed counts one item with the given outcome.
func (r *Recorder) ItemProcessed(outcome string) {
	if r == nil {
		return
	}
	r.items.WithLabelValues(outcome).Inc()
}

// ObserveCorrelation records one lookup.
func (r *Recorder) ObserveCorrelation(result string, d time.Duration) {
	if r == nil {
		return
	}
	r.correlations.WithLabelValues(result).Inc()
	r.correlationSeconds.Observe(d.Seconds())
}

// ObserveRun records the run duration and completion time.
func (r *Recorder) ObserveRun(d time.Duration, finished time.Time) {
	if r == nil {
		return
	}
	r.runSeconds.Set(d.Seconds())
	r.lastRun.Set(float64(finished.Unix()))
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// WriteTextfile atomically writes all collected metrics to path.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
