// Package metrics exposes reconciliation counters for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ppiankov/factgate/internal/errors"
	"github.com/ppiankov/factgate/internal/model"
)

const namespace = "factgate"

// Metrics records reconciliation outcomes on its own registry
type Metrics struct {
	registry  *prometheus.Registry
	outcomes  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	conflicts *prometheus.CounterVec
	duration  prometheus.Histogram
}

// New creates a Metrics instance with a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliations_total",
			Help:      "Reconciled claims by gate status.",
		}, []string{"status"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliation_errors_total",
			Help:      "Failed reconciliations by error kind.",
		}, []string{"kind"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fact_conflicts_total",
			Help:      "Fact conflicts detected, by fact name.",
		}, []string{"fact_name"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_duration_seconds",
			Help:      "Time spent reconciling one claim.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
	m.registry.MustRegister(m.outcomes, m.errors, m.conflicts, m.duration)
	return m
}

// Record counts one finished reconciliation
func (m *Metrics) Record(result model.ReconciliationResult, elapsed time.Duration) {
	m.duration.Observe(elapsed.Seconds())

	if !result.Success {
		kind := result.ErrorKind
		if kind == errors.KindNone {
			kind = "unknown"
		}
		m.errors.WithLabelValues(string(kind)).Inc()
		return
	}

	m.outcomes.WithLabelValues(string(result.Report.Gate.Status)).Inc()
	for _, c := range result.Report.Conflicts {
		m.conflicts.WithLabelValues(c.FactName).Inc()
	}
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the metrics for the node_exporter textfile collector
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
