// Package metrics exposes Prometheus collectors for comparison runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "po_reconciler"

// Run outcomes.
const (
	OutcomeSuccess     = "success"
	OutcomeConfigError = "config_error"
	OutcomeImportError = "import_error"
	OutcomeFailed      = "failed"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	runs          *prometheus.CounterVec
	duration      prometheus.Histogram
	discrepancies *prometheus.CounterVec
	unmatched     *prometheus.CounterVec
	matches       *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Comparison runs by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a comparison run including import and reports.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		discrepancies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discrepancies_total",
			Help:      "Matched pairs by alert severity.",
		}, []string{"severity"}),
		unmatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unmatched_items_total",
			Help:      "Items left without a counterpart.",
		}, []string{"document", "reason"}),
		matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_total",
			Help:      "Matched pairs by tier.",
		}, []string{"tier"}),
	}

	m.registry.MustRegister(
		m.runs, m.duration, m.discrepancies, m.unmatched, m.matches,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRun records the outcome and duration of one run.
func (m *Metrics) ObserveRun(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
	m.duration.Observe(elapsed.Seconds())
}

// AddDiscrepancies counts pairs of one severity.
func (m *Metrics) AddDiscrepancies(severity string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.discrepancies.WithLabelValues(severity).Add(float64(n))
}

// AddUnmatched counts unmatched items of one document and reason.
func (m *Metrics) AddUnmatched(document, reason string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.unmatched.WithLabelValues(document, reason).Add(float64(n))
}

// AddMatches counts pairs produced by one tier.
func (m *Metrics) AddMatches(tier string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.matches.WithLabelValues(tier).Add(float64(n))
}
