// Package metrics exposes Prometheus counters for document loading, boundary
// union and playback.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Document kinds used as the "kind" label.
const (
	KindBlocks   = "blocks"
	KindTree     = "tree"
	KindDistrict = "district"
)

// Outcomes used as the "outcome" label.
const (
	OutcomeOK        = "ok"
	OutcomeNotFound  = "not_found"
	OutcomeMalformed = "malformed"
	OutcomeError     = "error"
)

// Metrics owns a private registry so several viewers (and tests) can coexist
// in one process. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	DocumentsLoaded *prometheus.CounterVec
	LoadDurationMs  *prometheus.HistogramVec
	UnionFailures   prometheus.Counter
	PlaybackSteps   prometheus.Counter
	Iteration       prometheus.Gauge
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		DocumentsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "falcomplot_documents_loaded_total",
			Help: "Documents fetched by kind and outcome",
		}, []string{"kind", "outcome"}),
		LoadDurationMs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "falcomplot_load_duration_ms",
			Help:    "Document fetch and decode duration in milliseconds",
			Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
		}, []string{"kind"}),
		UnionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "falcomplot_union_failures_total",
			Help: "District boundary unions that failed and were skipped",
		}),
		PlaybackSteps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "falcomplot_playback_steps_total",
			Help: "Iterations advanced by playback",
		}),
		Iteration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "falcomplot_iteration",
			Help: "Currently displayed iteration",
		}),
	}
	m.registry.MustRegister(
		m.DocumentsLoaded,
		m.LoadDurationMs,
		m.UnionFailures,
		m.PlaybackSteps,
		m.Iteration,
		prometheus.NewGoCollector(),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveLoad records one document fetch.
func (m *Metrics) ObserveLoad(kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.DocumentsLoaded.WithLabelValues(kind, outcome).Inc()
	m.LoadDurationMs.WithLabelValues(kind).Observe(float64(d) / float64(time.Millisecond))
}

// UnionFailed records a skipped district boundary.
func (m *Metrics) UnionFailed() {
	if m == nil {
		return
	}
	m.UnionFailures.Inc()
}

// Stepped records a playback advance to iteration.
func (m *Metrics) Stepped(iteration int) {
	if m == nil {
		return
	}
	m.PlaybackSteps.Inc()
	m.Iteration.Set(float64(iteration))
}

// SetIteration records a jump without counting a step.
func (m *Metrics) SetIteration(iteration int) {
	if m == nil {
		return
	}
	m.Iteration.Set(float64(iteration))
}
