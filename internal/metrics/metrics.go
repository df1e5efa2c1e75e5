// Package metrics defines the Prometheus collectors for filterit.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for filterit.
type Metrics struct {
	Operations     *prometheus.CounterVec
	RowsRemoved    *prometheus.CounterVec
	RowsLoaded     prometheus.Counter
	SessionsActive prometheus.Gauge
	LoadDuration   *prometheus.HistogramVec
	RateLimited    prometheus.Counter
}

// New creates the collectors and registers them on reg. A nil reg means
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	operations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filterit_operations_total",
			Help: "Session operations by outcome",
		},
		[]string{"operation", "result"},
	)

	rowsRemoved := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filterit_rows_removed_total",
			Help: "Rows removed by confirmed filters",
		},
		[]string{"rule"},
	)

	rowsLoaded := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "filterit_rows_loaded_total",
			Help: "Data rows read from loaded files",
		},
	)

	sessionsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "filterit_sessions_active",
			Help: "Sessions currently held by the server",
		},
	)

	loadDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filterit_load_duration_seconds",
			Help:    "Time taken to load a source file",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"format"},
	)

	rateLimited := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "filterit_rate_limited_total",
			Help: "Requests rejected by the per-IP rate limiter",
		},
	)

	reg.MustRegister(operations, rowsRemoved, rowsLoaded, sessionsActive, loadDuration, rateLimited)

	return &Metrics{
		Operations:     operations,
		RowsRemoved:    rowsRemoved,
		RowsLoaded:     rowsLoaded,
		SessionsActive: sessionsActive,
		LoadDuration:   loadDuration,
		RateLimited:    rateLimited,
	}
}

// Observe counts one operation. A nil *Metrics is a no-op.
func (m *Metrics) Observe(operation string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.Operations.WithLabelValues(operation, result).Inc()
}

// Removed adds n confirmed removals for rule.
func (m *Metrics) Removed(rule string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RowsRemoved.WithLabelValues(rule).Add(float64(n))
}

// Loaded adds n loaded rows.
func (m *Metrics) Loaded(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RowsLoaded.Add(float64(n))
}
