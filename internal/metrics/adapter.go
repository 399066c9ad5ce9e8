package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every lakehouse metric.
const Namespace = "lakehouse"

// Status label values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

func status(success bool) string {
	if success {
		return StatusSuccess
	}
	return StatusFailure
}

// DefaultStatementLatencyBuckets cover local DuckDB statements (sub-ms) up to
// REST-catalog-backed DDL that commits Iceberg metadata (seconds).
var DefaultStatementLatencyBuckets = []float64{
	0.0005, // 0.5ms
	0.001,  // 1ms
	0.005,  // 5ms
	0.01,   // 10ms
	0.05,   // 50ms
	0.1,    // 100ms
	0.25,   // 250ms
	0.5,    // 500ms
	1.0,    // 1s
	2.5,    // 2.5s
	5.0,    // 5s
	10.0,   // 10s
	30.0,   // 30s
}

// AdapterMetrics holds metrics for the engine adapters. It satisfies
// engine.MetricsRecorder.
type AdapterMetrics struct {
	// TranslationsTotal counts abstract operations by how they were translated.
	// Labels: operation (create_view, drop_view, ...), outcome (passthrough, rewrite, noop)
	TranslationsTotal *prometheus.CounterVec

	// StatementsTotal counts backend statements by status.
	StatementsTotal *prometheus.CounterVec

	// StatementLatency tracks backend statement latency.
	StatementLatency *prometheus.HistogramVec
}

// NewAdapterMetrics creates adapter metrics registered with the default registry.
func NewAdapterMetrics() *AdapterMetrics {
	return NewAdapterMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewAdapterMetricsWithRegistry creates adapter metrics registered with reg.
func NewAdapterMetricsWithRegistry(reg prometheus.Registerer) *AdapterMetrics {
	f := promauto.With(reg)
	return &AdapterMetrics{
		TranslationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "adapter",
				Name:      "translations_total",
				Help:      "Total adapter operations, broken down by operation and translation outcome.",
			},
			[]string{"operation", "outcome"},
		),
		StatementsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "adapter",
				Name:      "statements_total",
				Help:      "Total statements issued to the backend, broken down by status.",
			},
			[]string{"status"},
		),
		StatementLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "adapter",
				Name:      "statement_latency_seconds",
				Help:      "Backend statement latency in seconds, broken down by status.",
				Buckets:   DefaultStatementLatencyBuckets,
			},
			[]string{"status"},
		),
	}
}

// RecordTranslation counts one translated operation.
func (m *AdapterMetrics) RecordTranslation(operation, outcome string) {
	m.TranslationsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordStatement records one backend statement.
func (m *AdapterMetrics) RecordStatement(durationSeconds float64, success bool) {
	s := status(success)
	m.StatementsTotal.WithLabelValues(s).Inc()
	m.StatementLatency.WithLabelValues(s).Observe(durationSeconds)
}
