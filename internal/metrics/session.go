package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SessionMetrics tracks connection initialization. It satisfies
// session.InitRecorder.
type SessionMetrics struct {
	// InitTotal counts initializer runs by status. Every pooled connection
	// runs the initializer once.
	InitTotal *prometheus.CounterVec

	// InitLatency tracks how long initialization takes, including the
	// catalog attach round trip.
	InitLatency prometheus.Histogram
}

// NewSessionMetrics creates session metrics registered with the default registry.
func NewSessionMetrics() *SessionMetrics {
	return NewSessionMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewSessionMetricsWithRegistry creates session metrics registered with reg.
func NewSessionMetricsWithRegistry(reg prometheus.Registerer) *SessionMetrics {
	f := promauto.With(reg)
	return &SessionMetrics{
		InitTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "session",
				Name:      "init_total",
				Help:      "Total connection initializations, broken down by status.",
			},
			[]string{"status"},
		),
		InitLatency: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "session",
				Name:      "init_latency_seconds",
				Help:      "Connection initialization latency in seconds.",
				Buckets:   DefaultStatementLatencyBuckets,
			},
		),
	}
}

// RecordInit records one initializer run.
func (m *SessionMetrics) RecordInit(durationSeconds float64, success bool) {
	m.InitTotal.WithLabelValues(status(success)).Inc()
	m.InitLatency.Observe(durationSeconds)
}
