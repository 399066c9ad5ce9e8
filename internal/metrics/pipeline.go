package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PipelineMetrics tracks model runs.
type PipelineMetrics struct {
	// ModelsTotal counts applied models.
	// Labels: kind (VIEW, FULL, SEED), status (success, failure)
	ModelsTotal *prometheus.CounterVec

	// ModelLatency tracks per-model apply time by kind.
	ModelLatency *prometheus.HistogramVec

	// RunsTotal counts pipeline runs by status.
	RunsTotal *prometheus.CounterVec

	// LastRunTimestamp is the unix time the last run finished.
	LastRunTimestamp prometheus.Gauge
}

// NewPipelineMetrics creates pipeline metrics registered with the default registry.
func NewPipelineMetrics() *PipelineMetrics {
	return NewPipelineMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewPipelineMetricsWithRegistry creates pipeline metrics registered with reg.
func NewPipelineMetricsWithRegistry(reg prometheus.Registerer) *PipelineMetrics {
	f := promauto.With(reg)
	return &PipelineMetrics{
		ModelsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "pipeline",
				Name:      "models_total",
				Help:      "Total models applied, broken down by kind and status.",
			},
			[]string{"kind", "status"},
		),
		ModelLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "pipeline",
				Name:      "model_latency_seconds",
				Help:      "Time to apply one model in seconds, broken down by kind.",
				Buckets:   DefaultStatementLatencyBuckets,
			},
			[]string{"kind"},
		),
		RunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "pipeline",
				Name:      "runs_total",
				Help:      "Total pipeline runs, broken down by status.",
			},
			[]string{"status"},
		),
		LastRunTimestamp: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "pipeline",
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the most recent pipeline run finished.",
			},
		),
	}
}

// RecordModel records one applied model.
func (m *PipelineMetrics) RecordModel(kind string, durationSeconds float64, success bool) {
	m.ModelsTotal.WithLabelValues(kind, status(success)).Inc()
	m.ModelLatency.WithLabelValues(kind).Observe(durationSeconds)
}

// RecordRun records a finished run.
func (m *PipelineMetrics) RecordRun(finishedUnix float64, success bool) {
	m.RunsTotal.WithLabelValues(status(success)).Inc()
	m.LastRunTimestamp.Set(finishedUnix)
}
