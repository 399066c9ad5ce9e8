// Package metrics provides Prometheus metrics for observability.
//
// This package exposes metrics for:
//   - adapter translations by operation and outcome (passthrough, rewrite, noop)
//   - backend statement counts and latency
//   - connection initialization (catalog attach) counts and latency
//   - object store operations and bytes transferred
//   - pipeline model and run outcomes
//
// Metrics are exposed via a dedicated HTTP server on /metrics in Prometheus format.
//
// Usage:
//
//	adapterMetrics := metrics.NewAdapterMetrics()
//	sessionMetrics := metrics.NewSessionMetrics()
//
//	opts.Initializer.Metrics = sessionMetrics
//	opts.EngineOptions = append(opts.EngineOptions, engine.WithMetrics(adapterMetrics))
//	sess, err := session.Open(ctx, opts)
//
//	srv := metrics.NewServer(":9090")
//	srv.Start()
package metrics
