package main

import (
	"context"

	"github.com/quayside-data/lakehouse/internal/engine"
	"github.com/quayside-data/lakehouse/internal/metrics"
	"github.com/quayside-data/lakehouse/internal/objectstore"
	s3store "github.com/quayside-data/lakehouse/internal/objectstore/s3"
	"github.com/quayside-data/lakehouse/internal/session"
	"github.com/quayside-data/lakehouse/internal/state"
)

// openSession opens the configured DuckDB session with adapter and
// initializer metrics registered on the app's registry.
func (a *app) openSession(ctx context.Context) (*session.Session, error) {
	opts, err := session.OptionsFromConfig(a.cfg)
	if err != nil {
		return nil, err
	}
	opts.Logger = a.logger
	opts.Initializer.Metrics = metrics.NewSessionMetricsWithRegistry(a.registry)
	opts.EngineOptions = append(opts.EngineOptions,
		engine.WithMetrics(metrics.NewAdapterMetricsWithRegistry(a.registry)))
	return session.Open(ctx, opts)
}

func (a *app) openState(ctx context.Context) (*state.Store, error) {
	return state.Open(ctx, a.cfg.State.Database, a.logger)
}

// openObjectStore connects to the configured bucket, creating it if needed.
func (a *app) openObjectStore(ctx context.Context) (objectstore.Store, string, error) {
	cfg := s3store.ConfigFrom(a.cfg.ObjectStore)
	store, err := s3store.New(ctx, cfg)
	if err != nil {
		return nil, "", err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		store.Close()
		return nil, "", err
	}
	return objectstore.NewInstrumentedStore(store, metrics.NewObjectStoreMetricsWithRegistry(a.registry)), store.Bucket(), nil
}
