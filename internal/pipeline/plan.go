// Package pipeline applies transformation models through an engine adapter
// in dependency order.
package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/quayside-data/lakehouse/internal/engine"
	"github.com/quayside-data/lakehouse/internal/model"
)

// ErrSeedUnavailable is returned for a SEED model with neither an uploaded
// Parquet object nor a local seeds directory.
var ErrSeedUnavailable = errors.New("pipeline: seed unavailable")

// Step is one model mapped to the adapter operation that applies it.
type Step struct {
	Model model.Model
	Op    engine.Op
}

// SeedSources tells the planner where seed data lives.
type SeedSources struct {
	// URIs maps a seed name to its uploaded Parquet URI.
	URIs map[string]string
	// Dir holds <seed>.csv files, read when a seed has no URI.
	Dir string
}

// Query returns the SELECT that loads seed name.
func (s SeedSources) Query(name string) (string, error) {
	if uri, ok := s.URIs[name]; ok {
		return "SELECT * FROM read_parquet(" + engine.QuoteString(uri) + ")", nil
	}
	if s.Dir != "" {
		path := filepath.ToSlash(filepath.Join(s.Dir, name+".csv"))
		return "SELECT * FROM read_csv_auto(" + engine.QuoteString(path) + ")", nil
	}
	return "", fmt.Errorf("%w: %s", ErrSeedUnavailable, name)
}

// Plan sorts models and maps each to its operation.
func Plan(models []model.Model, seeds SeedSources) ([]Step, error) {
	sorted, err := model.Sort(models)
	if err != nil {
		return nil, err
	}
	steps := make([]Step, 0, len(sorted))
	for _, m := range sorted {
		op, err := opFor(m, seeds)
		if err != nil {
			return nil, err
		}
		steps = append(steps, Step{Model: m, Op: op})
	}
	return steps, nil
}

func opFor(m model.Model, seeds SeedSources) (engine.Op, error) {
	name, err := m.TableName()
	if err != nil {
		return engine.Op{}, fmt.Errorf("pipeline: %s: %w", m.Name, err)
	}
	switch m.Kind {
	case model.KindView:
		return engine.Op{Kind: engine.OpCreateView, Name: name, Query: m.Query, Replace: true}, nil
	case model.KindFull:
		return engine.Op{Kind: engine.OpReplaceQuery, Name: name, Query: m.Query}, nil
	case model.KindSeed:
		q, err := seeds.Query(m.SeedName())
		if err != nil {
			return engine.Op{}, fmt.Errorf("pipeline: %s: %w", m.Name, err)
		}
		return engine.Op{Kind: engine.OpReplaceQuery, Name: name, Query: q}, nil
	}
	return engine.Op{}, fmt.Errorf("pipeline: %s: %w: kind %q", m.Name, model.ErrInvalidModel, m.Kind)
}
