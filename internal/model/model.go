// Package model loads transformation models: named SQL queries with a kind
// and dependencies.
//
// A model is a .sql file whose leading /* ... */ block holds a YAML header,
// or an entry in a models.yaml manifest:
//
//	/*
//	name: demo.silver_orders
//	kind: FULL
//	description: Completed orders with a computed total.
//	*/
//	SELECT ... FROM demo.bronze_orders
//
// Dependencies not listed in depends_on are inferred from references to
// other model names in the query.
package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/quayside-data/lakehouse/internal/engine"
)

// Kind selects how a model is applied.
type Kind string

const (
	// KindView is applied with CreateView.
	KindView Kind = "VIEW"
	// KindFull rebuilds a table from its query on every run.
	KindFull Kind = "FULL"
	// KindSeed loads a CSV seed into a table.
	KindSeed Kind = "SEED"
)

// ParseKind parses a kind name, case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToUpper(strings.TrimSpace(s))); k {
	case KindView, KindFull, KindSeed:
		return k, nil
	case "":
		return KindView, nil
	}
	return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidModel, s)
}

var (
	// ErrInvalidModel is returned for a model that fails validation.
	ErrInvalidModel = errors.New("model: invalid model")

	// ErrDuplicateModel is returned when two models share a name.
	ErrDuplicateModel = errors.New("model: duplicate model")

	// ErrUnknownDependency is returned when depends_on names a missing model.
	ErrUnknownDependency = errors.New("model: unknown dependency")

	// ErrCycle is returned when dependencies form a cycle.
	ErrCycle = errors.New("model: dependency cycle")
)

// Model is a single transformation step.
type Model struct {
	Name        string   `yaml:"name"`
	Kind        Kind     `yaml:"kind"`
	Query       string   `yaml:"query"`
	DependsOn   []string `yaml:"depends_on"`
	Description string   `yaml:"description"`

	// Seed names the CSV seed a SEED model loads. Defaults to the
	// unqualified model name.
	Seed string `yaml:"seed"`

	// Path is the file the model was loaded from.
	Path string `yaml:"-"`
}

// TableName parses the model name.
func (m Model) TableName() (engine.TableName, error) {
	return engine.ParseTableName(m.Name)
}

// SeedName returns the seed a SEED model loads.
func (m Model) SeedName() string {
	if m.Seed != "" {
		return m.Seed
	}
	if n, err := m.TableName(); err == nil {
		return n.Name
	}
	return m.Name
}

// Validate checks the fields a kind requires.
func (m Model) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("%w: missing name (%s)", ErrInvalidModel, m.Path)
	}
	if _, err := m.TableName(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidModel, m.Name, err)
	}
	switch m.Kind {
	case KindView, KindFull:
		if strings.TrimSpace(m.Query) == "" {
			return fmt.Errorf("%w: %s: %s model has no query", ErrInvalidModel, m.Name, m.Kind)
		}
	case KindSeed:
	default:
		return fmt.Errorf("%w: %s: unknown kind %q", ErrInvalidModel, m.Name, m.Kind)
	}
	return nil
}
