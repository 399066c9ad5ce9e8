// Package engine implements the SQL adapters a transformation engine drives.
//
// The calling engine speaks one generic contract, [Adapter]: create or drop
// views, replace a table from a query, switch the active catalog, and read
// static [Capabilities]. Each adapter maps those abstract operations to
// backend statements through a [Translation] and runs them on a [Backend].
//
// [DuckDB] passes every operation through as native DuckDB DDL. [Iceberg]
// composes a DuckDB adapter for sessions whose default catalog is an
// attached Iceberg REST catalog, which has no views, no CREATE OR REPLACE
// TABLE and no catalog-only USE. It rewrites view creation into a
// drop-then-create table snapshot and turns view drops and catalog switches
// into no-ops.
package engine

import (
	"context"
	"database/sql"
	"strings"

	"github.com/quayside-data/lakehouse/internal/logging"
)

// Backend runs SQL. *sql.DB, *sql.Conn and *sql.Tx all satisfy it.
type Backend interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Adapter is the contract the calling engine drives.
type Adapter interface {
	Translator

	// Capabilities returns the static capability flags for this backend.
	Capabilities() Capabilities

	// Execute runs a statement as-is.
	Execute(ctx context.Context, stmt string) error

	// Query runs a statement that returns rows. Callers close the rows.
	Query(ctx context.Context, stmt string) (*sql.Rows, error)

	CreateView(ctx context.Context, name TableName, query string, opts ...ViewOption) error
	DropView(ctx context.Context, name TableName, opts ...DropViewOption) error
	DropTable(ctx context.Context, name TableName, exists bool) error
	ReplaceQuery(ctx context.Context, name TableName, query string) error
	SetCurrentCatalog(ctx context.Context, catalog string) error

	// TableExists reports whether name is a base table.
	TableExists(ctx context.Context, name TableName) (bool, error)

	// ViewExists reports whether name is a first-class view.
	ViewExists(ctx context.Context, name TableName) (bool, error)
}

// MetricsRecorder receives per-operation and per-statement observations.
// It keeps this package independent of the metrics package.
type MetricsRecorder interface {
	RecordTranslation(operation, outcome string)
	RecordStatement(durationSeconds float64, success bool)
}

// ViewOption adjusts a CreateView call.
type ViewOption func(*Op)

// WithReplace sets whether an existing object at the name is superseded.
// The default is true.
func WithReplace(replace bool) ViewOption {
	return func(op *Op) { op.Replace = replace }
}

// DropViewOption adjusts a DropView call.
type DropViewOption func(*Op)

// IgnoreIfNotExists sets whether a missing view is ignored. The default is true.
func IgnoreIfNotExists(ignore bool) DropViewOption {
	return func(op *Op) { op.IfExists = ignore }
}

// Materialized marks the view as materialized.
func Materialized(materialized bool) DropViewOption {
	return func(op *Op) { op.Materialized = materialized }
}

// Cascade requests dependent objects be dropped too.
func Cascade(cascade bool) DropViewOption {
	return func(op *Op) { op.Cascade = cascade }
}

// Option configures an adapter.
type Option func(*options)

type options struct {
	logger  *logging.Logger
	metrics MetricsRecorder
	caps    *Capabilities
}

// WithLogger sets the logger used for statement tracing.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(o *options) { o.metrics = m }
}

// WithCapabilities overrides the adapter's capability flags.
func WithCapabilities(c Capabilities) Option {
	return func(o *options) { o.caps = &c }
}

func createViewOp(name TableName, query string, opts []ViewOption) Op {
	op := Op{Kind: OpCreateView, Name: name, Query: query, Replace: true}
	for _, o := range opts {
		o(&op)
	}
	return op
}

func dropViewOp(name TableName, opts []DropViewOption) Op {
	op := Op{Kind: OpDropView, Name: name, IfExists: true}
	for _, o := range opts {
		o(&op)
	}
	return op
}

func validate(op Op) error {
	switch op.Kind {
	case OpSetCatalog:
		return nil
	case OpCreateView, OpReplaceQuery:
		if cleanQuery(op.Query) == "" {
			return ErrEmptyQuery
		}
	}
	if op.Name.Name == "" {
		return ErrEmptyName
	}
	return nil
}

// cleanQuery strips surrounding whitespace and trailing semicolons so the
// query can be embedded after AS.
func cleanQuery(q string) string {
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(q), ";"))
}
