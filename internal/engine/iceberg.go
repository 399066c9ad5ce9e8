package engine

import (
	"context"
	"database/sql"
)

// Iceberg adapts a DuckDB session whose default catalog is an attached
// Iceberg REST catalog. That catalog type has no views, no atomic table
// replace and no catalog-only USE, so three operation kinds are translated:
//
//   - CreateView becomes a table snapshot of the query: drop any table at
//     the name, then CREATE TABLE ... AS. The snapshot goes stale until the
//     next CreateView.
//   - DropView is a no-op. No view was ever created, and the table a
//     previous CreateView left behind belongs to the caller's own DropTable.
//   - SetCurrentCatalog is a no-op. The connection initializer already set
//     a catalog.schema default that a catalog-only USE cannot express.
//
// Everything else passes through to the wrapped DuckDB adapter, which
// consults IcebergCapabilities and therefore replaces tables by
// drop-then-create.
type Iceberg struct {
	base *DuckDB
}

// NewIceberg creates an Iceberg adapter over backend.
func NewIceberg(backend Backend, opts ...Option) *Iceberg {
	opts = append([]Option{WithCapabilities(IcebergCapabilities)}, opts...)
	return &Iceberg{base: NewDuckDB(backend, opts...)}
}

// Base returns the wrapped DuckDB adapter.
func (i *Iceberg) Base() *DuckDB {
	return i.base
}

// Capabilities returns IcebergCapabilities unless overridden at construction.
func (i *Iceberg) Capabilities() Capabilities {
	return i.base.Capabilities()
}

// Translate maps op to the statements this backend can run.
func (i *Iceberg) Translate(op Op) Translation {
	switch op.Kind {
	case OpCreateView:
		var stmts []string
		if op.Replace {
			stmts = append(stmts, i.Translate(Op{Kind: OpDropView, Name: op.Name, IfExists: true}).Statements...)
			stmts = append(stmts, i.Translate(Op{Kind: OpDropTable, Name: op.Name, IfExists: true}).Statements...)
		}
		stmts = append(stmts, createTableAsSQL(op.Name, op.Query))
		return rewrite(stmts...)

	case OpDropView, OpSetCatalog:
		return noOp()
	}
	return i.base.Translate(op)
}

// CreateView materializes query as a table at name.
//
// With replace (the default) this is drop-then-create, not an atomic swap: a
// concurrent reader can observe name as absent between the two statements.
// Callers that need atomicity must coordinate outside the adapter. With
// replace disabled an existing object at name surfaces the backend's error.
func (i *Iceberg) CreateView(ctx context.Context, name TableName, query string, opts ...ViewOption) error {
	return i.base.run(ctx, createViewOp(name, query, opts), i)
}

// DropView always succeeds without touching the backend. The options are
// accepted for interface compatibility and have no effect.
func (i *Iceberg) DropView(ctx context.Context, name TableName, opts ...DropViewOption) error {
	return i.base.run(ctx, dropViewOp(name, opts), i)
}

// DropTable drops a table. With exists false a missing table is an error.
func (i *Iceberg) DropTable(ctx context.Context, name TableName, exists bool) error {
	return i.base.run(ctx, Op{Kind: OpDropTable, Name: name, IfExists: exists}, i)
}

// ReplaceQuery replaces the table at name with the result of query using
// drop-then-create.
func (i *Iceberg) ReplaceQuery(ctx context.Context, name TableName, query string) error {
	return i.base.run(ctx, Op{Kind: OpReplaceQuery, Name: name, Query: query}, i)
}

// SetCurrentCatalog accepts and discards the request. With several catalogs
// attached this would silently keep the initializer's default.
func (i *Iceberg) SetCurrentCatalog(ctx context.Context, catalog string) error {
	return i.base.run(ctx, Op{Kind: OpSetCatalog, Catalog: catalog}, i)
}

// Execute runs stmt without translation.
func (i *Iceberg) Execute(ctx context.Context, stmt string) error {
	return i.base.Execute(ctx, stmt)
}

// Query runs stmt and returns its rows.
func (i *Iceberg) Query(ctx context.Context, stmt string) (*sql.Rows, error) {
	return i.base.Query(ctx, stmt)
}

// TableExists reports whether name resolves to a base table.
func (i *Iceberg) TableExists(ctx context.Context, name TableName) (bool, error) {
	return i.base.TableExists(ctx, name)
}

// ViewExists reports whether name resolves to a view. Objects created by
// CreateView are tables, so they never count.
func (i *Iceberg) ViewExists(ctx context.Context, name TableName) (bool, error) {
	return i.base.ViewExists(ctx, name)
}

var _ Adapter = (*Iceberg)(nil)
