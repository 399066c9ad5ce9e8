package engine

// Capabilities declares which DDL primitives a backend supports. Callers
// consult it before planning an operation so unsupported primitives are
// never attempted.
type Capabilities struct {
	// SupportsReplaceTable is true when CREATE OR REPLACE TABLE swaps a
	// table's contents atomically.
	SupportsReplaceTable bool

	// SupportsViews is true when CREATE VIEW produces a first-class view.
	SupportsViews bool

	// SupportsCatalogOnlyUse is true when USE accepts a bare catalog name.
	SupportsCatalogOnlyUse bool

	// SupportsMaterializedViews is true when the backend can maintain
	// materialized views itself.
	SupportsMaterializedViews bool
}

// DuckDBCapabilities describes a DuckDB session over native storage.
var DuckDBCapabilities = Capabilities{
	SupportsReplaceTable:   true,
	SupportsViews:          true,
	SupportsCatalogOnlyUse: true,
}

// IcebergCapabilities describes a DuckDB session whose default catalog is an
// attached Iceberg REST catalog: no atomic replace, no views, and USE needs a
// schema qualifier.
var IcebergCapabilities = Capabilities{}
