package session

import (
	"errors"
	"strings"

	"github.com/quayside-data/lakehouse/internal/engine"
)

var (
	// ErrSchemaRequired is returned when a default context names no schema.
	// A bare catalog switch cannot be resolved for Iceberg attachments.
	ErrSchemaRequired = errors.New("session: default context requires a schema")

	// ErrCatalogRequired is returned when a default context names no catalog.
	ErrCatalogRequired = errors.New("session: default context requires a catalog")
)

// AttachType selects the storage extension ATTACH uses.
type AttachType string

const (
	AttachIceberg AttachType = "ICEBERG"
	AttachDuckDB  AttachType = "DUCKDB"
)

// CatalogAttachment is a named external catalog root registered with every
// session. It is immutable once built.
type CatalogAttachment struct {
	// Name is the alias the catalog is attached under.
	Name string
	// Warehouse is the attach target: the REST catalog's warehouse for
	// ICEBERG, or a database path for DUCKDB.
	Warehouse string
	Type      AttachType
	Endpoint  string
	// Secret names a previously created DuckDB secret.
	Secret string
	// AccessDelegation is the credential-delegation mode. "none" makes the
	// session use its own storage credentials instead of those vended by
	// the catalog, whose storage endpoints may only resolve inside its
	// network.
	AccessDelegation string
}

// Statement renders the guarded ATTACH. Repeating it against an existing
// attachment is a silent success.
func (a CatalogAttachment) Statement() string {
	var b strings.Builder
	b.WriteString("ATTACH IF NOT EXISTS ")
	b.WriteString(engine.QuoteString(a.Warehouse))
	b.WriteString(" AS ")
	b.WriteString(engine.QuoteIdent(a.Name))

	if a.Type != AttachIceberg {
		return b.String()
	}

	opts := []string{"TYPE ICEBERG"}
	if a.Endpoint != "" {
		opts = append(opts, "ENDPOINT "+engine.QuoteString(a.Endpoint))
	}
	if a.Secret != "" {
		opts = append(opts, "SECRET "+engine.QuoteIdent(a.Secret))
	}
	mode := a.AccessDelegation
	if mode == "" {
		mode = "none"
	}
	opts = append(opts, "ACCESS_DELEGATION_MODE "+engine.QuoteString(mode))

	b.WriteString(" (")
	b.WriteString(strings.Join(opts, ", "))
	b.WriteString(")")
	return b.String()
}

// DefaultContext is the catalog.schema pair unqualified names resolve against.
type DefaultContext struct {
	Catalog string
	Schema  string
}

// NewDefaultContext builds a DefaultContext. Both parts are required.
func NewDefaultContext(catalog, schema string) (DefaultContext, error) {
	if catalog == "" {
		return DefaultContext{}, ErrCatalogRequired
	}
	if schema == "" {
		return DefaultContext{}, ErrSchemaRequired
	}
	return DefaultContext{Catalog: catalog, Schema: schema}, nil
}

// Statement renders USE catalog.schema.
func (c DefaultContext) Statement() string {
	return "USE " + engine.QuoteIdent(c.Catalog) + "." + engine.QuoteIdent(c.Schema)
}

// SchemaName is the default schema as a qualified name.
func (c DefaultContext) SchemaName() string {
	return engine.QuoteIdent(c.Catalog) + "." + engine.QuoteIdent(c.Schema)
}
