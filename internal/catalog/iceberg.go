package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/apache/iceberg-go"
	icecatalog "github.com/apache/iceberg-go/catalog"
	"github.com/apache/iceberg-go/catalog/rest"
	"github.com/apache/iceberg-go/table"

	_ "github.com/apache/iceberg-go/catalog/sql"
)

// Catalog types accepted by LoadCatalog.
const (
	TypeREST = "rest"
	TypeSQL  = "sql"
)

// IcebergConfig configures iceberg-go catalog loading.
type IcebergConfig struct {
	// Type is "rest" or "sql". http and https are read as rest.
	Type      string
	URI       string
	Warehouse string
	Token     string
	Props     iceberg.Properties
}

// IcebergCatalog wraps an apache/iceberg-go catalog.
type IcebergCatalog struct {
	cat icecatalog.Catalog
}

// LoadCatalog creates an IcebergCatalog.
func LoadCatalog(ctx context.Context, cfg IcebergConfig) (*IcebergCatalog, error) {
	props := iceberg.Properties{}
	for k, v := range cfg.Props {
		props[k] = v
	}
	catalogType := cfg.Type
	if catalogType == "http" || catalogType == "https" || catalogType == "" {
		catalogType = TypeREST
	}
	props["type"] = catalogType
	if cfg.URI != "" {
		props["uri"] = cfg.URI
	}
	if cfg.Warehouse != "" {
		props["warehouse"] = cfg.Warehouse
	}
	if cfg.Token != "" {
		props["token"] = cfg.Token
	}

	cat, err := icecatalog.Load(ctx, "lakehouse", props)
	if err != nil {
		return nil, mapCatalogError(err)
	}
	return &IcebergCatalog{cat: cat}, nil
}

// NewIcebergCatalog wraps an already loaded catalog.
func NewIcebergCatalog(cat icecatalog.Catalog) *IcebergCatalog {
	return &IcebergCatalog{cat: cat}
}

// ParseNamespace splits a dotted namespace.
func ParseNamespace(ns string) []string {
	if ns == "" {
		return nil
	}
	return strings.Split(ns, ".")
}

// CreateNamespace creates a namespace. An existing namespace is not an error.
func (c *IcebergCatalog) CreateNamespace(ctx context.Context, namespace []string) error {
	err := c.cat.CreateNamespace(ctx, table.Identifier(namespace), nil)
	if err != nil && !errors.Is(err, icecatalog.ErrNamespaceAlreadyExists) {
		return mapCatalogError(err)
	}
	return nil
}

// ListNamespaces lists top-level namespaces in name order.
func (c *IcebergCatalog) ListNamespaces(ctx context.Context) ([][]string, error) {
	ids, err := c.cat.ListNamespaces(ctx, nil)
	if err != nil {
		return nil, mapCatalogError(err)
	}
	result := make([][]string, 0, len(ids))
	for _, id := range ids {
		result = append(result, []string(id))
	}
	sort.Slice(result, func(i, j int) bool {
		return strings.Join(result[i], ".") < strings.Join(result[j], ".")
	})
	return result, nil
}

// ListTables lists the tables in a namespace in name order.
func (c *IcebergCatalog) ListTables(ctx context.Context, namespace []string) ([]TableIdent, error) {
	tables := []TableIdent{}
	for id, err := range c.cat.ListTables(ctx, table.Identifier(namespace)) {
		if err != nil {
			return nil, mapCatalogError(err)
		}
		tables = append(tables, identFrom(id))
	}
	sort.Slice(tables, func(i, j int) bool {
		return tables[i].String() < tables[j].String()
	})
	return tables, nil
}

// TableExists checks if a table exists.
func (c *IcebergCatalog) TableExists(ctx context.Context, ident TableIdent) (bool, error) {
	exists, err := c.cat.CheckTableExists(ctx, ident.identifier())
	if err != nil {
		if errors.Is(err, icecatalog.ErrNoSuchNamespace) {
			return false, nil
		}
		return false, mapCatalogError(err)
	}
	return exists, nil
}

// DropTable drops a table.
func (c *IcebergCatalog) DropTable(ctx context.Context, ident TableIdent) error {
	if err := c.cat.DropTable(ctx, ident.identifier()); err != nil {
		return fmt.Errorf("drop %s: %w", ident, mapCatalogError(err))
	}
	return nil
}

// Close releases resources held by the catalog.
func (c *IcebergCatalog) Close() error {
	return nil
}

func (t TableIdent) identifier() table.Identifier {
	id := make(table.Identifier, 0, len(t.Namespace)+1)
	id = append(id, t.Namespace...)
	return append(id, t.Name)
}

func identFrom(id table.Identifier) TableIdent {
	if len(id) == 0 {
		return TableIdent{}
	}
	return TableIdent{
		Namespace: append([]string{}, id[:len(id)-1]...),
		Name:      id[len(id)-1],
	}
}

func mapCatalogError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, icecatalog.ErrNoSuchTable), errors.Is(err, icecatalog.ErrNoSuchNamespace):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, icecatalog.ErrTableAlreadyExists), errors.Is(err, icecatalog.ErrNamespaceAlreadyExists):
		return fmt.Errorf("%w: %v", ErrAlreadyExists, err)
	case errors.Is(err, rest.ErrUnauthorized), errors.Is(err, rest.ErrForbidden):
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	case errors.Is(err, rest.ErrServiceUnavailable):
		return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	return err
}
