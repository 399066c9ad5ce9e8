package main

import (
	"fmt"
	"strings"

	"github.com/apache/iceberg-go"
	"github.com/spf13/cobra"

	"github.com/quayside-data/lakehouse/internal/catalog"

	_ "github.com/mattn/go-sqlite3"
)

// catalogFlags select the catalog the write subcommands load through
// iceberg-go. The REST endpoint from config is the default.
type catalogFlags struct {
	catalogType string
	uri         string
	warehouse   string
}

func newCatalogCmd(a *app) *cobra.Command {
	cf := &catalogFlags{}
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and manage the Iceberg catalog",
	}
	cmd.PersistentFlags().StringVar(&cf.catalogType, "catalog-type", catalog.TypeREST, "catalog type for create-namespace and drop-table: rest or sql")
	cmd.PersistentFlags().StringVar(&cf.uri, "catalog-uri", "", "catalog URI (default: iceberg.endpoint)")
	cmd.PersistentFlags().StringVar(&cf.warehouse, "catalog-warehouse", "", "catalog warehouse (default: iceberg.warehouse)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "warehouses",
			Short: "List warehouses from the management API",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				client, err := a.restClient()
				if err != nil {
					return err
				}
				whs, err := client.ListWarehouses(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, len(whs))
				for i, w := range whs {
					rows[i] = []string{w.Name, w.ID, w.ProjectID, w.Status}
				}
				return renderTable(out(cmd), []string{"Name", "ID", "Project", "Status"}, rows)
			},
		},
		&cobra.Command{
			Use:   "namespaces",
			Short: "List namespaces in the configured warehouse",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				client, err := a.restClient()
				if err != nil {
					return err
				}
				nss, err := client.ListNamespaces(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, len(nss))
				for i, ns := range nss {
					rows[i] = []string{strings.Join(ns, ".")}
				}
				return renderTable(out(cmd), []string{"Namespace"}, rows)
			},
		},
		&cobra.Command{
			Use:   "tables [namespace]",
			Short: "List tables and views in a namespace (default: iceberg.schema)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				client, err := a.restClient()
				if err != nil {
					return err
				}
				ns := a.cfg.Iceberg.Schema
				if len(args) == 1 {
					ns = args[0]
				}
				namespace := catalog.ParseNamespace(ns)
				tables, err := client.ListTables(cmd.Context(), namespace)
				if err != nil {
					return err
				}
				views, err := client.ListViews(cmd.Context(), namespace)
				if err != nil {
					return err
				}
				var rows [][]string
				for _, t := range tables {
					rows = append(rows, []string{t.String(), "table"})
				}
				for _, v := range views {
					rows = append(rows, []string{v.String(), "view"})
				}
				return renderTable(out(cmd), []string{"Name", "Type"}, rows)
			},
		},
		&cobra.Command{
			Use:   "create-namespace <namespace>",
			Short: "Create a namespace; an existing one is left as is",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cat, err := a.icebergCatalog(cmd, cf)
				if err != nil {
					return err
				}
				defer cat.Close()
				if err := cat.CreateNamespace(cmd.Context(), catalog.ParseNamespace(args[0])); err != nil {
					return err
				}
				_, err = fmt.Fprintf(out(cmd), "namespace %s ready\n", args[0])
				return err
			},
		},
		&cobra.Command{
			Use:   "drop-table <namespace.table>",
			Short: "Drop a table from the catalog",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				parts := catalog.ParseNamespace(args[0])
				if len(parts) < 2 {
					return fmt.Errorf("table %q must be namespace-qualified", args[0])
				}
				ident := catalog.TableIdent{Namespace: parts[:len(parts)-1], Name: parts[len(parts)-1]}

				cat, err := a.icebergCatalog(cmd, cf)
				if err != nil {
					return err
				}
				defer cat.Close()
				if err := cat.DropTable(cmd.Context(), ident); err != nil {
					return err
				}
				_, err = fmt.Fprintf(out(cmd), "dropped %s\n", ident)
				return err
			},
		},
	)
	return cmd
}

func (a *app) restClient() (*catalog.RestClient, error) {
	return catalog.NewRestClient(catalog.RestConfig{
		CatalogURI:     a.cfg.Iceberg.Endpoint,
		ManagementURI:  a.cfg.Iceberg.ManagementURI,
		Warehouse:      a.cfg.Iceberg.Warehouse,
		Token:          a.cfg.Iceberg.Token,
		RequestTimeout: a.cfg.Iceberg.RequestTimeout,
	})
}

func (a *app) icebergCatalog(cmd *cobra.Command, cf *catalogFlags) (*catalog.IcebergCatalog, error) {
	cfg := catalog.IcebergConfig{
		Type:      cf.catalogType,
		URI:       cf.uri,
		Warehouse: cf.warehouse,
		Token:     a.cfg.Iceberg.Token,
	}
	if cfg.URI == "" {
		cfg.URI = a.cfg.Iceberg.Endpoint
	}
	if cfg.Warehouse == "" {
		cfg.Warehouse = a.cfg.Iceberg.Warehouse
	}
	if cfg.Type == catalog.TypeSQL {
		cfg.Props = iceberg.Properties{"sql.driver": "sqlite3", "sql.dialect": "sqlite"}
	}
	return catalog.LoadCatalog(cmd.Context(), cfg)
}
