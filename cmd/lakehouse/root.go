package main

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/quayside-data/lakehouse/internal/config"
	"github.com/quayside-data/lakehouse/internal/logging"
	"github.com/quayside-data/lakehouse/internal/metrics"
)

// app carries what every subcommand needs once the root command has loaded
// configuration.
type app struct {
	v       *viper.Viper
	cfgFile string

	cfg    *config.Config
	logger *logging.Logger

	// registry holds this invocation's metrics so repeated command runs in
	// one process never register twice.
	registry *prometheus.Registry
	server   *metrics.Server
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.NewViper(), registry: prometheus.NewRegistry()}

	root := &cobra.Command{
		Use:   "lakehouse",
		Short: "Run SQL models on DuckDB against an Iceberg REST catalog",
		Long: `lakehouse drives a local lakehouse: DuckDB as the query engine, an Iceberg
REST catalog (Lakekeeper) for table metadata and MinIO for object storage.

Models are applied through a catalog-compatibility adapter that turns views
into table snapshots and table replacement into drop-then-create when the
session's default catalog is an attached Iceberg catalog.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.server != nil {
				return a.server.Close()
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: $LAKEHOUSE_CONFIG or ./lakehouse.yaml)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "text", "log format: text, json")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")

	mustBindPFlag(a.v, config.KeyLogLevel, flags.Lookup("log-level"))
	mustBindPFlag(a.v, config.KeyLogFormat, flags.Lookup("log-format"))
	mustBindPFlag(a.v, config.KeyMetricsAddr, flags.Lookup("metrics-addr"))

	root.AddCommand(
		newRunCmd(a),
		newQueryCmd(a),
		newCatalogCmd(a),
		newSeedCmd(a),
		newInitCmd(a),
		newHistoryCmd(a),
		newVersionCmd(),
	)
	return root
}

// setup loads the config file with flag and environment overrides and
// configures logging.
func (a *app) setup() error {
	cfg, err := config.LoadWith(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logging.Configure(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	return nil
}

// startMetrics starts the metrics endpoint when an address is configured.
func (a *app) startMetrics() error {
	if a.cfg.Observability.MetricsAddr == "" || a.server != nil {
		return nil
	}
	a.server = metrics.NewServerWithRegistry(a.cfg.Observability.MetricsAddr, a.registry).WithLogger(a.logger)
	return a.server.Start()
}

func mustBindPFlag(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("viper.BindPFlag(%q): %v", key, err))
	}
}

func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}
