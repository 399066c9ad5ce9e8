package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/quayside-data/lakehouse/internal/engine"
	"github.com/quayside-data/lakehouse/internal/metrics"
	"github.com/quayside-data/lakehouse/internal/model"
	"github.com/quayside-data/lakehouse/internal/pipeline"
	"github.com/quayside-data/lakehouse/internal/seed"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		modelsPath  string
		seedsPath   string
		uploadSeeds bool
		dryRun      bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Apply every model in dependency order",
		Long: `Load the models directory and apply each model through the session's
adapter: VIEW models with CreateView, FULL and SEED models with ReplaceQuery.

SEED models read <seeds>/<seed>.csv directly, or with --upload-seeds the
Parquet copies uploaded to the object store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if modelsPath == "" {
				modelsPath = a.cfg.Models.Path
			}
			if seedsPath == "" {
				seedsPath = a.cfg.Models.SeedsPath
			}

			models, err := model.LoadDir(modelsPath)
			if err != nil {
				return err
			}

			seeds := pipeline.SeedSources{Dir: seedsPath}
			if uploadSeeds && !dryRun {
				store, bucket, err := a.openObjectStore(ctx)
				if err != nil {
					return err
				}
				defer store.Close()
				u := seed.NewUploader(store, bucket, a.cfg.ObjectStore.SeedPrefix, seed.WithLogger(a.logger))
				results, err := u.UploadDir(ctx, seedsPath)
				if err != nil {
					return err
				}
				seeds.URIs = make(map[string]string, len(results))
				for _, r := range results {
					seeds.URIs[r.Name] = r.URI
				}
			}

			if err := a.startMetrics(); err != nil {
				return err
			}
			sess, err := a.openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			opts := []pipeline.Option{
				pipeline.WithSeeds(seeds),
				pipeline.WithGateway(a.cfg.Gateway.Name),
				pipeline.WithLogger(a.logger),
			}

			if dryRun {
				steps, trs, err := pipeline.NewRunner(sess.Adapter(), opts...).Plan(models)
				if err != nil {
					return err
				}
				return printPlan(out(cmd), steps, trs)
			}

			st, err := a.openState(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			opts = append(opts,
				pipeline.WithRecorder(st),
				pipeline.WithMetrics(metrics.NewPipelineMetricsWithRegistry(a.registry)),
			)
			report, runErr := pipeline.NewRunner(sess.Adapter(), opts...).Run(ctx, models)
			if report != nil {
				if err := printReport(out(cmd), report); err != nil {
					return err
				}
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&modelsPath, "models", "", "models directory (default: models.path)")
	cmd.Flags().StringVar(&seedsPath, "seeds", "", "seeds directory (default: models.seedsPath)")
	cmd.Flags().BoolVar(&uploadSeeds, "upload-seeds", false, "upload seeds as Parquet and read them from the object store")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the statements each model translates to without running them")
	return cmd
}

func printPlan(w io.Writer, steps []pipeline.Step, trs []engine.Translation) error {
	rows := make([][]string, len(steps))
	for i, s := range steps {
		stmts := make([]string, len(trs[i].Statements))
		for j, stmt := range trs[i].Statements {
			stmts[j] = strings.Join(strings.Fields(stmt), " ")
		}
		rows[i] = []string{
			s.Model.Name,
			string(s.Model.Kind),
			s.Op.Kind.String(),
			trs[i].Outcome.String(),
			strings.Join(stmts, "; "),
		}
	}
	return renderTable(w, []string{"Model", "Kind", "Operation", "Outcome", "Statements"}, rows)
}

func printReport(w io.Writer, report *pipeline.Report) error {
	rows := make([][]string, len(report.Results))
	for i, r := range report.Results {
		outcome, errMsg := r.Outcome.String(), ""
		if r.Status == pipeline.StatusSkipped {
			outcome = "-"
		}
		if r.Err != nil {
			errMsg = r.Err.Error()
		}
		rows[i] = []string{r.Model, string(r.Kind), string(r.Status), outcome, formatDuration(r.Duration), errMsg}
	}
	if err := renderTable(w, []string{"Model", "Kind", "Status", "Outcome", "Duration", "Error"}, rows); err != nil {
		return err
	}
	summary := fmt.Sprintf("run %s: %d/%d models applied in %s",
		report.RunID, report.Applied(), len(report.Results), formatDuration(report.FinishedAt.Sub(report.StartedAt)))
	if report.Err() != nil {
		_, err := fmt.Fprintln(w, pterm.Red(summary))
		return err
	}
	_, err := fmt.Fprintln(w, pterm.Green(summary))
	return err
}
