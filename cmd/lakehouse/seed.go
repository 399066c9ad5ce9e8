package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/quayside-data/lakehouse/internal/seed"
)

func newSeedCmd(a *app) *cobra.Command {
	var concurrency int
	cmd := &cobra.Command{
		Use:   "seed [dir]",
		Short: "Upload CSV seeds to the object store as Parquet",
		Long: `Convert every <name>.csv in dir (default: models.seedsPath) to Parquet and
upload it to s3://<bucket>/<seedPrefix>/<name>.parquet. Seeds whose content
hash matches the stored object are skipped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			dir := a.cfg.Models.SeedsPath
			if len(args) == 1 {
				dir = args[0]
			}

			store, bucket, err := a.openObjectStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			u := seed.NewUploader(store, bucket, a.cfg.ObjectStore.SeedPrefix,
				seed.WithConcurrency(concurrency), seed.WithLogger(a.logger))
			results, err := u.UploadDir(ctx, dir)
			if err != nil {
				return err
			}
			return printSeedResults(cmd, results)
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "seeds uploaded in parallel")
	return cmd
}

func printSeedResults(cmd *cobra.Command, results []seed.Result) error {
	rows := make([][]string, len(results))
	for i, r := range results {
		status, n := "uploaded", strconv.Itoa(r.Rows)
		if r.Skipped {
			status, n = "unchanged", "-"
		}
		rows[i] = []string{r.Name, r.URI, n, strconv.FormatInt(r.Size, 10), status}
	}
	return renderTable(out(cmd), []string{"Seed", "URI", "Rows", "Bytes", "Status"}, rows)
}
