package main

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit int
		runID string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent pipeline runs from the state database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.openState(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			if runID != "" {
				models, err := st.ModelRuns(ctx, runID)
				if err != nil {
					return err
				}
				rows := make([][]string, len(models))
				for i, m := range models {
					status := "success"
					if !m.Succeeded() {
						status = "failed"
					}
					rows[i] = []string{m.Model, m.Kind, status, formatDuration(m.Duration), m.Error}
				}
				return renderTable(out(cmd), []string{"Model", "Kind", "Status", "Duration", "Error"}, rows)
			}

			runs, err := st.LastRuns(ctx, limit)
			if err != nil {
				return err
			}
			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = []string{
					r.ID,
					r.Gateway,
					r.StartedAt.Local().Format(time.DateTime),
					r.Status,
					strconv.Itoa(r.Models),
					formatDuration(r.Duration()),
					r.Error,
				}
			}
			return renderTable(out(cmd), []string{"Run", "Gateway", "Started", "Status", "Models", "Duration", "Error"}, rows)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to show")
	cmd.Flags().StringVar(&runID, "run", "", "show the models of one run")
	return cmd
}
