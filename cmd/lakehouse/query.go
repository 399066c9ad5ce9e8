package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newQueryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "query <sql>",
		Short: "Run SQL in an initialized session and print the rows",
		Example: `  lakehouse query "SELECT * FROM demo.gold_daily_revenue ORDER BY order_date"
  lakehouse query "SHOW ALL TABLES"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := a.openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			rows, err := sess.Adapter().Query(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			defer rows.Close()

			n, err := renderRows(out(cmd), rows)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(out(cmd), "(%d rows)\n", n)
			return err
		},
	}
}
