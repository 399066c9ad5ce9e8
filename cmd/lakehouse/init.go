package main

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/quayside-data/lakehouse/internal/session"
)

func newInitCmd(a *app) *cobra.Command {
	var printOnly bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize one connection and print the statements it ran",
		Long: `Open a session, which runs the connection initializer (extensions,
secrets, ATTACH, optional CREATE SCHEMA, USE), then report the default
catalog and schema the connection ended up in.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if printOnly {
				in, err := session.NewInitializer(a.cfg)
				if err != nil {
					return err
				}
				return printStatements(cmd, in.Statements())
			}

			ctx := cmd.Context()
			sess, err := a.openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			if err := printStatements(cmd, sess.Initializer().Statements()); err != nil {
				return err
			}
			var catalogName, schema string
			err = sess.DB().QueryRowContext(ctx, "SELECT current_database(), current_schema()").Scan(&catalogName, &schema)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out(cmd), pterm.Green(fmt.Sprintf("session %s ready in %s.%s", sess.ID(), catalogName, schema)))
			return err
		},
	}
	cmd.Flags().BoolVar(&printOnly, "print", false, "print the statements without connecting")
	return cmd
}

func printStatements(cmd *cobra.Command, stmts []string) error {
	for _, s := range stmts {
		if _, err := fmt.Fprintln(out(cmd), s+";"); err != nil {
			return err
		}
	}
	return nil
}
