package command

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/krew-solutions/ascetic-db-go/asceticdb/dbactions"
	"github.com/krew-solutions/ascetic-db-go/asceticdb/session"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that a connection can be borrowed and used",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withActions(cmd, func(ctx context.Context, a *dbactions.Actions) error {
			one, err := dbactions.MapQuery(ctx, a, "SELECT 1", dbactions.NoModifier,
				func(rows session.Rows) (int64, error) {
					var n int64
					if !rows.Next() {
						return 0, errors.New("no row returned")
					}
					err := rows.Scan(&n)
					return n, err
				})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok (%d)\n", one)
			return nil
		})
	},
}

var countCmd = &cobra.Command{
	Use:   "count <query> [params...]",
	Short: "Print the integer returned by a counting query, 0 on failure",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withActions(cmd, func(ctx context.Context, a *dbactions.Actions) error {
			n := a.Count(ctx, args[0], dbactions.Params(params(args[1:])...))
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		})
	},
}

var async bool

var updateCmd = &cobra.Command{
	Use:   "update <query> [params...]",
	Short: "Execute a write query and print the number of affected rows",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withActions(cmd, func(ctx context.Context, a *dbactions.Actions) error {
			var n int64
			var err error
			if async {
				n, err = a.UpdateAsync(ctx, args[0], params(args[1:])...).Await(ctx)
			} else {
				n, err = a.Update(ctx, args[0], params(args[1:])...)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		})
	},
}

var sizeCmd = &cobra.Command{
	Use:   "size <table>",
	Short: "Print the approximate on-disk size of a table in bytes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withActions(cmd, func(ctx context.Context, a *dbactions.Actions) error {
			fmt.Fprintln(cmd.OutOrStdout(), a.LogicalSize(ctx, args[0]))
			return nil
		})
	},
}

func init() {
	updateCmd.Flags().BoolVar(&async, "async", false, "run the update on the worker pool")
	rootCmd.AddCommand(pingCmd, countCmd, updateCmd, sizeCmd)
}
