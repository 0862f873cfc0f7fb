// Package command provides the root and sub-commands of the dbactions
// tool. Every sub-command opens the configured connection source and
// worker pool, runs one database operation and shuts both down.
//
//	./dbactions ping [-c /path/of/config.yaml]
//	./dbactions count "SELECT COUNT(*) FROM users WHERE active = ?" true
//	./dbactions update [--async] "UPDATE users SET active = ? WHERE id = ?" false 42
//	./dbactions size users
package command

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/krew-solutions/ascetic-db-go/asceticdb/config"
	"github.com/krew-solutions/ascetic-db-go/asceticdb/dbactions"
	"github.com/krew-solutions/ascetic-db-go/asceticdb/log"
	"github.com/krew-solutions/ascetic-db-go/asceticdb/session"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "dbactions",
	Short: "Run pooled database operations from the command line",
	Long: `Run pooled database operations from the command line.
Each operation borrows one connection from the configured pool and
returns it before the command exits, whether the operation succeeds
or fails.`,
	SilenceUsage: true,
}

// Execute runs the rootCmd and exits with a non-zero code on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(fixConfigPath)
	rootCmd.PersistentFlags().StringVarP(
		&cfgPath, "config", "c", "", "config file path",
	)
}

// fixConfigPath ensures that cfgPath is set respectively by either the
// CLI args, the CONFIG_FILE environment variable, or its default value.
func fixConfigPath() {
	if cfgPath != "" {
		return
	}
	var found bool
	if cfgPath, found = os.LookupEnv("CONFIG_FILE"); !found {
		cfgPath = "configs/dbactions.yaml"
	}
}

// withActions builds the connection source and worker pool described
// by the configuration, runs fn and then releases both.
func withActions(cmd *cobra.Command, fn func(context.Context, *dbactions.Actions) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	c, err := config.Load(cfgPath)
	if err != nil {
		return errors.Wrapf(err, "config.Load(%q)", cfgPath)
	}
	logger, err := c.Logger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	source, err := c.ConnectionSource(ctx)
	if err != nil {
		return errors.Wrap(err, "creating connection source")
	}
	defer func() {
		if closeErr := source.Close(); closeErr != nil && err == nil {
			err = errors.Wrap(closeErr, "closing connection source")
		}
	}()

	pool, err := c.WorkerPool()
	if err != nil {
		return err
	}
	pool.Start()
	defer func() {
		if shutdownErr := pool.Shutdown(context.Background()); shutdownErr != nil && err == nil {
			err = shutdownErr
		}
	}()

	executor := session.NewExecutor(source)
	executor.OnQueryEnded().Attach(func(ev session.QueryEndedEvent) {
		log.Debug(ctx, "query executed",
			slog.String("query", ev.Query),
			slog.Duration("elapsed", ev.ResponseTime),
			log.Err("error", ev.Err),
		)
	})
	return fn(ctx, dbactions.New(executor, pool, c.ActionOptions()...))
}

func params(args []string) []any {
	values := make([]any, len(args))
	for i, a := range args {
		values[i] = a
	}
	return values
}
