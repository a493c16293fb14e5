package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"cardbill/internal/backend"
	"cardbill/internal/cli"
	"cardbill/internal/config"
	"cardbill/internal/log"
)

// app carries the state shared by every subcommand of one invocation.
type app struct {
	cfg     *config.Config
	logger  *log.Logger
	backend *backend.Backend

	dbPath   string
	logLevel string
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "cardbillctl",
		Short:         "Administer the cardbill installment ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cli.LoadEnvFile()
			a.cfg = config.Load()
			if a.dbPath != "" {
				a.cfg.DataBackend = config.BackendSQLite
				a.cfg.SQLiteDBPath = a.dbPath
			}
			if a.logLevel != "" {
				a.cfg.LogLevel = a.logLevel
			}
			// Logs go to stderr so stdout stays clean for tables and CSV.
			a.logger = log.New(log.Config{
				Level:     log.ParseLevel(a.cfg.LogLevel),
				Component: log.ComponentApp,
				Output:    cmd.ErrOrStderr(),
			})
			return a.cfg.Validate()
		},
	}
	cmd.PersistentFlags().StringVar(&a.dbPath, "db", "", "SQLite database path (overrides SQLITE_DB_PATH and DATA_BACKEND)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (default from LOG_LEVEL)")

	cmd.AddCommand(
		newMigrateCmd(a),
		newCardCmd(a),
		newPurchaseCmd(a),
		newInvoiceCmd(a),
		newReconcileCmd(a),
	)
	return cmd
}

// open builds the backend on first use. Events are never published from the CLI.
func (a *app) open(ctx context.Context) (*backend.Backend, error) {
	if a.backend != nil {
		return a.backend, nil
	}
	bcfg, err := backend.FromAppConfig(a.cfg)
	if err != nil {
		return nil, err
	}
	bcfg.AMQPURL = ""
	b, err := backend.NewFactory(a.logger).Create(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("open backend: %w", err)
	}
	a.backend = b
	return b, nil
}

// close releases the backend if a command opened one.
func (a *app) close() error {
	if a.backend == nil {
		return nil
	}
	err := a.backend.Cleanup()
	a.backend = nil
	return err
}
