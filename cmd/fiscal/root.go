package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"3tcapital/ms_fiscal_core/internal/infrastructure/config"
	"3tcapital/ms_fiscal_core/internal/infrastructure/logger"
)

// cli carries what PersistentPreRunE resolved for the subcommands.
type cli struct {
	cfg config.AppConfig
	log *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "fiscal",
		Short:         "Fiscal document emission and reconciliation (NF-e / NFS-e via Focus NFe)",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			c.cfg = cfg
			// Logs go to stderr so reconcile output stays clean on stdout.
			c.log = logger.NewWithWriter(os.Stderr, cfg.App.Name, cfg.Log.Level, cfg.App.Environment)
			return nil
		},
	}

	root.AddCommand(newServeCmd(c), newReconcileCmd(c), newMigrateCmd(c))
	return root
}
