package main

import (
	"github.com/spf13/cobra"

	"3tcapital/ms_fiscal_core/internal/infrastructure/database"
)

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := openPool(cmd.Context(), c.cfg.Database, c.log)
			if err != nil {
				return err
			}
			defer pool.Close()

			return database.RunMigrations(cmd.Context(), pool, c.log)
		},
	}
}
