package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	fiscalhttp "3tcapital/ms_fiscal_core/internal/adapters/http/fiscal"
	healthhttp "3tcapital/ms_fiscal_core/internal/adapters/http/health"
	apphealth "3tcapital/ms_fiscal_core/internal/application/health"
	"3tcapital/ms_fiscal_core/internal/infrastructure/database"
	"3tcapital/ms_fiscal_core/internal/infrastructure/http/server"
	"3tcapital/ms_fiscal_core/internal/infrastructure/logger"
)

func newServeCmd(c *cli) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logger.New(c.cfg.App.Name, c.cfg.Log.Level, c.cfg.App.Environment)

			pool, err := openPool(ctx, c.cfg.Database, log)
			if err != nil {
				return err
			}
			defer pool.Close()

			if migrate {
				if err := database.RunMigrations(ctx, pool, log); err != nil {
					return fmt.Errorf("run migrations: %w", err)
				}
			}

			health := apphealth.NewService(apphealth.Metadata{
				Service:     c.cfg.App.Name,
				Version:     c.cfg.App.Version,
				Environment: c.cfg.App.Environment,
			}).WithDependency("postgres", pool)

			engine := newEngine(c.cfg, pool, log)

			srv, err := server.New(server.Options{
				Config:        c.cfg,
				Logger:        log,
				HealthHandler: http.HandlerFunc(healthhttp.NewHandler(health, log).Status),
				FiscalHandler: fiscalhttp.NewHandler(engine, log).Routes(),
			})
			if err != nil {
				return fmt.Errorf("create server: %w", err)
			}
			defer srv.Close()

			log.Info("Starting HTTP server", "port", c.cfg.HTTP.Port, "auth_enabled", c.cfg.Auth.Enabled)
			return srv.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "run database migrations before serving")
	return cmd
}
