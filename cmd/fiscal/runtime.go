package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	auditpg "3tcapital/ms_fiscal_core/internal/adapters/audit/postgres"
	fiscalpg "3tcapital/ms_fiscal_core/internal/adapters/fiscal/postgres"
	"3tcapital/ms_fiscal_core/internal/adapters/gateway/focusnfe"
	"3tcapital/ms_fiscal_core/internal/adapters/postal/viacep"
	appfiscal "3tcapital/ms_fiscal_core/internal/application/fiscal"
	"3tcapital/ms_fiscal_core/internal/core/audit"
	"3tcapital/ms_fiscal_core/internal/core/postal"
	"3tcapital/ms_fiscal_core/internal/infrastructure/config"
	"3tcapital/ms_fiscal_core/internal/infrastructure/database"
	infrahttp "3tcapital/ms_fiscal_core/internal/infrastructure/http"
)

// openPool connects to PostgreSQL with the configured pool limits.
func openPool(ctx context.Context, cfg config.DatabaseSettings, log *slog.Logger) (*pgxpool.Pool, error) {
	pool, err := database.NewPool(ctx, database.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		Database:        cfg.Database,
		User:            cfg.User,
		Password:        cfg.Password,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})
	if err != nil {
		log.Error("Failed to connect to database",
			"error", err,
			"host", cfg.Host,
			"database", cfg.Database,
			"user", cfg.User,
			"password_set", cfg.Password != "")
		return nil, fmt.Errorf("connect database: %w", err)
	}
	log.Info("Database connection established", "database", cfg.Database)
	return pool, nil
}

// newEngine wires repositories, the traced gateway and the postal directory
// into the fiscal engine.
func newEngine(cfg config.AppConfig, pool *pgxpool.Pool, log *slog.Logger) *appfiscal.Service {
	var auditRepo audit.Repository
	if cfg.Audit.Enabled {
		auditRepo = auditpg.NewRepository(pool, log)
		log.Info("Audit trail configuration: ENABLED", "max_body_size", cfg.Audit.MaxBodySize)
	} else {
		log.Info("Audit trail configuration: DISABLED - Audit not enabled in configuration")
	}

	gatewayHTTP := infrahttp.NewTracedClient(&infrahttp.TracedClientConfig{
		Timeout:         cfg.Gateway.Timeout,
		AuditEnabled:    cfg.Audit.Enabled,
		LogRequestBody:  cfg.Audit.LogRequestBody,
		LogResponseBody: cfg.Audit.LogResponseBody,
		MaxBodySize:     cfg.Audit.MaxBodySize,
		MaxConnsPerHost: cfg.Gateway.MaxConnsPerHost,
	}, log, auditRepo, "focusnfe")

	gateway := focusnfe.NewClient(focusnfe.Config{
		ProductionURL: cfg.Gateway.ProductionURL,
		SandboxURL:    cfg.Gateway.SandboxURL,
	}, gatewayHTTP, log)
	log.Info("Focus NFe gateway configured",
		"production_url", cfg.Gateway.ProductionURL,
		"sandbox_url", cfg.Gateway.SandboxURL,
		"timeout", cfg.Gateway.Timeout)

	var lookup postal.Service
	if cfg.PostalLookup.Enabled {
		postalHTTP := infrahttp.NewTracedClient(&infrahttp.TracedClientConfig{
			Timeout: cfg.PostalLookup.Timeout,
		}, log, nil, "viacep")
		lookup = viacep.NewCachedService(viacep.NewClient(cfg.PostalLookup.BaseURL, postalHTTP, log), cfg.PostalLookup.CacheTTL)
		log.Info("Postal lookup configured", "base_url", cfg.PostalLookup.BaseURL, "cache_ttl", cfg.PostalLookup.CacheTTL)
	} else {
		log.Warn("Postal lookup DISABLED - counterparties without IBGE code will fail legacy NFS-e validation")
	}

	return appfiscal.NewService(appfiscal.Dependencies{
		Documents: fiscalpg.NewDocumentRepository(pool, log),
		Profiles:  fiscalpg.NewProfileRepository(pool, log),
		Gateway:   gateway,
		Postal:    lookup,
		Logger:    log,
	})
}
