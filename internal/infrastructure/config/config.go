package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig encapsulates all runtime configuration knobs.
type AppConfig struct {
	App          AppSettings
	HTTP         HTTPSettings
	Auth         AuthSettings
	Log          LogSettings
	Database     DatabaseSettings
	Audit        AuditSettings
	Gateway      GatewaySettings
	PostalLookup PostalLookupSettings
	Reconcile    ReconcileSettings
}

type AppSettings struct {
	Name        string
	Version     string
	Environment string
}

type HTTPSettings struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type AuthSettings struct {
	Enabled     bool
	IssuerURI   string
	JWKSetURI   string
	ClockSkew   time.Duration
	BypassPaths []string
	// TenantClaim names the JWT claim carrying the tenant id.
	TenantClaim string
	// TenantHeader carries the tenant id when authentication is disabled.
	TenantHeader string
}

type LogSettings struct {
	Level string
}

type DatabaseSettings struct {
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type AuditSettings struct {
	Enabled         bool
	LogRequestBody  bool
	LogResponseBody bool
	MaxBodySize     int
}

// GatewaySettings configures the Focus NFe client. The API token is per
// tenant and lives in the fiscal settings table, not here.
type GatewaySettings struct {
	ProductionURL   string
	SandboxURL      string
	Timeout         time.Duration
	MaxConnsPerHost int
}

// PostalLookupSettings configures the ViaCEP client.
type PostalLookupSettings struct {
	Enabled  bool
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// ReconcileSettings bounds one reconciliation sweep.
type ReconcileSettings struct {
	BatchSize int
}

const maxReconcileBatch = 500

// Load resolves the application configuration from environment variables.
// It first attempts to load variables from a .env file if it exists.
// Environment variables set in the system take precedence over .env file values.
func Load() (AppConfig, error) {
	// Missing .env is fine: containers pass plain environment variables.
	_ = godotenv.Load()

	cfg := AppConfig{
		App: AppSettings{
			Name:        getEnv("APP_NAME", "ms_fiscal_core"),
			Version:     getEnv("APP_VERSION", "0.1.0"),
			Environment: getEnv("APP_ENV", "local"),
		},
		HTTP: HTTPSettings{
			Port:            getEnvAsInt("APP_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("HTTP_WRITE_TIMEOUT", 90*time.Second),
			IdleTimeout:     getEnvAsDuration("HTTP_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Auth: AuthSettings{
			Enabled:      getEnvAsBool("AUTH_ENABLED", true),
			IssuerURI:    strings.TrimSpace(os.Getenv("JWT_ISSUER_URI")),
			JWKSetURI:    strings.TrimSpace(os.Getenv("JWT_JWK_SET_URI")),
			ClockSkew:    getEnvAsDuration("AUTH_CLOCK_SKEW", 2*time.Minute),
			BypassPaths:  getEnvAsCSV("AUTH_BYPASS_PATHS", []string{"/health"}),
			TenantClaim:  getEnv("AUTH_TENANT_CLAIM", "tenant_id"),
			TenantHeader: getEnv("AUTH_TENANT_HEADER", "X-Tenant-ID"),
		},
		Log: LogSettings{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseSettings{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			Database:        getEnv("DB_NAME", "ms_fiscal_core"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Audit: AuditSettings{
			Enabled:         getEnvAsBool("AUDIT_ENABLED", true),
			LogRequestBody:  getEnvAsBool("AUDIT_LOG_REQUEST_BODY", true),
			LogResponseBody: getEnvAsBool("AUDIT_LOG_RESPONSE_BODY", true),
			MaxBodySize:     getEnvAsInt("AUDIT_MAX_BODY_SIZE", 102400),
		},
		Gateway: GatewaySettings{
			ProductionURL:   getEnv("FOCUSNFE_PRODUCTION_URL", "https://api.focusnfe.com.br"),
			SandboxURL:      getEnv("FOCUSNFE_SANDBOX_URL", "https://homologacao.focusnfe.com.br"),
			Timeout:         getEnvAsDuration("FOCUSNFE_TIMEOUT", 60*time.Second),
			MaxConnsPerHost: getEnvAsInt("FOCUSNFE_MAX_CONNS_PER_HOST", 20),
		},
		PostalLookup: PostalLookupSettings{
			Enabled:  getEnvAsBool("VIACEP_ENABLED", true),
			BaseURL:  getEnv("VIACEP_BASE_URL", "https://viacep.com.br/ws"),
			Timeout:  getEnvAsDuration("VIACEP_TIMEOUT", 5*time.Second),
			CacheTTL: getEnvAsDuration("VIACEP_CACHE_TTL", 24*time.Hour),
		},
		Reconcile: ReconcileSettings{
			BatchSize: getEnvAsInt("RECONCILE_BATCH_SIZE", 100),
		},
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (cfg AppConfig) validate() error {
	if cfg.Auth.Enabled {
		if cfg.Auth.IssuerURI == "" {
			return errors.New("invalid config: JWT_ISSUER_URI is required when AUTH_ENABLED=true")
		}
		if cfg.Auth.JWKSetURI == "" {
			return errors.New("invalid config: JWT_JWK_SET_URI is required when AUTH_ENABLED=true")
		}
		if strings.TrimSpace(cfg.Auth.TenantClaim) == "" {
			return errors.New("invalid config: AUTH_TENANT_CLAIM cannot be empty when AUTH_ENABLED=true")
		}
	} else if strings.TrimSpace(cfg.Auth.TenantHeader) == "" {
		return errors.New("invalid config: AUTH_TENANT_HEADER cannot be empty when AUTH_ENABLED=false")
	}

	if err := requireURL("FOCUSNFE_PRODUCTION_URL", cfg.Gateway.ProductionURL); err != nil {
		return err
	}
	if err := requireURL("FOCUSNFE_SANDBOX_URL", cfg.Gateway.SandboxURL); err != nil {
		return err
	}
	if cfg.Gateway.Timeout <= 0 {
		return errors.New("invalid config: FOCUSNFE_TIMEOUT must be greater than 0")
	}

	if cfg.PostalLookup.Enabled {
		if err := requireURL("VIACEP_BASE_URL", cfg.PostalLookup.BaseURL); err != nil {
			return err
		}
		if cfg.PostalLookup.Timeout <= 0 {
			return errors.New("invalid config: VIACEP_TIMEOUT must be greater than 0")
		}
	}

	if cfg.Reconcile.BatchSize <= 0 || cfg.Reconcile.BatchSize > maxReconcileBatch {
		return fmt.Errorf("invalid config: RECONCILE_BATCH_SIZE must be between 1 and %d", maxReconcileBatch)
	}
	return nil
}

func requireURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid config: %s must be an absolute http(s) URL, got %q", key, raw)
	}
	return nil
}

// Address returns the HTTP listen address in host:port form.
func (h HTTPSettings) Address() string {
	return fmt.Sprintf(":%d", h.Port)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsCSV(key string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			values = append(values, trimmed)
		}
	}
	if len(values) == 0 {
		return fallback
	}
	return values
}
