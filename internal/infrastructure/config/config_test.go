package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

var loadKeys = []string{
	"APP_NAME", "APP_VERSION", "APP_ENV", "APP_PORT",
	"HTTP_READ_TIMEOUT", "HTTP_WRITE_TIMEOUT", "HTTP_IDLE_TIMEOUT", "HTTP_SHUTDOWN_TIMEOUT",
	"AUTH_ENABLED", "JWT_ISSUER_URI", "JWT_JWK_SET_URI", "AUTH_CLOCK_SKEW", "AUTH_BYPASS_PATHS",
	"AUTH_TENANT_CLAIM", "AUTH_TENANT_HEADER", "LOG_LEVEL",
	"FOCUSNFE_PRODUCTION_URL", "FOCUSNFE_SANDBOX_URL", "FOCUSNFE_TIMEOUT", "FOCUSNFE_MAX_CONNS_PER_HOST",
	"VIACEP_ENABLED", "VIACEP_BASE_URL", "VIACEP_TIMEOUT", "VIACEP_CACHE_TTL", "RECONCILE_BATCH_SIZE",
}

// cleanEnv unsets every key Load reads and restores them after the test.
func cleanEnv(t *testing.T) {
	t.Helper()
	for _, key := range loadKeys {
		if old, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, old) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
	os.Setenv("AUTH_ENABLED", "false")
}

func TestLoad_DefaultValues(t *testing.T) {
	cleanEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.App.Name != "ms_fiscal_core" {
		t.Errorf("expected default app name 'ms_fiscal_core', got %q", cfg.App.Name)
	}
	if cfg.HTTP.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.HTTP.Port)
	}
	if cfg.Gateway.SandboxURL != "https://homologacao.focusnfe.com.br" || cfg.Gateway.ProductionURL != "https://api.focusnfe.com.br" {
		t.Errorf("unexpected gateway hosts %+v", cfg.Gateway)
	}
	if cfg.Gateway.Timeout != 60*time.Second {
		t.Errorf("expected gateway timeout 60s, got %v", cfg.Gateway.Timeout)
	}
	if cfg.PostalLookup.Timeout != 5*time.Second || !cfg.PostalLookup.Enabled || cfg.PostalLookup.CacheTTL != 24*time.Hour {
		t.Errorf("unexpected postal lookup settings %+v", cfg.PostalLookup)
	}
	if cfg.Auth.TenantClaim != "tenant_id" || cfg.Auth.TenantHeader != "X-Tenant-ID" {
		t.Errorf("unexpected tenant settings %+v", cfg.Auth)
	}
	if cfg.Reconcile.BatchSize != 100 {
		t.Errorf("expected reconcile batch 100, got %d", cfg.Reconcile.BatchSize)
	}
}

func TestLoad_WithCustomValues(t *testing.T) {
	cleanEnv(t)
	os.Setenv("APP_ENV", "production")
	os.Setenv("APP_PORT", "9090")
	os.Setenv("FOCUSNFE_SANDBOX_URL", "http://localhost:4010")
	os.Setenv("FOCUSNFE_TIMEOUT", "15s")
	os.Setenv("RECONCILE_BATCH_SIZE", "20")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.App.Environment != "production" {
		t.Errorf("expected environment 'production', got %q", cfg.App.Environment)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.HTTP.Port)
	}
	if cfg.Gateway.SandboxURL != "http://localhost:4010" || cfg.Gateway.Timeout != 15*time.Second {
		t.Errorf("unexpected gateway settings %+v", cfg.Gateway)
	}
	if cfg.Reconcile.BatchSize != 20 {
		t.Errorf("expected batch 20, got %d", cfg.Reconcile.BatchSize)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "auth without issuer",
			env:     map[string]string{"AUTH_ENABLED": "true"},
			wantErr: "invalid config: JWT_ISSUER_URI is required when AUTH_ENABLED=true",
		},
		{
			name:    "auth without jwks",
			env:     map[string]string{"AUTH_ENABLED": "true", "JWT_ISSUER_URI": "https://issuer.example.com"},
			wantErr: "invalid config: JWT_JWK_SET_URI is required when AUTH_ENABLED=true",
		},
		{
			name:    "no tenant header without auth",
			env:     map[string]string{"AUTH_TENANT_HEADER": " "},
			wantErr: "AUTH_TENANT_HEADER cannot be empty",
		},
		{
			name:    "relative gateway url",
			env:     map[string]string{"FOCUSNFE_PRODUCTION_URL": "api.focusnfe.com.br"},
			wantErr: "FOCUSNFE_PRODUCTION_URL must be an absolute http(s) URL",
		},
		{
			name:    "zero gateway timeout",
			env:     map[string]string{"FOCUSNFE_TIMEOUT": "0s"},
			wantErr: "FOCUSNFE_TIMEOUT must be greater than 0",
		},
		{
			name:    "bad postal url",
			env:     map[string]string{"VIACEP_BASE_URL": "ftp://viacep"},
			wantErr: "VIACEP_BASE_URL must be an absolute http(s) URL",
		},
		{
			name:    "reconcile batch too large",
			env:     map[string]string{"RECONCILE_BATCH_SIZE": "1000"},
			wantErr: "RECONCILE_BATCH_SIZE must be between 1 and 500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanEnv(t)
			for k, v := range tt.env {
				os.Setenv(k, v)
			}

			_, err := Load()
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("unexpected error message: %v", err)
			}
		})
	}
}

func TestLoad_DisabledPostalLookupSkipsValidation(t *testing.T) {
	cleanEnv(t)
	os.Setenv("VIACEP_ENABLED", "false")
	os.Setenv("VIACEP_BASE_URL", "")

	if _, err := Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHTTPSettings_Address(t *testing.T) {
	settings := HTTPSettings{Port: 8080}
	addr := settings.Address()

	if addr != ":8080" {
		t.Errorf("expected address ':8080', got %q", addr)
	}
}

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_KEY", "test-value")
	defer os.Unsetenv("TEST_KEY")

	value := getEnv("TEST_KEY", "default")
	if value != "test-value" {
		t.Errorf("expected 'test-value', got %q", value)
	}

	value = getEnv("NON_EXISTENT_KEY", "default-value")
	if value != "default-value" {
		t.Errorf("expected 'default-value', got %q", value)
	}
}

func TestGetEnvAsBool(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		fallback bool
		expected bool
	}{
		{"true value", "true", false, true},
		{"false value", "false", true, false},
		{"True value", "True", false, true},
		{"FALSE value", "FALSE", true, false},
		{"invalid value", "invalid", true, true},
		{"missing key", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv("TEST_BOOL", tt.envValue)
				defer os.Unsetenv("TEST_BOOL")
			} else {
				os.Unsetenv("TEST_BOOL")
			}

			result := getEnvAsBool("TEST_BOOL", tt.fallback)
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestGetEnvAsInt(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		fallback int
		expected int
	}{
		{"valid int", "123", 0, 123},
		{"zero", "0", 999, 0},
		{"negative", "-10", 0, -10},
		{"invalid value", "not-a-number", 42, 42},
		{"missing key", "", 42, 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv("TEST_INT", tt.envValue)
				defer os.Unsetenv("TEST_INT")
			} else {
				os.Unsetenv("TEST_INT")
			}

			result := getEnvAsInt("TEST_INT", tt.fallback)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		fallback time.Duration
		expected time.Duration
	}{
		{"valid duration", "10s", 0, 10 * time.Second},
		{"minutes", "5m", 0, 5 * time.Minute},
		{"hours", "2h", 0, 2 * time.Hour},
		{"invalid value", "not-a-duration", 30 * time.Second, 30 * time.Second},
		{"empty value", "", 30 * time.Second, 30 * time.Second},
		{"missing key", "", 30 * time.Second, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv("TEST_DURATION", tt.envValue)
				defer os.Unsetenv("TEST_DURATION")
			} else {
				os.Unsetenv("TEST_DURATION")
			}

			result := getEnvAsDuration("TEST_DURATION", tt.fallback)
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestGetEnvAsCSV(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		fallback []string
		expected []string
	}{
		{
			name:     "single value",
			envValue: "value1",
			fallback: []string{"default"},
			expected: []string{"value1"},
		},
		{
			name:     "multiple values",
			envValue: "value1,value2,value3",
			fallback: []string{"default"},
			expected: []string{"value1", "value2", "value3"},
		},
		{
			name:     "with spaces",
			envValue: "value1, value2 , value3",
			fallback: []string{"default"},
			expected: []string{"value1", "value2", "value3"},
		},
		{
			name:     "empty values filtered",
			envValue: "value1,,value2, ,value3",
			fallback: []string{"default"},
			expected: []string{"value1", "value2", "value3"},
		},
		{
			name:     "empty string",
			envValue: "",
			fallback: []string{"default"},
			expected: []string{"default"},
		},
		{
			name:     "only spaces",
			envValue: " , , ",
			fallback: []string{"default"},
			expected: []string{"default"},
		},
		{
			name:     "missing key",
			envValue: "",
			fallback: []string{"default1", "default2"},
			expected: []string{"default1", "default2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv("TEST_CSV", tt.envValue)
				defer os.Unsetenv("TEST_CSV")
			} else {
				os.Unsetenv("TEST_CSV")
			}

			result := getEnvAsCSV("TEST_CSV", tt.fallback)
			if len(result) != len(tt.expected) {
				t.Errorf("expected %d values, got %d", len(tt.expected), len(result))
				return
			}

			for i, expected := range tt.expected {
				if result[i] != expected {
					t.Errorf("expected[%d] %q, got %q", i, expected, result[i])
				}
			}
		})
	}
}
