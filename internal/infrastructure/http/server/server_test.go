package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"3tcapital/ms_fiscal_core/internal/infrastructure/config"
	ctxutil "3tcapital/ms_fiscal_core/internal/infrastructure/context"
	"3tcapital/ms_fiscal_core/internal/testutil"
)

func testConfig(port int) config.AppConfig {
	return config.AppConfig{
		HTTP: config.HTTPSettings{
			Port:            port,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: time.Second,
		},
		Auth: config.AuthSettings{
			Enabled:     false,
			BypassPaths: []string{"/health"},
		},
	}
}

func noopHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
}

func TestNew_NilLogger(t *testing.T) {
	_, err := New(Options{Config: testConfig(8080), HealthHandler: noopHandler()})
	if err == nil || err.Error() != "logger is required" {
		t.Fatalf("expected 'logger is required', got %v", err)
	}
}

func TestNew_NilHealthHandler(t *testing.T) {
	_, err := New(Options{Config: testConfig(8080), Logger: testutil.NewNullLogger()})
	if err == nil || err.Error() != "health handler is required" {
		t.Fatalf("expected 'health handler is required', got %v", err)
	}
}

func TestNew_ValidOptions(t *testing.T) {
	server, err := New(Options{
		Config:        testConfig(8080),
		Logger:        testutil.NewNullLogger(),
		HealthHandler: noopHandler(),
		FiscalHandler: noopHandler(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if server.httpServer == nil {
		t.Fatal("expected httpServer to be initialized")
	}
	if server.httpServer.Addr != ":8080" {
		t.Errorf("expected address ':8080', got %q", server.httpServer.Addr)
	}
	if server.httpServer.WriteTimeout != 10*time.Second {
		t.Errorf("expected write timeout from config, got %v", server.httpServer.WriteTimeout)
	}
}

func TestNew_FiscalRoutesReceiveTenant(t *testing.T) {
	var tenant string
	var hasDeadline bool
	fiscal := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant = ctxutil.GetTenantID(r.Context())
		_, hasDeadline = r.Context().Deadline()
		w.WriteHeader(http.StatusCreated)
	})

	server, err := New(Options{
		Config:        testConfig(8080),
		Logger:        testutil.NewNullLogger(),
		HealthHandler: noopHandler(),
		FiscalHandler: fiscal,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, FiscalDocumentsPath, nil)
	req.Header.Set("X-Tenant-ID", "tenant-1")
	w := httptest.NewRecorder()
	server.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if tenant != "tenant-1" {
		t.Errorf("expected tenant-1, got %q", tenant)
	}
	if !hasDeadline {
		t.Error("expected request deadline on fiscal routes")
	}
	if w.Header().Get("X-Correlation-ID") == "" {
		t.Error("expected correlation id on the response")
	}
}

func TestNew_FiscalRoutesRequireTenant(t *testing.T) {
	server, _ := New(Options{
		Config:        testConfig(8080),
		Logger:        testutil.NewNullLogger(),
		HealthHandler: noopHandler(),
		FiscalHandler: noopHandler(),
	})

	w := httptest.NewRecorder()
	server.httpServer.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, FiscalDocumentsPath+"/nfe-1-1", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestNew_WithoutFiscalHandler(t *testing.T) {
	server, err := New(Options{
		Config:        testConfig(8080),
		Logger:        testutil.NewNullLogger(),
		HealthHandler: noopHandler(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, FiscalDocumentsPath, nil)
	req.Header.Set("X-Tenant-ID", "tenant-1")
	w := httptest.NewRecorder()
	server.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}
}

func TestServer_HealthEndpoint(t *testing.T) {
	healthHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	server, err := New(Options{
		Config:        testConfig(8080),
		Logger:        testutil.NewNullLogger(),
		HealthHandler: healthHandler,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w := httptest.NewRecorder()
	server.httpServer.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "healthy" {
		t.Errorf("expected body 'healthy', got %q", w.Body.String())
	}
}

func TestServer_Close(t *testing.T) {
	server, err := New(Options{
		Config:        testConfig(8080),
		Logger:        testutil.NewNullLogger(),
		HealthHandler: noopHandler(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Should not panic
	server.Close()
}

func TestServer_Run_ContextCancel(t *testing.T) {
	server, err := New(Options{
		Config:        testConfig(0),
		Logger:        testutil.NewTestLogger(),
		HealthHandler: noopHandler(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	if err := server.Run(ctx); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
