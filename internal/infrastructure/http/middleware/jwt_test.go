package middleware

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"3tcapital/ms_fiscal_core/internal/infrastructure/config"
	ctxutil "3tcapital/ms_fiscal_core/internal/infrastructure/context"
	"3tcapital/ms_fiscal_core/internal/testutil"
)

const testIssuer = "https://issuer.example.com"

// signedAuthenticator returns an enabled authenticator trusting a fresh ES256
// key, and a signer for tokens under that key.
func signedAuthenticator(t *testing.T) (*JWTAuthenticator, func(jwt.MapClaims) string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	auth := newAuthenticator(config.AuthSettings{
		Enabled:     true,
		IssuerURI:   testIssuer,
		BypassPaths: []string{"/health"},
	}, testutil.NewNullLogger())
	auth.keyfunc = func(*jwt.Token) (any, error) { return &key.PublicKey, nil }

	sign := func(claims jwt.MapClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(key)
		if err != nil {
			t.Fatalf("sign token: %v", err)
		}
		return s
	}
	return auth, sign
}

// tenantEcho writes the tenant found in the request context.
func tenantEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(ctxutil.GetTenantID(r.Context())))
	})
}

func TestNewJWTAuthenticator_AuthDisabled(t *testing.T) {
	auth, err := NewJWTAuthenticator(config.AuthSettings{Enabled: false}, testutil.NewNullLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if auth.cfg.TenantHeader != "X-Tenant-ID" || auth.cfg.TenantClaim != "tenant_id" {
		t.Errorf("expected tenant defaults, got %+v", auth.cfg)
	}
	// Should not panic
	auth.Close()
}

func TestNewJWTAuthenticator_AuthEnabled_InvalidJWKSetURI(t *testing.T) {
	cfg := config.AuthSettings{
		Enabled:   true,
		IssuerURI: testIssuer,
		JWKSetURI: "invalid-uri",
	}
	if _, err := NewJWTAuthenticator(cfg, testutil.NewNullLogger()); err == nil {
		t.Fatal("expected error for invalid JWKSetURI")
	}
}

func TestJWTAuthenticator_AuthDisabledUsesTenantHeader(t *testing.T) {
	auth, _ := NewJWTAuthenticator(config.AuthSettings{Enabled: false, BypassPaths: []string{"/health"}}, testutil.NewNullLogger())
	handler := auth.Middleware(tenantEcho())

	t.Run("header present", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/fiscal-documents/nfe-1-1", nil)
		req.Header.Set("X-Tenant-ID", " tenant-7 ")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK || w.Body.String() != "tenant-7" {
			t.Errorf("expected tenant-7 with 200, got %d %q", w.Code, w.Body.String())
		}
	})

	t.Run("header missing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/fiscal-documents/nfe-1-1", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", w.Code)
		}
	})

	t.Run("bypass path needs no tenant", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", w.Code)
		}
	})
}

func TestJWTAuthenticator_TokenValidation(t *testing.T) {
	auth, sign := signedAuthenticator(t)
	handler := auth.Middleware(tenantEcho())
	now := time.Now()

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantTenant string
	}{
		{
			name:       "valid token with tenant",
			header:     "Bearer " + sign(jwt.MapClaims{"iss": testIssuer, "exp": now.Add(time.Hour).Unix(), "tenant_id": "tenant-1"}),
			wantStatus: http.StatusOK,
			wantTenant: "tenant-1",
		},
		{
			name:       "numeric tenant claim",
			header:     "Bearer " + sign(jwt.MapClaims{"iss": testIssuer, "exp": now.Add(time.Hour).Unix(), "tenant_id": 42}),
			wantStatus: http.StatusOK,
			wantTenant: "42",
		},
		{
			name:       "token without tenant",
			header:     "Bearer " + sign(jwt.MapClaims{"iss": testIssuer, "exp": now.Add(time.Hour).Unix()}),
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "expired token",
			header:     "Bearer " + sign(jwt.MapClaims{"iss": testIssuer, "exp": now.Add(-time.Hour).Unix(), "tenant_id": "tenant-1"}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong issuer",
			header:     "Bearer " + sign(jwt.MapClaims{"iss": "https://other.example.com", "exp": now.Add(time.Hour).Unix(), "tenant_id": "tenant-1"}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "malformed token",
			header:     "Bearer invalid.token.here",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing header",
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/fiscal-documents", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantTenant != "" && w.Body.String() != tt.wantTenant {
				t.Errorf("expected tenant %q, got %q", tt.wantTenant, w.Body.String())
			}
		})
	}
}

func TestJWTAuthenticator_TenantHeaderIgnoredWhenEnabled(t *testing.T) {
	auth, sign := signedAuthenticator(t)
	handler := auth.Middleware(tenantEcho())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/fiscal-documents/x", nil)
	req.Header.Set("Authorization", "Bearer "+sign(jwt.MapClaims{"iss": testIssuer, "exp": time.Now().Add(time.Hour).Unix(), "tenant_id": "tenant-1"}))
	req.Header.Set("X-Tenant-ID", "tenant-2")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Body.String() != "tenant-1" {
		t.Errorf("header must not override the token tenant, got %q", w.Body.String())
	}
}

func TestJWTAuthenticator_shouldBypass(t *testing.T) {
	auth := newAuthenticator(config.AuthSettings{BypassPaths: []string{"/health", "/public", ""}}, testutil.NewNullLogger())

	tests := []struct {
		path     string
		expected bool
	}{
		{"/health", true},
		{"/public", true},
		{"/api/v1/fiscal-documents", false},
		{"/health/status", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := auth.shouldBypass(tt.path); got != tt.expected {
				t.Errorf("expected shouldBypass(%q)=%v, got %v", tt.path, tt.expected, got)
			}
		})
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name        string
		header      string
		expectedTok string
		expectedErr bool
	}{
		{name: "empty header", header: "", expectedErr: true},
		{name: "no Bearer prefix", header: "token123", expectedErr: true},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz", expectedErr: true},
		{name: "too many parts", header: "Bearer token extra", expectedErr: true},
		{name: "valid Bearer token", header: "Bearer token123", expectedTok: "token123"},
		{name: "case insensitive scheme", header: "bearer token123", expectedTok: "token123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := extractBearerToken(tt.header)
			if tt.expectedErr {
				if err == nil {
					t.Errorf("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if token != tt.expectedTok {
				t.Errorf("expected token %q, got %q", tt.expectedTok, token)
			}
		})
	}
}
