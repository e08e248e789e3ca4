package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"3tcapital/ms_fiscal_core/internal/infrastructure/config"
	ctxutil "3tcapital/ms_fiscal_core/internal/infrastructure/context"
	httperrors "3tcapital/ms_fiscal_core/internal/infrastructure/http"
)

// ContextKeyToken exposes the verified JWT token via request context.
type ContextKeyToken struct{}

const authErrorTitle = "Erro de autenticação"

// JWTAuthenticator validates Authorization headers against a remote JWKS and
// resolves the tenant each request acts for.
type JWTAuthenticator struct {
	cfg        config.AuthSettings
	log        *slog.Logger
	keyfunc    jwt.Keyfunc
	cancel     context.CancelFunc
	bypassPath map[string]struct{}
}

// NewJWTAuthenticator loads the JWKS when authentication is enabled.
func NewJWTAuthenticator(cfg config.AuthSettings, log *slog.Logger) (*JWTAuthenticator, error) {
	auth := newAuthenticator(cfg, log)
	if !cfg.Enabled {
		return auth, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	override := keyfunc.Override{
		RefreshInterval: 6 * time.Hour,
		RefreshErrorHandlerFunc: func(url string) func(context.Context, error) {
			return func(c context.Context, err error) {
				log.Error("failed to refresh JWKS", "url", url, "error", err)
			}
		},
		HTTPTimeout: 10 * time.Second,
	}

	jwks, err := keyfunc.NewDefaultOverrideCtx(ctx, []string{cfg.JWKSetURI}, override)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("unable to load JWKS: %w", err)
	}
	auth.keyfunc = jwks.Keyfunc
	auth.cancel = cancel

	return auth, nil
}

func newAuthenticator(cfg config.AuthSettings, log *slog.Logger) *JWTAuthenticator {
	auth := &JWTAuthenticator{
		cfg:        cfg,
		log:        log,
		bypassPath: make(map[string]struct{}),
	}
	for _, path := range cfg.BypassPaths {
		if path != "" {
			auth.bypassPath[path] = struct{}{}
		}
	}
	if auth.cfg.TenantClaim == "" {
		auth.cfg.TenantClaim = "tenant_id"
	}
	if auth.cfg.TenantHeader == "" {
		auth.cfg.TenantHeader = "X-Tenant-ID"
	}
	return auth
}

// Middleware enforces JWT validation and stores the tenant in the request
// context. With authentication disabled the tenant comes from a header.
func (a *JWTAuthenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.shouldBypass(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		if !a.cfg.Enabled {
			tenantID := strings.TrimSpace(r.Header.Get(a.cfg.TenantHeader))
			if tenantID == "" {
				httperrors.WriteError(w, http.StatusUnauthorized, authErrorTitle,
					[]string{"Cabeçalho " + a.cfg.TenantHeader + " não informado"}, a.log)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctxutil.WithTenantID(r.Context(), tenantID)))
			return
		}

		tokenString, err := extractBearerToken(r.Header.Get("Authorization"))
		if err != nil {
			httperrors.WriteError(w, http.StatusUnauthorized, authErrorTitle, []string{"Credenciais de acesso inválidas"}, a.log)
			return
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, a.keyfunc,
			jwt.WithIssuer(a.cfg.IssuerURI),
			jwt.WithLeeway(a.cfg.ClockSkew),
			jwt.WithValidMethods([]string{
				jwt.SigningMethodRS256.Alg(),
				jwt.SigningMethodRS384.Alg(),
				jwt.SigningMethodRS512.Alg(),
				jwt.SigningMethodPS256.Alg(),
				jwt.SigningMethodES256.Alg(),
			}),
		)
		if err != nil || !token.Valid {
			a.log.Warn("token validation failed", "error", err)
			httperrors.WriteError(w, http.StatusUnauthorized, authErrorTitle, []string{"Token inválido ou expirado"}, a.log)
			return
		}

		tenantID := tenantFromClaims(claims, a.cfg.TenantClaim)
		if tenantID == "" {
			a.log.Warn("token without tenant claim", "claim", a.cfg.TenantClaim)
			httperrors.WriteError(w, http.StatusForbidden, authErrorTitle, []string{"Token sem identificação da empresa"}, a.log)
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyToken{}, token)
		ctx = ctxutil.WithTenantID(ctx, tenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Close stops background JWKS refreshers.
func (a *JWTAuthenticator) Close() {
	if a.cancel != nil {
		a.cancel()
	}
}

func (a *JWTAuthenticator) shouldBypass(path string) bool {
	_, ok := a.bypassPath[path]
	return ok
}

// tenantFromClaims reads a string or numeric claim.
func tenantFromClaims(claims jwt.MapClaims, name string) string {
	switch v := claims[name].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func extractBearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("missing Authorization header")
	}

	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid Authorization header format")
	}
	return parts[1], nil
}
