package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"3tcapital/ms_fiscal_core/internal/infrastructure/config"
	httpjson "3tcapital/ms_fiscal_core/internal/infrastructure/http"
	"3tcapital/ms_fiscal_core/internal/infrastructure/http/middleware"
)

// FiscalDocumentsPath is where the fiscal document routes are mounted.
const FiscalDocumentsPath = "/api/v1/fiscal-documents"

// Server exposes the fiscal document API over HTTP.
type Server struct {
	log        *slog.Logger
	httpServer *http.Server
	auth       *middleware.JWTAuthenticator
	shutdown   config.HTTPSettings
}

// Options wires the handlers. FiscalHandler may be nil, in which case the
// fiscal routes answer 503.
type Options struct {
	Config        config.AppConfig
	Logger        *slog.Logger
	HealthHandler http.Handler
	FiscalHandler http.Handler
}

// New builds the router and the underlying http.Server.
func New(opts Options) (*Server, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.HealthHandler == nil {
		return nil, errors.New("health handler is required")
	}

	auth, err := middleware.NewJWTAuthenticator(opts.Config.Auth, opts.Logger)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(opts.Logger))
	r.Use(chimw.Recoverer)
	r.Use(auth.Middleware)

	r.Method(http.MethodGet, "/health", opts.HealthHandler)

	fiscal := opts.FiscalHandler
	if fiscal == nil {
		fiscal = unavailable(opts.Logger)
	}
	r.With(middleware.RequestTimeout(opts.Config.HTTP.WriteTimeout)).Mount(FiscalDocumentsPath, fiscal)

	srv := &http.Server{
		Addr:         opts.Config.HTTP.Address(),
		Handler:      r,
		ReadTimeout:  opts.Config.HTTP.ReadTimeout,
		WriteTimeout: opts.Config.HTTP.WriteTimeout,
		IdleTimeout:  opts.Config.HTTP.IdleTimeout,
	}

	return &Server{log: opts.Logger, httpServer: srv, auth: auth, shutdown: opts.Config.HTTP}, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server started", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		s.log.Info("HTTP server shutting down")
		shutdownCtx := context.Background()
		if s.shutdown.ShutdownTimeout > 0 {
			var cancel context.CancelFunc
			shutdownCtx, cancel = context.WithTimeout(shutdownCtx, s.shutdown.ShutdownTimeout)
			defer cancel()
		}
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		return err
	}
}

// Close stops the JWKS refresher.
func (s *Server) Close() {
	s.auth.Close()
}

func unavailable(log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httpjson.WriteError(w, http.StatusServiceUnavailable, "Serviço indisponível",
			[]string{"Emissão fiscal não configurada"}, log)
	})
}
