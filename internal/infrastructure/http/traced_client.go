package http

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"3tcapital/ms_fiscal_core/internal/core/audit"
	ctxutil "3tcapital/ms_fiscal_core/internal/infrastructure/context"
	"3tcapital/ms_fiscal_core/internal/infrastructure/security"
)

// TracedClient wraps an HTTP client to log every provider exchange with
// sanitized bodies and, when enabled, persist it to the audit trail.
type TracedClient struct {
	client       *http.Client
	log          *slog.Logger
	auditRepo    audit.Repository
	provider     string
	auditEnabled bool
	logReqBody   bool
	logRespBody  bool
	maxBodySize  int
}

// TracedClientConfig holds configuration for the traced HTTP client.
type TracedClientConfig struct {
	Timeout         time.Duration
	AuditEnabled    bool
	LogRequestBody  bool
	LogResponseBody bool
	MaxBodySize     int
	MaxConnsPerHost int
	Transport       http.RoundTripper
}

// Exchange is the captured request/response pair of one call. Both bodies are
// read fully so callers never have to close the response.
type Exchange struct {
	Request      *http.Request
	Response     *http.Response
	RequestBody  []byte
	ResponseBody []byte
	Duration     time.Duration
}

// NewTracedClient creates a traced client with its own connection pool.
func NewTracedClient(cfg *TracedClientConfig, log *slog.Logger, auditRepo audit.Repository, provider string) *TracedClient {
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = 102400
	}

	transport := cfg.Transport
	if transport == nil {
		maxConnsPerHost := cfg.MaxConnsPerHost
		if maxConnsPerHost == 0 {
			maxConnsPerHost = 20
		}
		transport = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   maxConnsPerHost,
			MaxConnsPerHost:       maxConnsPerHost,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: cfg.Timeout,
			ExpectContinueTimeout: 1 * time.Second,
		}
	}

	return &TracedClient{
		client:       &http.Client{Timeout: cfg.Timeout, Transport: transport},
		log:          log,
		auditRepo:    auditRepo,
		provider:     provider,
		auditEnabled: cfg.AuditEnabled,
		logReqBody:   cfg.LogRequestBody,
		logRespBody:  cfg.LogResponseBody,
		maxBodySize:  cfg.MaxBodySize,
	}
}

// Do satisfies the plain HTTP client contract. The returned body is an
// in-memory copy.
func (c *TracedClient) Do(req *http.Request) (*http.Response, error) {
	ex, err := c.Execute(req, "")
	if err != nil {
		return nil, err
	}
	return ex.Response, nil
}

// Execute runs the request and returns the captured exchange. operation names
// the call in logs and audit rows; when empty the request path is used.
func (c *TracedClient) Execute(req *http.Request, operation string) (*Exchange, error) {
	ctx := req.Context()
	correlationID := ctxutil.GetCorrelationID(ctx)
	if operation == "" {
		operation = req.Method + " " + req.URL.Path
	}
	if correlationID != "" {
		req.Header.Set("X-Correlation-ID", correlationID)
	}

	ex := &Exchange{Request: req}
	if req.Body != nil {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			c.log.Error("Failed to read request body for tracing", "error", err, "correlation_id", correlationID)
		}
		ex.RequestBody = body
		req.Body = io.NopCloser(bytes.NewReader(body))
	}

	c.logRequest(correlationID, operation, req, ex.RequestBody)

	start := time.Now()
	resp, err := c.client.Do(req)
	ex.Duration = time.Since(start)

	if resp != nil {
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil && err == nil {
			err = readErr
		}
		ex.ResponseBody = body
		resp.Body = io.NopCloser(bytes.NewReader(body))
		ex.Response = resp
	}

	c.logResponse(correlationID, operation, req, resp, err, ex)
	c.persist(ctx, correlationID, operation, ex, err)

	if err != nil {
		return ex, err
	}
	return ex, nil
}

func (c *TracedClient) logRequest(correlationID, operation string, req *http.Request, body []byte) {
	attrs := []any{
		"correlation_id", correlationID,
		"provider", c.provider,
		"operation", operation,
		"method", req.Method,
		"url", security.SanitizeURL(req.URL.String()),
	}
	if c.logReqBody && len(body) > 0 {
		attrs = append(attrs, "request_body", string(security.SanitizeBody(body, c.maxBodySize)))
	}
	c.log.Debug("provider_request", attrs...)
}

func (c *TracedClient) logResponse(correlationID, operation string, req *http.Request, resp *http.Response, err error, ex *Exchange) {
	attrs := []any{
		"correlation_id", correlationID,
		"provider", c.provider,
		"operation", operation,
		"method", req.Method,
		"url", security.SanitizeURL(req.URL.String()),
		"duration_ms", ex.Duration.Milliseconds(),
	}

	if err != nil {
		attrs = append(attrs, "error", err.Error())
		c.log.Warn("provider_request_failed", attrs...)
		return
	}

	attrs = append(attrs, "status", resp.StatusCode, "response_size_bytes", len(ex.ResponseBody))
	if c.logRespBody && len(ex.ResponseBody) > 0 {
		attrs = append(attrs, "response_body", string(security.SanitizeBody(ex.ResponseBody, c.maxBodySize)))
	}

	switch {
	case resp.StatusCode >= 500:
		c.log.Error("provider_response", attrs...)
	case resp.StatusCode >= 400:
		c.log.Warn("provider_response", attrs...)
	default:
		c.log.Debug("provider_response", attrs...)
	}
}

// persist stores the audit row in the background so a slow audit database
// never delays the provider round trip.
func (c *TracedClient) persist(ctx context.Context, correlationID, operation string, ex *Exchange, callErr error) {
	if !c.auditEnabled || c.auditRepo == nil {
		return
	}
	if correlationID == "" {
		correlationID = "audit-" + uuid.NewString()
	}

	entry := audit.ProviderAuditLog{
		CorrelationID:  correlationID,
		TenantID:       ctxutil.GetTenantID(ctx),
		Provider:       c.provider,
		Operation:      operation,
		RequestMethod:  ex.Request.Method,
		RequestURL:     security.SanitizeURL(ex.Request.URL.String()),
		RequestHeaders: security.SanitizeHeaders(ex.Request.Header),
		RequestBody:    security.SanitizeBody(ex.RequestBody, c.maxBodySize),
		DurationMs:     ex.Duration.Milliseconds(),
	}
	if ex.Response != nil {
		status := ex.Response.StatusCode
		entry.ResponseStatus = &status
		entry.ResponseHeaders = security.SanitizeHeaders(ex.Response.Header)
		entry.ResponseBody = security.SanitizeBody(ex.ResponseBody, c.maxBodySize)
	}
	if callErr != nil {
		entry.ErrorMessage = callErr.Error()
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.log.Error("Panic in audit log persistence", "panic", r, "correlation_id", correlationID)
			}
		}()

		// The request context is usually done by the time this runs.
		saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := c.auditRepo.Save(saveCtx, entry); err != nil {
			c.log.Error("Failed to persist audit log",
				"error", err,
				"correlation_id", correlationID,
				"provider", c.provider,
				"operation", operation,
			)
		}
	}()
}
