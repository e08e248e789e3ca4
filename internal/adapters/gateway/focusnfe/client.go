// Package focusnfe implements fiscal.Gateway against the Focus NFe v2 API.
package focusnfe

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"3tcapital/ms_fiscal_core/internal/core/fiscal"
	infrahttp "3tcapital/ms_fiscal_core/internal/infrastructure/http"
	"3tcapital/ms_fiscal_core/internal/infrastructure/security"
)

const (
	// ProductionURL is the Focus NFe production host.
	ProductionURL = "https://api.focusnfe.com.br"
	// SandboxURL is the Focus NFe homologation host.
	SandboxURL = "https://homologacao.focusnfe.com.br"
	// DefaultTimeout bounds every gateway round trip.
	DefaultTimeout = 60 * time.Second

	// TransportFailureMessage is reported when the provider could not be reached.
	TransportFailureMessage = "Falha de comunicação com o provedor fiscal"

	maxTraceBody = 65536
)

// Executor runs one traced HTTP exchange.
type Executor interface {
	Execute(req *http.Request, operation string) (*infrahttp.Exchange, error)
}

// Config selects the provider hosts. Empty fields fall back to the public hosts.
type Config struct {
	ProductionURL string
	SandboxURL    string
}

// Client sends authenticated requests to Focus NFe.
type Client struct {
	exec          Executor
	log           *slog.Logger
	productionURL string
	sandboxURL    string
}

// NewClient creates a gateway client. The executor carries the timeout.
func NewClient(cfg Config, exec Executor, log *slog.Logger) *Client {
	if cfg.ProductionURL == "" {
		cfg.ProductionURL = ProductionURL
	}
	if cfg.SandboxURL == "" {
		cfg.SandboxURL = SandboxURL
	}
	return &Client{
		exec:          exec,
		log:           log,
		productionURL: strings.TrimRight(cfg.ProductionURL, "/"),
		sandboxURL:    strings.TrimRight(cfg.SandboxURL, "/"),
	}
}

// BaseURL returns the host serving the given environment.
func (c *Client) BaseURL(env fiscal.Environment) string {
	if env == fiscal.EnvironmentProduction {
		return c.productionURL
	}
	return c.sandboxURL
}

// Send performs one call and classifies the response. It never returns an
// error: transport failures are folded into the result with StatusCode 0.
func (c *Client) Send(ctx context.Context, gr fiscal.GatewayRequest) fiscal.GatewayResult {
	baseURL := c.BaseURL(gr.Environment)
	fullURL := baseURL + gr.Path

	result := fiscal.GatewayResult{
		BaseURL: baseURL,
		Trace: fiscal.DebugTrace{
			Method:      gr.Method,
			URL:         security.SanitizeURL(fullURL),
			MaskedToken: security.MaskToken(gr.Token),
		},
	}
	if len(gr.Body) > 0 {
		result.Trace.RequestBody = string(security.SanitizeBody(gr.Body, maxTraceBody))
	}

	req, err := http.NewRequestWithContext(ctx, gr.Method, fullURL, bytes.NewReader(gr.Body))
	if err != nil {
		return c.transportFailure(result, err)
	}
	req.SetBasicAuth(gr.Token, "")
	req.Header.Set("Accept", "application/json")
	if gr.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	ex, err := c.exec.Execute(req, operationName(gr.Method, gr.Path))
	if ex != nil {
		result.Trace.DurationMs = ex.Duration.Milliseconds()
	}
	if err != nil {
		return c.transportFailure(result, err)
	}

	resp := ex.Response
	result.StatusCode = resp.StatusCode
	result.Trace.ResponseStatus = resp.StatusCode
	result.Trace.ResponseHeaders = security.SanitizeHeaders(resp.Header)
	if len(ex.ResponseBody) > 0 {
		result.Trace.ResponseBody = string(security.SanitizeBody(ex.ResponseBody, maxTraceBody))
	}
	if json.Valid(ex.ResponseBody) {
		result.Body = json.RawMessage(ex.ResponseBody)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		result.Success = true
		return result
	}

	result.Error = normalizeError(ex.ResponseBody)
	c.log.Warn("Focus NFe returned an error", result.Trace.LogAttrs()...)
	return result
}

func (c *Client) transportFailure(result fiscal.GatewayResult, err error) fiscal.GatewayResult {
	result.Trace.Error = err.Error()
	result.Error = &fiscal.ProviderError{
		Code:     fiscal.CodeTransportFailure,
		Messages: []string{TransportFailureMessage},
	}
	c.log.Warn("Focus NFe request failed", result.Trace.LogAttrs()...)
	return result
}

type errorEnvelope struct {
	Codigo   string          `json:"codigo"`
	Mensagem json.RawMessage `json:"mensagem"`
	Erros    json.RawMessage `json:"erros"`
}

// normalizeError reduces the provider's error shapes to one ProviderError.
// Returns nil when the body carries nothing interpretable.
func normalizeError(body []byte) *fiscal.ProviderError {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil
	}

	pe := &fiscal.ProviderError{Code: env.Codigo}
	pe.Messages = append(pe.Messages, fiscal.ParseMessages(env.Mensagem)...)
	pe.Messages = append(pe.Messages, fiscal.ParseMessages(env.Erros)...)
	if pe.Code == "" {
		pe.Code = fiscal.FirstCode(env.Erros)
	}

	if !pe.Interpretable() {
		return nil
	}
	return pe
}

// operationName labels audit rows, e.g. "POST nfse" or "GET nfe".
func operationName(method, path string) string {
	p := strings.TrimPrefix(path, "/v2/")
	if i := strings.IndexAny(p, "/?"); i >= 0 {
		p = p[:i]
	}
	return method + " " + p
}
