package fiscal

import (
	"context"
	"encoding/json"
	"time"
)

// DocumentRepository persists fiscal documents.
type DocumentRepository interface {
	// Save inserts the document, or updates it when a row with the same tenant
	// and reference code already exists.
	Save(ctx context.Context, doc *Document) error
	// FindByReference returns ErrNotFound when no document matches.
	FindByReference(ctx context.Context, tenantID, referenceCode string) (*Document, error)
	// ListByStatus returns up to limit documents of the tenant in the given status,
	// oldest first.
	ListByStatus(ctx context.Context, tenantID string, status Status, limit int) ([]Document, error)
}

// ProfileRepository reads tenant identity and configuration, and reads or
// back-fills counterparties.
type ProfileRepository interface {
	FindSettings(ctx context.Context, tenantID string) (*TenantSettings, error)
	FindEmitter(ctx context.Context, tenantID string) (*EmitterProfile, error)
	FindCounterparty(ctx context.Context, tenantID, counterpartyID string) (*CounterpartyProfile, error)
	// UpdateCounterpartyMunicipality caches a resolved IBGE code on the counterparty.
	UpdateCounterpartyMunicipality(ctx context.Context, tenantID, counterpartyID, code string) error
}

// GatewayRequest is one call to the provider gateway.
type GatewayRequest struct {
	Token       string
	Environment Environment
	Method      string
	Path        string
	Body        []byte
}

// DebugTrace is the redacted record of one gateway exchange, kept for audit.
type DebugTrace struct {
	Method          string            `json:"method"`
	URL             string            `json:"url"`
	MaskedToken     string            `json:"maskedToken"`
	RequestBody     string            `json:"requestBody,omitempty"`
	ResponseStatus  int               `json:"responseStatus,omitempty"`
	ResponseHeaders map[string]string `json:"responseHeaders,omitempty"`
	ResponseBody    string            `json:"responseBody,omitempty"`
	DurationMs      int64             `json:"durationMs"`
	Error           string            `json:"error,omitempty"`
}

// LogAttrs flattens the trace into slog key/value pairs.
func (t DebugTrace) LogAttrs() []any {
	attrs := []any{
		"method", t.Method,
		"url", t.URL,
		"token", t.MaskedToken,
		"status", t.ResponseStatus,
		"duration_ms", t.DurationMs,
	}
	if t.RequestBody != "" {
		attrs = append(attrs, "request_body", t.RequestBody)
	}
	if t.ResponseBody != "" {
		attrs = append(attrs, "response_body", t.ResponseBody)
	}
	if len(t.ResponseHeaders) > 0 {
		attrs = append(attrs, "response_headers", t.ResponseHeaders)
	}
	if t.Error != "" {
		attrs = append(attrs, "error", t.Error)
	}
	return attrs
}

// GatewayResult is the classified outcome of a gateway call. Transport-level
// failures use StatusCode 0.
type GatewayResult struct {
	Success    bool
	StatusCode int
	Body       json.RawMessage
	Error      *ProviderError
	Trace      DebugTrace
	BaseURL    string
}

// Gateway sends authenticated requests to the government-integration provider.
type Gateway interface {
	Send(ctx context.Context, req GatewayRequest) GatewayResult
}

// Clock is the time source used for reference codes and timestamps.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)
