package audit

import (
	"context"
	"encoding/json"
	"time"
)

// ProviderAuditLog is the redacted record of one outbound call to an external
// provider (fiscal gateway or postal directory).
type ProviderAuditLog struct {
	ID              int64
	CorrelationID   string
	TenantID        string
	Provider        string
	Operation       string
	RequestMethod   string
	RequestURL      string
	RequestHeaders  map[string]string
	RequestBody     json.RawMessage
	ResponseStatus  *int
	ResponseHeaders map[string]string
	ResponseBody    json.RawMessage
	DurationMs      int64
	ErrorMessage    string
	CreatedAt       time.Time
}

// Repository persists and queries audit logs.
type Repository interface {
	Save(ctx context.Context, log ProviderAuditLog) error

	// FindByCorrelationID returns every provider call made while serving one
	// inbound request, newest first.
	FindByCorrelationID(ctx context.Context, correlationID string) ([]ProviderAuditLog, error)
}
