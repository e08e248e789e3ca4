package context

import "context"

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey string

const (
	// CorrelationIDKey is the context key for correlation IDs.
	CorrelationIDKey contextKey = "correlation_id"
	// TenantIDKey is the context key for the authenticated tenant.
	TenantIDKey contextKey = "tenant_id"
)

// WithCorrelationID adds a correlation ID to the context. It travels from the
// inbound request down to every provider call as X-Correlation-ID.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, correlationID)
}

// GetCorrelationID returns the correlation ID or "".
func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return id
	}
	return ""
}

// WithTenantID stores the tenant the request acts on behalf of.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, TenantIDKey, tenantID)
}

// GetTenantID returns the tenant or "".
func GetTenantID(ctx context.Context) string {
	if id, ok := ctx.Value(TenantIDKey).(string); ok {
		return id
	}
	return ""
}
