package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"3tcapital/ms_fiscal_core/internal/core/audit"
)

// Repository implements the audit.Repository interface using PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewRepository creates a new PostgreSQL audit repository. log may be nil.
func NewRepository(pool *pgxpool.Pool, log *slog.Logger) *Repository {
	return &Repository{pool: pool, log: log}
}

// Save persists one provider exchange.
func (r *Repository) Save(ctx context.Context, entry audit.ProviderAuditLog) error {
	query := `
		INSERT INTO provider_audit_log (
			correlation_id, tenant_id, provider, operation, request_method, request_url,
			request_headers, request_body, response_status, response_headers,
			response_body, duration_ms, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	requestHeaders, err := headersJSON(entry.RequestHeaders)
	if err != nil {
		return r.fail(entry, fmt.Errorf("marshal request headers: %w", err))
	}
	responseHeaders, err := headersJSON(entry.ResponseHeaders)
	if err != nil {
		return r.fail(entry, fmt.Errorf("marshal response headers: %w", err))
	}

	_, err = r.pool.Exec(ctx, query,
		entry.CorrelationID,
		nullableString(entry.TenantID),
		entry.Provider,
		entry.Operation,
		entry.RequestMethod,
		entry.RequestURL,
		requestHeaders,
		bodyArg(entry.RequestBody),
		entry.ResponseStatus,
		responseHeaders,
		bodyArg(entry.ResponseBody),
		entry.DurationMs,
		nullableString(entry.ErrorMessage),
	)
	if err != nil {
		return r.fail(entry, fmt.Errorf("insert audit log: %w", err))
	}

	if r.log != nil {
		r.log.Debug("Audit log saved",
			"correlation_id", entry.CorrelationID,
			"tenant_id", entry.TenantID,
			"provider", entry.Provider,
			"operation", entry.Operation)
	}
	return nil
}

func (r *Repository) fail(entry audit.ProviderAuditLog, err error) error {
	if r.log != nil {
		r.log.Error("Failed to save audit log",
			"correlation_id", entry.CorrelationID,
			"tenant_id", entry.TenantID,
			"provider", entry.Provider,
			"operation", entry.Operation,
			"method", entry.RequestMethod,
			"url", entry.RequestURL,
			"error", err)
	}
	return err
}

// FindByCorrelationID retrieves all audit logs with the given correlation ID.
func (r *Repository) FindByCorrelationID(ctx context.Context, correlationID string) ([]audit.ProviderAuditLog, error) {
	query := `
		SELECT id, correlation_id, COALESCE(tenant_id, ''), provider, operation,
		       request_method, request_url, request_headers, request_body,
		       response_status, response_headers, response_body, duration_ms,
		       COALESCE(error_message, ''), created_at
		FROM provider_audit_log
		WHERE correlation_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, correlationID)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	defer rows.Close()

	var logs []audit.ProviderAuditLog
	for rows.Next() {
		var (
			entry                           audit.ProviderAuditLog
			requestHeaders, responseHeaders []byte
			requestBody, responseBody       []byte
		)
		err := rows.Scan(
			&entry.ID,
			&entry.CorrelationID,
			&entry.TenantID,
			&entry.Provider,
			&entry.Operation,
			&entry.RequestMethod,
			&entry.RequestURL,
			&requestHeaders,
			&requestBody,
			&entry.ResponseStatus,
			&responseHeaders,
			&responseBody,
			&entry.DurationMs,
			&entry.ErrorMessage,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}

		if entry.RequestHeaders, err = decodeHeaders(requestHeaders); err != nil {
			return nil, fmt.Errorf("unmarshal request headers: %w", err)
		}
		if entry.ResponseHeaders, err = decodeHeaders(responseHeaders); err != nil {
			return nil, fmt.Errorf("unmarshal response headers: %w", err)
		}
		if len(requestBody) > 0 {
			entry.RequestBody = requestBody
		}
		if len(responseBody) > 0 {
			entry.ResponseBody = responseBody
		}

		logs = append(logs, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return logs, nil
}

// headersJSON encodes headers, writing {} for a nil map.
func headersJSON(h map[string]string) ([]byte, error) {
	if h == nil {
		h = map[string]string{}
	}
	return json.Marshal(h)
}

func decodeHeaders(raw []byte) (map[string]string, error) {
	h := map[string]string{}
	if len(raw) == 0 {
		return h, nil
	}
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, err
	}
	return h, nil
}

func bodyArg(b json.RawMessage) any {
	if len(b) == 0 {
		return nil
	}
	return []byte(b)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
