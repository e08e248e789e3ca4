// Package postgres implements the fiscal repositories on PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"3tcapital/ms_fiscal_core/internal/core/fiscal"
)

// rowScanner is satisfied by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// DocumentRepository implements fiscal.DocumentRepository.
type DocumentRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewDocumentRepository creates a new PostgreSQL document repository.
func NewDocumentRepository(pool *pgxpool.Pool, log *slog.Logger) *DocumentRepository {
	return &DocumentRepository{pool: pool, log: log}
}

const documentColumns = `
	id, tenant_id, source_order_id, document_type, schema_variant, reference_code,
	status, number, series, authorization_key, protocol_number, xml_url,
	document_url, error_message, raw_request_payload, raw_provider_response,
	created_at, updated_at`

// Save upserts the document on (tenant_id, reference_code). The row id and
// creation time of an existing row are kept.
func (r *DocumentRepository) Save(ctx context.Context, doc *fiscal.Document) error {
	query := `
		INSERT INTO fiscal_documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (tenant_id, reference_code) DO UPDATE SET
			status                = EXCLUDED.status,
			number                = EXCLUDED.number,
			series                = EXCLUDED.series,
			authorization_key     = EXCLUDED.authorization_key,
			protocol_number       = EXCLUDED.protocol_number,
			xml_url               = EXCLUDED.xml_url,
			document_url          = EXCLUDED.document_url,
			error_message         = EXCLUDED.error_message,
			raw_provider_response = EXCLUDED.raw_provider_response,
			updated_at            = EXCLUDED.updated_at
	`

	_, err := r.pool.Exec(ctx, query,
		doc.ID,
		doc.TenantID,
		doc.SourceOrderID,
		string(doc.Type),
		string(doc.SchemaVariant),
		doc.ReferenceCode,
		string(doc.Status),
		doc.Number,
		doc.Series,
		doc.AuthorizationKey,
		doc.ProtocolNumber,
		doc.XMLURL,
		doc.DocumentURL,
		doc.ErrorMessage,
		nullableJSON(doc.RawRequestPayload),
		nullableJSON(doc.RawProviderResponse),
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert fiscal document %s: %w", doc.ReferenceCode, err)
	}

	r.log.Debug("Fiscal document saved",
		"tenant_id", doc.TenantID,
		"reference", doc.ReferenceCode,
		"status", doc.Status)
	return nil
}

// FindByReference returns fiscal.ErrNotFound when no row matches.
func (r *DocumentRepository) FindByReference(ctx context.Context, tenantID, referenceCode string) (*fiscal.Document, error) {
	query := `SELECT ` + documentColumns + `
		FROM fiscal_documents
		WHERE tenant_id = $1 AND reference_code = $2`

	doc, err := scanDocument(r.pool.QueryRow(ctx, query, tenantID, referenceCode))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fiscal.ErrNotFound
		}
		return nil, fmt.Errorf("query fiscal document %s: %w", referenceCode, err)
	}
	return doc, nil
}

// ListByStatus returns documents oldest first. A non-positive limit returns all.
func (r *DocumentRepository) ListByStatus(ctx context.Context, tenantID string, status fiscal.Status, limit int) ([]fiscal.Document, error) {
	query := `SELECT ` + documentColumns + `
		FROM fiscal_documents
		WHERE tenant_id = $1 AND status = $2
		ORDER BY created_at ASC
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, tenantID, string(status), limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("query fiscal documents: %w", err)
	}
	defer rows.Close()

	var docs []fiscal.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fiscal document: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return docs, nil
}

func scanDocument(row rowScanner) (*fiscal.Document, error) {
	var (
		doc                                           fiscal.Document
		docType, variant, status                      string
		number, series, key, protocol, xmlURL, docURL *string
		errorMessage                                  *string
		rawRequest, rawResponse                       []byte
	)
	err := row.Scan(
		&doc.ID,
		&doc.TenantID,
		&doc.SourceOrderID,
		&docType,
		&variant,
		&doc.ReferenceCode,
		&status,
		&number,
		&series,
		&key,
		&protocol,
		&xmlURL,
		&docURL,
		&errorMessage,
		&rawRequest,
		&rawResponse,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.Type = fiscal.DocumentType(docType)
	doc.SchemaVariant = fiscal.SchemaVariant(variant)
	doc.Status = fiscal.Status(status)
	doc.Number = deref(number)
	doc.Series = deref(series)
	doc.AuthorizationKey = deref(key)
	doc.ProtocolNumber = deref(protocol)
	doc.XMLURL = deref(xmlURL)
	doc.DocumentURL = deref(docURL)
	doc.ErrorMessage = deref(errorMessage)
	if len(rawRequest) > 0 {
		doc.RawRequestPayload = json.RawMessage(rawRequest)
	}
	if len(rawResponse) > 0 {
		doc.RawProviderResponse = json.RawMessage(rawResponse)
	}
	return &doc, nil
}

// nullableJSON maps an empty payload to SQL NULL.
func nullableJSON(b json.RawMessage) any {
	if len(b) == 0 {
		return nil
	}
	return []byte(b)
}

// limitArg maps a non-positive limit to LIMIT NULL, which PostgreSQL reads as no limit.
func limitArg(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
