package fiscal

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DocumentType identifies the kind of electronic tax document.
type DocumentType string

const (
	// GoodsInvoice is the NF-e, issued for the sale of physical goods.
	GoodsInvoice DocumentType = "nfe"
	// ServiceInvoice is the NFS-e, issued for the sale of services.
	ServiceInvoice DocumentType = "nfse"
)

// ParseDocumentType accepts the wire names used by callers ("nfe", "nfse") and
// a couple of descriptive aliases.
func ParseDocumentType(raw string) (DocumentType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "nfe", "goods", "goods_invoice":
		return GoodsInvoice, nil
	case "nfse", "service", "service_invoice":
		return ServiceInvoice, nil
	default:
		return "", fmt.Errorf("unknown document type %q", raw)
	}
}

// Label returns the name shown to users.
func (t DocumentType) Label() string {
	switch t {
	case GoodsInvoice:
		return "NF-e"
	case ServiceInvoice:
		return "NFS-e"
	default:
		return "Documento fiscal"
	}
}

// SchemaVariant selects the wire schema of a service invoice.
// Goods invoices carry no variant.
type SchemaVariant string

const (
	SchemaNone     SchemaVariant = ""
	SchemaLegacy   SchemaVariant = "legacy"
	SchemaNational SchemaVariant = "national"
)

// ParseSchemaVariant normalizes a stored or configured variant name.
// Empty input resolves to the legacy schema, which every municipality supported
// before the national rollout.
func ParseSchemaVariant(raw string) (SchemaVariant, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "legacy", "municipal":
		return SchemaLegacy, nil
	case "national", "nacional", "nfsen":
		return SchemaNational, nil
	default:
		return SchemaNone, fmt.Errorf("unknown service schema variant %q", raw)
	}
}

// Status is the authorization lifecycle state of a document.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusSubmitted  Status = "submitted"
	StatusAuthorized Status = "authorized"
	StatusRejected   Status = "rejected"
	StatusCancelled  Status = "cancelled"
)

func (s Status) rank() int {
	switch s {
	case StatusDraft:
		return 0
	case StatusSubmitted:
		return 1
	case StatusAuthorized, StatusRejected:
		return 2
	default:
		return -1
	}
}

// CanTransition reports whether a document may move from one status to another.
// Statuses only move forward, except Cancelled which is reachable from anywhere.
// Re-entering the current status is not a transition.
func CanTransition(from, to Status) bool {
	if to == StatusCancelled {
		return true
	}
	if from == StatusCancelled {
		return false
	}
	return to.rank() > from.rank()
}

// Document is the persisted record of one submission attempt.
type Document struct {
	ID                  string          `json:"id"`
	TenantID            string          `json:"tenantId"`
	SourceOrderID       string          `json:"sourceOrderId"`
	Type                DocumentType    `json:"type"`
	SchemaVariant       SchemaVariant   `json:"schemaVariant,omitempty"`
	ReferenceCode       string          `json:"referenceCode"`
	Status              Status          `json:"status"`
	Number              string          `json:"number,omitempty"`
	Series              string          `json:"series,omitempty"`
	AuthorizationKey    string          `json:"authorizationKey,omitempty"`
	ProtocolNumber      string          `json:"protocolNumber,omitempty"`
	XMLURL              string          `json:"xmlUrl,omitempty"`
	DocumentURL         string          `json:"documentUrl,omitempty"`
	ErrorMessage        string          `json:"errorMessage,omitempty"`
	RawRequestPayload   json.RawMessage `json:"rawRequestPayload,omitempty"`
	RawProviderResponse json.RawMessage `json:"rawProviderResponse,omitempty"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

// Transition moves the document to the given status when the lifecycle allows it.
// It returns false, leaving the document untouched, otherwise.
func (d *Document) Transition(to Status) bool {
	if d.Status == to || !CanTransition(d.Status, to) {
		return false
	}
	d.Status = to
	return true
}

// Authorization carries the fields the authority returns once a document is authorized.
type Authorization struct {
	Number           string
	Series           string
	AuthorizationKey string
	ProtocolNumber   string
	XMLURL           string
	DocumentURL      string
}

// Authorize transitions to Authorized and records the authority's identifiers.
func (d *Document) Authorize(a Authorization) bool {
	if !d.Transition(StatusAuthorized) {
		return false
	}
	d.Number = a.Number
	d.Series = a.Series
	d.AuthorizationKey = a.AuthorizationKey
	d.ProtocolNumber = a.ProtocolNumber
	d.XMLURL = a.XMLURL
	d.DocumentURL = a.DocumentURL
	d.ErrorMessage = ""
	return true
}

// Reject transitions to Rejected and records the flattened provider message.
func (d *Document) Reject(message string) bool {
	if !d.Transition(StatusRejected) {
		return false
	}
	d.ErrorMessage = message
	return true
}

// Cancel moves the document to Cancelled. Cancelling twice is a no-op.
func (d *Document) Cancel() {
	d.Status = StatusCancelled
}
