package fiscal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	corefiscal "3tcapital/ms_fiscal_core/internal/core/fiscal"
)

// flexString accepts JSON strings and numbers; the provider sends both for
// numero and serie.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(b)
	return nil
}

// providerDocument is the union of NF-e, NFS-e and NFS-e Nacional status bodies.
type providerDocument struct {
	Status           string          `json:"status"`
	Number           flexString      `json:"numero"`
	Series           flexString      `json:"serie"`
	RPSSeries        flexString      `json:"serie_rps"`
	GoodsKey         string          `json:"chave_nfe"`
	ServiceKey       string          `json:"chave_nfse"`
	VerificationCode string          `json:"codigo_verificacao"`
	Protocol         flexString      `json:"protocolo"`
	XMLPath          string          `json:"caminho_xml_nota_fiscal"`
	DanfePath        string          `json:"caminho_danfe"`
	DanfseURL        string          `json:"url_danfse"`
	URL              string          `json:"url"`
	SefazMessage     string          `json:"mensagem_sefaz"`
	Message          json.RawMessage `json:"mensagem"`
	Errors           json.RawMessage `json:"erros"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// absoluteURL prefixes relative asset paths with the provider host.
func absoluteURL(baseURL, path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(baseURL, "/") + path
}

// rejectionMessage flattens every error field of a rejected document.
func (p providerDocument) rejectionMessage() string {
	var msgs []string
	msgs = append(msgs, corefiscal.ParseMessages(p.Errors)...)
	msgs = append(msgs, corefiscal.ParseMessages(p.Message)...)
	if s := strings.TrimSpace(p.SefazMessage); s != "" {
		msgs = append(msgs, s)
	}
	if len(msgs) == 0 {
		return "Documento rejeitado pelo provedor (status " + p.Status + ")"
	}
	return strings.Join(msgs, "; ")
}

// applyProviderStatus moves doc according to a provider status body. It
// returns the status the provider reported and whether doc changed.
func applyProviderStatus(doc *corefiscal.Document, body json.RawMessage, baseURL string) (string, bool) {
	var pd providerDocument
	if len(body) == 0 || json.Unmarshal(body, &pd) != nil {
		return "", false
	}

	status, known := interpretStatus(pd.Status)
	if !known {
		return pd.Status, false
	}

	switch status {
	case corefiscal.StatusAuthorized:
		return pd.Status, doc.Authorize(corefiscal.Authorization{
			Number:           string(pd.Number),
			Series:           firstNonEmpty(string(pd.Series), string(pd.RPSSeries)),
			AuthorizationKey: firstNonEmpty(pd.GoodsKey, pd.ServiceKey, pd.VerificationCode),
			ProtocolNumber:   string(pd.Protocol),
			XMLURL:           absoluteURL(baseURL, pd.XMLPath),
			DocumentURL:      absoluteURL(baseURL, firstNonEmpty(pd.DanfePath, pd.DanfseURL, pd.URL)),
		})
	case corefiscal.StatusRejected:
		return pd.Status, doc.Reject(pd.rejectionMessage())
	case corefiscal.StatusCancelled:
		changed := doc.Status != corefiscal.StatusCancelled
		doc.Cancel()
		return pd.Status, changed
	}
	return pd.Status, false
}

// reconciler queries the provider for a stored document and persists the outcome.
type reconciler struct {
	gateway corefiscal.Gateway
	docs    corefiscal.DocumentRepository
	clock   corefiscal.Clock
	log     *slog.Logger
}

func (r *reconciler) reconcile(ctx context.Context, settings *corefiscal.TenantSettings, doc *corefiscal.Document) error {
	family := endpointFamily(doc.Type, doc.SchemaVariant)
	res := r.gateway.Send(ctx, corefiscal.GatewayRequest{
		Token:       settings.APIToken,
		Environment: settings.Environment,
		Method:      http.MethodGet,
		Path:        documentPath(family, doc.ReferenceCode),
	})
	if !res.Success {
		return gatewayFailure(res, doc.Type)
	}

	before := doc.Status
	providerStatus, changed := applyProviderStatus(doc, res.Body, res.BaseURL)
	doc.RawProviderResponse = res.Body
	doc.UpdatedAt = r.clock.Now().UTC()

	if err := r.docs.Save(ctx, doc); err != nil {
		return err
	}

	r.log.Info("Fiscal document reconciled",
		"tenant_id", doc.TenantID,
		"reference", doc.ReferenceCode,
		"provider_status", providerStatus,
		"from", before,
		"to", doc.Status,
		"changed", changed)
	return nil
}

// gatewayFailure classifies an unsuccessful gateway result. Results that never
// reached the provider, or carry nothing interpretable, are transport errors.
func gatewayFailure(res corefiscal.GatewayResult, docType corefiscal.DocumentType) *corefiscal.Error {
	message := Translate(res.Error, docType)
	if res.StatusCode == 0 || !res.Error.Interpretable() {
		var cause error
		if res.Trace.Error != "" {
			cause = errors.New(res.Trace.Error)
		}
		return corefiscal.NewTransportError(message, cause)
	}
	if res.StatusCode == http.StatusNotFound {
		return corefiscal.NewNotFoundError(message, corefiscal.ErrNotFound)
	}
	return corefiscal.NewProviderRejection(message)
}
