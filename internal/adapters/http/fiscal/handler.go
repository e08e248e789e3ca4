package fiscal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	appfiscal "3tcapital/ms_fiscal_core/internal/application/fiscal"
	corefiscal "3tcapital/ms_fiscal_core/internal/core/fiscal"
	ctxutil "3tcapital/ms_fiscal_core/internal/infrastructure/context"
	httpjson "3tcapital/ms_fiscal_core/internal/infrastructure/http"
)

const maxBodyBytes = 1 << 20

// Engine is the slice of the fiscal service the HTTP layer needs.
type Engine interface {
	Emit(ctx context.Context, req appfiscal.EmissionRequest) appfiscal.EmissionResult
	Get(ctx context.Context, tenantID, referenceCode string) appfiscal.DocumentResult
	Reconcile(ctx context.Context, tenantID, referenceCode string) appfiscal.DocumentResult
	Cancel(ctx context.Context, tenantID, referenceCode, justification string) appfiscal.DocumentResult
}

// Handler bridges HTTP traffic with the fiscal engine.
type Handler struct {
	engine Engine
	log    *slog.Logger
}

// NewHandler creates a new fiscal document HTTP handler.
func NewHandler(engine Engine, log *slog.Logger) *Handler {
	return &Handler{engine: engine, log: log}
}

// Routes returns the router mounted under /api/v1/fiscal-documents.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/", h.Emit)
	r.Get("/{ref}", h.Get)
	r.Post("/{ref}/reconcile", h.Reconcile)
	r.Delete("/{ref}", h.Cancel)
	return r
}

// emitRequest is the POST body. The tenant never comes from the body.
type emitRequest struct {
	Order     corefiscal.Order     `json:"order"`
	Type      string               `json:"type"`
	Overrides corefiscal.Overrides `json:"additionalData"`
}

type cancelRequest struct {
	Justification string `json:"justification"`
}

// emitErrorResponse keeps the reference of an attempt that reached the provider.
type emitErrorResponse struct {
	httpjson.ErrorResponse
	ReferenceCode string `json:"referenceCode,omitempty"`
}

// Emit handles POST /api/v1/fiscal-documents.
func (h *Handler) Emit(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}

	var body emitRequest
	if !h.decode(w, r, &body, false) {
		return
	}
	body.Order.TenantID = tenantID

	res := h.engine.Emit(r.Context(), appfiscal.EmissionRequest{
		TenantID:  tenantID,
		Order:     body.Order,
		Type:      corefiscal.DocumentType(body.Type),
		Overrides: body.Overrides,
	})
	if !res.Success {
		fe := failure(res.Error, res.ErrorMessage)
		httpjson.WriteJSON(w, StatusFor(fe.Kind), emitErrorResponse{
			ErrorResponse: errorBody(fe),
			ReferenceCode: res.ReferenceCode,
		}, h.log)
		return
	}
	httpjson.WriteJSON(w, http.StatusCreated, res, h.log)
}

// Get handles GET /api/v1/fiscal-documents/{ref}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	h.writeDocument(w, h.engine.Get(r.Context(), tenantID, chi.URLParam(r, "ref")))
}

// Reconcile handles POST /api/v1/fiscal-documents/{ref}/reconcile.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	h.writeDocument(w, h.engine.Reconcile(r.Context(), tenantID, chi.URLParam(r, "ref")))
}

// Cancel handles DELETE /api/v1/fiscal-documents/{ref}.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}

	var body cancelRequest
	if !h.decode(w, r, &body, true) {
		return
	}
	h.writeDocument(w, h.engine.Cancel(r.Context(), tenantID, chi.URLParam(r, "ref"), body.Justification))
}

func (h *Handler) writeDocument(w http.ResponseWriter, res appfiscal.DocumentResult) {
	if !res.Success {
		fe := failure(res.Error, res.ErrorMessage)
		httpjson.WriteJSON(w, StatusFor(fe.Kind), errorBody(fe), h.log)
		return
	}
	httpjson.WriteJSON(w, http.StatusOK, res.Document, h.log)
}

func (h *Handler) tenant(w http.ResponseWriter, r *http.Request) (string, bool) {
	tenantID := ctxutil.GetTenantID(r.Context())
	if tenantID == "" {
		httpjson.WriteError(w, http.StatusUnauthorized, "Erro de autenticação", []string{"Empresa não identificada"}, h.log)
		return "", false
	}
	return tenantID, true
}

// decode reads a JSON body. An empty body is accepted only when allowEmpty.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err == nil || (allowEmpty && errors.Is(err, io.EOF)) {
		return true
	}
	httpjson.WriteError(w, http.StatusBadRequest, "Erro de validação", []string{"O corpo da requisição não é um JSON válido"}, h.log)
	return false
}

// StatusFor maps an engine error kind to its HTTP status.
func StatusFor(kind corefiscal.ErrorKind) int {
	switch kind {
	case corefiscal.KindValidation:
		return http.StatusBadRequest
	case corefiscal.KindNotFound:
		return http.StatusNotFound
	case corefiscal.KindConfiguration, corefiscal.KindProviderRejection:
		return http.StatusUnprocessableEntity
	case corefiscal.KindTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func failure(fe *corefiscal.Error, message string) *corefiscal.Error {
	if fe != nil {
		return fe
	}
	return &corefiscal.Error{Kind: corefiscal.KindUnknown, Message: message}
}

func errorBody(fe *corefiscal.Error) httpjson.ErrorResponse {
	fields := fe.Fields
	if fields == nil {
		fields = []string{}
	}
	return httpjson.ErrorResponse{Message: fe.Message, Errors: fields}
}
