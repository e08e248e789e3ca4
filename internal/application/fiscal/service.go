package fiscal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	corefiscal "3tcapital/ms_fiscal_core/internal/core/fiscal"
	"3tcapital/ms_fiscal_core/internal/core/postal"
)

// Justification bounds accepted by the provider for cancellations.
const (
	minJustificationLen = 15
	maxJustificationLen = 255
)

// Dependencies wires the engine. Postal and Clock are optional.
type Dependencies struct {
	Documents corefiscal.DocumentRepository
	Profiles  corefiscal.ProfileRepository
	Gateway   corefiscal.Gateway
	Postal    postal.Service
	Clock     corefiscal.Clock
	Logger    *slog.Logger
}

// Service is the fiscal emission and reconciliation engine.
type Service struct {
	docs          corefiscal.DocumentRepository
	profiles      corefiscal.ProfileRepository
	gateway       corefiscal.Gateway
	clock         corefiscal.Clock
	log           *slog.Logger
	refs          *referenceGenerator
	municipality  *municipalityResolver
	reconcileStep *reconciler
}

// NewService creates the engine.
func NewService(deps Dependencies) *Service {
	clock := deps.Clock
	if clock == nil {
		clock = corefiscal.SystemClock
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		docs:     deps.Documents,
		profiles: deps.Profiles,
		gateway:  deps.Gateway,
		clock:    clock,
		log:      log,
		refs:     newReferenceGenerator(clock),
		municipality: &municipalityResolver{
			lookup:   deps.Postal,
			profiles: deps.Profiles,
			log:      log,
		},
		reconcileStep: &reconciler{
			gateway: deps.Gateway,
			docs:    deps.Documents,
			clock:   clock,
			log:     log,
		},
	}
}

// EmissionRequest is one emit call from the order module.
type EmissionRequest struct {
	TenantID  string                  `json:"-"`
	Order     corefiscal.Order        `json:"order"`
	Type      corefiscal.DocumentType `json:"type"`
	Overrides corefiscal.Overrides    `json:"additionalData"`
}

// EmissionResult is the outcome of Emit. Document is nil when nothing was
// persisted, which tells "never submitted" apart from "submitted and rejected".
type EmissionResult struct {
	Success       bool                 `json:"success"`
	ReferenceCode string               `json:"referenceCode,omitempty"`
	RawPayload    json.RawMessage      `json:"rawPayload,omitempty"`
	ErrorMessage  string               `json:"errorMessage,omitempty"`
	Error         *corefiscal.Error    `json:"-"`
	Document      *corefiscal.Document `json:"document,omitempty"`
}

// DocumentResult is the outcome of Get, Reconcile and Cancel.
type DocumentResult struct {
	Success      bool                 `json:"success"`
	Document     *corefiscal.Document `json:"document,omitempty"`
	ErrorMessage string               `json:"errorMessage,omitempty"`
	Error        *corefiscal.Error    `json:"-"`
}

// asFiscalError keeps engine errors and wraps anything else as unknown.
func asFiscalError(err error) *corefiscal.Error {
	var fe *corefiscal.Error
	if errors.As(err, &fe) {
		return fe
	}
	return corefiscal.NewUnknownError(err)
}

// report logs a failure at the level its kind deserves.
func (s *Service) report(op string, fe *corefiscal.Error, attrs ...any) {
	attrs = append(attrs, "operation", op, "kind", fe.Kind, "message", fe.Message)
	switch {
	case fe.Kind.Expected():
		s.log.Debug("Fiscal operation refused", attrs...)
	case fe.Kind == corefiscal.KindUnknown:
		s.log.Error("Fiscal operation failed", append(attrs, "error", fe, "stack", string(debug.Stack()))...)
	default:
		s.log.Warn("Fiscal operation failed", attrs...)
	}
}

// recoverTo converts a panic into an unknown error through set.
func (s *Service) recoverTo(op string, set func(*corefiscal.Error)) {
	if r := recover(); r != nil {
		fe := corefiscal.NewUnknownError(fmt.Errorf("panic: %v", r))
		s.log.Error("Panic in fiscal operation", "operation", op, "panic", r, "stack", string(debug.Stack()))
		set(fe)
	}
}

func emissionFailure(fe *corefiscal.Error) EmissionResult {
	return EmissionResult{Error: fe, ErrorMessage: fe.Message}
}

func documentFailure(fe *corefiscal.Error) DocumentResult {
	return DocumentResult{Error: fe, ErrorMessage: fe.Message}
}

// Emit validates the order, builds the payload of the requested document and
// submits it under a fresh reference code.
func (s *Service) Emit(ctx context.Context, req EmissionRequest) (result EmissionResult) {
	defer s.recoverTo("emit", func(fe *corefiscal.Error) { result = emissionFailure(fe) })

	result, err := s.emit(ctx, req)
	if err != nil {
		fe := asFiscalError(err)
		s.report("emit", fe, "tenant_id", req.TenantID, "order_id", req.Order.ID, "type", req.Type)
		failed := emissionFailure(fe)
		failed.ReferenceCode = result.ReferenceCode
		failed.RawPayload = result.RawPayload
		failed.Document = result.Document
		return failed
	}
	return result
}

func (s *Service) emit(ctx context.Context, req EmissionRequest) (EmissionResult, error) {
	docType, err := corefiscal.ParseDocumentType(string(req.Type))
	if err != nil {
		return EmissionResult{}, corefiscal.NewValidationError("Tipo de documento inválido. Use nfe ou nfse.", "Pedido: Tipo de documento")
	}

	tc, err := resolveTenant(ctx, s.profiles, req.TenantID, true)
	if err != nil {
		return EmissionResult{}, err
	}

	cp, err := s.profiles.FindCounterparty(ctx, req.TenantID, req.Order.CounterpartyID)
	if err != nil {
		if errors.Is(err, corefiscal.ErrNotFound) {
			return EmissionResult{}, corefiscal.NewValidationError(
				docType.Label()+": cliente do pedido não encontrado. Vincule um cliente cadastrado ao pedido.",
				"Cliente: Cadastro")
		}
		return EmissionResult{}, fmt.Errorf("load counterparty: %w", err)
	}
	s.municipality.resolve(ctx, req.TenantID, cp)

	in := emissionInput{
		docType:      docType,
		emitter:      *tc.emitter,
		counterparty: *cp,
		order:        req.Order,
		goods:        MergeGoodsTax(tc.settings.Goods, req.Overrides),
		service:      MergeServiceTax(tc.settings.Service, req.Overrides),
	}
	if docType == corefiscal.ServiceInvoice {
		in.variant = tc.settings.ServiceSchema
		if in.variant == corefiscal.SchemaNone {
			in.variant = corefiscal.SchemaLegacy
		}
	}

	if err := validate(in); err != nil {
		return EmissionResult{}, err
	}

	issuedAt := s.clock.Now()
	var payload any
	if docType == corefiscal.GoodsInvoice {
		payload = buildGoodsPayload(in, issuedAt)
	} else {
		payload = serviceBuilderFor(in.variant).Build(in, issuedAt)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return EmissionResult{}, fmt.Errorf("encode payload: %w", err)
	}

	ref := s.refs.next(docType, req.Order.ID)
	attempt := EmissionResult{ReferenceCode: ref, RawPayload: body}

	res := s.gateway.Send(ctx, corefiscal.GatewayRequest{
		Token:       tc.settings.APIToken,
		Environment: tc.settings.Environment,
		Method:      http.MethodPost,
		Path:        submitPath(endpointFamily(docType, in.variant), ref),
		Body:        body,
	})

	now := issuedAt.UTC()
	doc := &corefiscal.Document{
		ID:                uuid.NewString(),
		TenantID:          req.TenantID,
		SourceOrderID:     req.Order.ID,
		Type:              docType,
		SchemaVariant:     in.variant,
		ReferenceCode:     ref,
		Status:            corefiscal.StatusDraft,
		RawRequestPayload: body,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if !res.Success {
		fe := gatewayFailure(res, docType)
		s.log.Warn("Fiscal gateway rejected submission", append(res.Trace.LogAttrs(), "tenant_id", req.TenantID, "reference", ref)...)

		// Transport failures never reached the provider; nothing to record.
		if tc.settings.PersistRejections && fe.Kind != corefiscal.KindTransport {
			doc.RawProviderResponse = res.Body
			doc.Reject(fe.Message)
			if err := s.docs.Save(ctx, doc); err != nil {
				s.log.Error("Failed to persist rejected document", "error", err, "reference", ref)
			} else {
				attempt.Document = doc
			}
		}
		return attempt, fe
	}

	doc.Transition(corefiscal.StatusSubmitted)
	doc.RawProviderResponse = res.Body
	// Some municipalities authorize synchronously.
	applyProviderStatus(doc, res.Body, res.BaseURL)

	if err := s.docs.Save(ctx, doc); err != nil {
		return attempt, fmt.Errorf("persist submitted document %s: %w", ref, err)
	}

	s.log.Info("Fiscal document submitted",
		"tenant_id", req.TenantID,
		"order_id", req.Order.ID,
		"type", docType,
		"variant", in.variant,
		"reference", ref,
		"status", doc.Status)

	attempt.Success = true
	attempt.Document = doc
	return attempt, nil
}

// Get returns a stored document.
func (s *Service) Get(ctx context.Context, tenantID, referenceCode string) (result DocumentResult) {
	defer s.recoverTo("get", func(fe *corefiscal.Error) { result = documentFailure(fe) })

	doc, err := s.load(ctx, tenantID, referenceCode)
	if err != nil {
		fe := asFiscalError(err)
		s.report("get", fe, "tenant_id", tenantID, "reference", referenceCode)
		return documentFailure(fe)
	}
	return DocumentResult{Success: true, Document: doc}
}

func (s *Service) load(ctx context.Context, tenantID, referenceCode string) (*corefiscal.Document, error) {
	doc, err := s.docs.FindByReference(ctx, tenantID, referenceCode)
	if err != nil {
		if errors.Is(err, corefiscal.ErrNotFound) {
			return nil, corefiscal.NewNotFoundError("Documento fiscal "+referenceCode+" não encontrado.", err)
		}
		return nil, fmt.Errorf("load document %s: %w", referenceCode, err)
	}
	return doc, nil
}

// Reconcile queries the provider for the document's authoritative status.
// Calling it repeatedly is safe.
func (s *Service) Reconcile(ctx context.Context, tenantID, referenceCode string) (result DocumentResult) {
	defer s.recoverTo("reconcile", func(fe *corefiscal.Error) { result = documentFailure(fe) })

	doc, err := s.reconcile(ctx, tenantID, referenceCode)
	if err != nil {
		fe := asFiscalError(err)
		s.report("reconcile", fe, "tenant_id", tenantID, "reference", referenceCode)
		res := documentFailure(fe)
		res.Document = doc
		return res
	}
	return DocumentResult{Success: true, Document: doc}
}

func (s *Service) reconcile(ctx context.Context, tenantID, referenceCode string) (*corefiscal.Document, error) {
	doc, err := s.load(ctx, tenantID, referenceCode)
	if err != nil {
		return nil, err
	}
	tc, err := resolveTenant(ctx, s.profiles, tenantID, false)
	if err != nil {
		return doc, err
	}
	if err := s.reconcileStep.reconcile(ctx, tc.settings, doc); err != nil {
		return doc, err
	}
	return doc, nil
}

// ReconcilePending reconciles up to limit Submitted documents of a tenant and
// returns the results in order. Failures on one document do not stop the sweep.
func (s *Service) ReconcilePending(ctx context.Context, tenantID string, limit int) ([]DocumentResult, error) {
	docs, err := s.docs.ListByStatus(ctx, tenantID, corefiscal.StatusSubmitted, limit)
	if err != nil {
		return nil, fmt.Errorf("list submitted documents: %w", err)
	}
	results := make([]DocumentResult, 0, len(docs))
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, s.Reconcile(ctx, tenantID, doc.ReferenceCode))
	}
	return results, nil
}

// Cancel forwards a cancellation and marks the document Cancelled. A provider
// error on a document that is already cancelled is not a failure.
func (s *Service) Cancel(ctx context.Context, tenantID, referenceCode, justification string) (result DocumentResult) {
	defer s.recoverTo("cancel", func(fe *corefiscal.Error) { result = documentFailure(fe) })

	doc, err := s.cancel(ctx, tenantID, referenceCode, justification)
	if err != nil {
		fe := asFiscalError(err)
		s.report("cancel", fe, "tenant_id", tenantID, "reference", referenceCode)
		res := documentFailure(fe)
		res.Document = doc
		return res
	}
	return DocumentResult{Success: true, Document: doc}
}

func (s *Service) cancel(ctx context.Context, tenantID, referenceCode, justification string) (*corefiscal.Document, error) {
	justification = strings.TrimSpace(justification)
	if n := utf8.RuneCountInString(justification); n < minJustificationLen || n > maxJustificationLen {
		return nil, corefiscal.NewValidationError(
			fmt.Sprintf("A justificativa do cancelamento deve ter entre %d e %d caracteres.", minJustificationLen, maxJustificationLen),
			"Cancelamento: Justificativa")
	}

	doc, err := s.load(ctx, tenantID, referenceCode)
	if err != nil {
		return nil, err
	}
	tc, err := resolveTenant(ctx, s.profiles, tenantID, false)
	if err != nil {
		return doc, err
	}

	body, err := json.Marshal(map[string]string{"justificativa": justification})
	if err != nil {
		return doc, fmt.Errorf("encode cancellation: %w", err)
	}

	res := s.gateway.Send(ctx, corefiscal.GatewayRequest{
		Token:       tc.settings.APIToken,
		Environment: tc.settings.Environment,
		Method:      http.MethodDelete,
		Path:        documentPath(endpointFamily(doc.Type, doc.SchemaVariant), doc.ReferenceCode),
		Body:        body,
	})

	wasCancelled := doc.Status == corefiscal.StatusCancelled
	if !res.Success || cancellationRefused(res.Body) {
		fe := gatewayFailure(res, doc.Type)
		if res.Success {
			fe = corefiscal.NewProviderRejection(TranslateProviderMessage(cancellationMessage(res.Body), "", doc.Type))
		}
		switch {
		case wasCancelled:
			s.log.Warn("Provider error on redundant cancellation ignored",
				append(res.Trace.LogAttrs(), "tenant_id", tenantID, "reference", referenceCode)...)
			return doc, nil
		case res.StatusCode == http.StatusNotFound && doc.Status == corefiscal.StatusRejected:
			// Rejected at submission: the provider never kept the document.
			s.log.Info("Cancelling document unknown to the provider", "tenant_id", tenantID, "reference", referenceCode)
		default:
			return doc, fe
		}
	}

	doc.Cancel()
	if res.Success {
		doc.RawProviderResponse = res.Body
	}
	if !wasCancelled || res.Success {
		doc.UpdatedAt = s.clock.Now().UTC()
		if err := s.docs.Save(ctx, doc); err != nil {
			return doc, fmt.Errorf("persist cancelled document %s: %w", referenceCode, err)
		}
	}

	s.log.Info("Fiscal document cancelled", "tenant_id", tenantID, "reference", referenceCode, "redundant", wasCancelled)
	return doc, nil
}

// cancellationRefused reports a 2xx body whose status says the cancellation failed.
func cancellationRefused(body json.RawMessage) bool {
	var pd providerDocument
	if len(body) == 0 || json.Unmarshal(body, &pd) != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(pd.Status), "erro_cancelamento")
}

func cancellationMessage(body json.RawMessage) string {
	var pd providerDocument
	_ = json.Unmarshal(body, &pd)
	return pd.rejectionMessage()
}
