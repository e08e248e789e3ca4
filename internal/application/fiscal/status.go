package fiscal

import (
	"strings"

	corefiscal "3tcapital/ms_fiscal_core/internal/core/fiscal"
)

// statusTableV1 maps provider status strings to lifecycle statuses. Anything
// not listed (processando_autorizacao, erro_cancelamento, ...) is pending.
var statusTableV1 = map[string]corefiscal.Status{
	"autorizado":       corefiscal.StatusAuthorized,
	"autorizada":       corefiscal.StatusAuthorized,
	"erro_autorizacao": corefiscal.StatusRejected,
	"rejeitado":        corefiscal.StatusRejected,
	"rejeitada":        corefiscal.StatusRejected,
	"cancelado":        corefiscal.StatusCancelled,
	"cancelada":        corefiscal.StatusCancelled,
}

// interpretStatus returns the lifecycle status for a provider status, or false
// while the document is still pending.
func interpretStatus(raw string) (corefiscal.Status, bool) {
	s, ok := statusTableV1[strings.ToLower(strings.TrimSpace(raw))]
	return s, ok
}
