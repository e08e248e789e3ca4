package fiscal

import (
	"net/url"

	corefiscal "3tcapital/ms_fiscal_core/internal/core/fiscal"
)

// endpointFamily is the provider resource for a stored document. It reads the
// variant recorded on the document, never the tenant's current setting.
func endpointFamily(t corefiscal.DocumentType, v corefiscal.SchemaVariant) string {
	if t == corefiscal.GoodsInvoice {
		return "nfe"
	}
	if v == corefiscal.SchemaNational {
		return "nfsen"
	}
	return "nfse"
}

func submitPath(family, ref string) string {
	return "/v2/" + family + "?ref=" + url.QueryEscape(ref)
}

func documentPath(family, ref string) string {
	return "/v2/" + family + "/" + url.PathEscape(ref)
}
