package fiscal

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	corefiscal "3tcapital/ms_fiscal_core/internal/core/fiscal"
)

const codeInvalidRequest = "requisicao_invalida"

type guidance struct {
	patterns []string
	message  string
}

// guidanceTable is matched in order against the folded provider message.
var guidanceTable = []guidance{
	{
		patterns: []string{"prestador", "emitente"},
		message:  "%s: verifique os dados do emitente (CNPJ, inscrições estadual e municipal, endereço e código do município) em Configurações > Empresa. Detalhe do provedor: %s",
	},
	{
		patterns: []string{"tomador", "destinatario"},
		message:  "%s: verifique os dados do cliente (destinatário): CPF/CNPJ, nome e endereço no cadastro do cliente. Detalhe do provedor: %s",
	},
	{
		patterns: []string{"servico"},
		message:  "%s: verifique a configuração fiscal do serviço (código de tributação, item da lista de serviços e alíquota) em Configurações > Fiscal. Detalhe do provedor: %s",
	},
}

// TranslateProviderMessage turns a raw provider message into guidance for the
// user. It always returns a non-empty string.
func TranslateProviderMessage(raw, code string, docType corefiscal.DocumentType) string {
	label := docType.Label()
	raw = strings.TrimSpace(raw)
	folded := fold(raw)

	for _, g := range guidanceTable {
		for _, p := range g.patterns {
			if strings.Contains(folded, p) {
				return fmt.Sprintf(g.message, label, raw)
			}
		}
	}

	if strings.EqualFold(strings.TrimSpace(code), codeInvalidRequest) {
		return fmt.Sprintf("%s: requisição inválida. Verifique os dados do emitente, do cliente (destinatário) e a configuração fiscal.", label)
	}
	if raw != "" {
		return label + ": " + raw
	}
	return label + ": não foi possível comunicar com o provedor fiscal. Tente novamente em instantes."
}

// Translate is TranslateProviderMessage over a normalized provider error.
func Translate(pe *corefiscal.ProviderError, docType corefiscal.DocumentType) string {
	if pe == nil {
		return TranslateProviderMessage("", "", docType)
	}
	return TranslateProviderMessage(pe.Message(), pe.Code, docType)
}

// fold lowercases and strips diacritics: "Destinatário" -> "destinatario".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}
