package fiscal

import (
	"strings"
	"time"

	corefiscal "3tcapital/ms_fiscal_core/internal/core/fiscal"
)

// ServiceInvoicePayloadBuilder produces the NFS-e body for one schema variant.
type ServiceInvoicePayloadBuilder interface {
	Variant() corefiscal.SchemaVariant
	Build(in emissionInput, issuedAt time.Time) any
}

// serviceBuilderFor returns the builder of a variant. Unknown variants fall
// back to the legacy schema.
func serviceBuilderFor(v corefiscal.SchemaVariant) ServiceInvoicePayloadBuilder {
	if v == corefiscal.SchemaNational {
		return nationalServiceBuilder{}
	}
	return legacyServiceBuilder{}
}

// Legacy (municipal, nested) schema: POST /v2/nfse.

type legacyServiceBuilder struct{}

type legacyPayload struct {
	IssuedAt          string         `json:"data_emissao"`
	NatureOfOperation string         `json:"natureza_operacao"`
	SimplesNacional   bool           `json:"optante_simples_nacional"`
	Provider          legacyProvider `json:"prestador"`
	Recipient         legacyTaker    `json:"tomador"`
	Service           legacyService  `json:"servico"`
}

type legacyProvider struct {
	CNPJ                  string `json:"cnpj"`
	MunicipalRegistration string `json:"inscricao_municipal"`
	MunicipalityCode      string `json:"codigo_municipio"`
}

type legacyTaker struct {
	CNPJ    string         `json:"cnpj,omitempty"`
	CPF     string         `json:"cpf,omitempty"`
	Name    string         `json:"razao_social"`
	Email   string         `json:"email,omitempty"`
	Phone   string         `json:"telefone,omitempty"`
	Address *legacyAddress `json:"endereco,omitempty"`
}

type legacyAddress struct {
	Street           string `json:"logradouro"`
	Number           string `json:"numero"`
	Complement       string `json:"complemento,omitempty"`
	Neighborhood     string `json:"bairro"`
	MunicipalityCode string `json:"codigo_municipio,omitempty"`
	State            string `json:"uf"`
	PostalCode       string `json:"cep"`
}

type legacyService struct {
	Description        string `json:"discriminacao"`
	Amount             string `json:"valor_servicos"`
	Rate               string `json:"aliquota"`
	ClassificationCode string `json:"item_lista_servico"`
	MunicipalTaxCode   string `json:"codigo_tributario_municipio,omitempty"`
	Withheld           bool   `json:"iss_retido"`
	Discount           string `json:"desconto_incondicionado,omitempty"`
	MunicipalityCode   string `json:"codigo_municipio,omitempty"`
}

func (legacyServiceBuilder) Variant() corefiscal.SchemaVariant { return corefiscal.SchemaLegacy }

func (legacyServiceBuilder) Build(in emissionInput, issuedAt time.Time) any {
	em, cp := in.emitter, in.counterparty
	totals := computeTotals(in.order)

	p := legacyPayload{
		IssuedAt:          issuedAt.Format(time.RFC3339),
		NatureOfOperation: "1",
		SimplesNacional:   isSimplesNacional(em.TaxRegime),
		Provider: legacyProvider{
			CNPJ:                  corefiscal.Digits(em.TaxID),
			MunicipalRegistration: corefiscal.Digits(em.MunicipalRegistration),
			MunicipalityCode:      corefiscal.Digits(em.MunicipalityCode),
		},
		Recipient: legacyTaker{
			Name:  cp.Name,
			Email: optional(cp.Email),
			Phone: corefiscal.Digits(cp.Phone),
		},
		Service: legacyService{
			Description: serviceDescription(in.order, totals.Lines),
			Amount:      money(totals.Items.Round(2)),
			Rate:        in.service.ISSRate.String(),
			// Passed through as configured; municipalities accept "13.05".
			ClassificationCode: in.service.ClassificationCode,
			MunicipalTaxCode:   optional(in.service.MunicipalTaxCode),
			Withheld:           in.service.ISSWithheld,
			MunicipalityCode:   corefiscal.Digits(em.MunicipalityCode),
		},
	}
	if totals.Discount.IsPositive() {
		p.Service.Discount = money(totals.Discount)
	}

	if cp.IsOrganization() {
		p.Recipient.CNPJ = corefiscal.Digits(cp.TaxID)
	} else {
		p.Recipient.CPF = corefiscal.Digits(cp.TaxID)
	}
	if !corefiscal.EmptyField(cp.Address.Street) {
		p.Recipient.Address = &legacyAddress{
			Street:           cp.Address.Street,
			Number:           numberOrSN(cp.Address.Number),
			Complement:       optional(cp.Address.Complement),
			Neighborhood:     cp.Address.Neighborhood,
			MunicipalityCode: corefiscal.Digits(cp.MunicipalityCode),
			State:            cp.Address.State,
			PostalCode:       corefiscal.Digits(cp.Address.PostalCode),
		}
	}
	return p
}

// National (NFS-e Nacional, flat) schema: POST /v2/nfsen.

type nationalServiceBuilder struct{}

type nationalPayload struct {
	IssuedAt              string `json:"data_emissao"`
	CompetenceDate        string `json:"data_competencia"`
	IssuingMunicipality   string `json:"codigo_municipio_emissora"`
	ProviderCNPJ          string `json:"cnpj_prestador"`
	ProviderMunicipalReg  string `json:"inscricao_municipal_prestador"`
	ProviderSimples       string `json:"codigo_opcao_simples_nacional"`
	TakerCNPJ             string `json:"cnpj_tomador,omitempty"`
	TakerCPF              string `json:"cpf_tomador,omitempty"`
	TakerName             string `json:"razao_social_tomador"`
	TakerEmail            string `json:"email_tomador,omitempty"`
	TakerPhone            string `json:"telefone_tomador,omitempty"`
	TakerMunicipality     string `json:"codigo_municipio_tomador,omitempty"`
	TakerPostalCode       string `json:"cep_tomador,omitempty"`
	TakerStreet           string `json:"logradouro_tomador,omitempty"`
	TakerNumber           string `json:"numero_tomador,omitempty"`
	TakerComplement       string `json:"complemento_tomador,omitempty"`
	TakerNeighborhood     string `json:"bairro_tomador,omitempty"`
	ServiceMunicipality   string `json:"codigo_municipio_prestacao"`
	NationalTaxCode       string `json:"codigo_tributacao_nacional_iss"`
	MunicipalTaxCode      string `json:"codigo_tributacao_municipal_iss,omitempty"`
	Description           string `json:"descricao_servico"`
	Amount                string `json:"valor_servico"`
	UnconditionalDiscount string `json:"desconto_incondicionado,omitempty"`
	ISSTaxation           string `json:"tributacao_iss"`
	ISSWithholding        string `json:"tipo_retencao_iss"`
}

func (nationalServiceBuilder) Variant() corefiscal.SchemaVariant { return corefiscal.SchemaNational }

func (nationalServiceBuilder) Build(in emissionInput, issuedAt time.Time) any {
	em, cp := in.emitter, in.counterparty
	totals := computeTotals(in.order)
	emitterCity := corefiscal.Digits(em.MunicipalityCode)

	p := nationalPayload{
		IssuedAt:             issuedAt.Format(time.RFC3339),
		CompetenceDate:       issuedAt.Format(time.DateOnly),
		IssuingMunicipality:  emitterCity,
		ProviderCNPJ:         corefiscal.Digits(em.TaxID),
		ProviderMunicipalReg: corefiscal.Digits(em.MunicipalRegistration),
		ProviderSimples:      "1",
		TakerName:            cp.Name,
		TakerEmail:           optional(cp.Email),
		TakerPhone:           corefiscal.Digits(cp.Phone),
		TakerMunicipality:    corefiscal.Digits(cp.MunicipalityCode),
		TakerPostalCode:      corefiscal.Digits(cp.Address.PostalCode),
		TakerStreet:          optional(cp.Address.Street),
		TakerComplement:      optional(cp.Address.Complement),
		TakerNeighborhood:    optional(cp.Address.Neighborhood),
		ServiceMunicipality:  emitterCity,
		NationalTaxCode:      NationalClassificationCode(in.service.ClassificationCode),
		MunicipalTaxCode:     NationalMunicipalTaxCode(in.service.MunicipalTaxCode),
		Description:          serviceDescription(in.order, totals.Lines),
		Amount:               money(totals.Items.Round(2)),
		ISSTaxation:          "1",
		ISSWithholding:       "1",
	}
	if isSimplesNacional(em.TaxRegime) {
		p.ProviderSimples = "3"
	}
	if p.TakerStreet != "" {
		p.TakerNumber = numberOrSN(cp.Address.Number)
	}
	if totals.Discount.IsPositive() {
		p.UnconditionalDiscount = money(totals.Discount)
	}
	if in.service.ISSWithheld {
		p.ISSWithholding = "2"
	}

	if cp.IsOrganization() {
		p.TakerCNPJ = corefiscal.Digits(cp.TaxID)
	} else {
		p.TakerCPF = corefiscal.Digits(cp.TaxID)
	}
	return p
}

// NationalClassificationCode strips non-digits and right-pads with '0' to
// exactly six characters, truncating longer codes: "1305" -> "130500".
func NationalClassificationCode(raw string) string {
	d := corefiscal.Digits(raw)
	if len(d) >= 6 {
		return d[:6]
	}
	return d + strings.Repeat("0", 6-len(d))
}

// NationalMunicipalTaxCode returns the code only when it is 1 to 3 digits.
func NationalMunicipalTaxCode(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" || len(s) > 3 || corefiscal.Digits(s) != s {
		return ""
	}
	return s
}

// isSimplesNacional reads the CRT codes 1 and 2 (Simples Nacional regimes).
func isSimplesNacional(regime string) bool {
	r := strings.TrimSpace(regime)
	return r == "1" || r == "2"
}
