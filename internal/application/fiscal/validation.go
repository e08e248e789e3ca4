package fiscal

import (
	"fmt"
	"strings"

	corefiscal "3tcapital/ms_fiscal_core/internal/core/fiscal"
)

type section string

const (
	sectionEmitter      section = "Emitente"
	sectionCounterparty section = "Cliente"
	sectionOrder        section = "Pedido"
	sectionConfig       section = "Configuração fiscal"
)

var sectionOrderList = []section{sectionEmitter, sectionCounterparty, sectionOrder, sectionConfig}

var sectionHints = map[section]string{
	sectionEmitter:      "corrija em Configurações > Empresa",
	sectionCounterparty: "corrija no cadastro do cliente",
	sectionOrder:        "corrija os itens do pedido",
	sectionConfig:       "corrija em Configurações > Fiscal",
}

// missingFields collects labelled gaps, grouped by where the user fixes them.
type missingFields struct {
	bySection map[section][]string
}

func newMissingFields() *missingFields {
	return &missingFields{bySection: make(map[section][]string)}
}

func (m *missingFields) require(s section, value, label string) {
	if corefiscal.EmptyField(value) {
		m.add(s, label)
	}
}

func (m *missingFields) add(s section, label string) {
	m.bySection[s] = append(m.bySection[s], label)
}

func (m *missingFields) empty() bool {
	return len(m.bySection) == 0
}

// labels returns "Section: Field" entries in display order.
func (m *missingFields) labels() []string {
	var out []string
	for _, s := range sectionOrderList {
		for _, label := range m.bySection[s] {
			out = append(out, string(s)+": "+label)
		}
	}
	return out
}

func (m *missingFields) message(docType corefiscal.DocumentType) string {
	var parts []string
	for _, s := range sectionOrderList {
		labels := m.bySection[s]
		if len(labels) == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s (%s): %s", s, sectionHints[s], strings.Join(labels, ", ")))
	}
	return fmt.Sprintf("%s: dados obrigatórios ausentes. %s.", docType.Label(), strings.Join(parts, "; "))
}

// err returns nil when nothing is missing. Gaps confined to fiscal
// configuration are a ConfigurationError; anything else is a ValidationError.
func (m *missingFields) err(docType corefiscal.DocumentType) error {
	if m.empty() {
		return nil
	}
	if len(m.bySection) == 1 && len(m.bySection[sectionConfig]) > 0 {
		return corefiscal.NewConfigurationError(m.message(docType), m.labels()...)
	}
	return corefiscal.NewValidationError(m.message(docType), m.labels()...)
}

// emissionInput is the fully loaded data of one emit call.
type emissionInput struct {
	docType      corefiscal.DocumentType
	variant      corefiscal.SchemaVariant
	emitter      corefiscal.EmitterProfile
	counterparty corefiscal.CounterpartyProfile
	order        corefiscal.Order
	goods        GoodsTax
	service      ServiceTax
}

func requireAddress(m *missingFields, s section, a corefiscal.Address) {
	m.require(s, a.Street, "Logradouro")
	m.require(s, a.Neighborhood, "Bairro")
	m.require(s, a.City, "Cidade")
	m.require(s, a.State, "UF")
	m.require(s, a.PostalCode, "CEP")
}

// validate checks completeness before any network call.
func validate(in emissionInput) error {
	m := newMissingFields()

	m.require(sectionEmitter, in.emitter.TaxID, "CNPJ")
	m.require(sectionEmitter, in.emitter.Name(), "Razão social ou nome fantasia")
	m.require(sectionCounterparty, in.counterparty.TaxID, "CPF/CNPJ")
	m.require(sectionCounterparty, in.counterparty.Name, "Nome")

	switch in.docType {
	case corefiscal.GoodsInvoice:
		m.require(sectionEmitter, in.emitter.StateRegistration, "Inscrição estadual")
		requireAddress(m, sectionEmitter, in.emitter.Address)
		requireAddress(m, sectionCounterparty, in.counterparty.Address)
	case corefiscal.ServiceInvoice:
		m.require(sectionEmitter, in.emitter.MunicipalRegistration, "Inscrição municipal")
		m.require(sectionEmitter, in.emitter.MunicipalityCode, "Código IBGE do município")
		// A tomador address without municipality means the CEP lookup failed.
		if !corefiscal.EmptyField(in.counterparty.Address.PostalCode) {
			m.require(sectionCounterparty, in.counterparty.MunicipalityCode, "Código IBGE do município (verifique o CEP)")
		}
		m.require(sectionConfig, in.service.ClassificationCode, "Código de tributação do serviço")
		if in.variant == corefiscal.SchemaNational && in.service.ClassificationCode != "" &&
			corefiscal.Digits(in.service.ClassificationCode) == "" {
			m.add(sectionConfig, "Código de tributação nacional (somente dígitos)")
		}
		if in.variant == corefiscal.SchemaLegacy {
			m.require(sectionConfig, in.service.MunicipalTaxCode, "Código tributário do município")
		}
	}

	m.require(sectionOrder, in.order.ID, "Identificador do pedido")
	if len(in.order.Items) == 0 {
		m.add(sectionOrder, "Ao menos um item")
	}
	for i, item := range in.order.Items {
		if item.Total == nil && !item.Quantity.IsPositive() {
			m.add(sectionOrder, fmt.Sprintf("Quantidade do item %d", i+1))
		}
		if in.docType == corefiscal.GoodsInvoice {
			m.require(sectionOrder, item.Description, fmt.Sprintf("Descrição do item %d", i+1))
		}
	}

	if err := m.err(in.docType); err != nil {
		return err
	}

	totals := computeTotals(in.order)
	if totals.Discount.GreaterThan(totals.Items) {
		return corefiscal.NewValidationError(
			fmt.Sprintf("%s: o desconto (%s) é maior que o total dos itens (%s).",
				in.docType.Label(), formatBRL(totals.Discount), formatBRL(totals.Items)),
			"Pedido: Desconto")
	}
	return nil
}
