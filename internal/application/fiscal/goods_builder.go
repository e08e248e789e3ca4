package fiscal

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	corefiscal "3tcapital/ms_fiscal_core/internal/core/fiscal"
)

// Freight modality codes (modFrete).
const (
	freightBySender = "0"
	freightNone     = "9"
)

type goodsPayload struct {
	NatureOfOperation   string `json:"natureza_operacao"`
	IssuedAt            string `json:"data_emissao"`
	DocumentKind        string `json:"tipo_documento"`
	Purpose             string `json:"finalidade_emissao"`
	DestinationLocale   string `json:"local_destino"`
	FinalConsumer       string `json:"consumidor_final"`
	BuyerPresence       string `json:"presenca_comprador"`
	EmitterCNPJ         string `json:"cnpj_emitente"`
	EmitterName         string `json:"nome_emitente"`
	EmitterTradeName    string `json:"nome_fantasia_emitente,omitempty"`
	EmitterStreet       string `json:"logradouro_emitente"`
	EmitterNumber       string `json:"numero_emitente"`
	EmitterComplement   string `json:"complemento_emitente,omitempty"`
	EmitterNeighborhood string `json:"bairro_emitente"`
	EmitterCity         string `json:"municipio_emitente"`
	EmitterState        string `json:"uf_emitente"`
	EmitterPostalCode   string `json:"cep_emitente"`
	EmitterStateReg     string `json:"inscricao_estadual_emitente"`
	EmitterTaxRegime    string `json:"regime_tributario_emitente,omitempty"`
	EmitterPhone        string `json:"telefone_emitente,omitempty"`

	RecipientName         string `json:"nome_destinatario"`
	RecipientCNPJ         string `json:"cnpj_destinatario,omitempty"`
	RecipientCPF          string `json:"cpf_destinatario,omitempty"`
	RecipientStateReg     string `json:"inscricao_estadual_destinatario,omitempty"`
	RecipientStateRegKind string `json:"indicador_inscricao_estadual_destinatario"`
	RecipientStreet       string `json:"logradouro_destinatario"`
	RecipientNumber       string `json:"numero_destinatario"`
	RecipientComplement   string `json:"complemento_destinatario,omitempty"`
	RecipientNeighborhood string `json:"bairro_destinatario"`
	RecipientCity         string `json:"municipio_destinatario"`
	RecipientCityCode     string `json:"codigo_municipio_destinatario,omitempty"`
	RecipientState        string `json:"uf_destinatario"`
	RecipientPostalCode   string `json:"cep_destinatario"`
	RecipientCountry      string `json:"pais_destinatario"`
	RecipientPhone        string `json:"telefone_destinatario,omitempty"`
	RecipientEmail        string `json:"email_destinatario,omitempty"`

	ProductsTotal   string `json:"valor_produtos"`
	FreightTotal    string `json:"valor_frete"`
	DiscountTotal   string `json:"valor_desconto"`
	GrandTotal      string `json:"valor_total"`
	FreightModality string `json:"modalidade_frete"`
	AdditionalInfo  string `json:"informacoes_adicionais_contribuinte,omitempty"`

	Items []goodsItem `json:"items"`
}

type goodsItem struct {
	Number          int    `json:"numero_item"`
	ProductCode     string `json:"codigo_produto"`
	Description     string `json:"descricao"`
	CFOP            string `json:"cfop"`
	Unit            string `json:"unidade_comercial"`
	Quantity        string `json:"quantidade_comercial"`
	UnitPrice       string `json:"valor_unitario_comercial"`
	TaxUnit         string `json:"unidade_tributavel"`
	TaxQuantity     string `json:"quantidade_tributavel"`
	TaxUnitPrice    string `json:"valor_unitario_tributavel"`
	GrossValue      string `json:"valor_bruto"`
	Freight         string `json:"valor_frete,omitempty"`
	Discount        string `json:"valor_desconto,omitempty"`
	IncludedInTotal string `json:"inclui_no_total"`
	NCM             string `json:"codigo_ncm"`
	ICMSOrigin      string `json:"icms_origem"`
	ICMSSituation   string `json:"icms_situacao_tributaria"`
	PISSituation    string `json:"pis_situacao_tributaria"`
	COFINSSituation string `json:"cofins_situacao_tributaria"`
}

// buildGoodsPayload maps a validated order onto the Focus NF-e schema.
func buildGoodsPayload(in emissionInput, issuedAt time.Time) goodsPayload {
	em, cp := in.emitter, in.counterparty
	totals := computeTotals(in.order)
	locale := destinationLocale(em.Address.State, cp.Address.State)

	p := goodsPayload{
		NatureOfOperation:   in.goods.NatureOfOperation,
		IssuedAt:            issuedAt.Format(time.RFC3339),
		DocumentKind:        "1",
		Purpose:             "1",
		DestinationLocale:   strconv.Itoa(locale),
		FinalConsumer:       "1",
		BuyerPresence:       "9",
		EmitterCNPJ:         corefiscal.Digits(em.TaxID),
		EmitterName:         em.Name(),
		EmitterTradeName:    optional(em.TradeName),
		EmitterStreet:       em.Address.Street,
		EmitterNumber:       numberOrSN(em.Address.Number),
		EmitterComplement:   optional(em.Address.Complement),
		EmitterNeighborhood: em.Address.Neighborhood,
		EmitterCity:         em.Address.City,
		EmitterState:        em.Address.State,
		EmitterPostalCode:   corefiscal.Digits(em.Address.PostalCode),
		EmitterStateReg:     corefiscal.Digits(em.StateRegistration),
		EmitterTaxRegime:    optional(em.TaxRegime),
		EmitterPhone:        corefiscal.Digits(em.Phone),

		RecipientName:         cp.Name,
		RecipientStateRegKind: "9",
		RecipientStreet:       cp.Address.Street,
		RecipientNumber:       numberOrSN(cp.Address.Number),
		RecipientComplement:   optional(cp.Address.Complement),
		RecipientNeighborhood: cp.Address.Neighborhood,
		RecipientCity:         cp.Address.City,
		RecipientCityCode:     optional(cp.MunicipalityCode),
		RecipientState:        cp.Address.State,
		RecipientPostalCode:   corefiscal.Digits(cp.Address.PostalCode),
		RecipientCountry:      "Brasil",
		RecipientPhone:        corefiscal.Digits(cp.Phone),
		RecipientEmail:        optional(cp.Email),

		ProductsTotal:  money(totals.Items.Round(2)),
		FreightTotal:   money(totals.Freight),
		DiscountTotal:  money(totals.Discount),
		GrandTotal:     money(totals.Grand),
		AdditionalInfo: optional(in.order.Notes),
	}

	taxID := corefiscal.Digits(cp.TaxID)
	if cp.IsOrganization() {
		p.RecipientCNPJ = taxID
		p.FinalConsumer = "0"
		if ie := corefiscal.Digits(cp.StateRegistration); ie != "" {
			p.RecipientStateReg = ie
			p.RecipientStateRegKind = "1"
		}
	} else {
		p.RecipientCPF = taxID
	}

	switch {
	case in.goods.FreightModality != "":
		p.FreightModality = in.goods.FreightModality
	case totals.Freight.IsPositive():
		p.FreightModality = freightBySender
	default:
		p.FreightModality = freightNone
	}

	freightParts := allocate(totals.Freight, totals.Lines)
	discountParts := allocate(totals.Discount, totals.Lines)
	cfop := in.goods.CFOP(locale)

	p.Items = make([]goodsItem, len(in.order.Items))
	for i, item := range in.order.Items {
		unit := unitCode(item.MeasurementType)
		qty, price := itemQuantityAndPrice(item, totals.Lines[i])
		ncm := corefiscal.Digits(item.NCM)
		if ncm == "" {
			ncm = in.goods.NCM
		}
		code := optional(item.Code)
		if code == "" {
			code = strconv.Itoa(i + 1)
		}
		gi := goodsItem{
			Number:          i + 1,
			ProductCode:     code,
			Description:     item.Description,
			CFOP:            cfop,
			Unit:            unit,
			Quantity:        qty,
			UnitPrice:       price,
			TaxUnit:         unit,
			TaxQuantity:     qty,
			TaxUnitPrice:    price,
			GrossValue:      money(totals.Lines[i].Round(2)),
			IncludedInTotal: "1",
			NCM:             ncm,
			ICMSOrigin:      in.goods.ICMSOrigin,
			ICMSSituation:   in.goods.ICMSSituation,
			PISSituation:    in.goods.PISSituation,
			COFINSSituation: in.goods.COFINSSituation,
		}
		if freightParts[i].IsPositive() {
			gi.Freight = money(freightParts[i])
		}
		if discountParts[i].IsPositive() {
			gi.Discount = money(discountParts[i])
		}
		p.Items[i] = gi
	}
	return p
}

// itemQuantityAndPrice keeps quantity × unit price equal to the line total when
// the order fixed an explicit total.
func itemQuantityAndPrice(item corefiscal.OrderItem, line decimal.Decimal) (string, string) {
	qty := item.Quantity
	if !qty.IsPositive() {
		qty = decimal.NewFromInt(1)
	}
	price := item.UnitPrice
	if item.Total != nil {
		price = line.Div(qty)
	}
	return qty.StringFixed(4), price.StringFixed(4)
}

func numberOrSN(n string) string {
	if optional(n) == "" {
		return "S/N"
	}
	return optional(n)
}
