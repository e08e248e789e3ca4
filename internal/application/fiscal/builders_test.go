package fiscal

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corefiscal "3tcapital/ms_fiscal_core/internal/core/fiscal"
)

func TestBuildGoodsPayload_Scenario(t *testing.T) {
	p := buildGoodsPayload(goodsInput(), fixedNow)

	assert.Equal(t, "80.00", p.ProductsTotal)
	assert.Equal(t, "5.00", p.FreightTotal)
	assert.Equal(t, "8.00", p.DiscountTotal)
	assert.Equal(t, "77.00", p.GrandTotal)
	assert.Equal(t, "0", p.FreightModality)

	require.Len(t, p.Items, 2)
	assert.Equal(t, "M2", p.Items[0].Unit)
	assert.Equal(t, "UN", p.Items[1].Unit)
	assert.Equal(t, "30.00", p.Items[0].GrossValue)
	assert.Equal(t, "50.00", p.Items[1].GrossValue)

	// Per-item freight and discount add up to the document totals.
	itemDiscount := dec(p.Items[0].Discount).Add(dec(p.Items[1].Discount))
	itemFreight := dec(p.Items[0].Freight).Add(dec(p.Items[1].Freight))
	assert.True(t, itemDiscount.Equal(dec("8")), "discount parts: %s", itemDiscount)
	assert.True(t, itemFreight.Equal(dec("5")), "freight parts: %s", itemFreight)
}

func TestBuildGoodsPayload_GrandTotalProperty(t *testing.T) {
	tests := []struct {
		items    [][2]string // quantity, unit price
		freight  string
		discount corefiscal.Discount
	}{
		{[][2]string{{"1", "0.335"}, {"1", "0.335"}}, "0", corefiscal.Discount{}},
		{[][2]string{{"2.5", "19.99"}}, "7.45", corefiscal.Discount{Type: corefiscal.DiscountPercentage, Value: dec("12.5")}},
		{[][2]string{{"3", "33.333"}, {"7", "1.005"}}, "0.01", corefiscal.Discount{Type: corefiscal.DiscountFlat, Value: dec("0.99")}},
		{[][2]string{{"10", "10"}}, "0", corefiscal.Discount{Type: corefiscal.DiscountPercentage, Value: dec("100")}},
		{[][2]string{{"1", "0.10"}}, "0", corefiscal.Discount{Type: corefiscal.DiscountPercentage, Value: dec("5")}},
		{[][2]string{{"1", "1.00"}}, "0.005", corefiscal.Discount{Type: corefiscal.DiscountFlat, Value: dec("0.001")}},
		{[][2]string{{"3", "0.333"}}, "0.004", corefiscal.Discount{Type: corefiscal.DiscountPercentage, Value: dec("0.7")}},
	}

	for i, tt := range tests {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			in := goodsInput()
			in.order.Items = nil
			p := decimal.Zero
			for _, it := range tt.items {
				q, u := dec(it[0]), dec(it[1])
				in.order.Items = append(in.order.Items, corefiscal.OrderItem{Description: "x", Quantity: q, UnitPrice: u})
				p = p.Add(q.Mul(u))
			}
			in.order.Freight = dec(tt.freight)
			in.order.Discount = tt.discount

			payload := buildGoodsPayload(in, fixedNow)
			d := decimal.Zero
			switch tt.discount.Type {
			case corefiscal.DiscountPercentage:
				d = p.Mul(tt.discount.Value).Div(decimal.NewFromInt(100))
			case corefiscal.DiscountFlat:
				d = tt.discount.Value
			}
			want := p.Add(dec(tt.freight)).Sub(d).Round(2)
			assert.Equal(t, want.StringFixed(2), payload.GrandTotal)
		})
	}
}

func TestComputeTotals_RoundsGrandTotalOnce(t *testing.T) {
	tests := []struct {
		name         string
		order        corefiscal.Order
		wantGrand    string
		wantFreight  string
		wantDiscount string
	}{
		{
			name: "sub-cent percentage discount",
			order: corefiscal.Order{
				Items:    []corefiscal.OrderItem{{Quantity: dec("1"), UnitPrice: dec("0.10")}},
				Discount: corefiscal.Discount{Type: corefiscal.DiscountPercentage, Value: dec("5")},
			},
			wantGrand:    "0.10",
			wantFreight:  "0.00",
			wantDiscount: "0.01",
		},
		{
			name: "sub-cent freight and flat discount",
			order: corefiscal.Order{
				Items:    []corefiscal.OrderItem{{Quantity: dec("1"), UnitPrice: dec("1.00")}},
				Freight:  dec("0.005"),
				Discount: corefiscal.Discount{Type: corefiscal.DiscountFlat, Value: dec("0.001")},
			},
			wantGrand:    "1.00",
			wantFreight:  "0.01",
			wantDiscount: "0.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			totals := computeTotals(tt.order)
			assert.Equal(t, tt.wantGrand, totals.Grand.StringFixed(2))
			assert.Equal(t, tt.wantFreight, totals.Freight.StringFixed(2))
			assert.Equal(t, tt.wantDiscount, totals.Discount.StringFixed(2))
		})
	}
}

func TestPercentageDiscount(t *testing.T) {
	in := goodsInput()
	in.order.Discount = corefiscal.Discount{Type: corefiscal.DiscountPercentage, Value: dec("10")}
	p := buildGoodsPayload(in, fixedNow)
	assert.Equal(t, "8.00", p.DiscountTotal)
	assert.Equal(t, "77.00", p.GrandTotal)
}

func TestDestinationLocale(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"SP", "SP", 1},
		{"sp", "SP ", 1},
		{"SP", "RJ", 2},
		{"MG", "BA", 2},
		{"", "RJ", 1},
		{"SP", "", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, destinationLocale(tt.a, tt.b), "%q/%q", tt.a, tt.b)
	}

	in := goodsInput()
	assert.Equal(t, "2", buildGoodsPayload(in, fixedNow).DestinationLocale)
	assert.Equal(t, "6102", buildGoodsPayload(in, fixedNow).Items[0].CFOP)

	in.counterparty.Address.State = "SP"
	p := buildGoodsPayload(in, fixedNow)
	assert.Equal(t, "1", p.DestinationLocale)
	assert.Equal(t, "5102", p.Items[0].CFOP)
}

func TestBuildGoodsPayload_Counterparty(t *testing.T) {
	in := goodsInput()
	p := buildGoodsPayload(in, fixedNow)
	assert.Equal(t, "98765432000110", p.RecipientCNPJ)
	assert.Empty(t, p.RecipientCPF)
	assert.Equal(t, "0", p.FinalConsumer)

	in.counterparty.TaxID = "123.456.789-09"
	p = buildGoodsPayload(in, fixedNow)
	assert.Equal(t, "12345678909", p.RecipientCPF)
	assert.Empty(t, p.RecipientCNPJ)
	assert.Equal(t, "1", p.FinalConsumer)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "cnpj_destinatario")
}

func TestBuildGoodsPayload_Overrides(t *testing.T) {
	in := goodsInput()
	in.order.Freight = decimal.Zero
	in.goods = MergeGoodsTax(
		corefiscal.GoodsTaxDefaults{ICMSSituation: "400", NCM: "68022300"},
		corefiscal.Overrides{CFOP: strPtr("5949"), ICMSSituation: strPtr("101")},
	)
	p := buildGoodsPayload(in, fixedNow)

	assert.Equal(t, "9", p.FreightModality)
	assert.Equal(t, "5949", p.Items[0].CFOP)
	assert.Equal(t, "101", p.Items[0].ICMSSituation)
	assert.Equal(t, "68022300", p.Items[0].NCM)
	assert.Equal(t, defaultICMSOrigin, p.Items[0].ICMSOrigin)
}

func TestBuildGoodsPayload_ExplicitLineTotal(t *testing.T) {
	in := goodsInput()
	total := dec("100")
	in.order.Items[1].Total = &total
	p := buildGoodsPayload(in, fixedNow)
	assert.Equal(t, "130.00", p.ProductsTotal)
	assert.Equal(t, "100.00", p.Items[1].GrossValue)
}

func TestNationalClassificationCode(t *testing.T) {
	tests := map[string]string{
		"1305":     "130500",
		"13.05":    "130500",
		"01.07.01": "010701",
		"1234567":  "123456",
		"130501":   "130501",
		" 7 ":      "700000",
	}
	for raw, want := range tests {
		got := NationalClassificationCode(raw)
		assert.Equal(t, want, got, "raw %q", raw)
		assert.Len(t, got, 6)
	}
}

func TestNationalServicePayload(t *testing.T) {
	in := serviceInput(corefiscal.SchemaNational, "1305", "1234")
	p := nationalServiceBuilder{}.Build(in, fixedNow).(nationalPayload)

	assert.Equal(t, "130500", p.NationalTaxCode)
	assert.Empty(t, p.MunicipalTaxCode)
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "codigo_tributacao_municipal_iss")
	assert.Contains(t, string(raw), `"cnpj_prestador":"12345678000190"`)
	assert.Contains(t, string(raw), `"razao_social_tomador":"Construtora Cliente SA"`)
	assert.Contains(t, string(raw), `"logradouro_tomador":"Avenida Atlântica"`)

	in.service.MunicipalTaxCode = "123"
	p = nationalServiceBuilder{}.Build(in, fixedNow).(nationalPayload)
	assert.Equal(t, "123", p.MunicipalTaxCode)
	assert.Equal(t, "80.00", p.Amount)
	assert.Equal(t, "8.00", p.UnconditionalDiscount)
	assert.Equal(t, "2026-03-10", p.CompetenceDate)
}

func TestLegacyServicePayload(t *testing.T) {
	in := serviceInput(corefiscal.SchemaLegacy, "13.05", "")
	p := legacyServiceBuilder{}.Build(in, fixedNow).(legacyPayload)

	assert.Equal(t, "13.05", p.Service.ClassificationCode)
	assert.Equal(t, "80.00", p.Service.Amount)
	assert.Equal(t, "2.5", p.Service.Rate)
	assert.Equal(t, "12345678000190", p.Provider.CNPJ)
	assert.Equal(t, "3550308", p.Provider.MunicipalityCode)
	assert.Equal(t, "98765432000110", p.Recipient.CNPJ)
	require.NotNil(t, p.Recipient.Address)
	assert.Equal(t, "3304557", p.Recipient.Address.MunicipalityCode)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"item_lista_servico":"13.05"`)
	assert.NotContains(t, string(raw), "codigo_tributario_municipio")
	assert.Contains(t, string(raw), `"prestador":{`)
	assert.Contains(t, string(raw), `"servico":{`)
}

func TestServiceDescription(t *testing.T) {
	order := scenarioOrder()
	totals := computeTotals(order)
	desc := serviceDescription(order, totals.Lines)
	lines := strings.Split(desc, "\n")

	require.Len(t, lines, 4)
	assert.Equal(t, "Pedido 42", lines[0])
	assert.Equal(t, "3 x Granito preto - R$ 10,00 = R$ 30,00", lines[1])
	assert.Equal(t, "1 x Acabamento - R$ 50,00 = R$ 50,00", lines[2])
	assert.Equal(t, "Entrega no canteiro", lines[3])
}

func TestServiceBuilderFor(t *testing.T) {
	assert.Equal(t, corefiscal.SchemaNational, serviceBuilderFor(corefiscal.SchemaNational).Variant())
	assert.Equal(t, corefiscal.SchemaLegacy, serviceBuilderFor(corefiscal.SchemaLegacy).Variant())
	assert.Equal(t, corefiscal.SchemaLegacy, serviceBuilderFor(corefiscal.SchemaNone).Variant())
}

func TestAllocate(t *testing.T) {
	parts := allocate(dec("10"), []decimal.Decimal{dec("1"), dec("1"), dec("1")})
	sum := decimal.Zero
	for _, p := range parts {
		sum = sum.Add(p)
	}
	assert.True(t, sum.Equal(dec("10")))
	assert.Equal(t, "3.33", parts[0].StringFixed(2))
	assert.Equal(t, "3.34", parts[2].StringFixed(2))
}

func TestFormatBRL(t *testing.T) {
	assert.Equal(t, "R$ 1.234.567,89", formatBRL(dec("1234567.891")))
	assert.Equal(t, "R$ 0,50", formatBRL(dec("0.5")))
	assert.Equal(t, "-R$ 100,00", formatBRL(dec("-100")))
}
