package fiscal

import (
	"context"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	corefiscal "3tcapital/ms_fiscal_core/internal/core/fiscal"
	"3tcapital/ms_fiscal_core/internal/testutil"
)

const (
	tenantID = "tenant-1"
	apiToken = "focus-token-0123456789"
)

var fixedNow = time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

func fixedClock() corefiscal.Clock {
	return corefiscal.ClockFunc(func() time.Time { return fixedNow })
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func strPtr(s string) *string { return &s }

func emitterSP() corefiscal.EmitterProfile {
	return corefiscal.EmitterProfile{
		TenantID:              tenantID,
		TaxID:                 "12.345.678/0001-90",
		LegalName:             "Marmoraria Exemplo LTDA",
		TradeName:             "Exemplo Pedras",
		StateRegistration:     "110.042.490.114",
		MunicipalRegistration: "1234567",
		MunicipalityCode:      "3550308",
		TaxRegime:             "1",
		Address: corefiscal.Address{
			Street:       "Rua das Pedras",
			Number:       "100",
			Neighborhood: "Centro",
			City:         "São Paulo",
			State:        "SP",
			PostalCode:   "01001-000",
		},
	}
}

func counterpartyOrg(state string) corefiscal.CounterpartyProfile {
	return corefiscal.CounterpartyProfile{
		ID:               "cp-1",
		TenantID:         tenantID,
		TaxID:            "98.765.432/0001-10",
		Name:             "Construtora Cliente SA",
		MunicipalityCode: "3304557",
		Email:            "compras@cliente.com.br",
		Address: corefiscal.Address{
			Street:       "Avenida Atlântica",
			Number:       "2000",
			Neighborhood: "Copacabana",
			City:         "Rio de Janeiro",
			State:        state,
			PostalCode:   "22021-001",
		},
	}
}

func scenarioOrder() corefiscal.Order {
	return corefiscal.Order{
		ID:             "42",
		TenantID:       tenantID,
		CounterpartyID: "cp-1",
		Items: []corefiscal.OrderItem{
			{Code: "GR-01", Description: "Granito preto", MeasurementType: corefiscal.MeasureSquareMeter, Quantity: dec("3"), UnitPrice: dec("10")},
			{Code: "AC-02", Description: "Acabamento", MeasurementType: corefiscal.MeasureUnit, Quantity: dec("1"), UnitPrice: dec("50")},
		},
		Freight:  dec("5"),
		Discount: corefiscal.Discount{Type: corefiscal.DiscountFlat, Value: dec("8")},
		Notes:    "Entrega no canteiro",
	}
}

func baseSettings(schema corefiscal.SchemaVariant) corefiscal.TenantSettings {
	rate := dec("2.5")
	return corefiscal.TenantSettings{
		TenantID:      tenantID,
		APIToken:      apiToken,
		Environment:   corefiscal.EnvironmentSandbox,
		ServiceSchema: schema,
		Service: corefiscal.ServiceTaxDefaults{
			ClassificationCode: "1305",
			MunicipalTaxCode:   "123",
			ISSRate:            &rate,
		},
	}
}

type harness struct {
	svc      *Service
	gateway  *testutil.MockGateway
	docs     *testutil.DocumentStore
	profiles *testutil.ProfileStore
	postal   *testutil.MockPostalService
}

func newHarness(schema corefiscal.SchemaVariant) *harness {
	h := &harness{
		gateway:  &testutil.MockGateway{},
		docs:     testutil.NewDocumentStore(),
		profiles: testutil.NewProfileStore(),
		postal:   &testutil.MockPostalService{},
	}
	h.profiles.Settings[tenantID] = baseSettings(schema)
	h.profiles.Emitters[tenantID] = emitterSP()
	h.profiles.PutCounterparty(counterpartyOrg("RJ"))

	h.svc = NewService(Dependencies{
		Documents: h.docs,
		Profiles:  h.profiles,
		Gateway:   h.gateway,
		Postal:    h.postal,
		Clock:     fixedClock(),
		Logger:    testutil.NewNullLogger(),
	})
	return h
}

func (h *harness) emit(t corefiscal.DocumentType) EmissionResult {
	return h.svc.Emit(context.Background(), EmissionRequest{TenantID: tenantID, Order: scenarioOrder(), Type: t})
}

func goodsInput() emissionInput {
	return emissionInput{
		docType:      corefiscal.GoodsInvoice,
		emitter:      emitterSP(),
		counterparty: counterpartyOrg("RJ"),
		order:        scenarioOrder(),
		goods:        MergeGoodsTax(corefiscal.GoodsTaxDefaults{}, corefiscal.Overrides{}),
	}
}

func serviceInput(variant corefiscal.SchemaVariant, classification, municipal string) emissionInput {
	in := goodsInput()
	in.docType = corefiscal.ServiceInvoice
	in.variant = variant
	in.service = ServiceTax{ClassificationCode: classification, MunicipalTaxCode: municipal, ISSRate: dec("2.5")}
	return in
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
