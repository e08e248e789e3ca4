package fiscal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	corefiscal "3tcapital/ms_fiscal_core/internal/core/fiscal"
)

// Fallbacks used when neither the call nor the tenant supplies a value.
const (
	defaultNatureOfOperation = "Venda de mercadoria"
	defaultCFOPInternal      = "5102"
	defaultCFOPInterstate    = "6102"
	defaultNCM               = "00000000"
	defaultICMSOrigin        = "0"
	defaultICMSSituation     = "102"
	defaultPISSituation      = "07"
	defaultCOFINSSituation   = "07"
)

// GoodsTax is the effective NF-e classification after merging overrides.
type GoodsTax struct {
	NatureOfOperation string
	CFOPOverride      string
	CFOPInternal      string
	CFOPInterstate    string
	NCM               string
	ICMSOrigin        string
	ICMSSituation     string
	PISSituation      string
	COFINSSituation   string
	FreightModality   string
}

// CFOP picks the operation code for the destination locale unless the call fixed one.
func (g GoodsTax) CFOP(locale int) string {
	if g.CFOPOverride != "" {
		return g.CFOPOverride
	}
	if locale == localeInterstate {
		return g.CFOPInterstate
	}
	return g.CFOPInternal
}

// ServiceTax is the effective NFS-e configuration after merging overrides.
type ServiceTax struct {
	ClassificationCode string
	MunicipalTaxCode   string
	ISSRate            decimal.Decimal
	ISSWithheld        bool
}

func pick(override *string, tenant, fallback string) string {
	if override != nil && strings.TrimSpace(*override) != "" {
		return strings.TrimSpace(*override)
	}
	if strings.TrimSpace(tenant) != "" {
		return strings.TrimSpace(tenant)
	}
	return fallback
}

// MergeGoodsTax applies call-time value, then tenant default, then fallback.
func MergeGoodsTax(defaults corefiscal.GoodsTaxDefaults, o corefiscal.Overrides) GoodsTax {
	return GoodsTax{
		NatureOfOperation: pick(o.NatureOfOperation, defaults.NatureOfOperation, defaultNatureOfOperation),
		CFOPOverride:      pick(o.CFOP, "", ""),
		CFOPInternal:      pick(nil, defaults.CFOPInternal, defaultCFOPInternal),
		CFOPInterstate:    pick(nil, defaults.CFOPInterstate, defaultCFOPInterstate),
		NCM:               pick(o.NCM, defaults.NCM, defaultNCM),
		ICMSOrigin:        pick(o.ICMSOrigin, defaults.ICMSOrigin, defaultICMSOrigin),
		ICMSSituation:     pick(o.ICMSSituation, defaults.ICMSSituation, defaultICMSSituation),
		PISSituation:      pick(o.PISSituation, defaults.PISSituation, defaultPISSituation),
		COFINSSituation:   pick(o.COFINSSituation, defaults.COFINSSituation, defaultCOFINSSituation),
		FreightModality:   pick(o.FreightModality, defaults.FreightModality, ""),
	}
}

// MergeServiceTax applies call-time value, then tenant default, then fallback.
// Classification and municipal codes have no fallback; validation reports them.
func MergeServiceTax(defaults corefiscal.ServiceTaxDefaults, o corefiscal.Overrides) ServiceTax {
	st := ServiceTax{
		ClassificationCode: pick(o.ClassificationCode, defaults.ClassificationCode, ""),
		MunicipalTaxCode:   pick(o.MunicipalTaxCode, defaults.MunicipalTaxCode, ""),
		ISSRate:            decimal.Zero,
	}
	switch {
	case o.ISSRate != nil:
		st.ISSRate = *o.ISSRate
	case defaults.ISSRate != nil:
		st.ISSRate = *defaults.ISSRate
	}
	switch {
	case o.ISSWithheld != nil:
		st.ISSWithheld = *o.ISSWithheld
	case defaults.ISSWithheld != nil:
		st.ISSWithheld = *defaults.ISSWithheld
	}
	return st
}

// tenantContext is everything the tenant contributes to one operation.
type tenantContext struct {
	settings *corefiscal.TenantSettings
	emitter  *corefiscal.EmitterProfile
}

// resolveTenant loads settings and emitter. A tenant without a token or without
// a registered emitter cannot emit anything.
func resolveTenant(ctx context.Context, profiles corefiscal.ProfileRepository, tenantID string, needEmitter bool) (*tenantContext, error) {
	settings, err := profiles.FindSettings(ctx, tenantID)
	if err != nil {
		if errors.Is(err, corefiscal.ErrNotFound) {
			return nil, corefiscal.NewConfigurationError(
				"Configuração fiscal não encontrada. Cadastre o token da API e o ambiente em Configurações > Fiscal.",
				"Configuração fiscal: Token da API")
		}
		return nil, fmt.Errorf("load fiscal settings: %w", err)
	}
	if strings.TrimSpace(settings.APIToken) == "" {
		return nil, corefiscal.NewConfigurationError(
			"Token da API fiscal não configurado. Informe o token em Configurações > Fiscal.",
			"Configuração fiscal: Token da API")
	}

	tc := &tenantContext{settings: settings}
	if !needEmitter {
		return tc, nil
	}

	emitter, err := profiles.FindEmitter(ctx, tenantID)
	if err != nil {
		if errors.Is(err, corefiscal.ErrNotFound) {
			return nil, corefiscal.NewConfigurationError(
				"Dados da empresa emitente não cadastrados. Complete o cadastro em Configurações > Empresa.",
				"Emitente: Cadastro")
		}
		return nil, fmt.Errorf("load emitter profile: %w", err)
	}
	tc.emitter = emitter
	return tc, nil
}
