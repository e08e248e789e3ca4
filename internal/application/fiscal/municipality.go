package fiscal

import (
	"context"
	"log/slog"
	"time"

	corefiscal "3tcapital/ms_fiscal_core/internal/core/fiscal"
	"3tcapital/ms_fiscal_core/internal/core/postal"
)

const municipalityLookupTimeout = 5 * time.Second

// municipalityResolver back-fills a counterparty's IBGE code from its CEP.
// It never fails the caller: every error is logged and yields "".
type municipalityResolver struct {
	lookup   postal.Service
	profiles corefiscal.ProfileRepository
	log      *slog.Logger
}

func (r *municipalityResolver) resolve(ctx context.Context, tenantID string, cp *corefiscal.CounterpartyProfile) string {
	if cp.MunicipalityCode != "" {
		return cp.MunicipalityCode
	}
	if corefiscal.EmptyField(cp.Address.PostalCode) || r.lookup == nil {
		return ""
	}

	lookupCtx, cancel := context.WithTimeout(ctx, municipalityLookupTimeout)
	defer cancel()

	loc, err := r.lookup.Lookup(lookupCtx, cp.Address.PostalCode)
	if err != nil {
		r.log.Warn("Municipality lookup failed",
			"error", err,
			"tenant_id", tenantID,
			"counterparty_id", cp.ID,
			"postal_code", corefiscal.Digits(cp.Address.PostalCode))
		return ""
	}

	cp.MunicipalityCode = loc.MunicipalityCode
	if err := r.profiles.UpdateCounterpartyMunicipality(ctx, tenantID, cp.ID, loc.MunicipalityCode); err != nil {
		r.log.Warn("Failed to cache municipality code on counterparty",
			"error", err,
			"tenant_id", tenantID,
			"counterparty_id", cp.ID)
	}
	return loc.MunicipalityCode
}
