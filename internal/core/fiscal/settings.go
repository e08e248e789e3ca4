package fiscal

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Environment selects the provider host.
type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentSandbox    Environment = "sandbox"
)

// ParseEnvironment maps stored values to an Environment. Anything that is not
// explicitly production goes to the sandbox.
func ParseEnvironment(raw string) Environment {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "producao", "produção", "1":
		return EnvironmentProduction
	default:
		return EnvironmentSandbox
	}
}

// GoodsTaxDefaults are the tenant's default classification fields for NF-e items.
type GoodsTaxDefaults struct {
	NatureOfOperation string `json:"natureOfOperation,omitempty"`
	CFOPInternal      string `json:"cfopInternal,omitempty"`
	CFOPInterstate    string `json:"cfopInterstate,omitempty"`
	NCM               string `json:"ncm,omitempty"`
	ICMSOrigin        string `json:"icmsOrigin,omitempty"`
	ICMSSituation     string `json:"icmsSituation,omitempty"`
	PISSituation      string `json:"pisSituation,omitempty"`
	COFINSSituation   string `json:"cofinsSituation,omitempty"`
	FreightModality   string `json:"freightModality,omitempty"`
}

// ServiceTaxDefaults are the tenant's default fields for NFS-e.
type ServiceTaxDefaults struct {
	ClassificationCode string           `json:"classificationCode,omitempty"`
	MunicipalTaxCode   string           `json:"municipalTaxCode,omitempty"`
	ISSRate            *decimal.Decimal `json:"issRate,omitempty"`
	ISSWithheld        *bool            `json:"issWithheld,omitempty"`
}

// TenantSettings is the per-tenant fiscal configuration.
type TenantSettings struct {
	TenantID          string             `json:"tenantId"`
	APIToken          string             `json:"-"`
	Environment       Environment        `json:"environment"`
	ServiceSchema     SchemaVariant      `json:"serviceSchema"`
	Goods             GoodsTaxDefaults   `json:"goods"`
	Service           ServiceTaxDefaults `json:"service"`
	PersistRejections bool               `json:"persistRejections"`
}

// Overrides is the per-call additional data. A nil field means "use the tenant default".
type Overrides struct {
	NatureOfOperation  *string          `json:"natureOfOperation,omitempty"`
	CFOP               *string          `json:"cfop,omitempty"`
	NCM                *string          `json:"ncm,omitempty"`
	ICMSOrigin         *string          `json:"icmsOrigin,omitempty"`
	ICMSSituation      *string          `json:"icmsSituation,omitempty"`
	PISSituation       *string          `json:"pisSituation,omitempty"`
	COFINSSituation    *string          `json:"cofinsSituation,omitempty"`
	FreightModality    *string          `json:"freightModality,omitempty"`
	ClassificationCode *string          `json:"classificationCode,omitempty"`
	MunicipalTaxCode   *string          `json:"municipalTaxCode,omitempty"`
	ISSRate            *decimal.Decimal `json:"issRate,omitempty"`
	ISSWithheld        *bool            `json:"issWithheld,omitempty"`
}
