package fiscal

import "strings"

// Address is a Brazilian postal address.
type Address struct {
	Street       string `json:"street"`
	Number       string `json:"number"`
	Complement   string `json:"complement,omitempty"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postalCode"`
}

// EmitterProfile is the tenant's own legal identity.
type EmitterProfile struct {
	TenantID              string  `json:"tenantId"`
	TaxID                 string  `json:"taxId"`
	LegalName             string  `json:"legalName"`
	TradeName             string  `json:"tradeName,omitempty"`
	Address               Address `json:"address"`
	StateRegistration     string  `json:"stateRegistration,omitempty"`
	MunicipalRegistration string  `json:"municipalRegistration,omitempty"`
	MunicipalityCode      string  `json:"municipalityCode,omitempty"`
	TaxRegime             string  `json:"taxRegime,omitempty"`
	Phone                 string  `json:"phone,omitempty"`
	Email                 string  `json:"email,omitempty"`
}

// Name returns the legal name, falling back to the trade name.
func (e EmitterProfile) Name() string {
	if strings.TrimSpace(e.LegalName) != "" {
		return strings.TrimSpace(e.LegalName)
	}
	return strings.TrimSpace(e.TradeName)
}

// CounterpartyProfile is the customer on an order.
type CounterpartyProfile struct {
	ID                string  `json:"id"`
	TenantID          string  `json:"tenantId"`
	TaxID             string  `json:"taxId"`
	Name              string  `json:"name"`
	Address           Address `json:"address"`
	StateRegistration string  `json:"stateRegistration,omitempty"`
	MunicipalityCode  string  `json:"municipalityCode,omitempty"`
	Email             string  `json:"email,omitempty"`
	Phone             string  `json:"phone,omitempty"`
}

// IsOrganization reports whether the tax id is a CNPJ (14 digits).
func (c CounterpartyProfile) IsOrganization() bool {
	return len(Digits(c.TaxID)) == 14
}

// Digits strips every non-digit rune.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// EmptyField reports whether a profile field carries no usable value.
func EmptyField(s string) bool {
	return strings.TrimSpace(s) == ""
}
