package postal

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the directory has no entry for a postal code.
var ErrNotFound = errors.New("postal code not found")

// ErrMalformed is returned for postal codes that are not 8 digits.
var ErrMalformed = errors.New("malformed postal code")

// Service queries a postal-code directory (CEP) for the location behind a code.
type Service interface {
	// Lookup returns the location for an 8-digit CEP, with or without the dash.
	Lookup(ctx context.Context, postalCode string) (*Location, error)
}

// Location is the subset of a directory entry the fiscal engine uses.
type Location struct {
	PostalCode       string // CEP, digits only
	Street           string
	Neighborhood     string
	City             string
	State            string // UF, e.g. "SP"
	MunicipalityCode string // IBGE code, 7 digits, e.g. "3550308"
}
