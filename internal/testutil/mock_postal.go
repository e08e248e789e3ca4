package testutil

import (
	"context"

	"3tcapital/ms_fiscal_core/internal/core/postal"
)

// MockPostalService is a mock implementation of postal.Service.
type MockPostalService struct {
	LookupFunc func(ctx context.Context, postalCode string) (*postal.Location, error)
}

// Lookup calls the mock function if set, otherwise returns postal.ErrNotFound.
func (m *MockPostalService) Lookup(ctx context.Context, postalCode string) (*postal.Location, error) {
	if m.LookupFunc != nil {
		return m.LookupFunc(ctx, postalCode)
	}
	return nil, postal.ErrNotFound
}
