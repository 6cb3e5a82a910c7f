package shipping

import (
	"context"
)

// MockProvider is a test implementation of Provider.
type MockProvider struct {
	GetRateFunc func(ctx context.Context, params RateParams) (*Rate, error)
}

// NewMockProvider creates a mock that charges a fixed 5000 everywhere.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// GetRate delegates to the configured function or returns a default result.
func (m *MockProvider) GetRate(ctx context.Context, params RateParams) (*Rate, error) {
	if m.GetRateFunc != nil {
		return m.GetRateFunc(ctx, params)
	}
	return &Rate{Governorate: params.Governorate, CostCents: 5000}, nil
}

var (
	_ Provider = (*MockProvider)(nil)
	_ Provider = (*RateTable)(nil)
)
