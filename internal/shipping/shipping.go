// Package shipping prices delivery to a shipping address. Egyptian
// deliveries are priced per governorate with a fallback rate for
// governorates the table does not list.
package shipping

import (
	"context"
)

// Provider defines the interface for shipping quotes.
type Provider interface {
	// GetRate returns the delivery rate for the destination.
	GetRate(ctx context.Context, params RateParams) (*Rate, error)
}

// RateParams contains parameters for calculating a shipping rate.
type RateParams struct {
	Governorate string
	City        string

	// Subtotal and ItemCount are informational for table-based providers.
	Subtotal  int64
	ItemCount int
}

// Rate represents a shipping rate in minor currency units.
type Rate struct {
	Governorate string
	CostCents   int64

	// IsDefault is set when the governorate was not listed and the
	// fallback rate was applied.
	IsDefault bool
}
