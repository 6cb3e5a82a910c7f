// Package domain provides the core business types of the Dar store and the
// request-scoped context helpers shared by handlers and services.
package domain

import (
	"context"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey int

const (
	// shopperContextKey stores the resolved shopper identity.
	shopperContextKey contextKey = iota

	// requestIDContextKey stores the request ID for tracing.
	requestIDContextKey
)

// Shopper identifies who is operating on a cart or checkout. Signed-in
// shoppers carry their user id; guests carry an ephemeral guest id.
type Shopper struct {
	ID      string
	IsGuest bool
	Email   string

	// GuestID is set for signed-in shoppers whose request still carries a
	// guest cookie, so the guest cart can be transferred.
	GuestID string
}

// NewContextWithShopper returns a new context with the shopper attached.
func NewContextWithShopper(ctx context.Context, shopper *Shopper) context.Context {
	return context.WithValue(ctx, shopperContextKey, shopper)
}

// ShopperFromContext retrieves the shopper from context.
// Returns nil if no shopper has been resolved.
func ShopperFromContext(ctx context.Context) *Shopper {
	shopper, _ := ctx.Value(shopperContextKey).(*Shopper)
	return shopper
}

// MustShopper retrieves the shopper from context, panicking if absent.
// The shopper middleware guarantees presence on storefront routes; the
// panic is caught by the recovery middleware.
func MustShopper(ctx context.Context) *Shopper {
	shopper := ShopperFromContext(ctx)
	if shopper == nil {
		panic("shopper required in context but not found")
	}
	return shopper
}

// NewContextWithRequestID returns a new context with the request ID attached.
func NewContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}
