package routes

import (
	"net/http"

	"github.com/dukerupert/dar/internal/cookie"
	"github.com/dukerupert/dar/internal/handler/admin"
	"github.com/dukerupert/dar/internal/handler/storefront"
	"github.com/dukerupert/dar/internal/handler/webhook"
	"github.com/dukerupert/dar/internal/middleware"
)

// StorefrontDeps contains dependencies for storefront routes
type StorefrontDeps struct {
	// Shopper resolution
	SessionSecret string
	Cookies       *cookie.Config

	// Cart and promo preview
	CartHandler *storefront.CartHandler

	// Checkout
	CheckoutHandler *storefront.CheckoutHandler

	// Anonymous order tracking
	TrackingHandler *storefront.TrackingHandler

	// CheckoutLimiter throttles checkout and promo attempts per client IP
	CheckoutLimiter *middleware.RateLimiter
}

// AdminDeps contains dependencies for admin routes
type AdminDeps struct {
	AdminToken   string
	OrderHandler *admin.OrderHandler
}

// WebhookDeps contains dependencies for webhook routes
type WebhookDeps struct {
	PaymentHandler *webhook.PaymentHandler
}

// OpsDeps contains dependencies for operational endpoints
type OpsDeps struct {
	Metrics http.Handler
	Health  http.HandlerFunc
}
