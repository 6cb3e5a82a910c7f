package routes

import (
	"github.com/dukerupert/dar/internal/middleware"
	"github.com/dukerupert/dar/internal/router"
)

// RegisterStorefrontRoutes registers the shopper-facing JSON API.
//
// Cart and checkout routes resolve the shopper first. Tracking routes are
// keyed by the order's tracking token and need no shopper.
func RegisterStorefrontRoutes(r *router.Router, deps StorefrontDeps) {
	api := r.Group(middleware.MaxBodySize())
	shop := api.Group(middleware.ResolveShopper(deps.SessionSecret, deps.Cookies))

	// Shopping cart
	shop.Get("/api/cart", deps.CartHandler.View)
	shop.Post("/api/cart", deps.CartHandler.Add)
	shop.Put("/api/cart/{variantId}", deps.CartHandler.Update)
	shop.Delete("/api/cart/{variantId}", deps.CartHandler.Remove)
	shop.Post("/api/cart/transfer", deps.CartHandler.Transfer)

	// Rate limited: promo guessing and checkout spam
	limited := shop
	if deps.CheckoutLimiter != nil {
		limited = shop.Group(deps.CheckoutLimiter.Middleware)
	}
	limited.Post("/api/cart/apply-promo", deps.CartHandler.ApplyPromo)
	limited.Post("/api/checkout/init", deps.CheckoutHandler.Init)

	// Order tracking
	api.Get("/api/track/{token}", deps.TrackingHandler.View)
	api.Post("/api/track/{token}/cancel", deps.TrackingHandler.Cancel)
}
