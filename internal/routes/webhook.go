package routes

import (
	"github.com/dukerupert/dar/internal/middleware"
	"github.com/dukerupert/dar/internal/router"
)

// RegisterWebhookRoutes registers all webhook routes.
//
// Webhook routes do NOT have authentication middleware. The payment
// service verifies the gateway signature before trusting the payload.
func RegisterWebhookRoutes(r *router.Router, deps WebhookDeps) {
	r.Post("/api/payments/callback", deps.PaymentHandler.HandleCallback, middleware.MaxBodySize(middleware.CallbackMaxBodySize))
}
