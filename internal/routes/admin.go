package routes

import (
	"github.com/dukerupert/dar/internal/middleware"
	"github.com/dukerupert/dar/internal/router"
)

// RegisterAdminRoutes registers the operator API. All routes are
// protected by the admin bearer token.
func RegisterAdminRoutes(r *router.Router, deps AdminDeps) {
	admin := r.Group(middleware.MaxBodySize(), middleware.RequireAdminToken(deps.AdminToken))

	// Order management
	admin.Get("/admin/orders/{id}", deps.OrderHandler.Get)
	admin.Patch("/admin/orders/{id}/status", deps.OrderHandler.UpdateStatus)
}

// RegisterOpsRoutes registers health and metrics endpoints.
func RegisterOpsRoutes(r *router.Router, deps OpsDeps) {
	r.Get("/health", deps.Health)
	if deps.Metrics != nil {
		r.Handle("GET", "/metrics", deps.Metrics)
	}
}
