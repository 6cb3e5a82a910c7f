// Package admin serves operator endpoints behind the admin token.
package admin

import (
	"net/http"

	"github.com/dukerupert/dar/internal/domain"
	"github.com/dukerupert/dar/internal/handler"
	"github.com/dukerupert/dar/internal/middleware"
	"github.com/dukerupert/dar/internal/service"
)

// OrderHandler handles admin order routes
type OrderHandler struct {
	orderService service.OrderService
}

// NewOrderHandler creates a new admin order handler
func NewOrderHandler(orderService service.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note" validate:"max=1000"`
}

// orderView exposes the fields the storefront hides from shoppers.
type orderView struct {
	*domain.Order
	ShopperID            string `json:"shopper_id"`
	IsGuest              bool   `json:"is_guest"`
	Email                string `json:"email"`
	GatewayOrderID       string `json:"gateway_order_id,omitempty"`
	GatewayTransactionID string `json:"gateway_transaction_id,omitempty"`
}

func newOrderView(o *domain.Order) orderView {
	return orderView{
		Order:                o,
		ShopperID:            o.ShopperID,
		IsGuest:              o.IsGuest,
		Email:                o.Email,
		GatewayOrderID:       o.GatewayOrderID,
		GatewayTransactionID: o.GatewayTransactionID,
	}
}

// Get handles GET /admin/orders/{id}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderService.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, newOrderView(order))
}

// UpdateStatus handles PATCH /admin/orders/{id}/status
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := handler.DecodeJSON(r, &req, false); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	status, ok := domain.ParseOrderStatus(req.Status)
	if !ok {
		handler.ErrorResponse(w, r, domain.NewValidationError("admin.order.status", "status", "must be a valid order status"))
		return
	}

	order, err := h.orderService.UpdateStatus(r.Context(), r.PathValue("id"), status, req.Note, domain.ActorAdmin)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	middleware.GetLogger(r.Context()).Info("order status updated",
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"status", order.Status,
	)

	handler.JSON(w, http.StatusOK, newOrderView(order))
}
