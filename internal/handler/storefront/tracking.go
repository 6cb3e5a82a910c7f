package storefront

import (
	"net/http"

	"github.com/dukerupert/dar/internal/domain"
	"github.com/dukerupert/dar/internal/handler"
	"github.com/dukerupert/dar/internal/service"
)

// TrackingHandler serves the anonymous order tracking page data. The
// tracking token is the only credential, so these routes do not need a
// shopper.
type TrackingHandler struct {
	orderService service.OrderService
}

func NewTrackingHandler(orderService service.OrderService) *TrackingHandler {
	return &TrackingHandler{orderService: orderService}
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// View handles GET /api/track/{token}
func (h *TrackingHandler) View(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderService.GetOrderByTrackingToken(r.Context(), r.PathValue("token"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, trackingView(order))
}

// Cancel handles POST /api/track/{token}/cancel
func (h *TrackingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := handler.DecodeJSON(r, &req, true); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	order, err := h.orderService.CancelByTrackingToken(r.Context(), r.PathValue("token"), req.Reason)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, trackingView(order))
}

type orderTracking struct {
	*domain.Order
	CanCancel bool `json:"can_cancel"`
}

func trackingView(order *domain.Order) orderTracking {
	return orderTracking{Order: order, CanCancel: order.Status.IsCancellable()}
}
