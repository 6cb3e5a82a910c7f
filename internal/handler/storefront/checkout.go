package storefront

import (
	"net/http"

	"github.com/dukerupert/dar/internal/domain"
	"github.com/dukerupert/dar/internal/handler"
	"github.com/dukerupert/dar/internal/middleware"
	"github.com/dukerupert/dar/internal/service"
)

// CheckoutHandler starts checkout for the current shopper.
type CheckoutHandler struct {
	checkoutService service.CheckoutService
}

func NewCheckoutHandler(checkoutService service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkoutService: checkoutService}
}

// Init handles POST /api/checkout/init
//
// Card and wallet payments answer with the gateway handle the frontend
// redirects to. Cash on delivery answers with an order that is already
// PROCESSING.
func (h *CheckoutHandler) Init(w http.ResponseWriter, r *http.Request) {
	shopper := domain.MustShopper(r.Context())

	var req domain.CheckoutRequest
	if err := handler.DecodeJSON(r, &req, false); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	if req.AddressID != "" && req.NewAddress != nil {
		handler.ErrorResponse(w, r, domain.NewValidationError("checkout.init", "address_id", "cannot be combined with new_address"))
		return
	}

	session, err := h.checkoutService.InitCheckout(r.Context(), *shopper, req)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	middleware.GetLogger(r.Context()).Info("checkout initiated",
		"order_id", session.OrderID,
		"order_number", session.OrderNumber,
		"payment_method", session.PaymentMethod,
		"total", session.Total,
	)

	handler.JSON(w, http.StatusCreated, session)
}
