// Package storefront serves the shopper-facing JSON API: cart, promo
// codes, checkout and order tracking.
package storefront

import (
	"net/http"

	"github.com/dukerupert/dar/internal/cookie"
	"github.com/dukerupert/dar/internal/domain"
	"github.com/dukerupert/dar/internal/handler"
	"github.com/dukerupert/dar/internal/middleware"
	"github.com/dukerupert/dar/internal/service"
)

// CartHandler handles all cart-related storefront routes
type CartHandler struct {
	cartService  service.CartService
	promoService service.PromoService
	cookies      *cookie.Config
}

// NewCartHandler creates a new cart handler
func NewCartHandler(cartService service.CartService, promoService service.PromoService, cookies *cookie.Config) *CartHandler {
	return &CartHandler{
		cartService:  cartService,
		promoService: promoService,
		cookies:      cookies,
	}
}

type addItemRequest struct {
	VariantID string `json:"variant_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=100"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity" validate:"min=0,max=100"`
}

type applyPromoRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

type promoResponse struct {
	Valid    bool               `json:"valid"`
	Discount int64              `json:"discount"`
	Reason   domain.PromoReason `json:"reason,omitempty"`
	Message  string             `json:"message"`
}

// View handles GET /api/cart
func (h *CartHandler) View(w http.ResponseWriter, r *http.Request) {
	shopper := domain.MustShopper(r.Context())

	cart, err := h.cartService.GetCart(r.Context(), shopper.ID, shopper.IsGuest)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, cart)
}

// Add handles POST /api/cart
func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	shopper := domain.MustShopper(r.Context())

	var req addItemRequest
	if err := handler.DecodeJSON(r, &req, false); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	cart, err := h.cartService.AddItem(r.Context(), shopper.ID, req.VariantID, req.Quantity, shopper.IsGuest)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, cart)
}

// Update handles PUT /api/cart/{variantId}. A quantity of zero removes the line.
func (h *CartHandler) Update(w http.ResponseWriter, r *http.Request) {
	shopper := domain.MustShopper(r.Context())

	var req updateItemRequest
	if err := handler.DecodeJSON(r, &req, false); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	cart, err := h.cartService.UpdateItem(r.Context(), shopper.ID, r.PathValue("variantId"), req.Quantity, shopper.IsGuest)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, cart)
}

// Remove handles DELETE /api/cart/{variantId}
func (h *CartHandler) Remove(w http.ResponseWriter, r *http.Request) {
	shopper := domain.MustShopper(r.Context())

	cart, err := h.cartService.RemoveItem(r.Context(), shopper.ID, r.PathValue("variantId"), shopper.IsGuest)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, cart)
}

// Transfer handles POST /api/cart/transfer. It merges the guest cart
// named by the guest cookie into the signed-in shopper's cart and drops
// the guest cookie.
func (h *CartHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	shopper := domain.MustShopper(r.Context())

	if shopper.IsGuest {
		handler.ErrorResponse(w, r, domain.Errorf(domain.EUNAUTHORIZED, "cart.transfer", "Sign in to keep your cart"))
		return
	}

	if shopper.GuestID == "" {
		cart, err := h.cartService.GetCart(r.Context(), shopper.ID, false)
		if err != nil {
			handler.ErrorResponse(w, r, err)
			return
		}
		handler.JSON(w, http.StatusOK, cart)
		return
	}

	cart, err := h.cartService.TransferGuestCart(r.Context(), shopper.GuestID, shopper.ID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	h.cookies.Clear(w, cookie.GuestCookieName)

	middleware.GetLogger(r.Context()).Info("guest cart transferred",
		"guest_id", shopper.GuestID,
		"item_count", cart.ItemCount,
	)

	handler.JSON(w, http.StatusOK, cart)
}

// ApplyPromo handles POST /api/cart/apply-promo. It only previews the
// discount; nothing is reserved until checkout.
func (h *CartHandler) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	shopper := domain.MustShopper(r.Context())

	var req applyPromoRequest
	if err := handler.DecodeJSON(r, &req, false); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	cart, err := h.cartService.GetCart(r.Context(), shopper.ID, shopper.IsGuest)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	shopperID := shopper.ID
	if shopper.IsGuest {
		shopperID = ""
	}

	result, err := h.promoService.Validate(r.Context(), req.Code, cart, shopperID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, promoResponse{
		Valid:    result.Valid,
		Discount: result.Discount,
		Reason:   result.Reason,
		Message:  result.Message(),
	})
}
