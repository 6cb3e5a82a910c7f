package storefront

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/dar/internal/cookie"
	"github.com/dukerupert/dar/internal/domain"
	"github.com/dukerupert/dar/internal/service"
)

const testVariantID = "6f1c1f8e-2d4b-4a57-9b3e-7d2f0c9a1b11"

// mockCartService implements service.CartService for testing
type mockCartService struct {
	getCartFunc    func(ctx context.Context, shopperID string, isGuest bool) (*domain.Cart, error)
	addItemFunc    func(ctx context.Context, shopperID, variantID string, qty int, isGuest bool) (*domain.Cart, error)
	updateItemFunc func(ctx context.Context, shopperID, variantID string, qty int, isGuest bool) (*domain.Cart, error)
	removeItemFunc func(ctx context.Context, shopperID, variantID string, isGuest bool) (*domain.Cart, error)
	transferFunc   func(ctx context.Context, guestID, shopperID string) (*domain.Cart, error)
}

func (m *mockCartService) GetCart(ctx context.Context, shopperID string, isGuest bool) (*domain.Cart, error) {
	if m.getCartFunc != nil {
		return m.getCartFunc(ctx, shopperID, isGuest)
	}
	return domain.NewCart(shopperID, isGuest, nil), nil
}

func (m *mockCartService) AddItem(ctx context.Context, shopperID, variantID string, qty int, isGuest bool) (*domain.Cart, error) {
	if m.addItemFunc != nil {
		return m.addItemFunc(ctx, shopperID, variantID, qty, isGuest)
	}
	return domain.NewCart(shopperID, isGuest, nil), nil
}

func (m *mockCartService) UpdateItem(ctx context.Context, shopperID, variantID string, qty int, isGuest bool) (*domain.Cart, error) {
	if m.updateItemFunc != nil {
		return m.updateItemFunc(ctx, shopperID, variantID, qty, isGuest)
	}
	return domain.NewCart(shopperID, isGuest, nil), nil
}

func (m *mockCartService) RemoveItem(ctx context.Context, shopperID, variantID string, isGuest bool) (*domain.Cart, error) {
	if m.removeItemFunc != nil {
		return m.removeItemFunc(ctx, shopperID, variantID, isGuest)
	}
	return domain.NewCart(shopperID, isGuest, nil), nil
}

func (m *mockCartService) ValidateCart(ctx context.Context, shopperID string, isGuest bool) (*domain.CartValidation, error) {
	return &domain.CartValidation{Valid: true, Cart: domain.NewCart(shopperID, isGuest, nil)}, nil
}

func (m *mockCartService) CheckCart(ctx context.Context, shopperID string, isGuest bool) (*domain.CartValidation, error) {
	return m.ValidateCart(ctx, shopperID, isGuest)
}

func (m *mockCartService) DropLines(ctx context.Context, shopperID string, isGuest bool, variantIDs []string) error {
	return nil
}

func (m *mockCartService) TransferGuestCart(ctx context.Context, guestID, shopperID string) (*domain.Cart, error) {
	if m.transferFunc != nil {
		return m.transferFunc(ctx, guestID, shopperID)
	}
	return domain.NewCart(shopperID, false, nil), nil
}

func (m *mockCartService) ClearCart(ctx context.Context, shopperID string, isGuest bool) error {
	return nil
}

type mockPromoService struct {
	validateFunc func(ctx context.Context, code string, cart *domain.Cart, shopperID string) (*domain.PromoResult, error)
}

func (m *mockPromoService) Validate(ctx context.Context, code string, cart *domain.Cart, shopperID string) (*domain.PromoResult, error) {
	return m.validateFunc(ctx, code, cart, shopperID)
}

type mockCheckoutService struct {
	initFunc func(ctx context.Context, shopper domain.Shopper, req domain.CheckoutRequest) (*domain.CheckoutSession, error)
}

func (m *mockCheckoutService) InitCheckout(ctx context.Context, shopper domain.Shopper, req domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	return m.initFunc(ctx, shopper, req)
}

type mockOrderService struct {
	service.OrderService
	byTokenFunc func(ctx context.Context, token string) (*domain.Order, error)
	cancelFunc  func(ctx context.Context, token, reason string) (*domain.Order, error)
}

func (m *mockOrderService) GetOrderByTrackingToken(ctx context.Context, token string) (*domain.Order, error) {
	return m.byTokenFunc(ctx, token)
}

func (m *mockOrderService) CancelByTrackingToken(ctx context.Context, token, reason string) (*domain.Order, error) {
	return m.cancelFunc(ctx, token, reason)
}

func withShopper(req *http.Request, shopper *domain.Shopper) *http.Request {
	return req.WithContext(domain.NewContextWithShopper(req.Context(), shopper))
}

func guest() *domain.Shopper {
	return &domain.Shopper{ID: "0b6e3c1e-5d0f-4f43-9a39-4b8f8a6f2d10", IsGuest: true}
}

func TestCartHandler_View(t *testing.T) {
	var gotGuest bool
	carts := &mockCartService{
		getCartFunc: func(ctx context.Context, shopperID string, isGuest bool) (*domain.Cart, error) {
			gotGuest = isGuest
			chair := domain.Variant{ID: testVariantID, ProductName: "Oak Chair", BasePrice: 2450000, Stock: 3, IsActive: true}
			return domain.NewCart(shopperID, isGuest, []domain.CartLine{domain.NewCartLine(chair, 2)}), nil
		},
	}
	h := NewCartHandler(carts, nil, cookie.NewConfig("", false))

	rec := httptest.NewRecorder()
	h.View(rec, withShopper(httptest.NewRequest(http.MethodGet, "/api/cart", nil), guest()))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, gotGuest)

	var body struct {
		Subtotal  int64 `json:"subtotal"`
		ItemCount int   `json:"item_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(4900000), body.Subtotal)
	assert.Equal(t, 2, body.ItemCount)
}

func TestCartHandler_Add(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
	}{
		{"valid", `{"variant_id":"` + testVariantID + `","quantity":2}`, nil, http.StatusOK},
		{"zero quantity", `{"variant_id":"` + testVariantID + `","quantity":0}`, nil, http.StatusBadRequest},
		{"bad variant id", `{"variant_id":"chair","quantity":1}`, nil, http.StatusBadRequest},
		{"out of stock", `{"variant_id":"` + testVariantID + `","quantity":9}`, service.ErrInsufficientStock, http.StatusConflict},
		{"unknown variant", `{"variant_id":"` + testVariantID + `","quantity":1}`, service.ErrVariantNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			carts := &mockCartService{
				addItemFunc: func(ctx context.Context, shopperID, variantID string, qty int, isGuest bool) (*domain.Cart, error) {
					if tt.serviceErr != nil {
						return nil, tt.serviceErr
					}
					return domain.NewCart(shopperID, isGuest, nil), nil
				},
			}
			h := NewCartHandler(carts, nil, cookie.NewConfig("", false))

			req := httptest.NewRequest(http.MethodPost, "/api/cart", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.Add(rec, withShopper(req, guest()))

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestCartHandler_UpdateUsesPathVariant(t *testing.T) {
	var gotVariant string
	var gotQty int
	carts := &mockCartService{
		updateItemFunc: func(ctx context.Context, shopperID, variantID string, qty int, isGuest bool) (*domain.Cart, error) {
			gotVariant, gotQty = variantID, qty
			return domain.NewCart(shopperID, isGuest, nil), nil
		},
	}
	h := NewCartHandler(carts, nil, cookie.NewConfig("", false))

	mux := http.NewServeMux()
	mux.HandleFunc("PUT /api/cart/{variantId}", func(w http.ResponseWriter, r *http.Request) {
		h.Update(w, withShopper(r, guest()))
	})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/cart/"+testVariantID, strings.NewReader(`{"quantity":0}`)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testVariantID, gotVariant)
	assert.Equal(t, 0, gotQty)
}

func TestCartHandler_ApplyPromo(t *testing.T) {
	t.Run("guest skips per shopper limit", func(t *testing.T) {
		gotShopper := "unset"
		promos := &mockPromoService{
			validateFunc: func(ctx context.Context, code string, cart *domain.Cart, shopperID string) (*domain.PromoResult, error) {
				gotShopper = shopperID
				return &domain.PromoResult{Valid: true, Discount: 490000, Code: code}, nil
			},
		}
		h := NewCartHandler(&mockCartService{}, promos, cookie.NewConfig("", false))

		req := httptest.NewRequest(http.MethodPost, "/api/cart/apply-promo", strings.NewReader(`{"code":"save20"}`))
		rec := httptest.NewRecorder()
		h.ApplyPromo(rec, withShopper(req, guest()))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "", gotShopper)

		var body promoResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.True(t, body.Valid)
		assert.Equal(t, int64(490000), body.Discount)
		assert.NotEmpty(t, body.Message)
	})

	t.Run("rejection is a 200 with reason", func(t *testing.T) {
		promos := &mockPromoService{
			validateFunc: func(ctx context.Context, code string, cart *domain.Cart, shopperID string) (*domain.PromoResult, error) {
				assert.Equal(t, "user-1", shopperID)
				return &domain.PromoResult{Reason: domain.PromoExpired}, nil
			},
		}
		h := NewCartHandler(&mockCartService{}, promos, cookie.NewConfig("", false))

		req := httptest.NewRequest(http.MethodPost, "/api/cart/apply-promo", strings.NewReader(`{"code":"OLD"}`))
		rec := httptest.NewRecorder()
		h.ApplyPromo(rec, withShopper(req, &domain.Shopper{ID: "user-1"}))

		require.Equal(t, http.StatusOK, rec.Code)
		var body promoResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.False(t, body.Valid)
		assert.Equal(t, domain.PromoExpired, body.Reason)
	})
}

func TestCartHandler_Transfer(t *testing.T) {
	t.Run("guest is unauthorized", func(t *testing.T) {
		h := NewCartHandler(&mockCartService{}, nil, cookie.NewConfig("", false))
		rec := httptest.NewRecorder()
		h.Transfer(rec, withShopper(httptest.NewRequest(http.MethodPost, "/api/cart/transfer", nil), guest()))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("signed in with guest cookie merges and clears cookie", func(t *testing.T) {
		var gotGuest, gotUser string
		carts := &mockCartService{
			transferFunc: func(ctx context.Context, guestID, shopperID string) (*domain.Cart, error) {
				gotGuest, gotUser = guestID, shopperID
				return domain.NewCart(shopperID, false, nil), nil
			},
		}
		h := NewCartHandler(carts, nil, cookie.NewConfig("", false))

		shopper := &domain.Shopper{ID: "user-1", GuestID: "guest-9"}
		rec := httptest.NewRecorder()
		h.Transfer(rec, withShopper(httptest.NewRequest(http.MethodPost, "/api/cart/transfer", nil), shopper))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "guest-9", gotGuest)
		assert.Equal(t, "user-1", gotUser)

		var cleared bool
		for _, c := range rec.Result().Cookies() {
			if c.Name == cookie.GuestCookieName && c.MaxAge < 0 {
				cleared = true
			}
		}
		assert.True(t, cleared, "guest cookie should be cleared")
	})

	t.Run("no guest cookie returns current cart", func(t *testing.T) {
		carts := &mockCartService{
			transferFunc: func(ctx context.Context, guestID, shopperID string) (*domain.Cart, error) {
				t.Fatal("transfer should not run without a guest id")
				return nil, nil
			},
		}
		h := NewCartHandler(carts, nil, cookie.NewConfig("", false))
		rec := httptest.NewRecorder()
		h.Transfer(rec, withShopper(httptest.NewRequest(http.MethodPost, "/api/cart/transfer", nil), &domain.Shopper{ID: "user-1"}))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestCheckoutHandler_Init(t *testing.T) {
	newAddress := `"new_address":{"full_name":"Mona Adel","phone":"01001234567","street":"12 Nile St","city":"Maadi","governorate":"Cairo"}`

	t.Run("cash on delivery", func(t *testing.T) {
		checkout := &mockCheckoutService{
			initFunc: func(ctx context.Context, shopper domain.Shopper, req domain.CheckoutRequest) (*domain.CheckoutSession, error) {
				assert.True(t, shopper.IsGuest)
				assert.Equal(t, "Cairo", req.NewAddress.Governorate)
				return &domain.CheckoutSession{
					OrderID:       "order-1",
					OrderNumber:   "DAR-1",
					Total:         2455000,
					Status:        domain.OrderStatusProcessing,
					PaymentMethod: domain.PaymentMethodCOD,
				}, nil
			},
		}
		h := NewCheckoutHandler(checkout)

		body := `{"payment_method":"cod","email":"mona@example.com",` + newAddress + `}`
		rec := httptest.NewRecorder()
		h.Init(rec, withShopper(httptest.NewRequest(http.MethodPost, "/api/checkout/init", strings.NewReader(body)), guest()))

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var session domain.CheckoutSession
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
		assert.Equal(t, domain.OrderStatusProcessing, session.Status)
	})

	t.Run("unknown payment method", func(t *testing.T) {
		h := NewCheckoutHandler(&mockCheckoutService{})
		body := `{"payment_method":"bitcoin",` + newAddress + `}`
		rec := httptest.NewRecorder()
		h.Init(rec, withShopper(httptest.NewRequest(http.MethodPost, "/api/checkout/init", strings.NewReader(body)), guest()))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("both address forms", func(t *testing.T) {
		h := NewCheckoutHandler(&mockCheckoutService{})
		body := `{"payment_method":"card","address_id":"` + testVariantID + `",` + newAddress + `}`
		rec := httptest.NewRecorder()
		h.Init(rec, withShopper(httptest.NewRequest(http.MethodPost, "/api/checkout/init", strings.NewReader(body)), guest()))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty cart", func(t *testing.T) {
		checkout := &mockCheckoutService{
			initFunc: func(ctx context.Context, shopper domain.Shopper, req domain.CheckoutRequest) (*domain.CheckoutSession, error) {
				return nil, &service.EmptyCartError{RemovedItemNames: []string{"Oak Chair"}}
			},
		}
		h := NewCheckoutHandler(checkout)
		body := `{"payment_method":"card",` + newAddress + `}`
		rec := httptest.NewRecorder()
		h.Init(rec, withShopper(httptest.NewRequest(http.MethodPost, "/api/checkout/init", strings.NewReader(body)), guest()))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTrackingHandler(t *testing.T) {
	orders := &mockOrderService{
		byTokenFunc: func(ctx context.Context, token string) (*domain.Order, error) {
			if token != "tok-1" {
				return nil, service.ErrOrderNotFound
			}
			return &domain.Order{ID: "order-1", Status: domain.OrderStatusPaid}, nil
		},
		cancelFunc: func(ctx context.Context, token, reason string) (*domain.Order, error) {
			return nil, service.ErrCannotCancelAtThisStage
		},
	}
	h := NewTrackingHandler(orders)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/track/{token}", h.View)
	mux.HandleFunc("POST /api/track/{token}/cancel", h.Cancel)

	t.Run("view", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/track/tok-1", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Status    domain.OrderStatus `json:"status"`
			CanCancel bool               `json:"can_cancel"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, domain.OrderStatusPaid, body.Status)
		assert.True(t, body.CanCancel)
	})

	t.Run("unknown token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/track/nope", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("cancel too late", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/track/tok-1/cancel", nil))
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}
