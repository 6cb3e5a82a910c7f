package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dukerupert/dar/internal/billing"
	"github.com/dukerupert/dar/internal/cartstore"
	"github.com/dukerupert/dar/internal/domain"
	"github.com/dukerupert/dar/internal/repository"
	"github.com/dukerupert/dar/internal/shipping"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const testHMACSecret = "test_hmac_secret"

// recordingNotifier records notifications and optionally fails them.
type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.NotificationEvent
	err    error
}

func (n *recordingNotifier) Notify(ctx context.Context, event domain.NotificationEvent, order *domain.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

func (n *recordingNotifier) Events() []domain.NotificationEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.NotificationEvent(nil), n.events...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event domain.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Events() []domain.OrderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.OrderEvent(nil), p.events...)
}

type testEnv struct {
	store     *memStore
	guests    *cartstore.RedisStore
	redis     *miniredis.Miniredis
	gateway   *billing.PaymobGateway
	notifier  *recordingNotifier
	publisher *recordingPublisher

	carts    CartService
	promos   PromoService
	orders   OrderService
	checkout CheckoutService
	payments PaymentService
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	env := &testEnv{
		store:     newMemStore(),
		guests:    cartstore.NewRedisStore(client, time.Hour),
		redis:     mr,
		gateway:   newTestPaymob(t),
		notifier:  &recordingNotifier{},
		publisher: &recordingPublisher{},
	}

	logger := testLogger()
	env.carts = NewCartService(env.store, env.guests, logger)
	env.promos = NewPromoService(env.store, logger)
	env.orders = NewOrderService(env.store, env.notifier, env.publisher, logger)
	env.checkout = NewCheckoutService(
		env.store,
		env.carts,
		env.promos,
		shipping.DefaultRateTable(),
		env.gateway,
		env.notifier,
		env.publisher,
		CheckoutConfig{BaseURL: "https://dar.example"},
		logger,
	)
	env.payments = NewPaymentService(env.store, env.carts, env.gateway, env.notifier, env.publisher, logger)
	return env
}

// newTestPaymob points a Paymob gateway at a fake Accept API that hands
// out increasing order ids.
func newTestPaymob(t *testing.T) *billing.PaymobGateway {
	t.Helper()

	var nextOrder atomic.Int64
	nextOrder.Store(556000)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/tokens", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"token": "auth_tok"})
	})
	mux.HandleFunc("POST /api/ecommerce/orders", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": nextOrder.Add(1)})
	})
	mux.HandleFunc("POST /api/acceptance/payment_keys", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"token": "pay_tok"})
	})
	mux.HandleFunc("POST /api/acceptance/payments/pay", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"redirect_url": "https://wallet.example/redirect"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	gw, err := billing.NewPaymobGateway(billing.PaymobConfig{
		APIKey:              "api_key",
		HMACSecret:          testHMACSecret,
		CardIntegrationID:   101,
		WalletIntegrationID: 202,
		IframeID:            77,
		BaseURL:             srv.URL,
	}, srv.Client())
	require.NoError(t, err)
	return gw
}

// paymobCallback builds a signed TRANSACTION callback for a gateway order.
func paymobCallback(t *testing.T, gatewayOrderID string, amount int64, success bool) ([]byte, string) {
	t.Helper()

	orderID, err := strconv.ParseInt(gatewayOrderID, 10, 64)
	require.NoError(t, err)

	tx := billing.PaymobTransaction{
		ID:            9001,
		AmountCents:   amount,
		CreatedAt:     "2026-03-14T09:30:00.000000",
		Currency:      "EGP",
		IntegrationID: 101,
		Owner:         42,
		Success:       success,
	}
	tx.Order.ID = orderID
	tx.SourceData.Pan = "2346"
	tx.SourceData.SubType = "MasterCard"
	tx.SourceData.Type = "card"

	payload, err := json.Marshal(map[string]any{"type": "TRANSACTION", "obj": tx})
	require.NoError(t, err)
	return payload, billing.SignPaymobTransaction(testHMACSecret, tx)
}

// fillCart puts qty units of each variant in the shopper's cart.
func (e *testEnv) fillCart(t *testing.T, shopper domain.Shopper, lines map[string]int) {
	t.Helper()
	for variantID, qty := range lines {
		_, err := e.carts.AddItem(context.Background(), shopper.ID, variantID, qty, shopper.IsGuest)
		require.NoError(t, err)
	}
}

// placeOrder checks out the shopper's cart to a Cairo address.
func (e *testEnv) placeOrder(t *testing.T, shopper domain.Shopper, method domain.PaymentMethod, promo string) *domain.CheckoutSession {
	t.Helper()
	session, err := e.checkout.InitCheckout(context.Background(), shopper, domain.CheckoutRequest{
		AddressID:     e.store.addAddress(shopper.ID, "Cairo"),
		PaymentMethod: method,
		PromoCode:     promo,
		WalletNumber:  "01012345678",
	})
	require.NoError(t, err)
	return session
}

// gatewayOrderID returns the correlation id stored on the order.
func (e *testEnv) gatewayOrderID(t *testing.T, trackingToken string) string {
	t.Helper()
	row, err := e.store.GetOrderByTrackingToken(context.Background(), trackingToken)
	require.NoError(t, err)
	require.True(t, row.GatewayOrderID.Valid, "order has no gateway correlation id")
	return row.GatewayOrderID.String
}

func (e *testEnv) order(t *testing.T, trackingToken string) *domain.Order {
	t.Helper()
	order, err := e.orders.GetOrderByTrackingToken(context.Background(), trackingToken)
	require.NoError(t, err)
	return order
}

func fixedPromo(code string, amount int64) repository.PromoCode {
	return repository.PromoCode{Code: code, DiscountType: "FIXED", DiscountValue: pgtype.Numeric{Int: big.NewInt(amount), Valid: true}}
}

var member = domain.Shopper{ID: "user-1", Email: "mona@example.com"}
