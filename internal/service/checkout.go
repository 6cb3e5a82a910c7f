package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dukerupert/dar/internal/billing"
	"github.com/dukerupert/dar/internal/domain"
	"github.com/dukerupert/dar/internal/repository"
	"github.com/dukerupert/dar/internal/shipping"
	"github.com/dukerupert/dar/internal/telemetry"
	"github.com/jackc/pgx/v5/pgtype"
)

// CheckoutService turns a validated cart into a PENDING order and starts
// payment for it.
type CheckoutService interface {
	InitCheckout(ctx context.Context, shopper domain.Shopper, req domain.CheckoutRequest) (*domain.CheckoutSession, error)
}

// CheckoutConfig holds the settings checkout needs beyond its collaborators.
type CheckoutConfig struct {
	// BaseURL is the storefront origin used for gateway return URLs.
	BaseURL string

	// Currency is the ISO currency sent to the gateway.
	Currency string
}

type checkoutService struct {
	store    repository.Store
	carts    CartService
	promos   PromoService
	shipping shipping.Provider
	gateway  billing.Gateway
	machine  *stateMachine
	config   CheckoutConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewCheckoutService creates a new CheckoutService instance
func NewCheckoutService(
	store repository.Store,
	carts CartService,
	promos PromoService,
	shippingProvider shipping.Provider,
	gateway billing.Gateway,
	notifier Notifier,
	publisher EventPublisher,
	config CheckoutConfig,
	logger *slog.Logger,
) CheckoutService {
	if config.Currency == "" {
		config.Currency = billing.DefaultCurrency
	}
	return &checkoutService{
		store:    store,
		carts:    carts,
		promos:   promos,
		shipping: shippingProvider,
		gateway:  gateway,
		machine:  newStateMachine(notifier, publisher, logger),
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// pricing is the computed money side of a checkout.
type pricing struct {
	subtotal int64
	discount int64
	shipping int64
	total    int64
	promoID  pgtype.UUID
}

// InitCheckout runs the checkout in order: validate the cart, resolve the
// address, apply the promo, price shipping, start the gateway payment for
// card and wallet, then create the order with its items and first history
// entry in one transaction. Cash on delivery orders move straight to
// PROCESSING in the same transaction.
func (s *checkoutService) InitCheckout(ctx context.Context, shopper domain.Shopper, req domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	method := req.PaymentMethod
	if !method.Valid() {
		return nil, ErrInvalidPaymentMethod
	}
	if method == domain.PaymentMethodWallet && strings.TrimSpace(req.WalletNumber) == "" {
		return nil, ErrWalletNumberRequired
	}

	if telemetry.Business != nil {
		telemetry.Business.CheckoutStarted.WithLabelValues(string(method)).Inc()
	}

	session, err := s.initCheckout(ctx, shopper, req)
	if err != nil {
		if telemetry.Business != nil {
			telemetry.Business.CheckoutFailed.WithLabelValues(string(method), failureReason(err)).Inc()
		}
		return nil, err
	}
	return session, nil
}

func (s *checkoutService) initCheckout(ctx context.Context, shopper domain.Shopper, req domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	// 1. Cart
	// Dropped lines are pruned from the stored cart only once the order
	// exists, so a rejected checkout leaves the cart as it was.
	validation, err := s.carts.CheckCart(ctx, shopper.ID, shopper.IsGuest)
	if err != nil {
		return nil, err
	}
	cart := validation.Cart
	if cart.IsEmpty() {
		return nil, &EmptyCartError{RemovedItemNames: validation.RemovedItemNames}
	}

	// 2. Address
	address, err := s.resolveAddress(ctx, shopper, req)
	if err != nil {
		return nil, err
	}

	// 3. Promo
	price := pricing{subtotal: cart.Subtotal}
	if req.PromoCode != "" {
		promoShopper := shopper.ID
		if shopper.IsGuest {
			promoShopper = ""
		}
		result, err := s.promos.Validate(ctx, req.PromoCode, cart, promoShopper)
		if err != nil {
			return nil, err
		}
		if result.Valid {
			price.discount = result.Discount
			price.promoID, _ = parseUUID(result.PromoID)
		} else {
			s.logger.Info("promo code ignored at checkout",
				"shopper_id", shopper.ID,
				"code", domain.NormalizePromoCode(req.PromoCode),
				"reason", result.Reason,
			)
		}
	}

	// 4. Shipping
	rate, err := s.shipping.GetRate(ctx, shipping.RateParams{
		Governorate: address.Governorate,
		City:        address.City,
		Subtotal:    cart.Subtotal,
		ItemCount:   cart.ItemCount,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to price shipping: %w", err)
	}
	price.shipping = rate.CostCents

	// 5. Total
	price.total = domain.OrderTotal(price.subtotal, price.discount, price.shipping)

	// 6. Identifiers
	now := s.now()
	orderNumber := NewOrderNumber(now)
	trackingToken, err := GenerateTrackingToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate tracking token: %w", err)
	}

	email := req.Email
	if email == "" {
		email = shopper.Email
	}

	// 7. Gateway handle. Requested before the order row exists so a
	// gateway failure leaves nothing behind.
	var handle *billing.PaymentHandle
	if req.PaymentMethod.UsesGateway() {
		handle, err = s.startPayment(ctx, req, orderNumber, email, address.ShippingAddress, cart, price)
		if err != nil {
			return nil, err
		}
	}

	// 8. Order, items and history
	var (
		order       repository.Order
		transitions []*Transition
	)
	err = s.store.ExecTx(ctx, func(q repository.Querier) error {
		if address.create != nil {
			if err := createAddress(ctx, q, shopper.ID, *address.create); err != nil {
				return err
			}
		}

		params := repository.CreateOrderParams{
			OrderNumber:         orderNumber,
			ShopperID:           shopper.ID,
			IsGuest:             shopper.IsGuest,
			Email:               email,
			Status:              string(domain.OrderStatusPending),
			Subtotal:            price.subtotal,
			Discount:            price.discount,
			ShippingCost:        price.shipping,
			Total:               price.total,
			PromoCodeID:         price.promoID,
			PaymentMethod:       string(req.PaymentMethod),
			ShippingFullName:    address.FullName,
			ShippingPhone:       address.Phone,
			ShippingStreet:      address.Street,
			ShippingBuilding:    address.Building,
			ShippingFloor:       address.Floor,
			ShippingApartment:   address.Apartment,
			ShippingCity:        address.City,
			ShippingGovernorate: address.Governorate,
			ShippingLatitude:    float8(address.Latitude),
			ShippingLongitude:   float8(address.Longitude),
			TrackingToken:       trackingToken,
			CustomerNote:        req.CustomerNote,
		}
		if handle != nil {
			params.GatewayOrderID = text(handle.CorrelationID)
		}

		var err error
		order, err = q.CreateOrder(ctx, params)
		if err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		for i, line := range cart.Lines {
			variantID, _ := parseUUID(line.VariantID)
			if _, err := q.CreateOrderItem(ctx, repository.CreateOrderItemParams{
				OrderID:     order.ID,
				VariantID:   variantID,
				ProductName: line.ProductName,
				VariantName: line.VariantName,
				Quantity:    int32(line.Quantity),
				UnitPrice:   line.UnitPrice,
				LineTotal:   line.LineTotal,
				Position:    int32(i),
			}); err != nil {
				return fmt.Errorf("failed to create order item: %w", err)
			}
		}

		if _, err := q.CreateOrderStatusHistory(ctx, repository.CreateOrderStatusHistoryParams{
			OrderID: order.ID,
			Status:  string(domain.OrderStatusPending),
			Note:    "Order placed",
			Actor:   domain.ActorCustomer,
		}); err != nil {
			return fmt.Errorf("failed to create order history: %w", err)
		}

		if req.PaymentMethod == domain.PaymentMethodCOD {
			t, err := s.acceptCashOnDelivery(ctx, q, &order, cart)
			if err != nil {
				return err
			}
			transitions = append(transitions, t)
		}
		return nil
	})
	if err != nil {
		if handle != nil {
			s.logger.Warn("order creation failed after gateway payment was started",
				"error", err,
				"order_number", orderNumber,
				"gateway_order_id", handle.CorrelationID,
			)
		}
		return nil, err
	}

	if req.PaymentMethod == domain.PaymentMethodCOD {
		if err := s.carts.ClearCart(ctx, shopper.ID, shopper.IsGuest); err != nil {
			s.logger.Error("failed to clear cart after cash on delivery order",
				"error", err,
				"order_number", orderNumber,
				"shopper_id", shopper.ID,
			)
		}
	} else if err := s.carts.DropLines(ctx, shopper.ID, shopper.IsGuest, validation.DroppedVariantIDs); err != nil {
		s.logger.Error("failed to drop unavailable cart lines after order creation",
			"error", err,
			"order_number", orderNumber,
			"shopper_id", shopper.ID,
		)
	}
	s.machine.afterCommit(ctx, transitions...)

	if telemetry.Business != nil {
		telemetry.Business.OrdersCreated.WithLabelValues(string(req.PaymentMethod)).Inc()
		telemetry.Business.OrderValue.WithLabelValues(string(req.PaymentMethod)).Observe(float64(price.total) / 100)
		telemetry.Business.OrderItemCount.WithLabelValues(string(req.PaymentMethod)).Observe(float64(cart.ItemCount))
	}

	s.logger.Info("order created",
		"order_id", uuidString(order.ID),
		"order_number", orderNumber,
		"payment_method", req.PaymentMethod,
		"status", order.Status,
		"total", price.total,
	)

	session := &domain.CheckoutSession{
		OrderID:       uuidString(order.ID),
		OrderNumber:   orderNumber,
		TrackingToken: trackingToken,
		Subtotal:      price.subtotal,
		Discount:      price.discount,
		ShippingCost:  price.shipping,
		Total:         price.total,
		Status:        domain.OrderStatus(order.Status),
		PaymentMethod: req.PaymentMethod,
	}
	if handle != nil {
		session.GatewayHandle = handle.RedirectURL
	}
	return session, nil
}

// acceptCashOnDelivery moves a new COD order to PROCESSING. The order is
// committed at this point, so its stock and promo usage are taken now.
func (s *checkoutService) acceptCashOnDelivery(ctx context.Context, q repository.Querier, order *repository.Order, cart *domain.Cart) (*Transition, error) {
	inventory := NewInventoryService(q)
	for _, line := range sortedLines(cart.Lines) {
		if err := inventory.DecrementStock(ctx, line.VariantID, line.Quantity); err != nil {
			return nil, err
		}
	}

	if order.PromoCodeID.Valid {
		if err := q.IncrementPromoUses(ctx, order.PromoCodeID); err != nil {
			return nil, fmt.Errorf("failed to increment promo usage: %w", err)
		}
	}

	return s.machine.transition(ctx, q, order, domain.OrderStatusProcessing, "Cash on delivery accepted", domain.ActorSystem)
}

// resolvedAddress is the shipping snapshot for the order plus, for a new
// address, the input to persist inside the order transaction.
type resolvedAddress struct {
	domain.ShippingAddress
	create *domain.NewAddressInput
}

func (s *checkoutService) resolveAddress(ctx context.Context, shopper domain.Shopper, req domain.CheckoutRequest) (*resolvedAddress, error) {
	if req.AddressID != "" {
		id, ok := parseUUID(req.AddressID)
		if !ok {
			return nil, ErrAddressNotFound
		}
		row, err := s.store.GetShopperAddress(ctx, repository.GetShopperAddressParams{
			ID:        id,
			ShopperID: shopper.ID,
		})
		if err != nil {
			if repository.IsNotFound(err) {
				return nil, ErrAddressNotFound
			}
			return nil, fmt.Errorf("failed to get address: %w", err)
		}
		return &resolvedAddress{ShippingAddress: toShippingAddress(row)}, nil
	}

	if req.NewAddress != nil {
		return &resolvedAddress{ShippingAddress: req.NewAddress.ShippingAddress, create: req.NewAddress}, nil
	}

	return nil, ErrAddressRequired
}

func createAddress(ctx context.Context, q repository.Querier, shopperID string, in domain.NewAddressInput) error {
	if in.IsDefault {
		if err := q.ClearDefaultAddresses(ctx, shopperID); err != nil {
			return fmt.Errorf("failed to clear default addresses: %w", err)
		}
	}

	if _, err := q.CreateAddress(ctx, repository.CreateAddressParams{
		ShopperID:   shopperID,
		FullName:    in.FullName,
		Phone:       in.Phone,
		Street:      in.Street,
		Building:    in.Building,
		Floor:       in.Floor,
		Apartment:   in.Apartment,
		City:        in.City,
		Governorate: in.Governorate,
		Latitude:    float8(in.Latitude),
		Longitude:   float8(in.Longitude),
		IsDefault:   in.IsDefault,
	}); err != nil {
		return fmt.Errorf("failed to create address: %w", err)
	}
	return nil
}

func (s *checkoutService) startPayment(ctx context.Context, req domain.CheckoutRequest, orderNumber, email string, addr domain.ShippingAddress, cart *domain.Cart, price pricing) (*billing.PaymentHandle, error) {
	first, last := splitName(addr.FullName)
	payment := billing.PaymentRequest{
		MerchantOrderID: orderNumber,
		AmountCents:     price.total,
		Currency:        s.config.Currency,
		Billing: billing.BillingData{
			FirstName:   first,
			LastName:    last,
			Email:       email,
			Phone:       addr.Phone,
			Street:      addr.Street,
			Building:    addr.Building,
			Floor:       addr.Floor,
			Apartment:   addr.Apartment,
			City:        addr.City,
			Governorate: addr.Governorate,
			Country:     "EG",
		},
		SuccessURL: s.config.BaseURL + "/orders/{ORDER_NUMBER}/thanks",
		CancelURL:  s.config.BaseURL + "/cart",
	}
	for _, line := range cart.Lines {
		payment.Items = append(payment.Items, billing.LineItem{
			Name:        line.Name(),
			AmountCents: line.UnitPrice,
			Quantity:    line.Quantity,
		})
	}

	start := s.now()
	var (
		handle *billing.PaymentHandle
		err    error
	)
	switch req.PaymentMethod {
	case domain.PaymentMethodCard:
		handle, err = s.gateway.InitiateCardPayment(ctx, payment)
	case domain.PaymentMethodWallet:
		handle, err = s.gateway.InitiateWalletPayment(ctx, payment, strings.TrimSpace(req.WalletNumber))
	}
	if telemetry.Business != nil {
		telemetry.Business.GatewayLatency.WithLabelValues(s.gateway.Name(), string(req.PaymentMethod)).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		s.logger.Error("payment gateway initiation failed",
			"error", err,
			"provider", s.gateway.Name(),
			"payment_method", req.PaymentMethod,
			"order_number", orderNumber,
		)
		return nil, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}
	return handle, nil
}

// sortedLines orders lines by variant id so concurrent transactions lock
// variant rows in the same order.
func sortedLines(lines []domain.CartLine) []domain.CartLine {
	out := slices.Clone(lines)
	slices.SortFunc(out, func(a, b domain.CartLine) int {
		return strings.Compare(a.VariantID, b.VariantID)
	})
	return out
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], parts[0]
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrAddressNotFound), errors.Is(err, ErrAddressRequired):
		return "address"
	case errors.Is(err, ErrPaymentGateway):
		return "gateway"
	case errors.Is(err, ErrInsufficientStock):
		return "stock"
	}
	return "error"
}
