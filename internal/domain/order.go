package domain

import (
	"slices"
	"time"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusPaid       OrderStatus = "PAID"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// orderTransitions lists the statuses reachable from each status.
// DELIVERED and CANCELLED are terminal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusPaid, OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusPaid:       {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped},
	OrderStatusShipped:    {OrderStatusDelivered},
}

var cancellableStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPaid,
}

// ParseOrderStatus validates a status string.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	status := OrderStatus(s)
	switch status {
	case OrderStatusPending, OrderStatusPaid, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return status, true
	}
	return "", false
}

// CanTransitionTo reports whether the state machine allows s -> next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return slices.Contains(orderTransitions[s], next)
}

// IsTerminal reports whether no further transitions are possible.
func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

// IsCancellable reports whether a customer may still cancel.
func (s OrderStatus) IsCancellable() bool {
	return slices.Contains(cancellableStatuses, s)
}

type PaymentMethod string

const (
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodWallet PaymentMethod = "wallet"
	PaymentMethodCOD    PaymentMethod = "cod"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodCard || m == PaymentMethodWallet || m == PaymentMethodCOD
}

// UsesGateway reports whether the method hands off to the payment gateway.
func (m PaymentMethod) UsesGateway() bool {
	return m == PaymentMethodCard || m == PaymentMethodWallet
}

// Actors recorded on status history entries.
const (
	ActorCustomer = "customer"
	ActorGateway  = "gateway"
	ActorAdmin    = "admin"
	ActorSystem   = "system"
)

// Order is the placed-order aggregate. Amounts are minor units and
// Total == Subtotal - Discount + ShippingCost.
type Order struct {
	ID                   string          `json:"id"`
	OrderNumber          string          `json:"order_number"`
	ShopperID            string          `json:"-"`
	IsGuest              bool            `json:"-"`
	Email                string          `json:"-"`
	Status               OrderStatus     `json:"status"`
	Subtotal             int64           `json:"subtotal"`
	Discount             int64           `json:"discount"`
	ShippingCost         int64           `json:"shipping_cost"`
	Total                int64           `json:"total"`
	PromoCodeID          string          `json:"-"`
	PaymentMethod        PaymentMethod   `json:"payment_method"`
	Shipping             ShippingAddress `json:"shipping_address"`
	GatewayOrderID       string          `json:"-"`
	GatewayTransactionID string          `json:"-"`
	IsPaid               bool            `json:"is_paid"`
	PaidAt               *time.Time      `json:"paid_at,omitempty"`
	TrackingToken        string          `json:"tracking_token"`
	CustomerNote         string          `json:"customer_note,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`

	Items   []OrderItem          `json:"items"`
	History []OrderStatusHistory `json:"history"`
}

// OrderItem is a snapshot of a cart line at order creation.
type OrderItem struct {
	ID          string `json:"-"`
	VariantID   string `json:"variant_id"`
	ProductName string `json:"product_name"`
	VariantName string `json:"variant_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	LineTotal   int64  `json:"line_total"`
}

// OrderStatusHistory is one append-only audit entry.
type OrderStatusHistory struct {
	Status    OrderStatus `json:"status"`
	Note      string      `json:"note,omitempty"`
	Actor     string      `json:"actor"`
	CreatedAt time.Time   `json:"created_at"`
}

// OrderTotal computes subtotal - discount + shipping. The discount is
// expected to be already bounded by the subtotal.
func OrderTotal(subtotal, discount, shipping int64) int64 {
	return subtotal - discount + shipping
}

// NotificationEvent names the shopper-facing notifications an order can trigger.
type NotificationEvent string

const (
	NotifyOrderConfirmed NotificationEvent = "order_confirmed"
	NotifyOrderShipped   NotificationEvent = "order_shipped"
	NotifyOrderDelivered NotificationEvent = "order_delivered"
)

// OrderEvent is published after every committed status transition.
type OrderEvent struct {
	Event          string      `json:"event"`
	OrderID        string      `json:"order_id"`
	OrderNumber    string      `json:"order_number"`
	Status         OrderStatus `json:"status"`
	PreviousStatus OrderStatus `json:"previous_status"`
	Actor          string      `json:"actor"`
	Note           string      `json:"note,omitempty"`
	OccurredAt     time.Time   `json:"occurred_at"`
}

const EventOrderStatusChanged = "order.status_changed"
