package email

import (
	"fmt"
	"time"
)

// Template kinds, one per order notification.
const (
	KindOrderConfirmed = "order_confirmed"
	KindOrderShipped   = "order_shipped"
	KindOrderDelivered = "order_delivered"
)

// OrderEmail is the data every order notification template renders.
type OrderEmail struct {
	Kind          string
	Email         string
	CustomerName  string
	OrderNumber   string
	OrderDate     time.Time
	PaymentMethod string
	Items         []OrderItem
	SubtotalCents int64
	DiscountCents int64
	ShippingCents int64
	TotalCents    int64
	ShippingAddr  Address
	TrackingURL   string
}

// Subject returns the subject line for the email's kind.
func (e OrderEmail) Subject() string {
	switch e.Kind {
	case KindOrderShipped:
		return "Your order is on its way - " + e.OrderNumber
	case KindOrderDelivered:
		return "Your order has been delivered - " + e.OrderNumber
	}
	return "Order confirmed - " + e.OrderNumber
}

// TemplateName is the embedded template that renders the body.
func (e OrderEmail) TemplateName() string {
	return e.Kind + ".html"
}

// IsCashOnDelivery drives the payment note in the confirmation template.
func (e OrderEmail) IsCashOnDelivery() bool {
	return e.PaymentMethod == "cod"
}

// OrderItem represents a line item in an order
type OrderItem struct {
	ProductName string
	VariantName string
	Quantity    int
	PriceCents  int64
	TotalCents  int64
}

// Address is the delivery address shown in the email.
type Address struct {
	Name        string
	Phone       string
	Street      string
	Building    string
	Floor       string
	Apartment   string
	City        string
	Governorate string
}

// FormatEGP renders minor units as pounds, e.g. 2445000 -> "EGP 24,450.00".
func FormatEGP(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	pounds := cents / 100
	s := fmt.Sprintf("%d", pounds)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return fmt.Sprintf("%sEGP %s.%02d", sign, s, cents%100)
}
