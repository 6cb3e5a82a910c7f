package domain

// CheckoutRequest is the shopper input for initiating checkout.
// Exactly one of AddressID or NewAddress must be supplied.
type CheckoutRequest struct {
	AddressID     string           `json:"address_id,omitempty" validate:"omitempty,uuid"`
	NewAddress    *NewAddressInput `json:"new_address,omitempty"`
	PaymentMethod PaymentMethod    `json:"payment_method" validate:"required,oneof=card wallet cod"`
	PromoCode     string           `json:"promo_code,omitempty" validate:"max=64"`
	CustomerNote  string           `json:"customer_note,omitempty" validate:"max=1000"`
	WalletNumber  string           `json:"wallet_number,omitempty" validate:"omitempty,numeric,min=10,max=15"`
	Email         string           `json:"email,omitempty" validate:"omitempty,email"`
}

// CheckoutSession is returned to the shopper after checkout is initiated.
// GatewayHandle is the hosted-payment URL for card and wallet payments.
type CheckoutSession struct {
	OrderID       string        `json:"order_id"`
	OrderNumber   string        `json:"order_number"`
	TrackingToken string        `json:"tracking_token"`
	Subtotal      int64         `json:"subtotal"`
	Discount      int64         `json:"discount"`
	ShippingCost  int64         `json:"shipping_cost"`
	Total         int64         `json:"total"`
	Status        OrderStatus   `json:"status"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	GatewayHandle string        `json:"gateway_handle,omitempty"`
}

// PaymentOutcome is the result of processing a gateway callback.
type PaymentOutcome struct {
	Success   bool   `json:"success"`
	OrderID   string `json:"order_id,omitempty"`
	Message   string `json:"message"`
	Duplicate bool   `json:"-"`
}
