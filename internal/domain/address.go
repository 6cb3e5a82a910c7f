package domain

import "time"

// ShippingAddress is the delivery address payload. Orders keep their own
// copy so later edits to a saved address never change a placed order.
type ShippingAddress struct {
	FullName    string   `json:"full_name" validate:"required,max=120"`
	Phone       string   `json:"phone" validate:"required,min=6,max=20"`
	Street      string   `json:"street" validate:"required,max=200"`
	Building    string   `json:"building,omitempty" validate:"max=50"`
	Floor       string   `json:"floor,omitempty" validate:"max=20"`
	Apartment   string   `json:"apartment,omitempty" validate:"max=20"`
	City        string   `json:"city" validate:"required,max=80"`
	Governorate string   `json:"governorate" validate:"required,max=80"`
	Latitude    *float64 `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude   *float64 `json:"longitude,omitempty" validate:"omitempty,longitude"`
}

// Address is a saved address belonging to a shopper.
type Address struct {
	ID        string
	ShopperID string
	ShippingAddress
	IsDefault bool
	CreatedAt time.Time
}

// NewAddressInput is an address created on demand during checkout.
type NewAddressInput struct {
	ShippingAddress
	IsDefault bool `json:"is_default"`
}
