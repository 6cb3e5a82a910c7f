package service

import (
	"strings"

	"github.com/dukerupert/dar/internal/domain"
)

// Cart and catalog errors
var (
	ErrVariantNotFound   = domain.Errorf(domain.ENOTFOUND, "", "Product variant not found")
	ErrCartItemNotFound  = domain.Errorf(domain.ENOTFOUND, "", "Item is not in the cart")
	ErrInsufficientStock = domain.Errorf(domain.ECONFLICT, "", "Insufficient stock for one or more items")
	ErrInvalidQuantity   = domain.Errorf(domain.EINVALID, "", "Quantity must be greater than 0")
	ErrEmptyCart         = domain.Errorf(domain.EINVALID, "", "Cart is empty")
)

// Checkout errors
var (
	ErrAddressNotFound      = domain.Errorf(domain.ENOTFOUND, "", "Address not found")
	ErrAddressRequired      = domain.Errorf(domain.EINVALID, "", "A shipping address is required")
	ErrWalletNumberRequired = domain.Errorf(domain.EINVALID, "", "A wallet number is required for wallet payments")
	ErrInvalidPaymentMethod = domain.Errorf(domain.EINVALID, "", "Unsupported payment method")
	ErrPaymentGateway       = domain.Errorf(domain.EPAYMENT, "", "The payment gateway could not start the payment")
)

// Order and payment errors
var (
	ErrOrderNotFound           = domain.Errorf(domain.ENOTFOUND, "", "Order not found")
	ErrInvalidSignature        = domain.Errorf(domain.EUNAUTHORIZED, "", "Invalid callback signature")
	ErrMalformedCallback       = domain.Errorf(domain.EINVALID, "", "Malformed payment callback")
	ErrInvalidTransition       = domain.Errorf(domain.ECONFLICT, "", "Order status change not allowed")
	ErrCannotCancelAtThisStage = domain.Errorf(domain.ECONFLICT, "", "Order can no longer be cancelled")
)

// EmptyCartError is returned by checkout when validation leaves no lines.
// It matches ErrEmptyCart and lists the lines that validation dropped.
type EmptyCartError struct {
	RemovedItemNames []string
}

func (e *EmptyCartError) Error() string {
	if len(e.RemovedItemNames) == 0 {
		return "cart is empty"
	}
	return "cart is empty after removing: " + strings.Join(e.RemovedItemNames, ", ")
}

func (e *EmptyCartError) Unwrap() error {
	return ErrEmptyCart
}
