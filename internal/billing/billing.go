// Package billing bridges checkout to external payment gateways. A Gateway
// hands out hosted-payment handles for card and wallet payments and
// verifies the callbacks the provider sends when a payment settles.
package billing

import (
	"context"
	"net/http"
)

// Gateway defines the contract every payment provider must satisfy.
type Gateway interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// InitiateCardPayment registers the payment with the provider and
	// returns a hosted card-payment handle.
	InitiateCardPayment(ctx context.Context, req PaymentRequest) (*PaymentHandle, error)

	// InitiateWalletPayment starts a mobile wallet payment for walletNumber.
	// Providers without wallet support return ErrUnsupportedMethod.
	InitiateWalletPayment(ctx context.Context, req PaymentRequest, walletNumber string) (*PaymentHandle, error)

	// Signature extracts the provider's callback signature from the request.
	Signature(r *http.Request) string

	// VerifyCallback checks the callback signature. It must be called before
	// any field of the payload is trusted.
	VerifyCallback(payload []byte, signature string) error

	// ParseCallback decodes a verified callback into a CallbackEvent.
	ParseCallback(payload []byte) (*CallbackEvent, error)
}

// PaymentRequest describes the order being paid for.
type PaymentRequest struct {
	// MerchantOrderID is our order number, echoed back by the provider.
	MerchantOrderID string
	AmountCents     int64
	Currency        string
	Billing         BillingData
	Items           []LineItem

	// SuccessURL and CancelURL are used by redirect-based providers.
	SuccessURL string
	CancelURL  string
}

// BillingData is the payer's contact and address details.
type BillingData struct {
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	Street      string
	Building    string
	Floor       string
	Apartment   string
	City        string
	Governorate string
	Country     string
}

type LineItem struct {
	Name        string
	AmountCents int64
	Quantity    int
}

// PaymentHandle is what the shopper is redirected to. CorrelationID is the
// provider's identifier for the payment session and is stored on the order
// to match inbound callbacks.
type PaymentHandle struct {
	CorrelationID string
	RedirectURL   string
}

// CallbackEvent is the provider-neutral view of a payment callback.
type CallbackEvent struct {
	CorrelationID string
	TransactionID string
	Success       bool
	AmountCents   int64
	Message       string

	// Ignored is set for callbacks that carry no payment outcome
	// (pending transactions, unrelated event types).
	Ignored bool
}
