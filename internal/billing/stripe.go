package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v83"
	checkoutsession "github.com/stripe/stripe-go/v83/checkout/session"
	"github.com/stripe/stripe-go/v83/webhook"
)

const providerStripe = "stripe"

// StripeGateway implements Gateway with Stripe Checkout. It supports card
// payments only; the Checkout Session id is the correlation id.
type StripeGateway struct {
	cfg StripeConfig
}

func NewStripeGateway(cfg StripeConfig) (*StripeGateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	stripe.Key = cfg.APIKey
	return &StripeGateway{cfg: cfg}, nil
}

func (g *StripeGateway) Name() string { return providerStripe }

func (g *StripeGateway) InitiateCardPayment(ctx context.Context, req PaymentRequest) (*PaymentHandle, error) {
	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = strings.ToLower(DefaultCurrency)
	}

	successURL := req.SuccessURL
	if successURL == "" {
		successURL = g.cfg.SuccessURL
	}
	cancelURL := req.CancelURL
	if cancelURL == "" {
		cancelURL = g.cfg.CancelURL
	}

	// The order total already includes discount and shipping, so it is
	// charged as a single line.
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(req.MerchantOrderID),
		SuccessURL:        stripe.String(strings.ReplaceAll(successURL, "{ORDER_NUMBER}", req.MerchantOrderID)),
		CancelURL:         stripe.String(strings.ReplaceAll(cancelURL, "{ORDER_NUMBER}", req.MerchantOrderID)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(currency),
					UnitAmount: stripe.Int64(req.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Order " + req.MerchantOrderID),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			"order_number": req.MerchantOrderID,
		},
	}
	if req.Billing.Email != "" {
		params.CustomerEmail = stripe.String(req.Billing.Email)
	}

	session, err := checkoutsession.New(params)
	if err != nil {
		ge := &GatewayError{Provider: providerStripe, Operation: "create checkout session", Message: err.Error(), Err: err}
		if se, ok := err.(*stripe.Error); ok {
			ge.StatusCode = se.HTTPStatusCode
			ge.Message = se.Msg
		}
		return nil, ge
	}

	return &PaymentHandle{CorrelationID: session.ID, RedirectURL: session.URL}, nil
}

func (g *StripeGateway) InitiateWalletPayment(ctx context.Context, req PaymentRequest, walletNumber string) (*PaymentHandle, error) {
	return nil, ErrUnsupportedMethod
}

func (g *StripeGateway) Signature(r *http.Request) string {
	return r.Header.Get("Stripe-Signature")
}

func (g *StripeGateway) VerifyCallback(payload []byte, signature string) error {
	if signature == "" {
		return ErrInvalidSignature
	}
	if err := webhook.ValidatePayload(payload, signature, g.cfg.WebhookSecret); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}

func (g *StripeGateway) ParseCallback(payload []byte) (*CallbackEvent, error) {
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}

	var success bool
	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		success = true
	case "checkout.session.async_payment_failed", "checkout.session.expired":
		success = false
	default:
		return &CallbackEvent{Ignored: true}, nil
	}

	if event.Data == nil {
		return nil, fmt.Errorf("%w: missing event data", ErrMalformedCallback)
	}
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}

	cb := &CallbackEvent{
		CorrelationID: session.ID,
		Success:       success,
		AmountCents:   session.AmountTotal,
		Message:       string(event.Type),
	}
	if session.PaymentIntent != nil {
		cb.TransactionID = session.PaymentIntent.ID
	}

	// Completed sessions for delayed methods report unpaid until the
	// async_payment_succeeded event arrives.
	if event.Type == "checkout.session.completed" && session.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		cb.Ignored = true
	}
	return cb, nil
}
