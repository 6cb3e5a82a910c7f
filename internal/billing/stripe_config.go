package billing

import "fmt"

// StripeConfig contains configuration for the Stripe Checkout gateway.
type StripeConfig struct {
	// APIKey is the Stripe secret key (sk_test_... or sk_live_...)
	APIKey string

	// WebhookSecret is the webhook signing secret (whsec_...)
	WebhookSecret string

	// SuccessURL and CancelURL are where Checkout sends the shopper back.
	// {ORDER_NUMBER} is replaced with the order number.
	SuccessURL string
	CancelURL  string
}

// Validate checks that required configuration is present.
func (c *StripeConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: stripe api key is required", ErrInvalidConfig)
	}
	if c.WebhookSecret == "" {
		return fmt.Errorf("%w: stripe webhook secret is required", ErrInvalidConfig)
	}
	return nil
}

// IsTestMode returns true if using test mode API keys.
func (c *StripeConfig) IsTestMode() bool {
	return len(c.APIKey) > 7 && c.APIKey[:8] == "sk_test_"
}
