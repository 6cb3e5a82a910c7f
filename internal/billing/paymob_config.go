package billing

import (
	"fmt"
	"time"
)

const (
	DefaultPaymobBaseURL = "https://accept.paymob.com"
	DefaultCurrency      = "EGP"
)

// PaymobConfig contains the settings for the Paymob Accept gateway.
type PaymobConfig struct {
	// APIKey authenticates against the Accept API.
	APIKey string

	// HMACSecret signs transaction callbacks.
	HMACSecret string

	CardIntegrationID   int
	WalletIntegrationID int

	// IframeID selects the hosted card form.
	IframeID int

	BaseURL  string
	Currency string
	Timeout  time.Duration
}

// Validate checks that all required configuration is present.
func (c PaymobConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: paymob api key is required", ErrInvalidConfig)
	}
	if c.HMACSecret == "" {
		return fmt.Errorf("%w: paymob hmac secret is required", ErrInvalidConfig)
	}
	if c.CardIntegrationID == 0 {
		return fmt.Errorf("%w: paymob card integration id is required", ErrInvalidConfig)
	}
	if c.IframeID == 0 {
		return fmt.Errorf("%w: paymob iframe id is required", ErrInvalidConfig)
	}
	return nil
}

func (c PaymobConfig) withDefaults() PaymobConfig {
	if c.BaseURL == "" {
		c.BaseURL = DefaultPaymobBaseURL
	}
	if c.Currency == "" {
		c.Currency = DefaultCurrency
	}
	if c.Timeout == 0 {
		c.Timeout = 15 * time.Second
	}
	return c
}
