package billing

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSignature is returned when callback verification fails.
	ErrInvalidSignature = errors.New("billing: invalid callback signature")

	// ErrMalformedCallback is returned when a verified payload cannot be decoded.
	ErrMalformedCallback = errors.New("billing: malformed callback payload")

	// ErrUnsupportedMethod is returned when the provider cannot take the payment method.
	ErrUnsupportedMethod = errors.New("billing: payment method not supported by provider")

	// ErrInvalidConfig is returned when required provider settings are missing.
	ErrInvalidConfig = errors.New("billing: invalid provider configuration")
)

// GatewayError wraps a failed provider API call with context.
type GatewayError struct {
	Provider   string
	Operation  string
	StatusCode int
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s failed (status %d): %s", e.Provider, e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s failed: %s", e.Provider, e.Operation, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// IsTemporary returns true if the failure is likely transient.
func (e *GatewayError) IsTemporary() bool {
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}
