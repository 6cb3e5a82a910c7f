package shipping

// These constants mirror domain error codes to avoid circular imports.
// The handler layer maps these to HTTP status codes.
const (
	codeInternal = "internal"
	codeInvalid  = "invalid"
)

// ShippingError represents a shipping-specific error with a code and message.
type ShippingError struct {
	Code    string
	Message string
}

func (e *ShippingError) Error() string {
	return e.Message
}

// ErrorCode returns the error code for HTTP status mapping.
func (e *ShippingError) ErrorCode() string {
	return e.Code
}

// ErrorMessage returns the user-facing message.
func (e *ShippingError) ErrorMessage() string {
	return e.Message
}

func newShippingError(code, message string) *ShippingError {
	return &ShippingError{Code: code, Message: message}
}

var (
	// ErrGovernorateRequired is returned when the destination has no governorate.
	ErrGovernorateRequired = newShippingError(codeInvalid, "Governorate is required")

	// ErrInvalidRateTable is returned when a rate file cannot be used.
	ErrInvalidRateTable = newShippingError(codeInternal, "Shipping rate table is invalid")
)
