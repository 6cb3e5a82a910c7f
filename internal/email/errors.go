package email

import "fmt"

// These constants mirror domain error codes to avoid circular imports.
const (
	codeInternal = "internal"
	codeNotFound = "not_found"
	codeInvalid  = "invalid"
)

// EmailError is an email-specific error with a code and message.
type EmailError struct {
	Code    string
	Message string
}

func (e *EmailError) Error() string {
	return e.Message
}

// ErrorCode returns the error code for HTTP status mapping.
func (e *EmailError) ErrorCode() string {
	return e.Code
}

// ErrorMessage returns the user-facing message.
func (e *EmailError) ErrorMessage() string {
	return e.Message
}

func newEmailError(code, message string) *EmailError {
	return &EmailError{Code: code, Message: message}
}

var (
	ErrInvalidFromAddress = newEmailError(codeInvalid, "Invalid from email address")
	ErrInvalidToAddress   = newEmailError(codeInvalid, "Invalid to email address")
	ErrNoRecipient        = newEmailError(codeInvalid, "Email has no recipient")
	ErrSendFailed         = newEmailError(codeInternal, "Email could not be delivered")
)

// ErrTemplateNotFound creates a template not found error.
func ErrTemplateNotFound(templateName string) error {
	return &EmailError{
		Code:    codeNotFound,
		Message: fmt.Sprintf("Email template %s not found", templateName),
	}
}
