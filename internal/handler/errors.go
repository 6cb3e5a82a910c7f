// Package handler holds the JSON response helpers shared by the
// storefront, webhook and admin handlers.
package handler

import (
	"errors"
	"net/http"

	"github.com/dukerupert/dar/internal/domain"
	"github.com/dukerupert/dar/internal/middleware"
	"github.com/dukerupert/dar/internal/telemetry"
)

// codedError is satisfied by package-local error types that carry a
// domain error code without being a *domain.Error.
type codedError interface {
	ErrorCode() string
	ErrorMessage() string
}

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ErrorResponse writes err as a JSON error envelope with the status that
// matches its code. Internal errors are logged, reported to Sentry and
// answered with a generic message.
func ErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	code, message := classify(err)

	if code == domain.EINTERNAL {
		middleware.GetLogger(r.Context()).Error("request failed",
			"error", err,
			"op", domain.ErrorOp(err),
			"path", r.URL.Path,
		)
		telemetry.CaptureErrorFromContext(r.Context(), err, map[string]any{
			"path":   r.URL.Path,
			"method": r.Method,
		})
	}

	JSON(w, ErrorCodeToHTTPStatus(code), map[string]errorBody{
		"error": {
			Code:    code,
			Message: message,
			Fields:  domain.GetValidationFields(err),
		},
	})
}

func classify(err error) (string, string) {
	var de *domain.Error
	if errors.As(err, &de) || domain.IsValidationError(err) {
		return domain.ErrorCode(err), domain.ErrorMessage(err)
	}

	var ce codedError
	if errors.As(err, &ce) {
		if ce.ErrorCode() == domain.EINTERNAL {
			return domain.EINTERNAL, domain.ErrorMessage(err)
		}
		return ce.ErrorCode(), ce.ErrorMessage()
	}

	return domain.EINTERNAL, domain.ErrorMessage(err)
}

// ErrorCodeToHTTPStatus maps a domain error code to its HTTP status.
func ErrorCodeToHTTPStatus(code string) int {
	return middleware.ErrorCodeToHTTPStatus(code)
}
