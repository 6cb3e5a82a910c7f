package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/dar/internal/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("failed to encode response", "error", err)
	}
}

// DecodeJSON decodes the request body into dst and validates it against
// its struct tags. An empty body decodes to the zero value when
// allowEmpty is set.
func DecodeJSON(r *http.Request, dst any, allowEmpty bool) error {
	const op = "handler.decode"

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			if !allowEmpty {
				return domain.Invalid(op, "Request body is required")
			}
		case errors.As(err, &maxErr):
			return domain.Invalid(op, "Request body is too large")
		default:
			return domain.Invalid(op, "Request body is not valid JSON")
		}
	}

	return Validate(dst)
}

// Validate runs struct tag validation and converts failures into a
// domain.ValidationError keyed by JSON field name.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.Invalid("handler.validate", "Request body is invalid")
	}

	var out error
	for _, fe := range verrs {
		out = domain.AddFieldError(out, fieldPath(fe), fieldMessage(fe))
	}
	return out
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "email":
		return "must be a valid email address"
	case "uuid":
		return "must be a valid id"
	case "numeric":
		return "must contain only digits"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
