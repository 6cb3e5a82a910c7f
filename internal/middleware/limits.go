package middleware

import (
	"net/http"
)

// Common size limits
const (
	KB = 1024
	MB = 1024 * KB

	// DefaultMaxBodySize covers every JSON request body the API accepts.
	DefaultMaxBodySize = 64 * KB

	// CallbackMaxBodySize is for gateway callbacks, which carry the full
	// transaction object.
	CallbackMaxBodySize = 1 * MB
)

// MaxBodySize limits the size of request bodies.
// If no size is provided, DefaultMaxBodySize is used.
// A body larger than the limit is rejected with 413 Request Entity Too Large.
func MaxBodySize(maxBytes ...int64) func(http.Handler) http.Handler {
	limit := int64(DefaultMaxBodySize)
	if len(maxBytes) > 0 {
		limit = maxBytes[0]
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
				return
			}

			// Bodies without a Content-Length are cut off while being read
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
