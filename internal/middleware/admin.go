package middleware

import (
	"crypto/subtle"
	"net/http"
)

// RequireAdminToken allows requests bearing "Authorization: Bearer <token>".
// An empty configured token locks the admin routes.
func RequireAdminToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			given := bearerToken(r)
			if token == "" || given == "" || subtle.ConstantTimeCompare([]byte(given), []byte(token)) != 1 {
				respondUnauthorized(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(withLogger(r.Context(), GetLogger(r.Context()).With("actor", "admin"))))
		})
	}
}
