// Package cookie sets and clears the storefront's cookies with consistent
// security attributes.
package cookie

import (
	"net/http"
	"time"
)

// Cookie names used by the storefront.
const (
	// SessionCookieName carries a signed-in shopper's signed session token.
	SessionCookieName = "dar_session"

	// GuestCookieName carries the guest id that keys a guest cart.
	GuestCookieName = "dar_guest"
)

// GuestMaxAge is how long a guest id cookie lives.
const GuestMaxAge = 30 * 24 * time.Hour

// Config holds cookie configuration.
type Config struct {
	// Domain scopes cookies; empty means host-only.
	Domain string

	// Secure determines whether cookies require HTTPS.
	// Should be true in production, false in development.
	Secure bool
}

func NewConfig(domain string, secure bool) *Config {
	return &Config{
		Domain: domain,
		Secure: secure,
	}
}

// Set sets an HttpOnly, SameSite=Lax cookie on "/".
func (c *Config) Set(w http.ResponseWriter, name, value string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Domain:   c.Domain,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear removes a cookie by setting MaxAge to -1. Domain and path must
// match the original cookie.
func (c *Config) Clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Domain:   c.Domain,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Get retrieves a cookie value from the request.
// Returns empty string if cookie not found.
func Get(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
