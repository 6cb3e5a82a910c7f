package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

const (
	// ClientIPContextKey is the context key for storing the client IP address
	ClientIPContextKey contextKey = "client_ip"
)

// WithClientIP stores the client address in the context. Proxy headers
// are only honoured when trustProxy is set; behind a reverse proxy they
// are the only way to see the shopper's address, anywhere else they can
// be spoofed.
func WithClientIP(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := remoteIP(r)
			if trustProxy {
				clientIP = GetClientIP(r)
			}

			ctx := context.WithValue(r.Context(), ClientIPContextKey, clientIP)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClientIPFromContext retrieves the client IP address from the context.
// Returns an empty string if not found (middleware not applied).
func GetClientIPFromContext(ctx context.Context) string {
	if ip, ok := ctx.Value(ClientIPContextKey).(string); ok {
		return ip
	}
	return ""
}

// GetClientIP extracts the client IP from the request.
// It checks X-Forwarded-For and X-Real-IP headers first (for proxied requests)
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	return remoteIP(r)
}

func remoteIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// clientKey is the rate limiter key: the address stored by WithClientIP,
// or the connection address when that middleware is not installed.
func clientKey(r *http.Request) string {
	if ip := GetClientIPFromContext(r.Context()); ip != "" {
		return ip
	}
	return remoteIP(r)
}
