package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dukerupert/dar/internal/cookie"
	"github.com/dukerupert/dar/internal/domain"
	"github.com/dukerupert/dar/internal/telemetry"
)

// SignSessionToken returns "<userID>.<hex hmac-sha256(userID)>". The
// account service that signs shoppers in issues these tokens.
func SignSessionToken(secret, userID string) string {
	return userID + "." + sessionMAC(secret, userID)
}

// VerifySessionToken returns the user id carried by a valid token.
func VerifySessionToken(secret, token string) (string, bool) {
	userID, mac, ok := strings.Cut(token, ".")
	if !ok || userID == "" || mac == "" {
		return "", false
	}
	if !hmac.Equal([]byte(mac), []byte(sessionMAC(secret, userID))) {
		return "", false
	}
	return userID, true
}

func sessionMAC(secret, userID string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(userID))
	return hex.EncodeToString(h.Sum(nil))
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// ResolveShopper puts a domain.Shopper in the request context.
//
// A bearer token or dar_session cookie identifies a signed-in shopper; a
// bad bearer token is rejected, a bad cookie is cleared and the request
// continues as a guest. Guests are keyed by the dar_guest cookie, which
// is issued on first visit.
func ResolveShopper(secret string, cookies *cookie.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			guestID := cookie.Get(r, cookie.GuestCookieName)
			if _, err := uuid.Parse(guestID); err != nil {
				guestID = ""
			}

			var shopper *domain.Shopper
			if token := bearerToken(r); token != "" {
				userID, ok := VerifySessionToken(secret, token)
				if !ok {
					respondUnauthorized(w, r)
					return
				}
				shopper = &domain.Shopper{ID: userID, GuestID: guestID}
			} else if token := cookie.Get(r, cookie.SessionCookieName); token != "" {
				if userID, ok := VerifySessionToken(secret, token); ok {
					shopper = &domain.Shopper{ID: userID, GuestID: guestID}
				} else {
					cookies.Clear(w, cookie.SessionCookieName)
				}
			}

			if shopper == nil {
				if guestID == "" {
					guestID = uuid.New().String()
					cookies.Set(w, cookie.GuestCookieName, guestID, cookie.GuestMaxAge)
				}
				shopper = &domain.Shopper{ID: guestID, IsGuest: true}
			}

			telemetry.SetShopper(r.Context(), shopper.ID, shopper.IsGuest)

			logger := GetLogger(r.Context()).With("shopper_id", shopper.ID, "guest", shopper.IsGuest)
			ctx := domain.NewContextWithShopper(withLogger(r.Context(), logger), shopper)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
