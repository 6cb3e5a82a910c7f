package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// TokenLength is the number of random bytes in a tracking token.
const TokenLength = 32

// generateToken returns TokenLength random bytes, hex encoded.
func generateToken() (string, error) {
	b := make([]byte, TokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateTrackingToken returns an unguessable token for anonymous order
// tracking. It is independent of the order number.
func GenerateTrackingToken() (string, error) {
	return generateToken()
}

// NewOrderNumber returns a human-presentable order number. The ULID puts
// the millisecond timestamp first, so numbers sort by creation time, and
// its 80 random bits keep concurrent numbers unique.
func NewOrderNumber(now time.Time) string {
	return "DAR-" + strings.ToUpper(ulid.MustNew(ulid.Timestamp(now), rand.Reader).String())
}
