package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercent DiscountType = "PERCENT"
	DiscountFixed   DiscountType = "FIXED"
)

// PromoCode is an admin-defined discount rule. For PERCENT codes Value is
// a percentage and may be fractional (12.5 means 12.5%); for FIXED codes it
// is an amount in minor units.
type PromoCode struct {
	ID                  string
	Code                string
	DiscountType        DiscountType
	Value               decimal.Decimal
	MinCartValue        *int64
	MaxDiscountAmount   *int64
	MaxUses             *int
	MaxUsesPerUser      *int
	ExcludedCategoryIDs []string
	ExcludedProductIDs  []string
	StartsAt            *time.Time
	ExpiresAt           *time.Time
	IsActive            bool
	CurrentUses         int
}

// Excludes reports whether a cart line falls inside the code's excluded
// categories or products.
func (p PromoCode) Excludes(line CartLine) bool {
	for _, id := range p.ExcludedProductIDs {
		if id == line.ProductID {
			return true
		}
	}
	for _, id := range p.ExcludedCategoryIDs {
		if id != "" && id == line.CategoryID {
			return true
		}
	}
	return false
}

// NormalizePromoCode canonicalises user input for case-insensitive lookup.
func NormalizePromoCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// PromoReason explains why a promo code was rejected.
type PromoReason string

const (
	PromoInvalidCode          PromoReason = "INVALID_CODE"
	PromoInactive             PromoReason = "INACTIVE"
	PromoExpired              PromoReason = "EXPIRED"
	PromoNotYetActive         PromoReason = "NOT_YET_ACTIVE"
	PromoUsageLimitReached    PromoReason = "USAGE_LIMIT_REACHED"
	PromoAlreadyUsedByShopper PromoReason = "ALREADY_USED_BY_SHOPPER"
	PromoBelowMinimum         PromoReason = "BELOW_MINIMUM"
	PromoNotApplicableToCart  PromoReason = "NOT_APPLICABLE_TO_CART_CONTENTS"
)

var promoReasonMessages = map[PromoReason]string{
	PromoInvalidCode:          "This promo code does not exist",
	PromoInactive:             "This promo code is no longer active",
	PromoExpired:              "This promo code has expired",
	PromoNotYetActive:         "This promo code is not active yet",
	PromoUsageLimitReached:    "This promo code has reached its usage limit",
	PromoAlreadyUsedByShopper: "You have already used this promo code",
	PromoBelowMinimum:         "Your cart does not meet the minimum value for this promo code",
	PromoNotApplicableToCart:  "This promo code does not apply to the items in your cart",
}

// Message returns the shopper-facing explanation for the reason.
func (r PromoReason) Message() string {
	if msg, ok := promoReasonMessages[r]; ok {
		return msg
	}
	return string(r)
}

// PromoResult is the decision of the promo evaluator.
type PromoResult struct {
	Valid    bool        `json:"valid"`
	Discount int64       `json:"discount"`
	PromoID  string      `json:"-"`
	Code     string      `json:"code,omitempty"`
	Reason   PromoReason `json:"reason,omitempty"`
}

// Message returns the shopper-facing summary of the result.
func (r PromoResult) Message() string {
	if r.Valid {
		return "Promo code applied"
	}
	return r.Reason.Message()
}

// Rejected builds a failed result for reason.
func Rejected(reason PromoReason) *PromoResult {
	return &PromoResult{Valid: false, Reason: reason}
}
