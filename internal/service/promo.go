package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/dar/internal/domain"
	"github.com/dukerupert/dar/internal/repository"
	"github.com/dukerupert/dar/internal/telemetry"
	"github.com/shopspring/decimal"
)

// PromoService evaluates promo codes against a cart. It never changes
// usage counters; usage is counted when an order is paid.
type PromoService interface {
	// Validate runs the promo checks in order and returns the first
	// rejection, or the discount the code grants. shopperID is empty for
	// guests, which skips the per-shopper limit. A rejection is a result,
	// not an error; errors are reserved for storage failures.
	Validate(ctx context.Context, code string, cart *domain.Cart, shopperID string) (*domain.PromoResult, error)
}

type promoService struct {
	repo   repository.Querier
	logger *slog.Logger
	now    func() time.Time
}

func NewPromoService(repo repository.Querier, logger *slog.Logger) PromoService {
	return &promoService{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

func (s *promoService) Validate(ctx context.Context, code string, cart *domain.Cart, shopperID string) (*domain.PromoResult, error) {
	result, err := s.evaluate(ctx, code, cart, shopperID)
	if err != nil {
		return nil, err
	}

	if telemetry.Business != nil {
		label := "applied"
		if !result.Valid {
			label = string(result.Reason)
		}
		telemetry.Business.PromoEvaluations.WithLabelValues(label).Inc()
	}
	return result, nil
}

func (s *promoService) evaluate(ctx context.Context, code string, cart *domain.Cart, shopperID string) (*domain.PromoResult, error) {
	normalized := domain.NormalizePromoCode(code)
	if normalized == "" {
		return domain.Rejected(domain.PromoInvalidCode), nil
	}

	row, err := s.repo.GetPromoCodeByCode(ctx, normalized)
	if err != nil {
		if repository.IsNotFound(err) {
			return domain.Rejected(domain.PromoInvalidCode), nil
		}
		return nil, fmt.Errorf("failed to get promo code: %w", err)
	}
	promo := toDomainPromo(row)

	if !promo.IsActive {
		return domain.Rejected(domain.PromoInactive), nil
	}

	now := s.now()
	if promo.StartsAt != nil && now.Before(*promo.StartsAt) {
		return domain.Rejected(domain.PromoNotYetActive), nil
	}
	if promo.ExpiresAt != nil && now.After(*promo.ExpiresAt) {
		return domain.Rejected(domain.PromoExpired), nil
	}

	if promo.MaxUses != nil && promo.CurrentUses >= *promo.MaxUses {
		return domain.Rejected(domain.PromoUsageLimitReached), nil
	}

	if promo.MaxUsesPerUser != nil && shopperID != "" {
		used, err := s.repo.CountShopperPromoUses(ctx, repository.CountShopperPromoUsesParams{
			ShopperID:   shopperID,
			PromoCodeID: row.ID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to count promo uses: %w", err)
		}
		if used >= int64(*promo.MaxUsesPerUser) {
			return domain.Rejected(domain.PromoAlreadyUsedByShopper), nil
		}
	}

	var subtotal int64
	var lines []domain.CartLine
	if cart != nil {
		subtotal = cart.Subtotal
		lines = cart.Lines
	}

	if promo.MinCartValue != nil && subtotal < *promo.MinCartValue {
		return domain.Rejected(domain.PromoBelowMinimum), nil
	}

	if hasExclusions(promo) && allExcluded(promo, lines) {
		return domain.Rejected(domain.PromoNotApplicableToCart), nil
	}

	return &domain.PromoResult{
		Valid:    true,
		Discount: ComputeDiscount(promo, subtotal),
		PromoID:  promo.ID,
		Code:     promo.Code,
	}, nil
}

// ComputeDiscount returns the discount a promo grants on subtotal. PERCENT
// discounts round half up to a whole minor unit and respect the cap. The
// result never exceeds the subtotal.
func ComputeDiscount(promo domain.PromoCode, subtotal int64) int64 {
	var discount int64
	switch promo.DiscountType {
	case domain.DiscountPercent:
		discount = decimal.NewFromInt(subtotal).
			Mul(promo.Value).
			Div(decimal.NewFromInt(100)).
			Round(0).
			IntPart()
		if promo.MaxDiscountAmount != nil && discount > *promo.MaxDiscountAmount {
			discount = *promo.MaxDiscountAmount
		}
	case domain.DiscountFixed:
		discount = promo.Value.Round(0).IntPart()
	}

	discount = min(discount, subtotal)
	return max(discount, 0)
}

func hasExclusions(promo domain.PromoCode) bool {
	return len(promo.ExcludedCategoryIDs) > 0 || len(promo.ExcludedProductIDs) > 0
}

func allExcluded(promo domain.PromoCode, lines []domain.CartLine) bool {
	for _, line := range lines {
		if !promo.Excludes(line) {
			return false
		}
	}
	return true
}
