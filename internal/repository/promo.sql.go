package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const getPromoCodeByCode = `-- name: GetPromoCodeByCode :one
SELECT id, code, discount_type, discount_value, min_cart_value, max_discount_amount,
    max_uses, max_uses_per_user, excluded_category_ids, excluded_product_ids,
    starts_at, expires_at, is_active, current_uses, created_at
FROM promo_codes
WHERE upper(code) = upper($1)
`

func (q *Queries) GetPromoCodeByCode(ctx context.Context, code string) (PromoCode, error) {
	row := q.db.QueryRow(ctx, getPromoCodeByCode, code)
	var i PromoCode
	err := row.Scan(
		&i.ID,
		&i.Code,
		&i.DiscountType,
		&i.DiscountValue,
		&i.MinCartValue,
		&i.MaxDiscountAmount,
		&i.MaxUses,
		&i.MaxUsesPerUser,
		&i.ExcludedCategoryIds,
		&i.ExcludedProductIds,
		&i.StartsAt,
		&i.ExpiresAt,
		&i.IsActive,
		&i.CurrentUses,
		&i.CreatedAt,
	)
	return i, err
}

const countShopperPromoUses = `-- name: CountShopperPromoUses :one
SELECT count(*)
FROM orders
WHERE shopper_id = $1 AND promo_code_id = $2 AND status <> 'CANCELLED'
`

type CountShopperPromoUsesParams struct {
	ShopperID   string
	PromoCodeID pgtype.UUID
}

func (q *Queries) CountShopperPromoUses(ctx context.Context, arg CountShopperPromoUsesParams) (int64, error) {
	row := q.db.QueryRow(ctx, countShopperPromoUses, arg.ShopperID, arg.PromoCodeID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const incrementPromoUses = `-- name: IncrementPromoUses :exec
UPDATE promo_codes SET current_uses = current_uses + 1 WHERE id = $1
`

func (q *Queries) IncrementPromoUses(ctx context.Context, id pgtype.UUID) error {
	_, err := q.db.Exec(ctx, incrementPromoUses, id)
	return err
}
