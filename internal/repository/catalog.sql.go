package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const variantColumns = `
    v.id, v.product_id, p.category_id, p.name, v.name, v.sku,
    p.base_price, v.price_adjustment, v.stock, (v.is_active AND p.is_active)
`

const getVariant = `-- name: GetVariant :one
SELECT` + variantColumns + `
FROM product_variants v
JOIN products p ON p.id = v.product_id
WHERE v.id = $1
`

func (q *Queries) GetVariant(ctx context.Context, id pgtype.UUID) (Variant, error) {
	row := q.db.QueryRow(ctx, getVariant, id)
	var i Variant
	err := row.Scan(
		&i.ID,
		&i.ProductID,
		&i.CategoryID,
		&i.ProductName,
		&i.VariantName,
		&i.Sku,
		&i.BasePrice,
		&i.PriceAdjustment,
		&i.Stock,
		&i.IsActive,
	)
	return i, err
}

const listVariantsByIDs = `-- name: ListVariantsByIDs :many
SELECT` + variantColumns + `
FROM product_variants v
JOIN products p ON p.id = v.product_id
WHERE v.id = ANY($1::uuid[])
`

func (q *Queries) ListVariantsByIDs(ctx context.Context, ids []pgtype.UUID) ([]Variant, error) {
	rows, err := q.db.Query(ctx, listVariantsByIDs, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Variant
	for rows.Next() {
		var i Variant
		if err := rows.Scan(
			&i.ID,
			&i.ProductID,
			&i.CategoryID,
			&i.ProductName,
			&i.VariantName,
			&i.Sku,
			&i.BasePrice,
			&i.PriceAdjustment,
			&i.Stock,
			&i.IsActive,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getVariantStock = `-- name: GetVariantStock :one
SELECT stock FROM product_variants WHERE id = $1
FOR UPDATE
`

// GetVariantStock locks the variant row so a following decrement in the
// same transaction sees the stock it checked.
func (q *Queries) GetVariantStock(ctx context.Context, id pgtype.UUID) (int32, error) {
	row := q.db.QueryRow(ctx, getVariantStock, id)
	var stock int32
	err := row.Scan(&stock)
	return stock, err
}

const decrementVariantStock = `-- name: DecrementVariantStock :execrows
UPDATE product_variants
SET stock = stock - $2, updated_at = now()
WHERE id = $1 AND stock >= $2
`

type DecrementVariantStockParams struct {
	ID       pgtype.UUID
	Quantity int32
}

// DecrementVariantStock returns the number of rows updated; zero means the
// variant is missing or its stock does not cover the quantity.
func (q *Queries) DecrementVariantStock(ctx context.Context, arg DecrementVariantStockParams) (int64, error) {
	result, err := q.db.Exec(ctx, decrementVariantStock, arg.ID, arg.Quantity)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
