package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const listCartItems = `-- name: ListCartItems :many
SELECT id, shopper_id, variant_id, quantity, created_at, updated_at
FROM cart_items
WHERE shopper_id = $1
ORDER BY created_at, id
`

func (q *Queries) ListCartItems(ctx context.Context, shopperID string) ([]CartItem, error) {
	rows, err := q.db.Query(ctx, listCartItems, shopperID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CartItem
	for rows.Next() {
		var i CartItem
		if err := rows.Scan(
			&i.ID,
			&i.ShopperID,
			&i.VariantID,
			&i.Quantity,
			&i.CreatedAt,
			&i.UpdatedAt,
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

const upsertCartItem = `-- name: UpsertCartItem :one
INSERT INTO cart_items (shopper_id, variant_id, quantity)
VALUES ($1, $2, $3)
ON CONFLICT (shopper_id, variant_id)
DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()
RETURNING id, shopper_id, variant_id, quantity, created_at, updated_at
`

type UpsertCartItemParams struct {
	ShopperID string
	VariantID pgtype.UUID
	Quantity  int32
}

// UpsertCartItem inserts a line or atomically adds to the existing quantity.
func (q *Queries) UpsertCartItem(ctx context.Context, arg UpsertCartItemParams) (CartItem, error) {
	row := q.db.QueryRow(ctx, upsertCartItem, arg.ShopperID, arg.VariantID, arg.Quantity)
	var i CartItem
	err := row.Scan(
		&i.ID,
		&i.ShopperID,
		&i.VariantID,
		&i.Quantity,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const setCartItemQuantity = `-- name: SetCartItemQuantity :one
INSERT INTO cart_items (shopper_id, variant_id, quantity)
VALUES ($1, $2, $3)
ON CONFLICT (shopper_id, variant_id)
DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = now()
RETURNING id, shopper_id, variant_id, quantity, created_at, updated_at
`

type SetCartItemQuantityParams struct {
	ShopperID string
	VariantID pgtype.UUID
	Quantity  int32
}

func (q *Queries) SetCartItemQuantity(ctx context.Context, arg SetCartItemQuantityParams) (CartItem, error) {
	row := q.db.QueryRow(ctx, setCartItemQuantity, arg.ShopperID, arg.VariantID, arg.Quantity)
	var i CartItem
	err := row.Scan(
		&i.ID,
		&i.ShopperID,
		&i.VariantID,
		&i.Quantity,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const deleteCartItem = `-- name: DeleteCartItem :exec
DELETE FROM cart_items WHERE shopper_id = $1 AND variant_id = $2
`

type DeleteCartItemParams struct {
	ShopperID string
	VariantID pgtype.UUID
}

func (q *Queries) DeleteCartItem(ctx context.Context, arg DeleteCartItemParams) error {
	_, err := q.db.Exec(ctx, deleteCartItem, arg.ShopperID, arg.VariantID)
	return err
}

const clearCartItems = `-- name: ClearCartItems :exec
DELETE FROM cart_items WHERE shopper_id = $1
`

func (q *Queries) ClearCartItems(ctx context.Context, shopperID string) error {
	_, err := q.db.Exec(ctx, clearCartItems, shopperID)
	return err
}
