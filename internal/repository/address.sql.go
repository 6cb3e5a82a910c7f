package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const addressColumns = `id, shopper_id, full_name, phone, street, building, floor, apartment,
    city, governorate, latitude, longitude, is_default, created_at`

func scanAddress(row interface{ Scan(...any) error }) (Address, error) {
	var i Address
	err := row.Scan(
		&i.ID,
		&i.ShopperID,
		&i.FullName,
		&i.Phone,
		&i.Street,
		&i.Building,
		&i.Floor,
		&i.Apartment,
		&i.City,
		&i.Governorate,
		&i.Latitude,
		&i.Longitude,
		&i.IsDefault,
		&i.CreatedAt,
	)
	return i, err
}

const getShopperAddress = `-- name: GetShopperAddress :one
SELECT ` + addressColumns + `
FROM addresses
WHERE id = $1 AND shopper_id = $2
`

type GetShopperAddressParams struct {
	ID        pgtype.UUID
	ShopperID string
}

// GetShopperAddress only returns the address when it belongs to the shopper.
func (q *Queries) GetShopperAddress(ctx context.Context, arg GetShopperAddressParams) (Address, error) {
	return scanAddress(q.db.QueryRow(ctx, getShopperAddress, arg.ID, arg.ShopperID))
}

const createAddress = `-- name: CreateAddress :one
INSERT INTO addresses (
    shopper_id, full_name, phone, street, building, floor, apartment,
    city, governorate, latitude, longitude, is_default
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING ` + addressColumns

type CreateAddressParams struct {
	ShopperID   string
	FullName    string
	Phone       string
	Street      string
	Building    string
	Floor       string
	Apartment   string
	City        string
	Governorate string
	Latitude    pgtype.Float8
	Longitude   pgtype.Float8
	IsDefault   bool
}

func (q *Queries) CreateAddress(ctx context.Context, arg CreateAddressParams) (Address, error) {
	row := q.db.QueryRow(ctx, createAddress,
		arg.ShopperID,
		arg.FullName,
		arg.Phone,
		arg.Street,
		arg.Building,
		arg.Floor,
		arg.Apartment,
		arg.City,
		arg.Governorate,
		arg.Latitude,
		arg.Longitude,
		arg.IsDefault,
	)
	return scanAddress(row)
}

const clearDefaultAddresses = `-- name: ClearDefaultAddresses :exec
UPDATE addresses SET is_default = FALSE WHERE shopper_id = $1 AND is_default
`

func (q *Queries) ClearDefaultAddresses(ctx context.Context, shopperID string) error {
	_, err := q.db.Exec(ctx, clearDefaultAddresses, shopperID)
	return err
}
