package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, order_number, shopper_id, is_guest, email, status,
    subtotal, discount, shipping_cost, total, promo_code_id, payment_method,
    shipping_full_name, shipping_phone, shipping_street, shipping_building,
    shipping_floor, shipping_apartment, shipping_city, shipping_governorate,
    shipping_latitude, shipping_longitude, gateway_order_id, gateway_transaction_id,
    is_paid, paid_at, tracking_token, customer_note, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.OrderNumber,
		&i.ShopperID,
		&i.IsGuest,
		&i.Email,
		&i.Status,
		&i.Subtotal,
		&i.Discount,
		&i.ShippingCost,
		&i.Total,
		&i.PromoCodeID,
		&i.PaymentMethod,
		&i.ShippingFullName,
		&i.ShippingPhone,
		&i.ShippingStreet,
		&i.ShippingBuilding,
		&i.ShippingFloor,
		&i.ShippingApartment,
		&i.ShippingCity,
		&i.ShippingGovernorate,
		&i.ShippingLatitude,
		&i.ShippingLongitude,
		&i.GatewayOrderID,
		&i.GatewayTransactionID,
		&i.IsPaid,
		&i.PaidAt,
		&i.TrackingToken,
		&i.CustomerNote,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (
    order_number, shopper_id, is_guest, email, status,
    subtotal, discount, shipping_cost, total, promo_code_id, payment_method,
    shipping_full_name, shipping_phone, shipping_street, shipping_building,
    shipping_floor, shipping_apartment, shipping_city, shipping_governorate,
    shipping_latitude, shipping_longitude, gateway_order_id, tracking_token, customer_note
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
    $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24
)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	OrderNumber         string
	ShopperID           string
	IsGuest             bool
	Email               string
	Status              string
	Subtotal            int64
	Discount            int64
	ShippingCost        int64
	Total               int64
	PromoCodeID         pgtype.UUID
	PaymentMethod       string
	ShippingFullName    string
	ShippingPhone       string
	ShippingStreet      string
	ShippingBuilding    string
	ShippingFloor       string
	ShippingApartment   string
	ShippingCity        string
	ShippingGovernorate string
	ShippingLatitude    pgtype.Float8
	ShippingLongitude   pgtype.Float8
	GatewayOrderID      pgtype.Text
	TrackingToken       string
	CustomerNote        string
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.OrderNumber,
		arg.ShopperID,
		arg.IsGuest,
		arg.Email,
		arg.Status,
		arg.Subtotal,
		arg.Discount,
		arg.ShippingCost,
		arg.Total,
		arg.PromoCodeID,
		arg.PaymentMethod,
		arg.ShippingFullName,
		arg.ShippingPhone,
		arg.ShippingStreet,
		arg.ShippingBuilding,
		arg.ShippingFloor,
		arg.ShippingApartment,
		arg.ShippingCity,
		arg.ShippingGovernorate,
		arg.ShippingLatitude,
		arg.ShippingLongitude,
		arg.GatewayOrderID,
		arg.TrackingToken,
		arg.CustomerNote,
	)
	return scanOrder(row)
}

const createOrderItem = `-- name: CreateOrderItem :one
INSERT INTO order_items (order_id, variant_id, product_name, variant_name, quantity, unit_price, line_total, position)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, order_id, variant_id, product_name, variant_name, quantity, unit_price, line_total, position
`

type CreateOrderItemParams struct {
	OrderID     pgtype.UUID
	VariantID   pgtype.UUID
	ProductName string
	VariantName string
	Quantity    int32
	UnitPrice   int64
	LineTotal   int64
	Position    int32
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.VariantID,
		arg.ProductName,
		arg.VariantName,
		arg.Quantity,
		arg.UnitPrice,
		arg.LineTotal,
		arg.Position,
	)
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.VariantID,
		&i.ProductName,
		&i.VariantName,
		&i.Quantity,
		&i.UnitPrice,
		&i.LineTotal,
		&i.Position,
	)
	return i, err
}

const createOrderStatusHistory = `-- name: CreateOrderStatusHistory :one
INSERT INTO order_status_history (order_id, status, note, actor)
VALUES ($1, $2, $3, $4)
RETURNING id, order_id, status, note, actor, created_at
`

type CreateOrderStatusHistoryParams struct {
	OrderID pgtype.UUID
	Status  string
	Note    string
	Actor   string
}

func (q *Queries) CreateOrderStatusHistory(ctx context.Context, arg CreateOrderStatusHistoryParams) (OrderStatusHistory, error) {
	row := q.db.QueryRow(ctx, createOrderStatusHistory, arg.OrderID, arg.Status, arg.Note, arg.Actor)
	var i OrderStatusHistory
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.Status,
		&i.Note,
		&i.Actor,
		&i.CreatedAt,
	)
	return i, err
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id pgtype.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const getOrderForUpdate = `-- name: GetOrderForUpdate :one
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1
FOR UPDATE
`

// GetOrderForUpdate locks the order row until the surrounding transaction ends.
func (q *Queries) GetOrderForUpdate(ctx context.Context, id pgtype.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, id))
}

const getOrderByGatewayOrderIDForUpdate = `-- name: GetOrderByGatewayOrderIDForUpdate :one
SELECT ` + orderColumns + `
FROM orders
WHERE gateway_order_id = $1
FOR UPDATE
`

func (q *Queries) GetOrderByGatewayOrderIDForUpdate(ctx context.Context, gatewayOrderID string) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderByGatewayOrderIDForUpdate, gatewayOrderID))
}

const getOrderByTrackingToken = `-- name: GetOrderByTrackingToken :one
SELECT ` + orderColumns + `
FROM orders
WHERE tracking_token = $1
`

func (q *Queries) GetOrderByTrackingToken(ctx context.Context, trackingToken string) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderByTrackingToken, trackingToken))
}

const listOrderItems = `-- name: ListOrderItems :many
SELECT id, order_id, variant_id, product_name, variant_name, quantity, unit_price, line_total, position
FROM order_items
WHERE order_id = $1
ORDER BY position
`

func (q *Queries) ListOrderItems(ctx context.Context, orderID pgtype.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItems, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		var i OrderItem
		if err := rows.Scan(
			&i.ID,
			&i.OrderID,
			&i.VariantID,
			&i.ProductName,
			&i.VariantName,
			&i.Quantity,
			&i.UnitPrice,
			&i.LineTotal,
			&i.Position,
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

const listOrderStatusHistory = `-- name: ListOrderStatusHistory :many
SELECT id, order_id, status, note, actor, created_at
FROM order_status_history
WHERE order_id = $1
ORDER BY id
`

func (q *Queries) ListOrderStatusHistory(ctx context.Context, orderID pgtype.UUID) ([]OrderStatusHistory, error) {
	rows, err := q.db.Query(ctx, listOrderStatusHistory, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderStatusHistory
	for rows.Next() {
		var i OrderStatusHistory
		if err := rows.Scan(
			&i.ID,
			&i.OrderID,
			&i.Status,
			&i.Note,
			&i.Actor,
			&i.CreatedAt,
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

const updateOrderStatus = `-- name: UpdateOrderStatus :exec
UPDATE orders SET status = $2, updated_at = now() WHERE id = $1
`

type UpdateOrderStatusParams struct {
	ID     pgtype.UUID
	Status string
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) error {
	_, err := q.db.Exec(ctx, updateOrderStatus, arg.ID, arg.Status)
	return err
}

const markOrderPaid = `-- name: MarkOrderPaid :exec
UPDATE orders
SET is_paid = TRUE, paid_at = $2, gateway_transaction_id = $3, updated_at = now()
WHERE id = $1
`

type MarkOrderPaidParams struct {
	ID                   pgtype.UUID
	PaidAt               pgtype.Timestamptz
	GatewayTransactionID pgtype.Text
}

func (q *Queries) MarkOrderPaid(ctx context.Context, arg MarkOrderPaidParams) error {
	_, err := q.db.Exec(ctx, markOrderPaid, arg.ID, arg.PaidAt, arg.GatewayTransactionID)
	return err
}
