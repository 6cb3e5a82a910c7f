package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

type Querier interface {
	// Catalog and inventory
	GetVariant(ctx context.Context, id pgtype.UUID) (Variant, error)
	ListVariantsByIDs(ctx context.Context, ids []pgtype.UUID) ([]Variant, error)
	GetVariantStock(ctx context.Context, id pgtype.UUID) (int32, error)
	DecrementVariantStock(ctx context.Context, arg DecrementVariantStockParams) (int64, error)

	// Persisted cart lines
	ListCartItems(ctx context.Context, shopperID string) ([]CartItem, error)
	UpsertCartItem(ctx context.Context, arg UpsertCartItemParams) (CartItem, error)
	SetCartItemQuantity(ctx context.Context, arg SetCartItemQuantityParams) (CartItem, error)
	DeleteCartItem(ctx context.Context, arg DeleteCartItemParams) error
	ClearCartItems(ctx context.Context, shopperID string) error

	// Addresses
	GetShopperAddress(ctx context.Context, arg GetShopperAddressParams) (Address, error)
	CreateAddress(ctx context.Context, arg CreateAddressParams) (Address, error)
	ClearDefaultAddresses(ctx context.Context, shopperID string) error

	// Promo codes
	GetPromoCodeByCode(ctx context.Context, code string) (PromoCode, error)
	CountShopperPromoUses(ctx context.Context, arg CountShopperPromoUsesParams) (int64, error)
	IncrementPromoUses(ctx context.Context, id pgtype.UUID) error

	// Orders
	CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error)
	CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error)
	CreateOrderStatusHistory(ctx context.Context, arg CreateOrderStatusHistoryParams) (OrderStatusHistory, error)
	GetOrder(ctx context.Context, id pgtype.UUID) (Order, error)
	GetOrderForUpdate(ctx context.Context, id pgtype.UUID) (Order, error)
	GetOrderByGatewayOrderIDForUpdate(ctx context.Context, gatewayOrderID string) (Order, error)
	GetOrderByTrackingToken(ctx context.Context, trackingToken string) (Order, error)
	ListOrderItems(ctx context.Context, orderID pgtype.UUID) ([]OrderItem, error)
	ListOrderStatusHistory(ctx context.Context, orderID pgtype.UUID) ([]OrderStatusHistory, error)
	UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) error
	MarkOrderPaid(ctx context.Context, arg MarkOrderPaidParams) error

	// Jobs
	EnqueueJob(ctx context.Context, arg EnqueueJobParams) (Job, error)
	ClaimNextJob(ctx context.Context) (Job, error)
	CompleteJob(ctx context.Context, id pgtype.UUID) error
	FailJob(ctx context.Context, arg FailJobParams) error
	DeleteFinishedJobs(ctx context.Context, before pgtype.Timestamptz) (int64, error)
}

var _ Querier = (*Queries)(nil)
