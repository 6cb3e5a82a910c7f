package repository

import (
	"github.com/jackc/pgx/v5/pgtype"
)

// Variant is a product_variants row joined with its product. IsActive is
// true only when both the variant and the product are active.
type Variant struct {
	ID              pgtype.UUID
	ProductID       pgtype.UUID
	CategoryID      pgtype.UUID
	ProductName     string
	VariantName     string
	Sku             string
	BasePrice       int64
	PriceAdjustment int64
	Stock           int32
	IsActive        bool
}

type CartItem struct {
	ID        pgtype.UUID
	ShopperID string
	VariantID pgtype.UUID
	Quantity  int32
	CreatedAt pgtype.Timestamptz
	UpdatedAt pgtype.Timestamptz
}

type Address struct {
	ID          pgtype.UUID
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
	CreatedAt   pgtype.Timestamptz
}

type PromoCode struct {
	ID                  pgtype.UUID
	Code                string
	DiscountType        string
	DiscountValue       pgtype.Numeric
	MinCartValue        pgtype.Int8
	MaxDiscountAmount   pgtype.Int8
	MaxUses             pgtype.Int4
	MaxUsesPerUser      pgtype.Int4
	ExcludedCategoryIds []pgtype.UUID
	ExcludedProductIds  []pgtype.UUID
	StartsAt            pgtype.Timestamptz
	ExpiresAt           pgtype.Timestamptz
	IsActive            bool
	CurrentUses         int32
	CreatedAt           pgtype.Timestamptz
}

type Order struct {
	ID                   pgtype.UUID
	OrderNumber          string
	ShopperID            string
	IsGuest              bool
	Email                string
	Status               string
	Subtotal             int64
	Discount             int64
	ShippingCost         int64
	Total                int64
	PromoCodeID          pgtype.UUID
	PaymentMethod        string
	ShippingFullName     string
	ShippingPhone        string
	ShippingStreet       string
	ShippingBuilding     string
	ShippingFloor        string
	ShippingApartment    string
	ShippingCity         string
	ShippingGovernorate  string
	ShippingLatitude     pgtype.Float8
	ShippingLongitude    pgtype.Float8
	GatewayOrderID       pgtype.Text
	GatewayTransactionID pgtype.Text
	IsPaid               bool
	PaidAt               pgtype.Timestamptz
	TrackingToken        string
	CustomerNote         string
	CreatedAt            pgtype.Timestamptz
	UpdatedAt            pgtype.Timestamptz
}

type OrderItem struct {
	ID          pgtype.UUID
	OrderID     pgtype.UUID
	VariantID   pgtype.UUID
	ProductName string
	VariantName string
	Quantity    int32
	UnitPrice   int64
	LineTotal   int64
	Position    int32
}

type OrderStatusHistory struct {
	ID        int64
	OrderID   pgtype.UUID
	Status    string
	Note      string
	Actor     string
	CreatedAt pgtype.Timestamptz
}

type Job struct {
	ID          pgtype.UUID
	JobType     string
	Payload     []byte
	Status      string
	Attempts    int32
	MaxAttempts int32
	RunAt       pgtype.Timestamptz
	LastError   pgtype.Text
	CreatedAt   pgtype.Timestamptz
	CompletedAt pgtype.Timestamptz
}
