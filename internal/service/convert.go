package service

import (
	"time"

	"github.com/dukerupert/dar/internal/domain"
	"github.com/dukerupert/dar/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// parseUUID converts an id from the API surface. ok is false for
// malformed ids, which callers treat as not found.
func parseUUID(s string) (pgtype.UUID, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{}, false
	}
	return pgtype.UUID{Bytes: id, Valid: true}, true
}

func uuidString(id pgtype.UUID) string {
	if !id.Valid {
		return ""
	}
	return uuid.UUID(id.Bytes).String()
}

func uuidStrings(ids []pgtype.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id.Valid {
			out = append(out, uuidString(id))
		}
	}
	return out
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}

func timestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func text(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func float8(f *float64) pgtype.Float8 {
	if f == nil {
		return pgtype.Float8{}
	}
	return pgtype.Float8{Float64: *f, Valid: true}
}

func floatPtr(f pgtype.Float8) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

// numericDecimal converts a NUMERIC column. NULL and NaN read as zero.
func numericDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.NaN || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

func toDomainVariant(v repository.Variant) domain.Variant {
	return domain.Variant{
		ID:              uuidString(v.ID),
		ProductID:       uuidString(v.ProductID),
		CategoryID:      uuidString(v.CategoryID),
		ProductName:     v.ProductName,
		VariantName:     v.VariantName,
		SKU:             v.Sku,
		BasePrice:       v.BasePrice,
		PriceAdjustment: v.PriceAdjustment,
		Stock:           int(v.Stock),
		IsActive:        v.IsActive,
	}
}

func toDomainPromo(p repository.PromoCode) domain.PromoCode {
	promo := domain.PromoCode{
		ID:                  uuidString(p.ID),
		Code:                p.Code,
		DiscountType:        domain.DiscountType(p.DiscountType),
		Value:               numericDecimal(p.DiscountValue),
		ExcludedCategoryIDs: uuidStrings(p.ExcludedCategoryIds),
		ExcludedProductIDs:  uuidStrings(p.ExcludedProductIds),
		StartsAt:            timePtr(p.StartsAt),
		ExpiresAt:           timePtr(p.ExpiresAt),
		IsActive:            p.IsActive,
		CurrentUses:         int(p.CurrentUses),
	}
	if p.MinCartValue.Valid {
		v := p.MinCartValue.Int64
		promo.MinCartValue = &v
	}
	if p.MaxDiscountAmount.Valid {
		v := p.MaxDiscountAmount.Int64
		promo.MaxDiscountAmount = &v
	}
	if p.MaxUses.Valid {
		v := int(p.MaxUses.Int32)
		promo.MaxUses = &v
	}
	if p.MaxUsesPerUser.Valid {
		v := int(p.MaxUsesPerUser.Int32)
		promo.MaxUsesPerUser = &v
	}
	return promo
}

func toShippingAddress(a repository.Address) domain.ShippingAddress {
	return domain.ShippingAddress{
		FullName:    a.FullName,
		Phone:       a.Phone,
		Street:      a.Street,
		Building:    a.Building,
		Floor:       a.Floor,
		Apartment:   a.Apartment,
		City:        a.City,
		Governorate: a.Governorate,
		Latitude:    floatPtr(a.Latitude),
		Longitude:   floatPtr(a.Longitude),
	}
}

func toDomainOrder(o repository.Order) *domain.Order {
	order := &domain.Order{
		ID:            uuidString(o.ID),
		OrderNumber:   o.OrderNumber,
		ShopperID:     o.ShopperID,
		IsGuest:       o.IsGuest,
		Email:         o.Email,
		Status:        domain.OrderStatus(o.Status),
		Subtotal:      o.Subtotal,
		Discount:      o.Discount,
		ShippingCost:  o.ShippingCost,
		Total:         o.Total,
		PromoCodeID:   uuidString(o.PromoCodeID),
		PaymentMethod: domain.PaymentMethod(o.PaymentMethod),
		Shipping: domain.ShippingAddress{
			FullName:    o.ShippingFullName,
			Phone:       o.ShippingPhone,
			Street:      o.ShippingStreet,
			Building:    o.ShippingBuilding,
			Floor:       o.ShippingFloor,
			Apartment:   o.ShippingApartment,
			City:        o.ShippingCity,
			Governorate: o.ShippingGovernorate,
			Latitude:    floatPtr(o.ShippingLatitude),
			Longitude:   floatPtr(o.ShippingLongitude),
		},
		GatewayOrderID:       o.GatewayOrderID.String,
		GatewayTransactionID: o.GatewayTransactionID.String,
		IsPaid:               o.IsPaid,
		PaidAt:               timePtr(o.PaidAt),
		TrackingToken:        o.TrackingToken,
		CustomerNote:         o.CustomerNote,
		CreatedAt:            o.CreatedAt.Time,
		UpdatedAt:            o.UpdatedAt.Time,
	}
	return order
}

func toDomainOrderItems(items []repository.OrderItem) []domain.OrderItem {
	out := make([]domain.OrderItem, 0, len(items))
	for _, it := range items {
		out = append(out, domain.OrderItem{
			ID:          uuidString(it.ID),
			VariantID:   uuidString(it.VariantID),
			ProductName: it.ProductName,
			VariantName: it.VariantName,
			Quantity:    int(it.Quantity),
			UnitPrice:   it.UnitPrice,
			LineTotal:   it.LineTotal,
		})
	}
	return out
}

func toDomainHistory(entries []repository.OrderStatusHistory) []domain.OrderStatusHistory {
	out := make([]domain.OrderStatusHistory, 0, len(entries))
	for _, h := range entries {
		out = append(out, domain.OrderStatusHistory{
			Status:    domain.OrderStatus(h.Status),
			Note:      h.Note,
			Actor:     h.Actor,
			CreatedAt: h.CreatedAt.Time,
		})
	}
	return out
}
