package service

import (
	"context"
	"fmt"

	"github.com/dukerupert/dar/internal/repository"
)

// InventoryService guards variant stock. Stock is only decremented when an
// order is paid (or accepted for cash on delivery), never at order creation.
type InventoryService interface {
	// CheckStock reports whether the variant is active and has qty units.
	CheckStock(ctx context.Context, variantID string, qty int) (bool, error)

	// DecrementStock atomically removes qty units. It returns
	// ErrInsufficientStock when the stock no longer covers qty.
	DecrementStock(ctx context.Context, variantID string, qty int) error
}

type inventoryService struct {
	repo repository.Querier
}

// NewInventoryService binds the guard to repo. Pass a transaction's
// Querier to check and decrement within that transaction.
func NewInventoryService(repo repository.Querier) InventoryService {
	return &inventoryService{repo: repo}
}

func (s *inventoryService) CheckStock(ctx context.Context, variantID string, qty int) (bool, error) {
	id, ok := parseUUID(variantID)
	if !ok {
		return false, nil
	}

	v, err := s.repo.GetVariant(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get variant: %w", err)
	}
	if !v.IsActive {
		return false, nil
	}

	// Locks the variant row until the surrounding transaction ends.
	stock, err := s.repo.GetVariantStock(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to get variant stock: %w", err)
	}
	return int(stock) >= qty, nil
}

func (s *inventoryService) DecrementStock(ctx context.Context, variantID string, qty int) error {
	id, ok := parseUUID(variantID)
	if !ok {
		return ErrVariantNotFound
	}

	rows, err := s.repo.DecrementVariantStock(ctx, repository.DecrementVariantStockParams{
		ID:       id,
		Quantity: int32(qty),
	})
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}
	if rows == 0 {
		return ErrInsufficientStock
	}
	return nil
}
