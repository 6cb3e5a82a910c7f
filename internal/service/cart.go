package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/dukerupert/dar/internal/domain"
	"github.com/dukerupert/dar/internal/repository"
	"github.com/dukerupert/dar/internal/telemetry"
	"github.com/jackc/pgx/v5/pgtype"
)

// CartService resolves and mutates shopper carts. Signed-in shoppers have
// persisted lines; guests have lines in an expiring keyed store. Prices are
// never stored and are recomputed from the catalog on every read.
type CartService interface {
	GetCart(ctx context.Context, shopperID string, isGuest bool) (*domain.Cart, error)
	AddItem(ctx context.Context, shopperID, variantID string, qty int, isGuest bool) (*domain.Cart, error)
	UpdateItem(ctx context.Context, shopperID, variantID string, qty int, isGuest bool) (*domain.Cart, error)
	RemoveItem(ctx context.Context, shopperID, variantID string, isGuest bool) (*domain.Cart, error)

	// ValidateCart drops lines whose variant is gone, inactive, or no longer
	// in stock for the requested quantity, and reports their names.
	ValidateCart(ctx context.Context, shopperID string, isGuest bool) (*domain.CartValidation, error)

	// CheckCart reports what ValidateCart would drop without changing the
	// stored cart. DropLines removes the reported lines afterwards.
	CheckCart(ctx context.Context, shopperID string, isGuest bool) (*domain.CartValidation, error)
	DropLines(ctx context.Context, shopperID string, isGuest bool, variantIDs []string) error

	// TransferGuestCart merges a guest cart into a signed-in shopper's cart
	// and clears the guest cart. An empty guest cart is a no-op.
	TransferGuestCart(ctx context.Context, guestID, shopperID string) (*domain.Cart, error)

	ClearCart(ctx context.Context, shopperID string, isGuest bool) error
}

// GuestCartStore holds guest cart lines as variant id to quantity.
type GuestCartStore interface {
	Lines(ctx context.Context, guestID string) (map[string]int, error)
	// Take returns the guest's lines and empties the cart atomically.
	Take(ctx context.Context, guestID string) (map[string]int, error)
	Add(ctx context.Context, guestID, variantID string, qty int) (int, error)
	Set(ctx context.Context, guestID, variantID string, qty int) error
	Remove(ctx context.Context, guestID, variantID string) error
	Clear(ctx context.Context, guestID string) error
}

type cartService struct {
	repo   repository.Querier
	guests GuestCartStore
	logger *slog.Logger
}

// NewCartService creates a new CartService instance
func NewCartService(repo repository.Querier, guests GuestCartStore, logger *slog.Logger) CartService {
	return &cartService{
		repo:   repo,
		guests: guests,
		logger: logger,
	}
}

// lineRef is an unpriced cart line as stored.
type lineRef struct {
	variantID string
	quantity  int
}

func (s *cartService) storedLines(ctx context.Context, shopperID string, isGuest bool) ([]lineRef, error) {
	if isGuest {
		lines, err := s.guests.Lines(ctx, shopperID)
		if err != nil {
			return nil, fmt.Errorf("failed to load guest cart: %w", err)
		}
		refs := make([]lineRef, 0, len(lines))
		for variantID, qty := range lines {
			refs = append(refs, lineRef{variantID: variantID, quantity: qty})
		}
		sort.Slice(refs, func(i, j int) bool { return refs[i].variantID < refs[j].variantID })
		return refs, nil
	}

	items, err := s.repo.ListCartItems(ctx, shopperID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart items: %w", err)
	}
	refs := make([]lineRef, 0, len(items))
	for _, item := range items {
		refs = append(refs, lineRef{variantID: uuidString(item.VariantID), quantity: int(item.Quantity)})
	}
	return refs, nil
}

// priceLines joins stored lines with the live catalog. Lines whose variant
// no longer exists are returned separately as missing.
func (s *cartService) priceLines(ctx context.Context, refs []lineRef) ([]domain.CartLine, []lineRef, error) {
	ids := make([]pgtype.UUID, 0, len(refs))
	for _, ref := range refs {
		if id, ok := parseUUID(ref.variantID); ok {
			ids = append(ids, id)
		}
	}

	variants := make(map[string]domain.Variant, len(ids))
	if len(ids) > 0 {
		rows, err := s.repo.ListVariantsByIDs(ctx, ids)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load variants: %w", err)
		}
		for _, row := range rows {
			v := toDomainVariant(row)
			variants[v.ID] = v
		}
	}

	lines := make([]domain.CartLine, 0, len(refs))
	var missing []lineRef
	for _, ref := range refs {
		v, ok := variants[ref.variantID]
		if !ok {
			missing = append(missing, ref)
			continue
		}
		lines = append(lines, domain.NewCartLine(v, ref.quantity))
	}
	return lines, missing, nil
}

// GetCart returns the cart priced against the current catalog.
func (s *cartService) GetCart(ctx context.Context, shopperID string, isGuest bool) (*domain.Cart, error) {
	refs, err := s.storedLines(ctx, shopperID, isGuest)
	if err != nil {
		return nil, err
	}

	lines, _, err := s.priceLines(ctx, refs)
	if err != nil {
		return nil, err
	}

	return domain.NewCart(shopperID, isGuest, lines), nil
}

func (s *cartService) activeVariant(ctx context.Context, variantID string) (domain.Variant, error) {
	id, ok := parseUUID(variantID)
	if !ok {
		return domain.Variant{}, ErrVariantNotFound
	}

	row, err := s.repo.GetVariant(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return domain.Variant{}, ErrVariantNotFound
		}
		return domain.Variant{}, fmt.Errorf("failed to get variant: %w", err)
	}

	v := toDomainVariant(row)
	if !v.IsActive {
		return domain.Variant{}, ErrVariantNotFound
	}
	return v, nil
}

func (s *cartService) currentQuantity(ctx context.Context, shopperID, variantID string, isGuest bool) (int, error) {
	refs, err := s.storedLines(ctx, shopperID, isGuest)
	if err != nil {
		return 0, err
	}
	for _, ref := range refs {
		if ref.variantID == variantID {
			return ref.quantity, nil
		}
	}
	return 0, nil
}

// AddItem adds qty units of a variant, merging into an existing line.
// The merged quantity must be covered by current stock.
func (s *cartService) AddItem(ctx context.Context, shopperID, variantID string, qty int, isGuest bool) (*domain.Cart, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}

	v, err := s.activeVariant(ctx, variantID)
	if err != nil {
		return nil, err
	}

	existing, err := s.currentQuantity(ctx, shopperID, v.ID, isGuest)
	if err != nil {
		return nil, err
	}
	if !v.Covers(existing + qty) {
		return nil, ErrInsufficientStock
	}

	if isGuest {
		if _, err := s.guests.Add(ctx, shopperID, v.ID, qty); err != nil {
			return nil, fmt.Errorf("failed to add guest cart item: %w", err)
		}
	} else {
		id, _ := parseUUID(v.ID)
		if _, err := s.repo.UpsertCartItem(ctx, repository.UpsertCartItemParams{
			ShopperID: shopperID,
			VariantID: id,
			Quantity:  int32(qty),
		}); err != nil {
			return nil, fmt.Errorf("failed to add cart item: %w", err)
		}
	}

	if telemetry.Business != nil {
		telemetry.Business.CartItemsAdded.WithLabelValues(shopperType(isGuest)).Inc()
	}

	return s.GetCart(ctx, shopperID, isGuest)
}

// UpdateItem sets a line's quantity. Zero or less removes the line, and
// stock is re-checked whenever the quantity grows.
func (s *cartService) UpdateItem(ctx context.Context, shopperID, variantID string, qty int, isGuest bool) (*domain.Cart, error) {
	if qty <= 0 {
		return s.RemoveItem(ctx, shopperID, variantID, isGuest)
	}

	v, err := s.activeVariant(ctx, variantID)
	if err != nil {
		return nil, err
	}

	current, err := s.currentQuantity(ctx, shopperID, v.ID, isGuest)
	if err != nil {
		return nil, err
	}
	if current == 0 {
		return nil, ErrCartItemNotFound
	}
	if qty > current && !v.Covers(qty) {
		return nil, ErrInsufficientStock
	}

	if isGuest {
		if err := s.guests.Set(ctx, shopperID, v.ID, qty); err != nil {
			return nil, fmt.Errorf("failed to update guest cart item: %w", err)
		}
	} else {
		id, _ := parseUUID(v.ID)
		if _, err := s.repo.SetCartItemQuantity(ctx, repository.SetCartItemQuantityParams{
			ShopperID: shopperID,
			VariantID: id,
			Quantity:  int32(qty),
		}); err != nil {
			if repository.IsNotFound(err) {
				return nil, ErrCartItemNotFound
			}
			return nil, fmt.Errorf("failed to update cart item quantity: %w", err)
		}
	}

	return s.GetCart(ctx, shopperID, isGuest)
}

// RemoveItem removes a line. Removing an absent line is not an error.
func (s *cartService) RemoveItem(ctx context.Context, shopperID, variantID string, isGuest bool) (*domain.Cart, error) {
	if err := s.removeLine(ctx, shopperID, variantID, isGuest); err != nil {
		return nil, err
	}
	return s.GetCart(ctx, shopperID, isGuest)
}

func (s *cartService) removeLine(ctx context.Context, shopperID, variantID string, isGuest bool) error {
	if isGuest {
		if err := s.guests.Remove(ctx, shopperID, variantID); err != nil {
			return fmt.Errorf("failed to remove guest cart item: %w", err)
		}
		return nil
	}

	id, ok := parseUUID(variantID)
	if !ok {
		return nil
	}
	if err := s.repo.DeleteCartItem(ctx, repository.DeleteCartItemParams{
		ShopperID: shopperID,
		VariantID: id,
	}); err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}
	return nil
}

func (s *cartService) ValidateCart(ctx context.Context, shopperID string, isGuest bool) (*domain.CartValidation, error) {
	validation, err := s.CheckCart(ctx, shopperID, isGuest)
	if err != nil {
		return nil, err
	}
	if err := s.DropLines(ctx, shopperID, isGuest, validation.DroppedVariantIDs); err != nil {
		return nil, err
	}
	return validation, nil
}

func (s *cartService) CheckCart(ctx context.Context, shopperID string, isGuest bool) (*domain.CartValidation, error) {
	refs, err := s.storedLines(ctx, shopperID, isGuest)
	if err != nil {
		return nil, err
	}

	lines, missing, err := s.priceLines(ctx, refs)
	if err != nil {
		return nil, err
	}

	var removed, dropped []string
	for _, ref := range missing {
		removed = append(removed, "Unavailable item")
		dropped = append(dropped, ref.variantID)
		recordDropped("missing")
	}

	kept := make([]domain.CartLine, 0, len(lines))
	for _, line := range lines {
		if line.IsActive && line.Stock >= line.Quantity {
			kept = append(kept, line)
			continue
		}

		removed = append(removed, line.Name())
		dropped = append(dropped, line.VariantID)

		reason := "stock"
		if !line.IsActive {
			reason = "inactive"
		}
		recordDropped(reason)
		s.logger.Info("cart line failed validation",
			"shopper_id", shopperID,
			"variant_id", line.VariantID,
			"reason", reason,
		)
	}

	cart := domain.NewCart(shopperID, isGuest, kept)
	return &domain.CartValidation{
		Valid:             len(removed) == 0 && !cart.IsEmpty(),
		Cart:              cart,
		RemovedItemNames:  removed,
		DroppedVariantIDs: dropped,
	}, nil
}

func (s *cartService) DropLines(ctx context.Context, shopperID string, isGuest bool, variantIDs []string) error {
	for _, variantID := range variantIDs {
		if err := s.removeLine(ctx, shopperID, variantID, isGuest); err != nil {
			return err
		}
	}
	return nil
}

func (s *cartService) TransferGuestCart(ctx context.Context, guestID, shopperID string) (*domain.Cart, error) {
	lines, err := s.guests.Take(ctx, guestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load guest cart: %w", err)
	}

	if len(lines) == 0 {
		return s.GetCart(ctx, shopperID, false)
	}

	variantIDs := make([]string, 0, len(lines))
	for variantID := range lines {
		variantIDs = append(variantIDs, variantID)
	}
	sort.Strings(variantIDs)

	for i, variantID := range variantIDs {
		id, ok := parseUUID(variantID)
		if !ok {
			continue
		}
		// Same atomic increment as AddItem, so a concurrent add for the
		// same variant merges instead of racing.
		if _, err := s.repo.UpsertCartItem(ctx, repository.UpsertCartItemParams{
			ShopperID: shopperID,
			VariantID: id,
			Quantity:  int32(lines[variantID]),
		}); err != nil {
			if telemetry.Business != nil {
				telemetry.Business.CartTransfers.WithLabelValues("error").Inc()
			}
			s.restoreGuestLines(ctx, guestID, variantIDs[i:], lines)
			return nil, fmt.Errorf("failed to merge guest cart item: %w", err)
		}
	}

	if telemetry.Business != nil {
		telemetry.Business.CartTransfers.WithLabelValues("merged").Inc()
	}
	s.logger.Info("guest cart transferred",
		"guest_id", guestID,
		"shopper_id", shopperID,
		"lines", len(lines),
	)

	return s.GetCart(ctx, shopperID, false)
}

// restoreGuestLines puts lines that were taken but not merged back into the
// guest cart, so a retried transfer moves each line exactly once.
func (s *cartService) restoreGuestLines(ctx context.Context, guestID string, variantIDs []string, lines map[string]int) {
	for _, variantID := range variantIDs {
		if _, err := s.guests.Add(ctx, guestID, variantID, lines[variantID]); err != nil {
			s.logger.Error("failed to restore guest cart line",
				"error", err,
				"guest_id", guestID,
				"variant_id", variantID,
				"quantity", lines[variantID],
			)
		}
	}
}

func (s *cartService) ClearCart(ctx context.Context, shopperID string, isGuest bool) error {
	if isGuest {
		if err := s.guests.Clear(ctx, shopperID); err != nil {
			return fmt.Errorf("failed to clear guest cart: %w", err)
		}
		return nil
	}

	if err := s.repo.ClearCartItems(ctx, shopperID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

func shopperType(isGuest bool) string {
	if isGuest {
		return "guest"
	}
	return "member"
}

func recordDropped(reason string) {
	if telemetry.Business != nil {
		telemetry.Business.CartLinesDropped.WithLabelValues(reason).Inc()
	}
}
