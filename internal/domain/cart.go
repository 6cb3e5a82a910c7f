package domain

// Variant is a purchasable SKU joined with its parent product.
// Prices are minor currency units.
type Variant struct {
	ID              string
	ProductID       string
	CategoryID      string
	ProductName     string
	VariantName     string
	SKU             string
	BasePrice       int64
	PriceAdjustment int64
	Stock           int
	IsActive        bool
}

// UnitPrice is the live price of one unit: product base price plus the
// variant adjustment.
func (v Variant) UnitPrice() int64 {
	return v.BasePrice + v.PriceAdjustment
}

// Covers reports whether the variant is sellable in the given quantity.
func (v Variant) Covers(qty int) bool {
	return v.IsActive && v.Stock >= qty
}

// CartLine is one priced line of a resolved cart. Lines are never stored
// with a price; UnitPrice is recomputed from the catalog on every read.
type CartLine struct {
	VariantID   string `json:"variant_id"`
	ProductID   string `json:"product_id"`
	CategoryID  string `json:"category_id"`
	ProductName string `json:"product_name"`
	VariantName string `json:"variant_name"`
	SKU         string `json:"sku"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	LineTotal   int64  `json:"line_total"`
	Stock       int    `json:"-"`
	IsActive    bool   `json:"-"`
}

// Name is the display name used when reporting dropped lines.
func (l CartLine) Name() string {
	if l.VariantName == "" {
		return l.ProductName
	}
	return l.ProductName + " - " + l.VariantName
}

// NewCartLine prices qty units of a variant.
func NewCartLine(v Variant, qty int) CartLine {
	unit := v.UnitPrice()
	return CartLine{
		VariantID:   v.ID,
		ProductID:   v.ProductID,
		CategoryID:  v.CategoryID,
		ProductName: v.ProductName,
		VariantName: v.VariantName,
		SKU:         v.SKU,
		Quantity:    qty,
		UnitPrice:   unit,
		LineTotal:   unit * int64(qty),
		Stock:       v.Stock,
		IsActive:    v.IsActive,
	}
}

// Cart is the resolved, priced view of a shopper's cart.
type Cart struct {
	ShopperID string     `json:"-"`
	IsGuest   bool       `json:"is_guest"`
	Lines     []CartLine `json:"items"`
	Subtotal  int64      `json:"subtotal"`
	ItemCount int        `json:"item_count"`
}

// NewCart builds a cart and derives its subtotal and item count.
func NewCart(shopperID string, isGuest bool, lines []CartLine) *Cart {
	c := &Cart{
		ShopperID: shopperID,
		IsGuest:   isGuest,
		Lines:     lines,
	}
	if c.Lines == nil {
		c.Lines = []CartLine{}
	}
	for _, l := range c.Lines {
		c.Subtotal += l.LineTotal
		c.ItemCount += l.Quantity
	}
	return c
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Lines) == 0
}

// CartValidation is the outcome of re-checking every line against the
// catalog before checkout.
type CartValidation struct {
	Valid            bool     `json:"valid"`
	Cart             *Cart    `json:"cart"`
	RemovedItemNames []string `json:"removed_items"`

	// DroppedVariantIDs are the variant ids behind RemovedItemNames.
	DroppedVariantIDs []string `json:"-"`
}
