package billing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PriceTier selects which unit price a line item is charged at.
type PriceTier string

const (
	TierRegular PriceTier = "regular"
	TierBulk    PriceTier = "bulk"
	// TierManual marks a unit price typed in by the seller.
	TierManual PriceTier = "manual"
)

func (t PriceTier) valid() bool {
	switch t {
	case TierRegular, TierBulk, TierManual:
		return true
	}
	return false
}

// Product is a catalog entry as supplied by the shop backend.
type Product struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Stock         int             `json:"stock"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	RegularPrice  decimal.Decimal `json:"regular_price"`
	BulkPrice     decimal.Decimal `json:"bulk_price"`
}

// Price returns the product's unit price for tier. Manual has no catalog
// price and falls back to the regular one.
func (p Product) Price(tier PriceTier) decimal.Decimal {
	if tier == TierBulk {
		return p.BulkPrice
	}
	return p.RegularPrice
}

// LineOptions tunes how a line item is priced. The zero value charges the
// regular price.
type LineOptions struct {
	Tier PriceTier
	// UnitPrice, when set, overrides the catalog price.
	UnitPrice *decimal.Decimal
}

// LineItem is one product, quantity and price entry of a sale.
type LineItem struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Tier      PriceTier       `json:"price_tier"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
	// Shortfall is how many requested units are missing from stock.
	Shortfall int `json:"stock_shortfall,omitempty"`
}

// NewLineItem builds a line item from its inputs, deriving the total.
func NewLineItem(productID string, quantity int, unitPrice decimal.Decimal, tier PriceTier) (LineItem, error) {
	verr := &ValidationError{}
	if productID == "" {
		verr.Add("product_id", "is required")
	}
	if quantity < 1 {
		verr.Add("quantity", "must be at least 1")
	}
	if unitPrice.IsNegative() {
		verr.Add("unit_price", "must not be negative")
	}
	if tier == "" {
		tier = TierRegular
	}
	if !tier.valid() {
		verr.Add("price_tier", fmt.Sprintf("unknown price tier %q", tier))
	}
	if err := verr.Err(); err != nil {
		return LineItem{}, err
	}

	return LineItem{
		ProductID: productID,
		Quantity:  quantity,
		Tier:      tier,
		UnitPrice: unitPrice,
		Total:     lineTotal(quantity, unitPrice),
	}, nil
}

// ResolveLineItem prices quantity units of product. Asking for more than the
// product's stock still yields an item; the item then reports the shortfall.
func ResolveLineItem(product Product, quantity int, opts LineOptions) (LineItem, error) {
	tier := opts.Tier
	if tier == "" {
		tier = TierRegular
	}
	price := product.Price(tier)
	if opts.UnitPrice != nil {
		price = *opts.UnitPrice
		tier = TierManual
	}

	item, err := NewLineItem(product.ID, quantity, price, tier)
	if err != nil {
		return LineItem{}, err
	}
	if quantity > product.Stock {
		item.Shortfall = quantity - max(product.Stock, 0)
	}
	return item, nil
}

// Recompute returns a copy with the total derived again from quantity and
// unit price, validating both.
func (li LineItem) Recompute() (LineItem, error) {
	item, err := NewLineItem(li.ProductID, li.Quantity, li.UnitPrice, li.Tier)
	if err != nil {
		return LineItem{}, err
	}
	item.Shortfall = li.Shortfall
	return item, nil
}

// InsufficientStock reports whether the item asks for more than is in stock.
func (li LineItem) InsufficientStock() bool {
	return li.Shortfall > 0
}

// StockWarning returns the stock condition of the item, or nil.
func (li LineItem) StockWarning() *StockError {
	if !li.InsufficientStock() {
		return nil
	}
	return &StockError{
		ProductID: li.ProductID,
		Requested: li.Quantity,
		Available: li.Quantity - li.Shortfall,
	}
}

func lineTotal(quantity int, unitPrice decimal.Decimal) decimal.Decimal {
	return RoundMoney(unitPrice.Mul(decimal.NewFromInt(int64(quantity))))
}
