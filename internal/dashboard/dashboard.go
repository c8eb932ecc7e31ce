package dashboard

import (
	"github.com/shopspring/decimal"

	"sales_billing/internal/billing"
)

// DefaultLowStockThreshold is the stock level below which a product counts as low.
const DefaultLowStockThreshold = 10

// Summary is the overview shown on the shop dashboard.
type Summary struct {
	TotalProducts  int             `json:"total_products"`
	LowStockItems  int             `json:"low_stock_items"`
	InventoryValue decimal.Decimal `json:"inventory_value"`
	LowStock       []LowStockItem  `json:"low_stock"`
}

// LowStockItem names a product running out.
type LowStockItem struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Stock int    `json:"stock"`
}

// Summarize computes the dashboard figures. Inventory is valued at purchase price.
func Summarize(products []billing.Product, lowStockThreshold int) Summary {
	if lowStockThreshold <= 0 {
		lowStockThreshold = DefaultLowStockThreshold
	}

	s := Summary{
		TotalProducts:  len(products),
		InventoryValue: decimal.Zero,
		LowStock:       []LowStockItem{},
	}
	for _, p := range products {
		if p.Stock < lowStockThreshold {
			s.LowStockItems++
			s.LowStock = append(s.LowStock, LowStockItem{ID: p.ID, Name: p.Name, Stock: p.Stock})
		}
		if p.Stock > 0 {
			s.InventoryValue = s.InventoryValue.Add(p.PurchasePrice.Mul(decimal.NewFromInt(int64(p.Stock))))
		}
	}
	s.InventoryValue = billing.RoundMoney(s.InventoryValue)
	return s
}
