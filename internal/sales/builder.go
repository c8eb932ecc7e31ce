package sales

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"sales_billing/internal/billing"
)

// Draft holds the user's inputs for a sale.
type Draft struct {
	BuyerID    string
	Items      []billing.LineItem
	SaleDate   time.Time
	AmountPaid decimal.Decimal
	// ExistingID is set when an already stored sale is being edited.
	ExistingID    string
	InvoiceNumber string
}

// BuildOptions holds the sale policies that are configurable per deployment.
type BuildOptions struct {
	// BlockOnInsufficientStock rejects drafts whose items exceed stock.
	BlockOnInsufficientStock bool
}

// BuildSaleRecord validates a draft and computes its totals and status.
// It never touches the network; every invalid field is reported at once.
func BuildSaleRecord(d Draft, opts BuildOptions) (*SaleRecord, error) {
	verr := &billing.ValidationError{}

	if strings.TrimSpace(d.BuyerID) == "" {
		verr.Add("buyer_id", "is required")
	}
	if d.SaleDate.IsZero() {
		verr.Add("sale_date", "is required")
	}
	if d.AmountPaid.IsNegative() {
		verr.Add("amount_paid", "must not be negative")
	}
	if len(d.Items) == 0 {
		verr.Add("items", "at least one line item is required")
	}

	items := make([]billing.LineItem, 0, len(d.Items))
	for i, it := range d.Items {
		prefix := fmt.Sprintf("items[%d]", i)
		fresh, err := it.Recompute()
		if err != nil {
			verr.Merge(prefix, err)
			continue
		}
		if opts.BlockOnInsufficientStock {
			if w := fresh.StockWarning(); w != nil {
				verr.Add(prefix+".quantity", w.Error())
			}
		}
		items = append(items, fresh)
	}

	if err := verr.Err(); err != nil {
		return nil, err
	}

	bill := billing.Compute(items, d.AmountPaid)
	rec := &SaleRecord{
		BuyerID:    strings.TrimSpace(d.BuyerID),
		Items:      items,
		SaleDate:   d.SaleDate,
		AmountPaid: d.AmountPaid,
		GrandTotal: bill.GrandTotal,
		AmountDue:  bill.AmountDue,
		Status:     bill.Status,
	}
	if d.ExistingID != "" {
		rec.ID = d.ExistingID
		rec.InvoiceNumber = d.InvoiceNumber
	}
	return rec, nil
}
