package billing

import "github.com/shopspring/decimal"

// Status of a sale with respect to payment.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusDue       Status = "due"
)

// Totals is the aggregate of a list of line items.
type Totals struct {
	GrandTotal decimal.Decimal `json:"grand_total"`
	Lines      int             `json:"lines"`
	Units      int             `json:"units"`
}

// Aggregate sums the line totals. An empty list totals zero.
func Aggregate(items []LineItem) Totals {
	t := Totals{GrandTotal: decimal.Zero}
	for _, it := range items {
		t.GrandTotal = t.GrandTotal.Add(it.Total)
		t.Lines++
		t.Units += it.Quantity
	}
	return t
}

// Reconciliation compares what is owed with what was paid.
type Reconciliation struct {
	AmountPaid decimal.Decimal `json:"amount_paid"`
	// AmountDue is signed; a negative value is credit owed to the buyer.
	AmountDue decimal.Decimal `json:"amount_due"`
	Status    Status          `json:"status"`
}

// Reconcile derives the amount due and the status of a sale.
func Reconcile(grandTotal, amountPaid decimal.Decimal) Reconciliation {
	status := StatusDue
	if amountPaid.GreaterThanOrEqual(grandTotal) {
		status = StatusCompleted
	}
	return Reconciliation{
		AmountPaid: amountPaid,
		AmountDue:  grandTotal.Sub(amountPaid),
		Status:     status,
	}
}

// Credit is the overpaid amount, zero when nothing was overpaid.
func (r Reconciliation) Credit() decimal.Decimal {
	if r.AmountDue.IsNegative() {
		return r.AmountDue.Neg()
	}
	return decimal.Zero
}

// Bill is the computed state of a cart: line items, totals and payment.
type Bill struct {
	Items []LineItem `json:"items"`
	Totals
	Reconciliation
	Warnings []*StockError `json:"warnings,omitempty"`
}

// Compute aggregates items and reconciles them against amountPaid.
func Compute(items []LineItem, amountPaid decimal.Decimal) Bill {
	if items == nil {
		items = []LineItem{}
	}
	totals := Aggregate(items)
	b := Bill{
		Items:          items,
		Totals:         totals,
		Reconciliation: Reconcile(totals.GrandTotal, amountPaid),
	}
	for _, it := range items {
		if w := it.StockWarning(); w != nil {
			b.Warnings = append(b.Warnings, w)
		}
	}
	return b
}
