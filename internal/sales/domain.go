package sales

import (
	"time"

	"github.com/shopspring/decimal"

	"sales_billing/internal/billing"
)

// Buyer is a customer as known to the shop backend.
type Buyer struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	TownID string `json:"town_id,omitempty"`
}

// Town groups buyers by location.
type Town struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	District string `json:"district"`
	State    string `json:"state"`
}

// SaleRecord represents a sale (bill) ready to be stored, or already stored,
// by the shop backend. ID and InvoiceNumber are assigned by the backend on
// first creation and never change afterwards.
type SaleRecord struct {
	ID            string             `json:"id,omitempty"`
	InvoiceNumber string             `json:"invoice_number,omitempty"`
	BuyerID       string             `json:"buyer_id"`
	Items         []billing.LineItem `json:"items"`
	SaleDate      time.Time          `json:"sale_date"`
	AmountPaid    decimal.Decimal    `json:"amount_paid"`
	GrandTotal    decimal.Decimal    `json:"grand_total"`
	AmountDue     decimal.Decimal    `json:"amount_due"`
	Status        billing.Status     `json:"status"`
	CreatedAt     time.Time          `json:"created_at,omitzero"`
}

// IsUpdate reports whether the record replaces an existing sale in place.
func (r *SaleRecord) IsUpdate() bool {
	return r.ID != ""
}
