package sales

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"sales_billing/internal/billing"
)

// InvoiceLine is a printable line item.
type InvoiceLine struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Description string `json:"description,omitempty"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Total       string `json:"total"`
}

// Invoice is the printable view of a sale form. Amounts carry two decimals.
type Invoice struct {
	InvoiceNumber string        `json:"invoice_number,omitempty"`
	BuyerName     string        `json:"buyer_name"`
	BuyerType     string        `json:"buyer_type"`
	InvoiceDate   string        `json:"invoice_date"`
	SaleDate      string        `json:"sale_date,omitempty"`
	Lines         []InvoiceLine `json:"lines"`
	GrandTotal    string        `json:"grand_total"`
	AmountPaid    string        `json:"amount_paid"`
	AmountDue     string        `json:"amount_due"`
	Status        string        `json:"status"`
}

const invoiceDateLayout = "2006-01-02"

// BuildInvoice renders a form as an invoice. Buyers and products are looked
// up by id; unknown ones are shown by id.
func BuildInvoice(f *Form, buyers []Buyer, products map[string]billing.Product) Invoice {
	view := f.View()

	inv := Invoice{
		InvoiceNumber: view.InvoiceNumber,
		BuyerName:     strings.ToUpper(view.BuyerID),
		InvoiceDate:   view.CreatedAt.Format(invoiceDateLayout),
		GrandTotal:    billing.FormatMoney(view.Bill.GrandTotal),
		AmountPaid:    billing.FormatMoney(view.Bill.AmountPaid),
		AmountDue:     billing.FormatMoney(view.Bill.AmountDue),
		Status:        statusLabel(view.Bill.Status),
		Lines:         make([]InvoiceLine, 0, len(view.Bill.Items)),
	}
	if view.Saved != nil && !view.Saved.CreatedAt.IsZero() {
		inv.InvoiceDate = view.Saved.CreatedAt.Format(invoiceDateLayout)
	}
	if view.SaleDate != nil {
		inv.SaleDate = view.SaleDate.Format(invoiceDateLayout)
	}
	for _, b := range buyers {
		if b.ID == view.BuyerID {
			inv.BuyerName = strings.ToUpper(b.Name)
			inv.BuyerType = strings.ToUpper(b.Type)
			break
		}
	}

	for _, it := range view.Bill.Items {
		line := InvoiceLine{
			ProductID:   it.ProductID,
			ProductName: it.ProductID,
			Quantity:    it.Quantity,
			UnitPrice:   billing.FormatMoney(it.UnitPrice),
			Total:       billing.FormatMoney(it.Total),
		}
		if p, ok := products[it.ProductID]; ok {
			line.ProductName = p.Name
			line.Description = p.Description
		}
		inv.Lines = append(inv.Lines, line)
	}
	return inv
}

func statusLabel(s billing.Status) string {
	if s == billing.StatusCompleted {
		return "Completed"
	}
	return "Due"
}

// Invoice renders the invoice of an open form.
func (s *Service) Invoice(ctx context.Context, formID string) (Invoice, error) {
	f, err := s.storage.Read(formID)
	if err != nil {
		return Invoice{}, err
	}
	buyers, err := s.catalog.ListBuyers(ctx)
	if err != nil {
		s.logger.Error("failed to list buyers", zap.Error(err))
		return Invoice{}, fmt.Errorf("%w: %v", ErrCatalog, err)
	}
	products, err := s.products(ctx)
	if err != nil {
		return Invoice{}, err
	}
	return BuildInvoice(f, buyers, products), nil
}
