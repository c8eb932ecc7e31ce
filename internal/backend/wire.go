package backend

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"sales_billing/internal/billing"
	"sales_billing/internal/sales"
)

// ref is a document reference that the backend sends either as a bare id or
// as the populated document.
type ref string

func (r *ref) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*r = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = ref(s)
		return nil
	}
	var doc struct {
		MongoID string `json:"_id"`
		ID      string `json:"id"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	if doc.MongoID != "" {
		*r = ref(doc.MongoID)
	} else {
		*r = ref(doc.ID)
	}
	return nil
}

// amount is a decimal the backend reads and writes as a JSON number.
type amount decimal.Decimal

func (a amount) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(a).String()), nil
}

func (a *amount) UnmarshalJSON(b []byte) error {
	return (*decimal.Decimal)(a).UnmarshalJSON(b)
}

func (a amount) dec() decimal.Decimal { return decimal.Decimal(a) }

type productDoc struct {
	ID            string          `json:"_id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Quantity      int             `json:"quantity"`
	PurchasePrice decimal.Decimal `json:"purchasePrice"`
	RegularPrice  decimal.Decimal `json:"regularPrice"`
	BulkPrice     decimal.Decimal `json:"bulkPrice"`
}

func (d productDoc) product() billing.Product {
	return billing.Product{
		ID:            d.ID,
		Name:          d.Name,
		Description:   d.Description,
		Stock:         d.Quantity,
		PurchasePrice: d.PurchasePrice,
		RegularPrice:  d.RegularPrice,
		BulkPrice:     d.BulkPrice,
	}
}

type buyerDoc struct {
	ID     string `json:"_id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	TownID ref    `json:"townId"`
}

func (d buyerDoc) buyer() sales.Buyer {
	return sales.Buyer{ID: d.ID, Name: d.Name, Type: d.Type, TownID: string(d.TownID)}
}

type townDoc struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	District string `json:"district"`
	State    string `json:"state"`
}

func (d townDoc) town() sales.Town {
	return sales.Town{ID: d.ID, Name: d.Name, District: d.District, State: d.State}
}

type saleLineDoc struct {
	Product      ref             `json:"product"`
	Quantity     int             `json:"quantity"`
	PricePerUnit amount `json:"pricePerUnit"`
	TotalAmount  amount `json:"totalAmount"`
}

type saleDoc struct {
	ID            string          `json:"_id,omitempty"`
	InvoiceNumber string          `json:"invoiceNumber,omitempty"`
	Products      []saleLineDoc   `json:"products"`
	Buyer         ref             `json:"buyer"`
	AmountPaid    amount          `json:"amountPaid"`
	GrandTotal    amount          `json:"grandTotal"`
	Status        billing.Status  `json:"status"`
	SaleDate      time.Time       `json:"saleDate"`
	CreatedAt     time.Time       `json:"createdAt,omitzero"`
}

func newSaleDoc(rec *sales.SaleRecord) saleDoc {
	doc := saleDoc{
		ID:            rec.ID,
		InvoiceNumber: rec.InvoiceNumber,
		Products:      make([]saleLineDoc, 0, len(rec.Items)),
		Buyer:         ref(rec.BuyerID),
		AmountPaid:    amount(rec.AmountPaid),
		GrandTotal:    amount(rec.GrandTotal),
		Status:        rec.Status,
		SaleDate:      rec.SaleDate,
	}
	for _, it := range rec.Items {
		doc.Products = append(doc.Products, saleLineDoc{
			Product:      ref(it.ProductID),
			Quantity:     it.Quantity,
			PricePerUnit: amount(it.UnitPrice),
			TotalAmount:  amount(it.Total),
		})
	}
	return doc
}

// record converts a stored sale. Totals are recomputed from the lines; the
// stored status and grand total are not trusted.
func (d saleDoc) record() *sales.SaleRecord {
	items := make([]billing.LineItem, 0, len(d.Products))
	for _, p := range d.Products {
		item, err := billing.NewLineItem(string(p.Product), p.Quantity, p.PricePerUnit.dec(), billing.TierManual)
		if err != nil {
			item = billing.LineItem{
				ProductID: string(p.Product),
				Quantity:  p.Quantity,
				Tier:      billing.TierManual,
				UnitPrice: p.PricePerUnit.dec(),
				Total:     p.TotalAmount.dec(),
			}
		}
		items = append(items, item)
	}
	bill := billing.Compute(items, d.AmountPaid.dec())
	return &sales.SaleRecord{
		ID:            d.ID,
		InvoiceNumber: d.InvoiceNumber,
		BuyerID:       string(d.Buyer),
		Items:         items,
		SaleDate:      d.SaleDate,
		AmountPaid:    d.AmountPaid.dec(),
		GrandTotal:    bill.GrandTotal,
		AmountDue:     bill.AmountDue,
		Status:        bill.Status,
		CreatedAt:     d.CreatedAt,
	}
}
