package sales

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"sales_billing/internal/billing"
)

// FormState is the lifecycle state of a sale form.
type FormState string

const (
	StateEditing    FormState = "editing"
	StateSubmitting FormState = "submitting"
	StatePersisted  FormState = "persisted"
)

var (
	// ErrSubmissionInProgress is returned for edits and submits while a
	// submission of the same form is in flight.
	ErrSubmissionInProgress = errors.New("submission in progress")
	// ErrFormClosed is returned for any change to an already persisted form.
	ErrFormClosed = errors.New("form already submitted")
	// ErrItemIndex is returned for line item positions out of range.
	ErrItemIndex = errors.New("line item index out of range")
)

type formLine struct {
	product billing.Product
	opts    billing.LineOptions
	item    billing.LineItem
}

// Form is one editing session of a sale. Line items are re-resolved on every
// change so totals are never stale, and at most one submission runs at a time.
type Form struct {
	mu sync.Mutex

	id         string
	state      FormState
	buyerID    string
	saleDate   time.Time
	amountPaid decimal.Decimal
	lines      []formLine

	existingID    string
	invoiceNumber string
	// returned is stock held by the stored sale being edited, per product.
	returned map[string]int

	opts      BuildOptions
	lastErr   error
	saved     *SaleRecord
	createdAt time.Time
	updatedAt time.Time
}

// NewForm opens an empty form in the editing state.
func NewForm(id string, opts BuildOptions) *Form {
	now := time.Now()
	return &Form{
		id:         id,
		state:      StateEditing,
		amountPaid: decimal.Zero,
		opts:       opts,
		createdAt:  now,
		updatedAt:  now,
	}
}

// ID returns the form session id.
func (f *Form) ID() string { return f.id }

// State returns the current lifecycle state.
func (f *Form) State() FormState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// editable must be called with f.mu held.
func (f *Form) editable() error {
	switch f.state {
	case StateSubmitting:
		return ErrSubmissionInProgress
	case StatePersisted:
		return ErrFormClosed
	}
	return nil
}

func (f *Form) touch() {
	f.updatedAt = time.Now()
}

// available must be called with f.mu held.
func (f *Form) available(p billing.Product) billing.Product {
	p.Stock += f.returned[p.ID]
	return p
}

// idleSince reports whether the form has not changed since cutoff. Forms
// with a submission in flight are never idle.
func (f *Form) idleSince(cutoff time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state != StateSubmitting && f.updatedAt.Before(cutoff)
}

// SetBuyer selects the buyer of the sale.
func (f *Form) SetBuyer(buyerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.editable(); err != nil {
		return err
	}
	f.buyerID = buyerID
	f.touch()
	return nil
}

// SetSaleDate sets the date the sale happened.
func (f *Form) SetSaleDate(t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.editable(); err != nil {
		return err
	}
	f.saleDate = t
	f.touch()
	return nil
}

// SetAmountPaid records how much the buyer has paid.
func (f *Form) SetAmountPaid(amount decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.editable(); err != nil {
		return err
	}
	if amount.IsNegative() {
		verr := &billing.ValidationError{}
		verr.Add("amount_paid", "must not be negative")
		return verr
	}
	f.amountPaid = amount
	f.touch()
	return nil
}

// AddItem appends a line item for product and returns its position.
func (f *Form) AddItem(product billing.Product, quantity int, opts billing.LineOptions) (int, billing.LineItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.editable(); err != nil {
		return 0, billing.LineItem{}, err
	}

	item, err := billing.ResolveLineItem(f.available(product), quantity, opts)
	if err != nil {
		return 0, billing.LineItem{}, err
	}
	f.lines = append(f.lines, formLine{product: product, opts: opts, item: item})
	f.touch()
	return len(f.lines) - 1, item, nil
}

// ReplaceItem re-prices the line item at index.
func (f *Form) ReplaceItem(index int, product billing.Product, quantity int, opts billing.LineOptions) (billing.LineItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.editable(); err != nil {
		return billing.LineItem{}, err
	}
	if index < 0 || index >= len(f.lines) {
		return billing.LineItem{}, fmt.Errorf("%w: %d", ErrItemIndex, index)
	}

	item, err := billing.ResolveLineItem(f.available(product), quantity, opts)
	if err != nil {
		return billing.LineItem{}, err
	}
	f.lines[index] = formLine{product: product, opts: opts, item: item}
	f.touch()
	return item, nil
}

// RemoveItem drops the line item at index; later items shift down.
func (f *Form) RemoveItem(index int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.editable(); err != nil {
		return err
	}
	if index < 0 || index >= len(f.lines) {
		return fmt.Errorf("%w: %d", ErrItemIndex, index)
	}
	f.lines = append(f.lines[:index], f.lines[index+1:]...)
	f.touch()
	return nil
}

// Item returns the line item at index and the product it was priced from.
func (f *Form) Item(index int) (billing.LineItem, billing.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if index < 0 || index >= len(f.lines) {
		return billing.LineItem{}, billing.Product{}, fmt.Errorf("%w: %d", ErrItemIndex, index)
	}
	l := f.lines[index]
	return l.item, l.product, nil
}

// Bill computes the current totals of the form.
func (f *Form) Bill() billing.Bill {
	f.mu.Lock()
	defer f.mu.Unlock()
	return billing.Compute(f.items(), f.amountPaid)
}

func (f *Form) items() []billing.LineItem {
	items := make([]billing.LineItem, 0, len(f.lines))
	for _, l := range f.lines {
		items = append(items, l.item)
	}
	return items
}

// draft must be called with f.mu held.
func (f *Form) draft() Draft {
	return Draft{
		BuyerID:       f.buyerID,
		Items:         f.items(),
		SaleDate:      f.saleDate,
		AmountPaid:    f.amountPaid,
		ExistingID:    f.existingID,
		InvoiceNumber: f.invoiceNumber,
	}
}

// Draft returns the current inputs of the form.
func (f *Form) Draft() Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft()
}

// Submit validates the form and hands the record to p. Validation failures
// leave the form untouched and never reach p. A failed submission returns the
// form to editing with all data kept; a successful one closes it.
func (f *Form) Submit(ctx context.Context, p Persister) (*SaleRecord, error) {
	f.mu.Lock()
	if err := f.editable(); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	rec, err := BuildSaleRecord(f.draft(), f.opts)
	if err != nil {
		f.lastErr = err
		f.mu.Unlock()
		return nil, err
	}
	f.state = StateSubmitting
	f.lastErr = nil
	f.mu.Unlock()

	saved, err := persist(ctx, p, rec)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.touch()
	if err != nil {
		f.state = StateEditing
		f.lastErr = err
		return nil, err
	}
	f.state = StatePersisted
	f.saved = saved
	return saved, nil
}

// FormView is a read-only snapshot of a form.
type FormView struct {
	ID            string       `json:"id"`
	State         FormState    `json:"state"`
	BuyerID       string       `json:"buyer_id"`
	SaleDate      *time.Time   `json:"sale_date,omitempty"`
	SaleID        string       `json:"sale_id,omitempty"`
	InvoiceNumber string       `json:"invoice_number,omitempty"`
	Bill          billing.Bill `json:"bill"`
	LastError     string       `json:"last_error,omitempty"`
	Saved         *SaleRecord  `json:"saved,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// View snapshots the form.
func (f *Form) View() FormView {
	f.mu.Lock()
	defer f.mu.Unlock()

	v := FormView{
		ID:            f.id,
		State:         f.state,
		BuyerID:       f.buyerID,
		SaleID:        f.existingID,
		InvoiceNumber: f.invoiceNumber,
		Bill:          billing.Compute(f.items(), f.amountPaid),
		Saved:         f.saved,
		CreatedAt:     f.createdAt,
		UpdatedAt:     f.updatedAt,
	}
	if !f.saleDate.IsZero() {
		d := f.saleDate
		v.SaleDate = &d
	}
	if f.lastErr != nil {
		v.LastError = f.lastErr.Error()
	}
	if f.saved != nil {
		v.SaleID = f.saved.ID
		v.InvoiceNumber = f.saved.InvoiceNumber
	}
	return v
}

// ReopenForm loads a stored sale into a new form for editing. Submitting the
// form updates the same sale; its id and invoice number are kept. Items are
// re-priced at their stored unit price against the current catalog entry,
// or against a stand-in when the product is no longer listed. The catalog
// stock already excludes what the stored sale took, so those quantities
// count as available again while the form is open.
func ReopenForm(id string, rec *SaleRecord, catalog map[string]billing.Product, opts BuildOptions) (*Form, error) {
	if rec == nil || rec.ID == "" {
		return nil, errors.New("reopen: sale has no id")
	}

	f := NewForm(id, opts)
	f.existingID = rec.ID
	f.invoiceNumber = rec.InvoiceNumber
	f.buyerID = rec.BuyerID
	f.saleDate = rec.SaleDate
	f.amountPaid = rec.AmountPaid

	f.returned = make(map[string]int, len(rec.Items))
	for _, it := range rec.Items {
		if _, ok := catalog[it.ProductID]; ok {
			f.returned[it.ProductID] += it.Quantity
		}
	}

	for i, it := range rec.Items {
		product, ok := catalog[it.ProductID]
		if !ok {
			product = billing.Product{
				ID:           it.ProductID,
				Stock:        it.Quantity,
				RegularPrice: it.UnitPrice,
				BulkPrice:    it.UnitPrice,
			}
		}
		lo := storedPriceOptions(product, it.UnitPrice)
		item, err := billing.ResolveLineItem(f.available(product), it.Quantity, lo)
		if err != nil {
			return nil, fmt.Errorf("reopen sale %s: item %d: %w", rec.ID, i, err)
		}
		f.lines = append(f.lines, formLine{product: product, opts: lo, item: item})
	}
	return f, nil
}

// storedPriceOptions maps a stored unit price back to the tier it came from.
func storedPriceOptions(p billing.Product, price decimal.Decimal) billing.LineOptions {
	switch {
	case price.Equal(p.RegularPrice):
		return billing.LineOptions{Tier: billing.TierRegular}
	case price.Equal(p.BulkPrice):
		return billing.LineOptions{Tier: billing.TierBulk}
	}
	return billing.LineOptions{UnitPrice: &price}
}
