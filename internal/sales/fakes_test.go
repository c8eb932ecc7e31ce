package sales

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"sales_billing/internal/billing"
)

func productA() billing.Product {
	return billing.Product{
		ID:            "prod-a",
		Name:          "Product A",
		Description:   "a product",
		Stock:         50,
		PurchasePrice: decimal.NewFromInt(60),
		RegularPrice:  decimal.NewFromInt(100),
		BulkPrice:     decimal.NewFromInt(80),
	}
}

var saleDay = time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

// fakeBackend implements Catalog and Persister in memory.
type fakeBackend struct {
	mu       sync.Mutex
	products []billing.Product
	buyers   []Buyer
	sales    map[string]*SaleRecord

	failWith error
	getErr   error
	// block, when set, holds persistence calls until it is closed.
	block   chan struct{}
	entered chan struct{}

	creates int
	updates int
	nextID  int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		products: []billing.Product{productA()},
		buyers:   []Buyer{{ID: "buyer-1", Name: "Ravi Stores", Type: "shopkeeper"}},
		sales:    map[string]*SaleRecord{},
	}
}

func (f *fakeBackend) ListProducts(ctx context.Context) ([]billing.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]billing.Product(nil), f.products...), nil
}

func (f *fakeBackend) ListBuyers(ctx context.Context) ([]Buyer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Buyer(nil), f.buyers...), nil
}

func (f *fakeBackend) ListTowns(ctx context.Context) ([]Town, error) {
	return nil, nil
}

func (f *fakeBackend) ListSales(ctx context.Context) ([]*SaleRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	out := make([]*SaleRecord, 0, len(f.sales))
	for i := 1; i <= f.nextID; i++ {
		if rec, ok := f.sales[fmt.Sprintf("sale-%d", i)]; ok {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeBackend) GetSale(ctx context.Context, id string) (*SaleRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	rec, ok := f.sales[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSaleNotFound, id)
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeBackend) wait() {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
}

func (f *fakeBackend) CreateSale(ctx context.Context, rec *SaleRecord) (*SaleRecord, error) {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.nextID++
	saved := *rec
	saved.ID = fmt.Sprintf("sale-%d", f.nextID)
	saved.InvoiceNumber = fmt.Sprintf("INV-%04d", f.nextID)
	saved.CreatedAt = time.Now()
	f.sales[saved.ID] = &saved
	out := saved
	return &out, nil
}

func (f *fakeBackend) UpdateSale(ctx context.Context, rec *SaleRecord) (*SaleRecord, error) {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	if f.failWith != nil {
		return nil, f.failWith
	}
	saved := *rec
	f.sales[saved.ID] = &saved
	out := saved
	return &out, nil
}

type countingRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (r *countingRecorder) ObserveSubmission(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = map[string]int{}
	}
	r.outcomes[outcome]++
}

func (r *countingRecorder) count(outcome string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcomes[outcome]
}
