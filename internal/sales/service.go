package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"sales_billing/internal/billing"
)

// ErrCatalog wraps failures to read products, buyers or sales from the backend.
var ErrCatalog = errors.New("catalog unavailable")

// ErrSaleNotFound is returned when the backend has no sale with the given id.
var ErrSaleNotFound = errors.New("sale not found")

// ErrUnknownProduct is returned when an item references a product the catalog does not list.
var ErrUnknownProduct = errors.New("unknown product")

// Catalog reads reference data and stored sales from the shop backend.
// Lists are complete. GetSale returns ErrSaleNotFound for unknown ids.
type Catalog interface {
	ListProducts(ctx context.Context) ([]billing.Product, error)
	ListBuyers(ctx context.Context) ([]Buyer, error)
	ListTowns(ctx context.Context) ([]Town, error)
	ListSales(ctx context.Context) ([]*SaleRecord, error)
	GetSale(ctx context.Context, id string) (*SaleRecord, error)
}

// Submission outcomes reported to the Recorder.
const (
	OutcomeCreated           = "created"
	OutcomeUpdated           = "updated"
	OutcomeValidationFailed  = "validation_failed"
	OutcomePersistenceFailed = "persistence_failed"
	OutcomeRejected          = "rejected"
)

// Recorder observes submission outcomes.
type Recorder interface {
	ObserveSubmission(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveSubmission(string) {}

// Service drives sale forms: it resolves items against the catalog, keeps
// open forms and submits finished ones to the backend.
type Service struct {
	storage   Storage
	catalog   Catalog
	persister Persister
	logger    *zap.Logger
	opts      BuildOptions
	recorder  Recorder
}

// Option customizes a Service.
type Option func(*Service)

// WithBuildOptions sets the sale policies applied on submit.
func WithBuildOptions(opts BuildOptions) Option {
	return func(s *Service) { s.opts = opts }
}

// WithRecorder sets where submission outcomes are reported.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// NewService creates a new Service.
func NewService(storage Storage, catalog Catalog, persister Persister, logger *zap.Logger, options ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		storage:   storage,
		catalog:   catalog,
		persister: persister,
		logger:    logger,
		recorder:  nopRecorder{},
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// ItemInput is a requested line item.
type ItemInput struct {
	ProductID string
	Quantity  int
	Tier      billing.PriceTier
	UnitPrice *decimal.Decimal
}

func (in ItemInput) options() billing.LineOptions {
	return billing.LineOptions{Tier: in.Tier, UnitPrice: in.UnitPrice}
}

// FormInput holds the header fields of a new form. All are optional.
type FormInput struct {
	BuyerID    string
	SaleDate   time.Time
	AmountPaid decimal.Decimal
}

// FormPatch changes the header fields that are set.
type FormPatch struct {
	BuyerID    *string
	SaleDate   *time.Time
	AmountPaid *decimal.Decimal
}

func (s *Service) products(ctx context.Context) (map[string]billing.Product, error) {
	list, err := s.catalog.ListProducts(ctx)
	if err != nil {
		s.logger.Error("failed to list products", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrCatalog, err)
	}
	byID := make(map[string]billing.Product, len(list))
	for _, p := range list {
		byID[p.ID] = p
	}
	return byID, nil
}

func (s *Service) product(ctx context.Context, id string) (billing.Product, error) {
	if id == "" {
		verr := &billing.ValidationError{}
		verr.Add("product_id", "is required")
		return billing.Product{}, verr
	}
	byID, err := s.products(ctx)
	if err != nil {
		return billing.Product{}, err
	}
	p, ok := byID[id]
	if !ok {
		return billing.Product{}, fmt.Errorf("%w: %s", ErrUnknownProduct, id)
	}
	return p, nil
}

// Quote prices items without opening a form.
func (s *Service) Quote(ctx context.Context, items []ItemInput, amountPaid decimal.Decimal) (billing.Bill, error) {
	verr := &billing.ValidationError{}
	if amountPaid.IsNegative() {
		verr.Add("amount_paid", "must not be negative")
	}

	byID, err := s.products(ctx)
	if err != nil {
		return billing.Bill{}, err
	}

	lines := make([]billing.LineItem, 0, len(items))
	for i, in := range items {
		prefix := fmt.Sprintf("items[%d]", i)
		p, ok := byID[in.ProductID]
		if !ok {
			verr.Add(prefix+".product_id", "unknown product")
			continue
		}
		item, err := billing.ResolveLineItem(p, in.Quantity, in.options())
		if err != nil {
			verr.Merge(prefix, err)
			continue
		}
		lines = append(lines, item)
	}
	if err := verr.Err(); err != nil {
		return billing.Bill{}, err
	}
	return billing.Compute(lines, amountPaid), nil
}

// OpenForm starts a new sale form.
func (s *Service) OpenForm(in FormInput) (*Form, error) {
	if in.AmountPaid.IsNegative() {
		verr := &billing.ValidationError{}
		verr.Add("amount_paid", "must not be negative")
		return nil, verr
	}

	f := NewForm(uuid.NewString(), s.opts)
	f.buyerID = in.BuyerID
	f.saleDate = in.SaleDate
	f.amountPaid = in.AmountPaid

	if err := s.storage.Set(f); err != nil {
		s.logger.Error("failed to store form", zap.String("form_id", f.ID()), zap.Error(err))
		return nil, fmt.Errorf("failed to store form: %w", err)
	}
	s.logger.Info("form opened", zap.String("form_id", f.ID()), zap.String("buyer_id", in.BuyerID))
	return f, nil
}

// ReopenSale fetches a stored sale and opens a form that updates it in place.
func (s *Service) ReopenSale(ctx context.Context, saleID string) (*Form, error) {
	rec, err := s.catalog.GetSale(ctx, saleID)
	if errors.Is(err, ErrSaleNotFound) {
		s.logger.Warn("sale not found", zap.String("sale_id", saleID))
		return nil, err
	}
	if err != nil {
		s.logger.Error("failed to fetch sale", zap.String("sale_id", saleID), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrCatalog, err)
	}
	byID, err := s.products(ctx)
	if err != nil {
		return nil, err
	}

	f, err := ReopenForm(uuid.NewString(), rec, byID, s.opts)
	if err != nil {
		return nil, err
	}
	if err := s.storage.Set(f); err != nil {
		return nil, fmt.Errorf("failed to store form: %w", err)
	}
	s.logger.Info("sale reopened", zap.String("form_id", f.ID()), zap.String("sale_id", saleID),
		zap.String("invoice_number", rec.InvoiceNumber))
	return f, nil
}

// ListSales returns the stored sales with totals recomputed from their lines.
func (s *Service) ListSales(ctx context.Context) ([]*SaleRecord, error) {
	recs, err := s.catalog.ListSales(ctx)
	if err != nil {
		s.logger.Error("failed to list sales", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrCatalog, err)
	}
	return recs, nil
}

// GetForm returns an open form.
func (s *Service) GetForm(id string) (*Form, error) {
	return s.storage.Read(id)
}

// ListForms returns all open forms.
func (s *Service) ListForms() ([]*Form, error) {
	return s.storage.GetAll()
}

// EditForm applies the set fields of patch.
func (s *Service) EditForm(id string, patch FormPatch) (*Form, error) {
	f, err := s.storage.Read(id)
	if err != nil {
		return nil, err
	}
	if patch.BuyerID != nil {
		if err := f.SetBuyer(*patch.BuyerID); err != nil {
			return nil, err
		}
	}
	if patch.SaleDate != nil {
		if err := f.SetSaleDate(*patch.SaleDate); err != nil {
			return nil, err
		}
	}
	if patch.AmountPaid != nil {
		if err := f.SetAmountPaid(*patch.AmountPaid); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// AddItem resolves in against the catalog and appends it to the form.
func (s *Service) AddItem(ctx context.Context, formID string, in ItemInput) (*Form, error) {
	f, err := s.storage.Read(formID)
	if err != nil {
		return nil, err
	}
	p, err := s.product(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	if _, _, err := f.AddItem(p, in.Quantity, in.options()); err != nil {
		return nil, err
	}
	return f, nil
}

// UpdateItem re-prices the item at index. An empty product id keeps the
// item's current product.
func (s *Service) UpdateItem(ctx context.Context, formID string, index int, in ItemInput) (*Form, error) {
	f, err := s.storage.Read(formID)
	if err != nil {
		return nil, err
	}
	current, _, err := f.Item(index)
	if err != nil {
		return nil, err
	}
	if in.ProductID == "" {
		in.ProductID = current.ProductID
	}
	p, err := s.product(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	if _, err := f.ReplaceItem(index, p, in.Quantity, in.options()); err != nil {
		return nil, err
	}
	return f, nil
}

// RemoveItem drops the item at index.
func (s *Service) RemoveItem(formID string, index int) (*Form, error) {
	f, err := s.storage.Read(formID)
	if err != nil {
		return nil, err
	}
	if err := f.RemoveItem(index); err != nil {
		return nil, err
	}
	return f, nil
}

// Submit builds the sale record of a form and stores it in the backend.
func (s *Service) Submit(ctx context.Context, formID string) (*SaleRecord, error) {
	f, err := s.storage.Read(formID)
	if err != nil {
		return nil, err
	}

	rec, err := f.Submit(ctx, s.persister)
	if err != nil {
		var verr *billing.ValidationError
		var perr *PersistenceError
		switch {
		case errors.As(err, &verr):
			s.recorder.ObserveSubmission(OutcomeValidationFailed)
			s.logger.Warn("sale rejected by validation", zap.String("form_id", formID), zap.Error(err))
		case errors.As(err, &perr):
			s.recorder.ObserveSubmission(OutcomePersistenceFailed)
			s.logger.Error("failed to persist sale", zap.String("form_id", formID), zap.String("op", perr.Op), zap.Error(err))
		default:
			s.recorder.ObserveSubmission(OutcomeRejected)
			s.logger.Warn("submission rejected", zap.String("form_id", formID), zap.Error(err))
		}
		return nil, err
	}

	outcome := OutcomeCreated
	if f.Draft().ExistingID != "" {
		outcome = OutcomeUpdated
	}
	s.recorder.ObserveSubmission(outcome)
	s.logger.Info("sale "+outcome,
		zap.String("form_id", formID),
		zap.String("sale_id", rec.ID),
		zap.String("invoice_number", rec.InvoiceNumber),
		zap.String("grand_total", rec.GrandTotal.String()),
		zap.String("status", string(rec.Status)),
	)
	return rec, nil
}

// DiscardForm drops an open form.
func (s *Service) DiscardForm(id string) error {
	if err := s.storage.Delete(id); err != nil {
		return err
	}
	s.logger.Info("form discarded", zap.String("form_id", id))
	return nil
}
