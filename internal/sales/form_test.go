package sales

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales_billing/internal/billing"
)

func filledForm(t *testing.T) *Form {
	t.Helper()
	f := NewForm("form-1", BuildOptions{})
	require.NoError(t, f.SetBuyer("buyer-1"))
	require.NoError(t, f.SetSaleDate(saleDay))
	_, _, err := f.AddItem(productA(), 3, billing.LineOptions{})
	require.NoError(t, err)
	_, _, err = f.AddItem(productA(), 10, billing.LineOptions{Tier: billing.TierBulk})
	require.NoError(t, err)
	return f
}

func TestForm_RecomputesOnEveryChange(t *testing.T) {
	f := filledForm(t)
	assert.True(t, f.Bill().GrandTotal.Equal(decimal.NewFromInt(1100)))

	_, err := f.ReplaceItem(0, productA(), 5, billing.LineOptions{})
	require.NoError(t, err)
	assert.True(t, f.Bill().GrandTotal.Equal(decimal.NewFromInt(1300)))

	require.NoError(t, f.SetAmountPaid(decimal.NewFromInt(1300)))
	assert.Equal(t, billing.StatusCompleted, f.Bill().Status)

	require.NoError(t, f.RemoveItem(1))
	bill := f.Bill()
	assert.True(t, bill.GrandTotal.Equal(decimal.NewFromInt(500)))
	assert.True(t, bill.AmountDue.Equal(decimal.NewFromInt(-800)))
}

func TestForm_EditErrors(t *testing.T) {
	f := filledForm(t)

	assert.ErrorIs(t, f.RemoveItem(7), ErrItemIndex)
	_, err := f.ReplaceItem(-1, productA(), 1, billing.LineOptions{})
	assert.ErrorIs(t, err, ErrItemIndex)

	err = f.SetAmountPaid(decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, billing.ErrValidation)

	_, _, err = f.AddItem(productA(), 0, billing.LineOptions{})
	assert.ErrorIs(t, err, billing.ErrValidation)
	assert.Len(t, f.Bill().Items, 2, "rejected items are not added")
}

func TestForm_SubmitCreates(t *testing.T) {
	be := newFakeBackend()
	f := filledForm(t)

	saved, err := f.Submit(context.Background(), be)
	require.NoError(t, err)

	assert.Equal(t, "sale-1", saved.ID)
	assert.Equal(t, "INV-0001", saved.InvoiceNumber)
	assert.Equal(t, StatePersisted, f.State())
	assert.Equal(t, 1, be.creates)
	assert.Equal(t, 0, be.updates)

	view := f.View()
	assert.Equal(t, "sale-1", view.SaleID)
	assert.Equal(t, "INV-0001", view.InvoiceNumber)
}

func TestForm_PersistedIsClosed(t *testing.T) {
	be := newFakeBackend()
	f := filledForm(t)
	_, err := f.Submit(context.Background(), be)
	require.NoError(t, err)

	assert.ErrorIs(t, f.SetBuyer("other"), ErrFormClosed)
	_, err = f.Submit(context.Background(), be)
	assert.ErrorIs(t, err, ErrFormClosed)
	assert.Equal(t, 1, be.creates)
}

func TestForm_ValidationFailureNeverReachesBackend(t *testing.T) {
	be := newFakeBackend()
	f := NewForm("form-1", BuildOptions{})
	require.NoError(t, f.SetBuyer("buyer-1"))
	require.NoError(t, f.SetSaleDate(saleDay))

	_, err := f.Submit(context.Background(), be)
	assert.ErrorIs(t, err, billing.ErrValidation)
	assert.Equal(t, 0, be.creates)
	assert.Equal(t, StateEditing, f.State())
	assert.NotEmpty(t, f.View().LastError)
}

func TestForm_PersistenceFailureReturnsToEditing(t *testing.T) {
	be := newFakeBackend()
	be.failWith = errors.New("connection refused")
	f := filledForm(t)

	_, err := f.Submit(context.Background(), be)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)

	var perr *PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "create", perr.Op)

	assert.Equal(t, StateEditing, f.State())
	assert.Len(t, f.Bill().Items, 2, "form data is kept for a retry")

	be.failWith = nil
	saved, err := f.Submit(context.Background(), be)
	require.NoError(t, err)
	assert.Equal(t, "sale-1", saved.ID)
	assert.Equal(t, 2, be.creates)
}

func TestForm_SingleSubmissionInFlight(t *testing.T) {
	be := newFakeBackend()
	be.block = make(chan struct{})
	be.entered = make(chan struct{}, 1)
	f := filledForm(t)

	done := make(chan error, 1)
	go func() {
		_, err := f.Submit(context.Background(), be)
		done <- err
	}()
	<-be.entered

	assert.Equal(t, StateSubmitting, f.State())
	_, err := f.Submit(context.Background(), be)
	assert.ErrorIs(t, err, ErrSubmissionInProgress)
	assert.ErrorIs(t, f.SetAmountPaid(decimal.NewFromInt(1)), ErrSubmissionInProgress)

	close(be.block)
	require.NoError(t, <-done)
	assert.Equal(t, StatePersisted, f.State())
	assert.Equal(t, 1, be.creates)
}

func TestReopenForm_UpdatesInPlace(t *testing.T) {
	be := newFakeBackend()
	stored := &SaleRecord{
		ID:            "sale-7",
		InvoiceNumber: "INV-0007",
		BuyerID:       "buyer-1",
		SaleDate:      saleDay,
		AmountPaid:    decimal.NewFromInt(500),
		Items: []billing.LineItem{
			{ProductID: "prod-a", Quantity: 3, UnitPrice: decimal.NewFromInt(100)},
			{ProductID: "prod-a", Quantity: 10, UnitPrice: decimal.NewFromInt(80)},
			{ProductID: "gone", Quantity: 2, UnitPrice: decimal.RequireFromString("9.99")},
		},
	}
	catalog := map[string]billing.Product{"prod-a": productA()}

	f, err := ReopenForm("form-9", stored, catalog, BuildOptions{})
	require.NoError(t, err)

	bill := f.Bill()
	require.Len(t, bill.Items, 3)
	assert.Equal(t, billing.TierRegular, bill.Items[0].Tier)
	assert.Equal(t, billing.TierBulk, bill.Items[1].Tier)
	assert.Equal(t, billing.TierRegular, bill.Items[2].Tier)
	assert.False(t, bill.Items[2].InsufficientStock())
	assert.Equal(t, "1119.98", billing.FormatMoney(bill.GrandTotal))

	require.NoError(t, f.SetAmountPaid(decimal.RequireFromString("1119.98")))
	saved, err := f.Submit(context.Background(), be)
	require.NoError(t, err)

	assert.Equal(t, "sale-7", saved.ID)
	assert.Equal(t, "INV-0007", saved.InvoiceNumber)
	assert.Equal(t, billing.StatusCompleted, saved.Status)
	assert.Equal(t, 1, be.updates)
	assert.Equal(t, 0, be.creates)
}

func TestReopenForm_RequiresID(t *testing.T) {
	_, err := ReopenForm("form-9", &SaleRecord{}, nil, BuildOptions{})
	assert.Error(t, err)
}

func TestReopenForm_CountsStoredQuantityAsAvailable(t *testing.T) {
	be := newFakeBackend()
	product := productA()
	product.Stock = 2
	stored := &SaleRecord{
		ID:         "sale-3",
		BuyerID:    "buyer-1",
		SaleDate:   saleDay,
		AmountPaid: decimal.NewFromInt(300),
		Items: []billing.LineItem{
			{ProductID: "prod-a", Quantity: 8, UnitPrice: decimal.NewFromInt(100)},
		},
	}
	opts := BuildOptions{BlockOnInsufficientStock: true}

	f, err := ReopenForm("form-3", stored, map[string]billing.Product{"prod-a": product}, opts)
	require.NoError(t, err)
	assert.Empty(t, f.Bill().Warnings)

	_, err = f.ReplaceItem(0, product, 10, billing.LineOptions{})
	require.NoError(t, err)
	assert.Empty(t, f.Bill().Warnings, "2 in stock plus 8 held by the sale")

	item, err := f.ReplaceItem(0, product, 11, billing.LineOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, item.Shortfall)

	_, err = f.ReplaceItem(0, product, 8, billing.LineOptions{})
	require.NoError(t, err)
	require.NoError(t, f.SetAmountPaid(decimal.NewFromInt(800)))

	saved, err := f.Submit(context.Background(), be)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusCompleted, saved.Status)
	assert.Equal(t, 1, be.updates)
}
