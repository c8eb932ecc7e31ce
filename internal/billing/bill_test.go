package billing

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustItem(t *testing.T, qty int, tier PriceTier) LineItem {
	t.Helper()
	item, err := ResolveLineItem(productA(), qty, LineOptions{Tier: tier})
	require.NoError(t, err)
	return item
}

func TestAggregate_Empty(t *testing.T) {
	totals := Aggregate(nil)
	assert.True(t, totals.GrandTotal.IsZero())
	assert.Equal(t, 0, totals.Lines)
}

func TestAggregate_SumIsOrderIndependent(t *testing.T) {
	items := []LineItem{
		mustItem(t, 3, TierRegular),
		mustItem(t, 10, TierBulk),
		mustItem(t, 1, TierBulk),
	}
	reversed := []LineItem{items[2], items[1], items[0]}

	a := Aggregate(items)
	b := Aggregate(reversed)

	assert.True(t, a.GrandTotal.Equal(decimal.NewFromInt(1180)), "got %s", a.GrandTotal)
	assert.True(t, a.GrandTotal.Equal(b.GrandTotal))
	assert.Equal(t, 3, a.Lines)
	assert.Equal(t, 14, a.Units)
}

func TestReconcile(t *testing.T) {
	grand := decimal.NewFromInt(1100)

	tests := []struct {
		name   string
		paid   int64
		due    int64
		status Status
		credit int64
	}{
		{name: "partial payment", paid: 500, due: 600, status: StatusDue},
		{name: "nothing paid", paid: 0, due: 1100, status: StatusDue},
		{name: "exact payment", paid: 1100, due: 0, status: StatusCompleted},
		{name: "overpayment keeps negative due", paid: 1200, due: -100, status: StatusCompleted, credit: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Reconcile(grand, decimal.NewFromInt(tt.paid))
			assert.Equal(t, tt.status, r.Status)
			assert.True(t, r.AmountDue.Equal(decimal.NewFromInt(tt.due)), "got %s", r.AmountDue)
			assert.True(t, r.Credit().Equal(decimal.NewFromInt(tt.credit)))
		})
	}
}

func TestReconcile_ZeroTotalIsCompleted(t *testing.T) {
	r := Reconcile(decimal.Zero, decimal.Zero)
	assert.Equal(t, StatusCompleted, r.Status)
	assert.True(t, r.AmountDue.IsZero())
}

func TestCompute_ExampleScenario(t *testing.T) {
	items := []LineItem{
		mustItem(t, 3, TierRegular),
		mustItem(t, 10, TierBulk),
	}

	bill := Compute(items, decimal.NewFromInt(500))
	assert.True(t, bill.GrandTotal.Equal(decimal.NewFromInt(1100)))
	assert.True(t, bill.AmountDue.Equal(decimal.NewFromInt(600)))
	assert.Equal(t, StatusDue, bill.Status)
	assert.Empty(t, bill.Warnings)

	bill = Compute(items, decimal.NewFromInt(1100))
	assert.Equal(t, StatusCompleted, bill.Status)
	assert.True(t, bill.AmountDue.IsZero())
}

func TestCompute_CollectsStockWarnings(t *testing.T) {
	p := productA()
	p.Stock = 2
	item, err := ResolveLineItem(p, 3, LineOptions{})
	require.NoError(t, err)

	bill := Compute([]LineItem{item}, decimal.Zero)
	require.Len(t, bill.Warnings, 1)
	assert.Equal(t, 1, bill.Warnings[0].Available)
}

func TestBill_JSONFields(t *testing.T) {
	bill := Compute([]LineItem{mustItem(t, 3, TierRegular)}, decimal.RequireFromString("50.5"))

	raw, err := json.Marshal(bill)
	require.NoError(t, err)

	var out struct {
		GrandTotal decimal.Decimal `json:"grand_total"`
		AmountDue  decimal.Decimal `json:"amount_due"`
		Status     Status          `json:"status"`
		Items      []LineItem      `json:"items"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "300", out.GrandTotal.String())
	assert.Equal(t, "249.5", out.AmountDue.String())
	assert.Equal(t, StatusDue, out.Status)
	require.Len(t, out.Items, 1)
}
