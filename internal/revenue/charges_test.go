package revenue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func succeeded(id string, amount int64, invoiceID string, bt *BalanceTransaction) ChargeRecord {
	return ChargeRecord{
		ID:                 id,
		Amount:             amount,
		Paid:               true,
		Status:             ChargeStatusSucceeded,
		InvoiceID:          invoiceID,
		BalanceTransaction: bt,
	}
}

func TestSuccessfulCharges(t *testing.T) {
	charges := []ChargeRecord{
		succeeded("ch_ok", 100, "", nil),
		{ID: "ch_unpaid", Amount: 100, Paid: false, Status: ChargeStatusSucceeded},
		{ID: "ch_failed", Amount: 100, Paid: true, Status: "failed"},
		{ID: "ch_pending", Amount: 100, Paid: false, Status: "pending"},
	}

	got := SuccessfulCharges(charges)
	require.Len(t, got, 1)
	assert.Equal(t, "ch_ok", got[0].ID)
}

func TestSummarizeCharges(t *testing.T) {
	tests := []struct {
		name    string
		charges []ChargeRecord
		want    ChargeTotals
	}{
		{
			name:    "no charges resets everything to zero",
			charges: nil,
			want:    ChargeTotals{FeesKnown: true},
		},
		{
			name: "gross and average",
			charges: []ChargeRecord{
				succeeded("ch_1", 100, "", &BalanceTransaction{Fee: 33, Net: 67}),
				succeeded("ch_2", 200, "", &BalanceTransaction{Fee: 36, Net: 164}),
			},
			want: ChargeTotals{Count: 2, Gross: 3.0, Average: 1.5, Fees: 0.69, Net: 2.31, FeesKnown: true},
		},
		{
			name:    "actual fee and net from balance transaction",
			charges: []ChargeRecord{succeeded("ch_1", 100, "", &BalanceTransaction{Fee: 5, Net: 95})},
			want:    ChargeTotals{Count: 1, Gross: 1.0, Average: 1.0, Fees: 0.05, Net: 0.95, FeesKnown: true},
		},
		{
			name: "missing balance transaction degrades to gross only",
			charges: []ChargeRecord{
				succeeded("ch_1", 100, "", &BalanceTransaction{Fee: 5, Net: 95}),
				succeeded("ch_2", 200, "", nil),
			},
			want: ChargeTotals{Count: 2, Gross: 3.0, Average: 1.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SummarizeCharges(tt.charges)
			assert.Equal(t, tt.want.Count, got.Count)
			assert.Equal(t, tt.want.FeesKnown, got.FeesKnown)
			assert.InDelta(t, tt.want.Gross, got.Gross, 1e-9)
			assert.InDelta(t, tt.want.Average, got.Average, 1e-9)
			assert.InDelta(t, tt.want.Fees, got.Fees, 1e-9)
			assert.InDelta(t, tt.want.Net, got.Net, 1e-9)
		})
	}
}

func TestChargePass_UsesTrailingWindow(t *testing.T) {
	billing := newFakeBilling()
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	engine := NewEngine(billing, &recordingSink{}, Options{Now: func() time.Time { return now }})

	require.NoError(t, engine.ChargePass(context.Background()))
	assert.Equal(t, now.Add(-24*time.Hour), billing.chargeSince)
}

func TestChargePass_PlanBreakdown(t *testing.T) {
	billing := newFakeBilling()
	billing.charges = []ChargeRecord{
		succeeded("ch_1", 100, "inv_1", nil),
		succeeded("ch_2", 200, "inv_1", nil),
		succeeded("ch_3", 500, "", nil), // one-off payment, no invoice
		{ID: "ch_4", Amount: 900, Paid: false, Status: "failed", InvoiceID: "inv_2"},
	}
	billing.invoices["inv_1"] = testInvoice("inv_1")
	observer := newCountingObserver()
	sink := &recordingSink{}
	engine := NewEngine(billing, sink, Options{Fees: testFees(), Observer: observer})

	require.NoError(t, engine.ChargePass(context.Background()))

	require.Len(t, sink.totals, 1)
	assert.Equal(t, 3, sink.totals[0].Count)
	assert.InDelta(t, 8.0, sink.totals[0].Gross, 1e-9)

	require.Len(t, sink.planCharges, 1)
	byPlan := sink.planCharges[0]
	assert.Equal(t, int64(2), byPlan.CountsByPlan["Test Plan"])
	assert.InDelta(t, 20.0, byPlan.RevenueByPlan["Test Plan"], 1e-9)
	// No balance transaction: estimated fee 10*0.029+0.30 per line
	assert.InDelta(t, 2*(10-0.59), byPlan.NetByPlan["Test Plan"], 1e-9)

	// Invoice fetched once per cycle, failed charge never fetched
	assert.Equal(t, 1, billing.invoiceCalls["inv_1"])
	assert.Zero(t, billing.invoiceCalls["inv_2"])
	assert.Equal(t, 1, observer.hits[CacheInvoice])
	assert.Equal(t, 1, observer.misses[CacheInvoice])
}

func TestChargePass_NetByPlanUsesActualFee(t *testing.T) {
	billing := newFakeBilling()
	billing.charges = []ChargeRecord{
		succeeded("ch_1", 1000, "inv_1", &BalanceTransaction{Fee: 59, Net: 941}),
		succeeded("ch_2", 1000, "inv_1", &BalanceTransaction{Fee: 80, Net: 920}),
	}
	billing.invoices["inv_1"] = testInvoice("inv_1")
	sink := &recordingSink{}

	require.NoError(t, NewEngine(billing, sink, Options{Fees: testFees()}).ChargePass(context.Background()))

	// Both charges map to inv_1; the first charge's fee is used for every line
	byPlan := sink.planCharges[0]
	assert.InDelta(t, 2*(10-0.59), byPlan.NetByPlan["Test Plan"], 1e-9)
	assert.True(t, sink.totals[0].FeesKnown)
	assert.InDelta(t, 1.39, sink.totals[0].Fees, 1e-9)
	assert.InDelta(t, 18.61, sink.totals[0].Net, 1e-9)
}

func TestChargePass_PlanNameFallbacks(t *testing.T) {
	billing := newFakeBilling()
	billing.charges = []ChargeRecord{succeeded("ch_1", 4500, "inv_1", nil)}
	billing.invoices["inv_1"] = &Invoice{
		ID: "inv_1",
		Lines: []InvoiceLine{
			{Type: InvoiceLineTypeSubscription, PriceLine: PriceLine{PriceID: "price_a", UnitAmount: 1500, ProductName: "Team", Quantity: 2}},
			{Type: InvoiceLineTypeSubscription, PriceLine: PriceLine{PriceID: "price_b", UnitAmount: 1500}},
			{Type: "invoiceitem", PriceLine: PriceLine{PriceID: "price_c", UnitAmount: 99999, Nickname: "Setup fee"}},
		},
	}
	sink := &recordingSink{}

	require.NoError(t, NewEngine(billing, sink, Options{Fees: testFees()}).ChargePass(context.Background()))

	byPlan := sink.planCharges[0]
	assert.Equal(t, int64(2), byPlan.CountsByPlan["Team"])
	assert.InDelta(t, 30.0, byPlan.RevenueByPlan["Team"], 1e-9)
	assert.Equal(t, int64(1), byPlan.CountsByPlan["price_b"])
	assert.NotContains(t, byPlan.CountsByPlan, "Setup fee")
	assert.Zero(t, billing.productCalls["price_b"])
}

func TestChargePass_InvoiceFailureKeepsTotals(t *testing.T) {
	billing := newFakeBilling()
	billing.charges = []ChargeRecord{succeeded("ch_1", 100, "inv_1", nil)}
	billing.invoiceErr = errBoom
	sink := &recordingSink{}

	err := NewEngine(billing, sink, Options{}).ChargePass(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), "inv_1")

	require.Len(t, sink.totals, 1)
	assert.Equal(t, 1, sink.totals[0].Count)
	assert.Empty(t, sink.planCharges)
}

func TestChargePass_NoData(t *testing.T) {
	billing := newFakeBilling()
	billing.invoiceErr = errBoom // must not be reached
	sink := &recordingSink{}

	require.NoError(t, NewEngine(billing, sink, Options{}).ChargePass(context.Background()))

	assert.Equal(t, ChargeTotals{FeesKnown: true}, sink.totals[0])
	assert.Empty(t, sink.planCharges[0].CountsByPlan)
}
