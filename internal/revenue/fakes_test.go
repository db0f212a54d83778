package revenue

import (
	"context"
	"errors"
	"sync"
	"time"

	"stripe-exporter/internal/pricing"
)

var errBoom = errors.New("boom")

type fakeBilling struct {
	mu sync.Mutex

	subscriptions []Subscription
	subsErr       error
	charges       []ChargeRecord
	chargesErr    error
	invoices      map[string]*Invoice
	invoiceErr    error
	products      map[string]string
	productErr    error

	productCalls map[string]int
	invoiceCalls map[string]int
	chargeSince  time.Time
}

func newFakeBilling() *fakeBilling {
	return &fakeBilling{
		invoices:     make(map[string]*Invoice),
		products:     make(map[string]string),
		productCalls: make(map[string]int),
		invoiceCalls: make(map[string]int),
	}
}

func (f *fakeBilling) ActiveSubscriptions(ctx context.Context, fn func(Subscription) error) error {
	if f.subsErr != nil {
		return f.subsErr
	}
	for _, s := range f.subscriptions {
		if err := fn(s); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeBilling) RecentCharges(ctx context.Context, since time.Time) ([]ChargeRecord, error) {
	f.chargeSince = since
	if f.chargesErr != nil {
		return nil, f.chargesErr
	}
	return f.charges, nil
}

func (f *fakeBilling) Invoice(ctx context.Context, invoiceID string) (*Invoice, error) {
	f.mu.Lock()
	f.invoiceCalls[invoiceID]++
	f.mu.Unlock()
	if f.invoiceErr != nil {
		return nil, f.invoiceErr
	}
	inv, ok := f.invoices[invoiceID]
	if !ok {
		return nil, errors.New("no such invoice: " + invoiceID)
	}
	return inv, nil
}

func (f *fakeBilling) ProductName(ctx context.Context, productID string) (string, error) {
	f.mu.Lock()
	f.productCalls[productID]++
	f.mu.Unlock()
	if f.productErr != nil {
		return "", f.productErr
	}
	return f.products[productID], nil
}

type recordingSink struct {
	subscriptions []SubscriptionSummary
	totals        []ChargeTotals
	planCharges   []PlanCharges
}

func (s *recordingSink) PublishSubscriptions(v SubscriptionSummary) {
	s.subscriptions = append(s.subscriptions, v)
}

func (s *recordingSink) PublishChargeTotals(v ChargeTotals) {
	s.totals = append(s.totals, v)
}

func (s *recordingSink) PublishPlanCharges(v PlanCharges) {
	s.planCharges = append(s.planCharges, v)
}

type countingObserver struct {
	hits   map[string]int
	misses map[string]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{hits: map[string]int{}, misses: map[string]int{}}
}

func (o *countingObserver) RecordCacheOperation(cacheName string, hit bool) {
	if hit {
		o.hits[cacheName]++
	} else {
		o.misses[cacheName]++
	}
}

func testPlanItem() PriceLine {
	return PriceLine{
		PriceID:    "plan_123",
		UnitAmount: 1000,
		Nickname:   "Test Plan",
		ProductID:  "prod_123",
		Quantity:   1,
	}
}

func testInvoice(id string) *Invoice {
	return &Invoice{
		ID: id,
		Lines: []InvoiceLine{{
			Type: InvoiceLineTypeSubscription,
			PriceLine: PriceLine{
				PriceID:     "plan_123",
				UnitAmount:  1000,
				Nickname:    "Test Plan",
				ProductName: "Test Plan",
				Quantity:    1,
			},
		}},
	}
}

func testFees() pricing.FeeModel {
	return pricing.DefaultFeeModel()
}
