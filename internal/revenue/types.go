// Package revenue turns Stripe billing data into subscription and payment
// aggregates: active subscription counts and MRR by plan, and trailing 24h
// payment counts, revenue and fees, globally and by plan.
package revenue

import (
	"context"
	"time"
)

const (
	// ChargeStatusSucceeded is the only charge status that counts as revenue.
	ChargeStatusSucceeded = "succeeded"

	// InvoiceLineTypeSubscription marks invoice lines generated by a subscription.
	InvoiceLineTypeSubscription = "subscription"
)

// PriceLine is a priced line item: a subscription item or an invoice line.
type PriceLine struct {
	PriceID    string
	UnitAmount int64 // minor units
	Nickname   string
	ProductID  string
	// ProductName is only set when the product was expanded in the API response.
	ProductName string
	Quantity    int64
}

// EffectiveQuantity treats a missing quantity as a single unit.
func (p PriceLine) EffectiveQuantity() int64 {
	if p.Quantity <= 0 {
		return 1
	}
	return p.Quantity
}

// Subscription is an active subscription and its priced items.
type Subscription struct {
	ID    string
	Items []PriceLine
}

// BalanceTransaction carries the actual fee and net amount Stripe settled for a charge.
type BalanceTransaction struct {
	Fee int64 // minor units
	Net int64 // minor units
}

// ChargeRecord is a charge as listed by the billing API.
type ChargeRecord struct {
	ID        string
	Amount    int64 // minor units
	Paid      bool
	Status    string
	InvoiceID string
	// BalanceTransaction is nil when Stripe did not return fee data.
	BalanceTransaction *BalanceTransaction
}

// Succeeded reports whether the charge counts toward revenue.
func (c ChargeRecord) Succeeded() bool {
	return c.Paid && c.Status == ChargeStatusSucceeded
}

// InvoiceLine is one line of an invoice.
type InvoiceLine struct {
	Type string
	PriceLine
}

// Invoice is an invoice with its lines.
type Invoice struct {
	ID    string
	Lines []InvoiceLine
}

// BillingAPI is the subset of the billing provider the exporter reads from.
// Every method may block on network I/O and fail on transport or auth errors.
type BillingAPI interface {
	// ActiveSubscriptions streams every active subscription to fn, following
	// pagination. A non-nil error from fn stops the iteration and is returned.
	ActiveSubscriptions(ctx context.Context, fn func(Subscription) error) error
	// RecentCharges returns one page of charges created at or after since.
	RecentCharges(ctx context.Context, since time.Time) ([]ChargeRecord, error)
	// Invoice retrieves an invoice with its line prices and products expanded.
	Invoice(ctx context.Context, invoiceID string) (*Invoice, error)
	// ProductName retrieves the display name of a product.
	ProductName(ctx context.Context, productID string) (string, error)
}

// SubscriptionSummary is the result of the subscription pass.
type SubscriptionSummary struct {
	ActiveCount    int
	CountsByPlan   map[string]int64
	GrossMRRByPlan map[string]float64
	NetMRRByPlan   map[string]float64
}

// ChargeTotals are the global trailing-window payment figures.
type ChargeTotals struct {
	Count   int
	Gross   float64
	Average float64
	// Fees and Net are only meaningful when FeesKnown is set, i.e. every
	// successful charge carried a balance transaction.
	Fees      float64
	Net       float64
	FeesKnown bool
}

// PlanCharges are the trailing-window payment figures attributed to plans.
type PlanCharges struct {
	CountsByPlan  map[string]int64
	RevenueByPlan map[string]float64
	NetByPlan     map[string]float64
}

// Sink receives aggregates as they are computed. Each publish overwrites the
// values it carries and leaves every other value untouched.
type Sink interface {
	PublishSubscriptions(SubscriptionSummary)
	PublishChargeTotals(ChargeTotals)
	PublishPlanCharges(PlanCharges)
}

// CacheObserver is notified of cache lookups.
type CacheObserver interface {
	RecordCacheOperation(cacheName string, hit bool)
}
