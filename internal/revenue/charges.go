package revenue

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"stripe-exporter/internal/pricing"
)

// ChargePass computes the trailing-window payment metrics. Global totals are
// published before invoices are fetched, so an invoice failure still leaves
// the totals of this cycle visible.
func (e *Engine) ChargePass(ctx context.Context) error {
	since := e.now().Add(-e.window)
	charges, err := e.billing.RecentCharges(ctx, since)
	if err != nil {
		return fmt.Errorf("list charges: %w", err)
	}

	successes := SuccessfulCharges(charges)
	totals := SummarizeCharges(successes)
	e.sink.PublishChargeTotals(totals)
	if !totals.FeesKnown {
		e.logger.Warn("balance transactions missing, fee and net totals not updated",
			zap.Int("successful_charges", totals.Count),
		)
	}

	byPlan, err := e.planCharges(ctx, successes)
	if err != nil {
		return err
	}
	e.sink.PublishPlanCharges(byPlan)
	return nil
}

// SuccessfulCharges filters charges down to paid, succeeded ones.
func SuccessfulCharges(charges []ChargeRecord) []ChargeRecord {
	out := make([]ChargeRecord, 0, len(charges))
	for _, c := range charges {
		if c.Succeeded() {
			out = append(out, c)
		}
	}
	return out
}

// SummarizeCharges computes the global totals over successful charges.
// Fees and net are only reported when every charge has a balance transaction.
func SummarizeCharges(successes []ChargeRecord) ChargeTotals {
	var grossCents, feeCents, netCents int64
	feesKnown := true
	for _, c := range successes {
		grossCents += c.Amount
		if c.BalanceTransaction == nil {
			feesKnown = false
			continue
		}
		feeCents += c.BalanceTransaction.Fee
		netCents += c.BalanceTransaction.Net
	}

	totals := ChargeTotals{
		Count:     len(successes),
		Gross:     pricing.ToMajor(grossCents),
		FeesKnown: feesKnown,
	}
	totals.Average = pricing.Average(totals.Gross, totals.Count)
	if feesKnown {
		totals.Fees = pricing.ToMajor(feeCents)
		totals.Net = pricing.ToMajor(netCents)
	}
	return totals
}

// planCharges attributes successful charges to plans through their invoices.
// Each charge contributes every subscription line of its invoice; invoices are
// fetched once per cycle.
func (e *Engine) planCharges(ctx context.Context, successes []ChargeRecord) (PlanCharges, error) {
	out := PlanCharges{
		CountsByPlan:  make(map[string]int64),
		RevenueByPlan: make(map[string]float64),
		NetByPlan:     make(map[string]float64),
	}

	invoices := make(map[string]*Invoice)
	for _, charge := range successes {
		if charge.InvoiceID == "" {
			continue
		}

		inv, ok := invoices[charge.InvoiceID]
		e.recordCache(CacheInvoice, ok)
		if !ok {
			fetched, err := e.billing.Invoice(ctx, charge.InvoiceID)
			if err != nil {
				return PlanCharges{}, fmt.Errorf("retrieve invoice %s: %w", charge.InvoiceID, err)
			}
			inv = fetched
			invoices[charge.InvoiceID] = inv
		}

		bt := invoiceBalanceTransaction(successes, charge.InvoiceID)
		for _, line := range inv.Lines {
			if line.Type != InvoiceLineTypeSubscription {
				continue
			}
			plan := e.resolver.ResolveExpanded(line.PriceLine)
			qty := line.EffectiveQuantity()
			gross := pricing.LineGross(line.UnitAmount, qty)

			fee := e.fees.EstimateFee(gross)
			if bt != nil {
				fee = pricing.ToMajor(bt.Fee)
			}

			out.CountsByPlan[plan] += qty
			out.RevenueByPlan[plan] += gross
			out.NetByPlan[plan] += gross - fee
		}
	}
	return out, nil
}

// invoiceBalanceTransaction returns the balance transaction of the first
// successful charge paying invoiceID, or nil.
func invoiceBalanceTransaction(successes []ChargeRecord, invoiceID string) *BalanceTransaction {
	for _, c := range successes {
		if c.InvoiceID == invoiceID {
			return c.BalanceTransaction
		}
	}
	return nil
}

func (e *Engine) recordCache(cacheName string, hit bool) {
	if e.observer != nil {
		e.observer.RecordCacheOperation(cacheName, hit)
	}
}
