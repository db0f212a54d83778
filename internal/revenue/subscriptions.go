package revenue

import (
	"context"

	"stripe-exporter/internal/pricing"
)

// SubscriptionPass streams active subscriptions and computes counts and MRR
// by plan. ActiveCount is the number of subscriptions, not the sum of seats.
func (e *Engine) SubscriptionPass(ctx context.Context) (SubscriptionSummary, error) {
	summary := SubscriptionSummary{
		CountsByPlan:   make(map[string]int64),
		GrossMRRByPlan: make(map[string]float64),
		NetMRRByPlan:   make(map[string]float64),
	}

	err := e.billing.ActiveSubscriptions(ctx, func(sub Subscription) error {
		summary.ActiveCount++
		for _, item := range sub.Items {
			plan, err := e.resolver.Resolve(ctx, item)
			if err != nil {
				return err
			}
			qty := item.EffectiveQuantity()
			summary.CountsByPlan[plan] += qty
			summary.GrossMRRByPlan[plan] += pricing.LineGross(item.UnitAmount, qty)
		}
		return nil
	})
	if err != nil {
		return SubscriptionSummary{}, err
	}

	// Net is derived from the plan totals so it matches the fee formula exactly.
	for plan, gross := range summary.GrossMRRByPlan {
		summary.NetMRRByPlan[plan] = e.fees.NetMRR(gross, summary.CountsByPlan[plan])
	}
	return summary, nil
}
