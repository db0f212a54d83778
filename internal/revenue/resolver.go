package revenue

import (
	"context"
	"fmt"

	"stripe-exporter/internal/cache"
)

// Cache names reported to the CacheObserver.
const (
	CacheProductName = "product_name"
	CacheInvoice     = "invoice"
)

// Resolver turns a price into the plan name used as the plan_name label.
//
// Resolution order: price nickname, then the product display name, then the
// raw price ID. Product names are fetched once per product and kept in the
// name cache for the lifetime of the process.
type Resolver struct {
	billing  BillingAPI
	names    *cache.NameCache
	observer CacheObserver
}

// NewResolver creates a resolver backed by names. observer may be nil.
func NewResolver(billing BillingAPI, names *cache.NameCache, observer CacheObserver) *Resolver {
	if names == nil {
		names = cache.NewNameCache()
	}
	return &Resolver{
		billing:  billing,
		names:    names,
		observer: observer,
	}
}

// Resolve returns the plan name for p, fetching the product name on a cache miss.
func (r *Resolver) Resolve(ctx context.Context, p PriceLine) (string, error) {
	if p.Nickname != "" {
		return p.Nickname, nil
	}
	if p.ProductID == "" {
		return p.PriceID, nil
	}

	name, hit := r.names.Get(p.ProductID)
	r.record(CacheProductName, hit)
	if !hit {
		fetched, err := r.billing.ProductName(ctx, p.ProductID)
		if err != nil {
			return "", fmt.Errorf("resolve plan for price %s: %w", p.PriceID, err)
		}
		name = fetched
		if name == "" {
			name = p.ProductID
		}
		r.names.Set(p.ProductID, name)
	}

	if name == "" {
		return p.PriceID, nil
	}
	return name, nil
}

// ResolveExpanded resolves p without network access, using the product name
// already embedded in the line.
func (r *Resolver) ResolveExpanded(p PriceLine) string {
	switch {
	case p.Nickname != "":
		return p.Nickname
	case p.ProductName != "":
		return p.ProductName
	default:
		return p.PriceID
	}
}

// Names exposes the underlying cache
func (r *Resolver) Names() *cache.NameCache {
	return r.names
}

func (r *Resolver) record(cacheName string, hit bool) {
	if r.observer != nil {
		r.observer.RecordCacheOperation(cacheName, hit)
	}
}
