package revenue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"stripe-exporter/internal/cache"
	"stripe-exporter/internal/pricing"
)

// DefaultChargeWindow is the trailing window of the payment metrics.
const DefaultChargeWindow = 24 * time.Hour

// Options configures an Engine. Fees is used as given, so a zero FeeModel
// means no fees. Other zero values fall back to defaults.
type Options struct {
	Fees   pricing.FeeModel
	Window time.Duration
	// Names is the product-name cache. Pass a shared cache to keep names
	// across engines; nil creates a fresh one.
	Names    *cache.NameCache
	Observer CacheObserver
	Logger   *zap.Logger
	Now      func() time.Time
}

// Engine runs refresh cycles: the subscription pass followed by the charge
// pass, publishing each stage to the sink as soon as it completes.
type Engine struct {
	billing  BillingAPI
	sink     Sink
	resolver *Resolver
	fees     pricing.FeeModel
	window   time.Duration
	observer CacheObserver
	logger   *zap.Logger
	now      func() time.Time
}

// NewEngine creates an engine reading from billing and publishing to sink.
func NewEngine(billing BillingAPI, sink Sink, opts Options) *Engine {
	if opts.Window <= 0 {
		opts.Window = DefaultChargeWindow
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Engine{
		billing:  billing,
		sink:     sink,
		resolver: NewResolver(billing, opts.Names, opts.Observer),
		fees:     opts.Fees,
		window:   opts.Window,
		observer: opts.Observer,
		logger:   opts.Logger,
		now:      opts.Now,
	}
}

// RunCycle runs one full refresh. The first error aborts the cycle; stages
// published before the failure stay published.
func (e *Engine) RunCycle(ctx context.Context) error {
	subs, err := e.SubscriptionPass(ctx)
	if err != nil {
		return fmt.Errorf("subscription pass: %w", err)
	}
	e.sink.PublishSubscriptions(subs)
	e.logger.Debug("published subscription metrics",
		zap.Int("active_subscriptions", subs.ActiveCount),
		zap.Int("plans", len(subs.CountsByPlan)),
	)

	if err := e.ChargePass(ctx); err != nil {
		return fmt.Errorf("charge pass: %w", err)
	}

	stats := e.resolver.Names().Stats()
	e.logger.Debug("product name cache",
		zap.Int("entries", stats.Entries),
		zap.Float64("hit_ratio", stats.HitRatio),
	)
	return nil
}
