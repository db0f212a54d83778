// Package metrics provides the Prometheus metrics exported for Stripe revenue
// and for the exporter itself, the scrape router, and the refresh collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"stripe-exporter/internal/revenue"
)

const (
	namespace = "stripe"
	selfNS    = "stripe_exporter"

	// PlanLabel is the label carrying the resolved plan name.
	PlanLabel = "plan_name"
)

// Metrics holds all Prometheus collectors of the exporter
type Metrics struct {
	// Subscription Metrics
	ActiveSubscriptions       prometheus.Gauge
	ActiveSubscriptionsByPlan *prometheus.GaugeVec
	SubscriptionMRRByPlan     *prometheus.GaugeVec
	NetSubscriptionMRRByPlan  *prometheus.GaugeVec

	// Payment Metrics (trailing 24h)
	SuccessfulPayments       prometheus.Gauge
	TotalRevenue             prometheus.Gauge
	AvgPaymentAmount         prometheus.Gauge
	Fees                     prometheus.Gauge
	NetRevenue               prometheus.Gauge
	SuccessfulPaymentsByPlan *prometheus.GaugeVec
	TotalRevenueByPlan       *prometheus.GaugeVec
	NetRevenueByPlan         *prometheus.GaugeVec

	// Refresh Metrics
	RefreshCyclesTotal   *prometheus.CounterVec
	RefreshDuration      prometheus.Histogram
	LastSuccessTimestamp prometheus.Gauge
	APIRequestsTotal     *prometheus.CounterVec

	// Cache Metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// HTTP Metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// System Metrics
	BuildInfo   *prometheus.GaugeVec
	StartupTime prometheus.Gauge
}

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// New creates all exporter metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{}
	planLabels := []string{PlanLabel}

	// Subscription Metrics
	m.ActiveSubscriptions = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_subscriptions",
		Help:      "Number of active Stripe subscriptions",
	})

	m.ActiveSubscriptionsByPlan = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_subscriptions_by_plan",
		Help:      "Active Stripe subscriptions, broken down by plan name",
	}, planLabels)

	m.SubscriptionMRRByPlan = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "subscription_mrr_by_plan",
		Help:      "Monthly recurring revenue by subscription plan name (gross, major units)",
	}, planLabels)

	m.NetSubscriptionMRRByPlan = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "net_subscription_mrr_by_plan",
		Help:      "Monthly recurring revenue by subscription plan name (net of Stripe fees, major units)",
	}, planLabels)

	// Payment Metrics
	m.SuccessfulPayments = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "successful_payments_last_24h",
		Help:      "Number of successful Stripe payments in the last 24 hours",
	})

	m.TotalRevenue = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "total_revenue_last_24h",
		Help:      "Total revenue from successful Stripe charges in the last 24 hours (gross, major units)",
	})

	m.AvgPaymentAmount = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "avg_payment_amount_last_24h",
		Help:      "Average Stripe payment amount in the last 24 hours (gross, major units)",
	})

	m.Fees = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "fees_last_24h",
		Help:      "Total Stripe fees in the last 24 hours (major units)",
	})

	m.NetRevenue = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "net_revenue_last_24h",
		Help:      "Net revenue (after fees) in the last 24 hours (major units)",
	})

	m.SuccessfulPaymentsByPlan = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "successful_payments_last_24h_by_plan",
		Help:      "Number of successful Stripe payments in the last 24 hours, broken down by plan name",
	}, planLabels)

	m.TotalRevenueByPlan = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "total_revenue_last_24h_by_plan",
		Help:      "Total revenue from successful Stripe charges in the last 24 hours, broken down by plan name (gross, major units)",
	}, planLabels)

	m.NetRevenueByPlan = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "net_revenue_last_24h_by_plan",
		Help:      "Net revenue from successful Stripe charges in the last 24 hours, broken down by plan name (net of Stripe fees, major units)",
	}, planLabels)

	// Refresh Metrics
	m.RefreshCyclesTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: selfNS,
		Name:      "refresh_cycles_total",
		Help:      "Total number of refresh cycles by result",
	}, []string{"result"})

	m.RefreshDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: selfNS,
		Name:      "refresh_duration_seconds",
		Help:      "Refresh cycle duration in seconds",
		Buckets:   []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	m.LastSuccessTimestamp = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: selfNS,
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix timestamp of the last successful refresh cycle",
	})

	m.APIRequestsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: selfNS,
		Name:      "api_requests_total",
		Help:      "Total number of Stripe API requests by operation and status",
	}, []string{"operation", "status"})

	// Cache Metrics
	m.CacheHitsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: selfNS,
		Name:      "cache_hits_total",
		Help:      "Total number of cache hits",
	}, []string{"cache_name"})

	m.CacheMissesTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: selfNS,
		Name:      "cache_misses_total",
		Help:      "Total number of cache misses",
	}, []string{"cache_name"})

	// HTTP Metrics
	m.HTTPRequestsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: selfNS,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests by endpoint, method, and status code",
	}, []string{"endpoint", "method", "status"})

	m.HTTPRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: selfNS,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"endpoint", "method"})

	// System Metrics
	m.BuildInfo = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: selfNS,
		Name:      "build_info",
		Help:      "Build information",
	}, []string{"version", "commit", "build_date"})

	m.StartupTime = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: selfNS,
		Name:      "startup_timestamp",
		Help:      "Exporter startup timestamp",
	})

	m.StartupTime.Set(float64(time.Now().Unix()))

	return m
}

// PublishSubscriptions overwrites the subscription gauges. Plans missing from
// s keep their previous values.
func (m *Metrics) PublishSubscriptions(s revenue.SubscriptionSummary) {
	m.ActiveSubscriptions.Set(float64(s.ActiveCount))
	for plan, count := range s.CountsByPlan {
		m.ActiveSubscriptionsByPlan.WithLabelValues(planLabel(plan)).Set(float64(count))
	}
	for plan, mrr := range s.GrossMRRByPlan {
		m.SubscriptionMRRByPlan.WithLabelValues(planLabel(plan)).Set(mrr)
	}
	for plan, mrr := range s.NetMRRByPlan {
		m.NetSubscriptionMRRByPlan.WithLabelValues(planLabel(plan)).Set(mrr)
	}
}

// PublishChargeTotals overwrites the global payment gauges. Fee and net
// gauges are only written when fee data was available for every charge.
func (m *Metrics) PublishChargeTotals(t revenue.ChargeTotals) {
	m.SuccessfulPayments.Set(float64(t.Count))
	m.TotalRevenue.Set(t.Gross)
	m.AvgPaymentAmount.Set(t.Average)
	if t.FeesKnown {
		m.Fees.Set(t.Fees)
		m.NetRevenue.Set(t.Net)
	}
}

// PublishPlanCharges overwrites the per-plan payment gauges.
func (m *Metrics) PublishPlanCharges(p revenue.PlanCharges) {
	for plan, count := range p.CountsByPlan {
		m.SuccessfulPaymentsByPlan.WithLabelValues(planLabel(plan)).Set(float64(count))
	}
	for plan, rev := range p.RevenueByPlan {
		m.TotalRevenueByPlan.WithLabelValues(planLabel(plan)).Set(rev)
	}
	for plan, rev := range p.NetByPlan {
		m.NetRevenueByPlan.WithLabelValues(planLabel(plan)).Set(rev)
	}
}

// RecordCacheOperation records a cache hit or miss
func (m *Metrics) RecordCacheOperation(cacheName string, hit bool) {
	if hit {
		m.CacheHitsTotal.WithLabelValues(cacheName).Inc()
	} else {
		m.CacheMissesTotal.WithLabelValues(cacheName).Inc()
	}
}

// RecordAPIRequest records a Stripe API call
func (m *Metrics) RecordAPIRequest(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.APIRequestsTotal.WithLabelValues(operation, status).Inc()
}

// RecordRefresh records the outcome of a refresh cycle
func (m *Metrics) RecordRefresh(duration time.Duration, err error) {
	m.RefreshDuration.Observe(duration.Seconds())
	if err != nil {
		m.RefreshCyclesTotal.WithLabelValues("error").Inc()
		return
	}
	m.RefreshCyclesTotal.WithLabelValues("success").Inc()
	m.LastSuccessTimestamp.Set(float64(time.Now().Unix()))
}

// RecordHTTPRequest records an HTTP request metric
func (m *Metrics) RecordHTTPRequest(endpoint, method string, statusCode int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(endpoint, method, statusCodeToLabel(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

// SetBuildInfo sets build information
func (m *Metrics) SetBuildInfo(version, commit, buildDate string) {
	m.BuildInfo.WithLabelValues(version, commit, buildDate).Set(1)
}

// Helper function to convert status code to label
func statusCodeToLabel(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
