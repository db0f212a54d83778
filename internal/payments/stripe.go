// Stripe billing data source
// Read-only access to subscriptions, charges, invoices and products

package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"stripe-exporter/internal/revenue"
)

// Common errors
var (
	ErrNotConfigured   = errors.New("stripe is not configured")
	ErrInvoiceNotFound = errors.New("invoice not found")
)

// API operation names reported to the APIRecorder
const (
	OpListSubscriptions = "list_subscriptions"
	OpListCharges       = "list_charges"
	OpGetInvoice        = "get_invoice"
	OpGetProduct        = "get_product"
)

const (
	DefaultPageSize int64 = 100
	MaxPageSize     int64 = 100
)

// APIRecorder records the outcome of each HTTP request made to Stripe
type APIRecorder interface {
	RecordAPIRequest(operation string, err error)
}

// Options configures a StripeService
type Options struct {
	// PageSize is the page size of list calls and the cap on charges per cycle.
	PageSize int64
	// RateLimit is the maximum number of HTTP requests per second, counting
	// every page and retry. Zero disables throttling.
	RateLimit float64
	// MaxNetworkRetries is passed to the Stripe backend.
	MaxNetworkRetries int64
	// BackendURL overrides the Stripe API base URL.
	BackendURL string
	// HTTPClient is copied; its transport is wrapped with the rate limiter.
	HTTPClient *http.Client
	Logger     *zap.SugaredLogger
	Recorder   APIRecorder
}

// StripeService reads billing data from Stripe
type StripeService struct {
	secretKey string
	sc        *client.API
	pageSize  int64
}

var _ revenue.BillingAPI = (*StripeService)(nil)

// NewStripeService creates a Stripe client for secretKey
func NewStripeService(secretKey string, opts Options) *StripeService {
	if opts.PageSize <= 0 || opts.PageSize > MaxPageSize {
		opts.PageSize = DefaultPageSize
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	config := &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(opts.MaxNetworkRetries),
		HTTPClient:        newHTTPClient(opts.HTTPClient, limiter, opts.Recorder),
	}
	if opts.BackendURL != "" {
		config.URL = stripe.String(opts.BackendURL)
	}
	if opts.Logger != nil {
		config.LeveledLogger = opts.Logger
	}

	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, config),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, config),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, config),
	}

	return &StripeService{
		secretKey: secretKey,
		sc:        client.New(secretKey, backends),
		pageSize:  opts.PageSize,
	}
}

// IsConfigured returns true if Stripe is properly configured
func (s *StripeService) IsConfigured() bool {
	return s.secretKey != "" && s.secretKey != "sk_test_xxx"
}

// ActiveSubscriptions streams every active subscription with its item prices
// expanded, following pagination.
func (s *StripeService) ActiveSubscriptions(ctx context.Context, fn func(revenue.Subscription) error) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}
	params := &stripe.SubscriptionListParams{
		Status: stripe.String(string(stripe.SubscriptionStatusActive)),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(s.pageSize)
	params.AddExpand("data.items.data.price")

	iter := s.sc.Subscriptions.List(params)
	for iter.Next() {
		if err := fn(subscriptionFromStripe(iter.Subscription())); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return nil
}

// RecentCharges returns a single page of charges created at or after since,
// with balance transactions expanded.
func (s *StripeService) RecentCharges(ctx context.Context, since time.Time) ([]revenue.ChargeRecord, error) {
	if !s.IsConfigured() {
		return nil, ErrNotConfigured
	}
	params := &stripe.ChargeListParams{
		CreatedRange: &stripe.RangeQueryParams{GreaterThanOrEqual: since.Unix()},
	}
	params.Context = ctx
	params.Limit = stripe.Int64(s.pageSize)
	params.AddExpand("data.balance_transaction")

	var charges []revenue.ChargeRecord
	iter := s.sc.Charges.List(params)
	for int64(len(charges)) < s.pageSize && iter.Next() {
		charges = append(charges, chargeFromStripe(iter.Charge()))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list charges: %w", err)
	}
	return charges, nil
}

// Invoice retrieves an invoice with line prices and products expanded
func (s *StripeService) Invoice(ctx context.Context, invoiceID string) (*revenue.Invoice, error) {
	if !s.IsConfigured() {
		return nil, ErrNotConfigured
	}
	if invoiceID == "" {
		return nil, ErrInvoiceNotFound
	}
	params := &stripe.InvoiceParams{}
	params.Context = ctx
	params.AddExpand("lines.data.price.product")

	inv, err := s.sc.Invoices.Get(invoiceID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return invoiceFromStripe(inv), nil
}

// ProductName retrieves the display name of a product
func (s *StripeService) ProductName(ctx context.Context, productID string) (string, error) {
	if !s.IsConfigured() {
		return "", ErrNotConfigured
	}
	params := &stripe.ProductParams{}
	params.Context = ctx

	product, err := s.sc.Products.Get(productID, params)
	if err != nil {
		return "", fmt.Errorf("failed to get product: %w", err)
	}
	return product.Name, nil
}

// IsAuthError reports whether err was caused by a rejected API key
func IsAuthError(err error) bool {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.HTTPStatusCode == http.StatusUnauthorized ||
			stripeErr.HTTPStatusCode == http.StatusForbidden
	}
	return false
}

// Helper function to convert a Stripe price to a priced line
func priceLine(price *stripe.Price, quantity int64) revenue.PriceLine {
	line := revenue.PriceLine{Quantity: quantity}
	if price == nil {
		return line
	}
	line.PriceID = price.ID
	line.UnitAmount = price.UnitAmount
	line.Nickname = price.Nickname
	if price.Product != nil {
		line.ProductID = price.Product.ID
		line.ProductName = price.Product.Name
	}
	return line
}

func subscriptionFromStripe(sub *stripe.Subscription) revenue.Subscription {
	out := revenue.Subscription{ID: sub.ID}
	if sub.Items == nil {
		return out
	}
	for _, item := range sub.Items.Data {
		if item == nil {
			continue
		}
		out.Items = append(out.Items, priceLine(item.Price, item.Quantity))
	}
	return out
}

func chargeFromStripe(ch *stripe.Charge) revenue.ChargeRecord {
	out := revenue.ChargeRecord{
		ID:     ch.ID,
		Amount: ch.Amount,
		Paid:   ch.Paid,
		Status: string(ch.Status),
	}
	if ch.Invoice != nil {
		out.InvoiceID = ch.Invoice.ID
	}
	if bt := ch.BalanceTransaction; bt != nil && bt.Object != "" {
		out.BalanceTransaction = &revenue.BalanceTransaction{Fee: bt.Fee, Net: bt.Net}
	}
	return out
}

func invoiceFromStripe(inv *stripe.Invoice) *revenue.Invoice {
	out := &revenue.Invoice{ID: inv.ID}
	if inv.Lines == nil {
		return out
	}
	for _, line := range inv.Lines.Data {
		if line == nil {
			continue
		}
		out.Lines = append(out.Lines, revenue.InvoiceLine{
			Type:      string(line.Type),
			PriceLine: priceLine(line.Price, line.Quantity),
		})
	}
	return out
}
