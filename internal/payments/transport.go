package payments

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Stripe's own client timeout, used when no HTTP client is supplied
const defaultHTTPTimeout = 80 * time.Second

// OpOther labels requests to endpoints the exporter does not normally call
const OpOther = "other"

// throttledTransport applies the rate limit and records the outcome of every
// HTTP request the Stripe SDK makes, including auto-paginated list pages and
// network retries.
type throttledTransport struct {
	base     http.RoundTripper
	limiter  *rate.Limiter
	recorder APIRecorder
}

func (t *throttledTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	op := operationFor(req)

	if err := t.limiter.Wait(req.Context()); err != nil {
		t.record(op, err)
		return nil, err
	}

	resp, err := t.base.RoundTrip(req)
	switch {
	case err != nil:
		t.record(op, err)
	case resp.StatusCode >= http.StatusBadRequest:
		t.record(op, fmt.Errorf("stripe responded with status %d", resp.StatusCode))
	default:
		t.record(op, nil)
	}
	return resp, err
}

func (t *throttledTransport) record(operation string, err error) {
	if t.recorder != nil {
		t.recorder.RecordAPIRequest(operation, err)
	}
}

// newHTTPClient returns a copy of base whose transport is throttled by limiter
func newHTTPClient(base *http.Client, limiter *rate.Limiter, recorder APIRecorder) *http.Client {
	var c http.Client
	if base != nil {
		c = *base
	} else {
		c.Timeout = defaultHTTPTimeout
	}

	rt := c.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	c.Transport = &throttledTransport{base: rt, limiter: limiter, recorder: recorder}
	return &c
}

// operationFor maps a Stripe API path to the operation label
func operationFor(req *http.Request) string {
	path := req.URL.Path
	if i := strings.Index(path, "/v1/"); i >= 0 {
		path = path[i+len("/v1/"):]
	}
	resource, rest, _ := strings.Cut(path, "/")

	switch {
	case resource == "subscriptions" && rest == "" && req.Method == http.MethodGet:
		return OpListSubscriptions
	case resource == "charges" && rest == "" && req.Method == http.MethodGet:
		return OpListCharges
	case resource == "invoices" && rest != "":
		return OpGetInvoice
	case resource == "products" && rest != "":
		return OpGetProduct
	default:
		return OpOther
	}
}
