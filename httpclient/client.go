// Package httpclient is the resilient client used for all outbound calls to
// sibling services. Every logical call composes three concerns:
//
//  1. a per-attempt deadline (default 15s),
//  2. retry with exponential backoff (default 3 retries: 1s, 2s, 4s) for
//     network errors, timeouts and HTTP 5xx (never for 4xx),
//  3. a circuit breaker shared per logical dependency, fed by the outcome
//     of the whole retried call.
//
// The worst-case latency of one logical call with the circuit closed is
// timeout×(retries+1) plus cumulative backoff. Handlers invoking this from a
// conversational turn inherit that as their turnaround budget.
//
// Every request carries the correlation id of the inbound message
// (X-Correlation-Id) so failures can be traced end-to-end.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/clearrail/claimflow/breaker"
	"github.com/clearrail/claimflow/logger"
	"github.com/clearrail/claimflow/retry"
)

const (
	// DefaultTimeout is the per-attempt deadline.
	DefaultTimeout = 15 * time.Second
	// DefaultRetries is the number of retries after the initial attempt.
	DefaultRetries = 3
	// DefaultBaseDelay is the backoff base; delays double from here.
	DefaultBaseDelay = time.Second

	correlationHeader = "X-Correlation-Id"

	maxResponseBytes = 4 << 20 // 4 MiB
)

// StatusError reports a non-2xx HTTP response. 4xx is permanent (the
// request is malformed, retrying cannot help); 5xx is temporary.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// Temporary reports whether the status is worth retrying.
func (e *StatusError) Temporary() bool {
	return e.Code >= 500
}

// Client wraps outbound GET/POST calls to one logical dependency.
type Client struct {
	name      string
	baseURL   string
	http      *http.Client
	timeout   time.Duration
	retries   int
	baseDelay time.Duration
	breaker   *breaker.Breaker
	sleep     func(ctx context.Context, d time.Duration) error
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the per-attempt deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetries overrides the retry count (total attempts = retries+1).
func WithRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.retries = n
		}
	}
}

// WithBaseDelay overrides the backoff base delay.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.baseDelay = d
		}
	}
}

// WithBreaker injects the circuit breaker guarding this dependency.
func WithBreaker(b *breaker.Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithSleeper replaces the backoff sleep function. Tests use this to avoid
// real delays.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		c.sleep = sleep
	}
}

// New creates a Client for the named logical dependency rooted at baseURL.
// If no breaker is injected, the client gets a private one with default
// threshold and cooldown.
func New(name, baseURL string, opts ...Option) *Client {
	c := &Client{
		name:      name,
		baseURL:   baseURL,
		http:      &http.Client{Transport: newTransport()},
		timeout:   DefaultTimeout,
		retries:   DefaultRetries,
		baseDelay: DefaultBaseDelay,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.breaker == nil {
		c.breaker = breaker.New(name)
	}

	return c
}

// newTransport returns an http.Transport with pooled connections.
func newTransport() *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}

// GetJSON issues a GET against path (relative to the base URL) and decodes
// the JSON response body into out. A nil out discards the body.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	return c.call(ctx, http.MethodGet, path, nil, out)
}

// PostJSON issues a POST with a JSON-encoded body and decodes the JSON
// response into out. A nil out discards the body.
func (c *Client) PostJSON(ctx context.Context, path string, body, out any) error {
	var encoded []byte

	if body != nil {
		var err error

		encoded, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s body: %w", path, err)
		}
	}

	return c.call(ctx, http.MethodPost, path, encoded, out)
}

// call runs one logical call: breaker around the retried attempt loop.
// The breaker counts one failure per logical call (retries exhausted or
// immediate 4xx), not one per attempt.
func (c *Client) call(ctx context.Context, method, path string, body []byte, out any) error {
	tracer := otel.Tracer("httpclient")
	ctx, span := tracer.Start(ctx, c.name+"."+method)
	defer span.End()

	span.SetAttributes(
		attribute.String("dependency", c.name),
		attribute.String("http.method", method),
		attribute.String("http.path", path),
	)

	start := time.Now()

	err := c.breaker.Do(ctx, func(ctx context.Context) error {
		retryOpts := []retry.Option{
			retry.WithRetries(c.retries),
			retry.WithBackoff(retry.ExpBackoff{Base: c.baseDelay, Factor: 2}),
		}
		if c.sleep != nil {
			retryOpts = append(retryOpts, retry.WithSleeper(c.sleep))
		}

		return retry.Do(ctx, func(ctx context.Context) error {
			return c.attempt(ctx, method, path, body, out)
		}, retryOpts...)
	})

	outcome := "success"

	if err != nil {
		outcome = classify(err)

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	requestsTotal.WithLabelValues(c.name, method, outcome).Inc()
	requestDuration.WithLabelValues(c.name, method).Observe(time.Since(start).Seconds())

	return err
}

// attempt performs a single HTTP round trip under the per-attempt deadline.
func (c *Client) attempt(ctx context.Context, method, path string, body []byte, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return retry.Abort(fmt.Errorf("building %s %s: %w", method, path, err))
	}

	req.Header.Set("Accept", "application/json")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if id, ok := logger.GetCorrelationID(ctx); ok {
		req.Header.Set(correlationHeader, id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Network failure or deadline: temporary, the retry loop
		// decides whether budget remains.
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		statusErr := &StatusError{Code: resp.StatusCode}
		if !statusErr.Temporary() {
			return retry.Abort(statusErr)
		}

		return statusErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

		return nil
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return retry.Abort(fmt.Errorf("decoding %s %s response: %w", method, path, err))
	}

	return nil
}

// classify maps an error to a metric outcome label.
func classify(err error) string {
	var openErr *breaker.OpenError
	if errors.As(err, &openErr) {
		return "circuit_open"
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if statusErr.Temporary() {
			return "server_error"
		}

		return "client_error"
	}

	if IsTimeout(err) {
		return "timeout"
	}

	return "network_error"
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsUnavailable reports whether err should be presented to the user as a
// generic "service unavailable, try again" condition: circuit open,
// timeout, network failure, or 5xx with retries exhausted. Permanent 4xx
// failures are not "unavailable": the request itself was rejected.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}

	var openErr *breaker.OpenError
	if errors.As(err, &openErr) {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}

	return true // timeouts and network errors
}

// IsCircuitOpen reports whether err means the breaker rejected the call.
func IsCircuitOpen(err error) bool {
	var openErr *breaker.OpenError

	return errors.As(err, &openErr)
}

// IsStatus reports whether err carries the given HTTP status code.
func IsStatus(err error, code int) bool {
	var statusErr *StatusError

	return errors.As(err, &statusErr) && statusErr.Code == code
}
