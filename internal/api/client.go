// Package api is the client for the fleet backend. Every outbound call goes
// through a Client, which owns authentication, retries, caching and
// de-duplication of in-flight reads.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/Tiliavir/fleet-timesheet/internal/session"
	"github.com/Tiliavir/fleet-timesheet/internal/storage"
)

const (
	defaultBaseURL     = "https://cartrack.codebnn.com/api"
	defaultTimeout     = 30 * time.Second
	defaultMaxRetries  = 3
	defaultBackoffUnit = time.Second
	defaultVehiclesTTL = 900 * time.Second
	// defaultSearchInterval spaces ticket searches the way the dashboard's
	// 300ms debounce did.
	defaultSearchInterval = 300 * time.Millisecond
)

// Client is an authenticated fleet API client. Construct one per process
// with NewClient and share it.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	session     *session.Session
	cache       storage.Store
	maxRetries  int
	backoffUnit time.Duration
	vehiclesTTL time.Duration
	now         func() time.Time

	flights       singleflight.Group
	searchLimiter *rate.Limiter
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL sets the API root.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-attempt HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithMaxRetries sets how many times a failed read is retried after the
// first attempt, so a read makes at most n+1 requests. The default of 3
// allows four.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithBackoffUnit sets the linear backoff step: retry n waits n*unit.
func WithBackoffUnit(d time.Duration) Option {
	return func(c *Client) { c.backoffUnit = d }
}

// WithVehiclesTTL sets how long the vehicle list stays cached.
func WithVehiclesTTL(d time.Duration) Option {
	return func(c *Client) { c.vehiclesTTL = d }
}

// WithClock sets the time source used for cache ages.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithSearchInterval sets the minimum spacing between ticket searches.
// Zero disables throttling.
func WithSearchInterval(d time.Duration) Option {
	return func(c *Client) {
		if d <= 0 {
			c.searchLimiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.searchLimiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// NewClient returns a Client that authenticates with sess and caches reads
// in the session-scoped store cache.
func NewClient(sess *session.Session, cache storage.Store, opts ...Option) *Client {
	c := &Client{
		baseURL:       defaultBaseURL,
		httpClient:    &http.Client{Timeout: defaultTimeout},
		session:       sess,
		cache:         cache,
		maxRetries:    defaultMaxRetries,
		backoffUnit:   defaultBackoffUnit,
		vehiclesTTL:   defaultVehiclesTTL,
		now:           time.Now,
		searchLimiter: rate.NewLimiter(rate.Every(defaultSearchInterval), 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Session returns the session the client authenticates with.
func (c *Client) Session() *session.Session {
	return c.session
}

// encodeBody marshals body once so every retry can replay it.
func encodeBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}
	return b, nil
}

// newRequest builds a request carrying the standard JSON headers and a
// fresh request ID. It does not attach credentials.
func (c *Client) newRequest(ctx context.Context, method, path string, payload []byte) (*http.Request, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	return req, nil
}

// roundTrip executes req and reads the whole body.
func (c *Client) roundTrip(req *http.Request) (int, []byte, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("fleet API request failed: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	slog.Debug("fleet API request",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
		"request_id", req.Header.Get("X-Request-ID"),
	)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading response body: %w", err)
	}
	return resp.StatusCode, body, nil
}

// attempt performs one authorized request. A 401 expires the session and
// yields ErrAuthenticationRequired; any other non-2xx yields an HTTPError.
func (c *Client) attempt(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	req, err := c.newRequest(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}
	c.session.Authorize(req)

	status, body, err := c.roundTrip(req)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		slog.Warn("fleet API rejected session token", "path", path)
		c.session.Expire()
		return nil, ErrAuthenticationRequired
	}
	if status < 200 || status > 299 {
		return nil, &HTTPError{StatusCode: status, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

// do is a single authorized request without retries. The JSON response is
// decoded into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	payload, err := encodeBody(body)
	if err != nil {
		return err
	}
	data, err := c.attempt(ctx, method, path, payload)
	if err != nil {
		return err
	}
	return decode(data, out)
}

// doWithRetry is do with linear backoff: after failed attempt n (0-based) it
// waits (n+1)*backoffUnit, up to maxRetries retries. Authentication
// failures and context cancellation are never retried.
func (c *Client) doWithRetry(ctx context.Context, method, path string, body, out any) error {
	payload, err := encodeBody(body)
	if err != nil {
		return err
	}
	data, err := c.retry(ctx, method, path, payload)
	if err != nil {
		return err
	}
	return decode(data, out)
}

func (c *Client) retry(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		data, err := c.attempt(ctx, method, path, payload)
		if err == nil {
			return data, nil
		}
		if errors.Is(err, ErrAuthenticationRequired) || ctx.Err() != nil {
			return nil, err
		}
		if attempt >= c.maxRetries {
			return nil, err
		}

		delay := c.backoffUnit * time.Duration(attempt+1)
		slog.Debug("retrying fleet API request", "path", path, "attempt", attempt+1, "delay", delay, "error", err)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// getRaw fetches path with retries and returns the raw JSON body.
func (c *Client) getRaw(ctx context.Context, path string) (json.RawMessage, error) {
	data, err := c.retry(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

func decode(data []byte, out any) error {
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding fleet API response: %w", err)
	}
	return nil
}

// envelope is the {status, data} wrapper every endpoint responds with.
type envelope[T any] struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    T      `json:"data"`
}

// unwrap returns the payload, or ErrUnexpectedStatus for a non-success status.
func (e envelope[T]) unwrap() (T, error) {
	if e.Status != "" && e.Status != "success" {
		var zero T
		msg := e.Message
		if msg == "" {
			msg = e.Status
		}
		return zero, fmt.Errorf("%w: %s", ErrUnexpectedStatus, msg)
	}
	return e.Data, nil
}
