// Package gateway is the HTTP client for the finance backend. It speaks the
// backend's JSON contract and maps every failure to a *core.RequestError.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"moneymanager/internal/core"
	applog "moneymanager/internal/log"
)

// maxErrorBody bounds how much of a failed response is read for its message.
const maxErrorBody = 64 << 10

// Backend is the contract the rest of the application consumes.
type Backend interface {
	ListTransactions(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, error)
	CreateTransaction(ctx context.Context, p core.TransactionPayload) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, id string, p core.TransactionPayload) (core.Transaction, error)
	ListAccounts(ctx context.Context) ([]core.Account, error)
	CreateAccount(ctx context.Context, a core.NewAccount) (core.Account, error)
	GetSummary(ctx context.Context) (core.Summary, error)
	GetChartSeries(ctx context.Context, g core.Granularity) ([]core.ChartPoint, error)
}

var _ Backend = (*Client)(nil)

// Client talks to the backend over HTTP.
type Client struct {
	baseURL     string
	http        *http.Client
	logger      *applog.Logger
	readRetries uint64
	newBackOff  func() backoff.BackOff
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets a per-request timeout; zero keeps the transport default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			hc := *c.http
			hc.Timeout = d
			c.http = &hc
		}
	}
}

func WithLogger(l *applog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l.WithComponent(applog.ComponentGateway)
		}
	}
}

// WithRetry sets how many times a failed read is retried. Writes are never
// retried.
func WithRetry(maxRetries int) Option {
	return func(c *Client) {
		if maxRetries >= 0 {
			c.readRetries = uint64(maxRetries)
		}
	}
}

// New creates a client rooted at baseURL, e.g. "http://localhost:8080/api".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		http:        &http.Client{},
		logger:      applog.Default(applog.ComponentGateway),
		readRetries: 2,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ListTransactions(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, error) {
	var out []core.Transaction
	if err := c.get(ctx, "list transactions", "/transactions", EncodeFilter(f), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateTransaction(ctx context.Context, p core.TransactionPayload) (core.Transaction, error) {
	var out core.Transaction
	err := c.send(ctx, "create transaction", http.MethodPost, "/transactions", p, &out)
	return out, err
}

func (c *Client) UpdateTransaction(ctx context.Context, id string, p core.TransactionPayload) (core.Transaction, error) {
	var out core.Transaction
	err := c.send(ctx, "update transaction", http.MethodPut, "/transactions/"+url.PathEscape(id), p, &out)
	return out, err
}

func (c *Client) ListAccounts(ctx context.Context) ([]core.Account, error) {
	var out []core.Account
	if err := c.get(ctx, "list accounts", "/accounts", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateAccount(ctx context.Context, a core.NewAccount) (core.Account, error) {
	var out core.Account
	err := c.send(ctx, "create account", http.MethodPost, "/accounts", a, &out)
	return out, err
}

func (c *Client) GetSummary(ctx context.Context) (core.Summary, error) {
	var out core.Summary
	err := c.get(ctx, "get summary", "/reports/summary", nil, &out)
	return out, err
}

func (c *Client) GetChartSeries(ctx context.Context, g core.Granularity) ([]core.ChartPoint, error) {
	g, err := core.ParseGranularity(string(g))
	if err != nil {
		return nil, err
	}
	var out []core.ChartPoint
	if err := c.get(ctx, "get chart series", "/reports/chart/"+string(g), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Ping checks that the backend answers the cheapest read, without retries.
func (c *Client) Ping(ctx context.Context) error {
	var out []core.Account
	return c.do(ctx, "ping", http.MethodGet, "/accounts", nil, nil, &out)
}

// EncodeFilter renders a ledger filter as query parameters. Blank or "ALL"
// values are omitted; dates cover whole days.
func EncodeFilter(f core.TransactionFilter) url.Values {
	q := url.Values{}
	if d := strings.TrimSpace(string(f.Division)); d != "" && !strings.EqualFold(d, "ALL") {
		q.Set("division", d)
	}
	if cat := strings.TrimSpace(f.Category); cat != "" && !strings.EqualFold(cat, "ALL") {
		q.Set("category", cat)
	}
	if !f.Start.IsZero() {
		q.Set("start", f.Start.Format("2006-01-02")+"T00:00:00")
	}
	if !f.End.IsZero() {
		q.Set("end", f.End.Format("2006-01-02")+"T23:59:59")
	}
	return q
}

// get performs a read, retrying transient failures with exponential backoff.
func (c *Client) get(ctx context.Context, op, path string, query url.Values, out any) error {
	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.readRetries), ctx)
	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		err := c.do(ctx, op, http.MethodGet, path, query, nil, out)
		if err == nil || retryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, b, func(err error, wait time.Duration) {
		c.logger.WarnContext(ctx, "Backend read failed, retrying",
			applog.FieldOperation, op,
			"attempt", attempt,
			"retry_in", wait.String(),
			applog.FieldError, err)
	})
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}

func (c *Client) send(ctx context.Context, op, method, path string, body, out any) error {
	return c.do(ctx, op, method, path, nil, body, out)
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return &core.RequestError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "Backend call",
		applog.FieldOperation, op,
		applog.FieldMethod, method,
		applog.FieldPath, path,
		applog.FieldStatusCode, resp.StatusCode,
		applog.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &core.RequestError{Op: op, Status: resp.StatusCode, Message: errorMessage(raw)}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return &core.RequestError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// errorMessage extracts the human message from an error body of the form
// {"message": "..."} or {"error": "..."}.
func errorMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   any    `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if m := strings.TrimSpace(body.Message); m != "" {
		return m
	}
	if s, ok := body.Error.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func retryable(err error) bool {
	var reqErr *core.RequestError
	if !errors.As(err, &reqErr) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch reqErr.Status {
	case 0:
		return reqErr.Err != nil
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
