package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrymomot/seoflow/pkg/gate"
	"github.com/dmitrymomot/seoflow/pkg/logger"
	"github.com/dmitrymomot/seoflow/pkg/retry"
)

const (
	// DefaultTimeout bounds one attempt once a gate permit is held.
	DefaultTimeout = 30 * time.Second

	maxResponseBody = 10 << 20
)

// Request describes one provider call. Body, when non-nil, is sent as JSON.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   any
}

// Response is a successful (2xx) provider response with its body read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client is an HTTP client for a single provider.
type Client struct {
	name    string
	baseURL string
	http    *http.Client
	header  http.Header
	timeout time.Duration
	gate    *gate.Gate
	breaker *CircuitBreaker
	policy  retry.Policy
	logger  *slog.Logger
	secret  string
}

// New creates a client for the provider called name.
func New(name string, opts ...Option) *Client {
	options := &clientOptions{
		http:    &http.Client{},
		header:  make(http.Header),
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	policy := options.policy
	if policy.Label == "" {
		policy.Label = name
	}
	if policy.RetryOn == nil {
		policy.RetryOn = IsTransient
	}
	policy.OnRetry = retry.Notify(retry.LogRetries(options.logger, name), policy.OnRetry)

	return &Client{
		name:    name,
		baseURL: strings.TrimRight(options.baseURL, "/"),
		http:    options.http,
		header:  options.header,
		timeout: options.timeout,
		gate:    options.gate,
		breaker: options.breaker,
		policy:  policy,
		logger:  options.logger,
		secret:  options.secret,
	}
}

// Name returns the provider name.
func (c *Client) Name() string { return c.name }

// Do sends req, retrying transient failures. The error of the final
// attempt is returned as is.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	var body []byte
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to marshal request body: %w", c.name, err)
		}
		body = b
	}

	return retry.Do(ctx, func(ctx context.Context) (*Response, error) {
		if c.gate == nil {
			return c.attempt(ctx, req, body)
		}
		return gate.Do(ctx, c.gate, func(ctx context.Context) (*Response, error) {
			return c.attempt(ctx, req, body)
		})
	}, c.policy)
}

func (c *Client) attempt(ctx context.Context, req Request, body []byte) (*Response, error) {
	if c.breaker != nil && !c.breaker.Allow() {
		return nil, fmt.Errorf("%s: %w", c.name, ErrCircuitOpen)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.send(ctx, req, body)
	if c.breaker != nil {
		if err != nil && IsTransient(err) {
			c.breaker.RecordFailure()
		} else {
			c.breaker.RecordSuccess()
		}
	}
	return resp, err
}

func (c *Client) send(ctx context.Context, req Request, body []byte) (*Response, error) {
	start := time.Now()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+req.Path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build request: %w", c.name, err)
	}
	for k, vs := range c.header {
		httpReq.Header[k] = vs
	}
	for k, vs := range req.Header {
		httpReq.Header[k] = vs
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.secret != "" {
		signRequest(httpReq.Header, c.secret, body, time.Now())
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: %s %s: %w", c.name, method, req.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read response: %w", c.name, err)
	}

	c.logger.DebugContext(ctx, "provider call finished",
		logger.Label(c.name),
		slog.String("method", method),
		slog.String("path", req.Path),
		slog.Int("status", resp.StatusCode),
		logger.Duration(time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newStatusError(c.name, resp.StatusCode, data)
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// DoJSON sends req and decodes a successful response body into T.
func DoJSON[T any](ctx context.Context, c *Client, req Request) (T, error) {
	var out T

	resp, err := c.Do(ctx, req)
	if err != nil {
		return out, err
	}
	if len(resp.Body) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return out, fmt.Errorf("%w: %s: %w", ErrDecodeResponse, c.name, err)
	}
	return out, nil
}
