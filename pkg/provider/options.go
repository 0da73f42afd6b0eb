package provider

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/seoflow/pkg/gate"
	"github.com/dmitrymomot/seoflow/pkg/retry"
)

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
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

func WithBaseURL(u string) Option {
	return func(o *clientOptions) { o.baseURL = u }
}

// WithHTTPClient replaces the underlying *http.Client. Nil is ignored.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) {
		if c != nil {
			o.http = c
		}
	}
}

// WithHeader sets a header sent with every request.
func WithHeader(key, value string) Option {
	return func(o *clientOptions) {
		if key != "" {
			o.header.Set(key, value)
		}
	}
}

// WithBearerToken sets the Authorization header.
func WithBearerToken(token string) Option {
	return func(o *clientOptions) {
		if token != "" {
			o.header.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithBasicAuth sets HTTP basic credentials, as DataForSEO expects.
func WithBasicAuth(user, password string) Option {
	return func(o *clientOptions) {
		if user == "" {
			return
		}
		req := &http.Request{Header: make(http.Header)}
		req.SetBasicAuth(user, password)
		o.header.Set("Authorization", req.Header.Get("Authorization"))
	}
}

// WithTimeout sets the per-attempt timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithGate bounds concurrent calls to this provider.
func WithGate(g *gate.Gate) Option {
	return func(o *clientOptions) { o.gate = g }
}

func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(o *clientOptions) { o.breaker = cb }
}

// WithPolicy replaces the retry policy, including any earlier
// WithMaxAttempts or WithRetryObserver. A nil RetryOn defaults to
// IsTransient; OnRetry runs after the built-in retry log line.
func WithPolicy(p retry.Policy) Option {
	return func(o *clientOptions) { o.policy = p }
}

func WithMaxAttempts(n int) Option {
	return func(o *clientOptions) { o.policy.MaxAttempts = n }
}

// WithRetryObserver adds an OnRetry hook, e.g. a metrics counter.
func WithRetryObserver(fn func(retry.Attempt)) Option {
	return func(o *clientOptions) {
		o.policy.OnRetry = retry.Notify(o.policy.OnRetry, fn)
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *clientOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithSigningSecret signs every request body with HMAC-SHA256 so the
// receiving endpoint can check it with VerifySignature.
func WithSigningSecret(secret string) Option {
	return func(o *clientOptions) { o.secret = secret }
}
