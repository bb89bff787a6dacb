package webhook

import (
	"net/http"
	"time"
)

type sendOptions struct {
	timeout         time.Duration
	headers         map[string]string
	httpClient      *http.Client
	maxRetries      int
	backoff         BackoffStrategy
	signatureSecret string
	circuit         *CircuitBreaker
}

func defaultSendOptions() *sendOptions {
	return &sendOptions{
		timeout:    10 * time.Second,
		headers:    make(map[string]string),
		maxRetries: 3,
		backoff:    DefaultBackoffStrategy(),
	}
}

// SendOption configures a single webhook send.
type SendOption func(*sendOptions)

// WithTimeout sets the per-request HTTP timeout. Default 10s.
func WithTimeout(timeout time.Duration) SendOption {
	return func(o *sendOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithHeader adds a custom header to the request.
func WithHeader(key, value string) SendOption {
	return func(o *sendOptions) {
		if key != "" && value != "" {
			o.headers[key] = value
		}
	}
}

// WithMaxRetries sets the retry budget. 0 disables retries.
func WithMaxRetries(n int) SendOption {
	return func(o *sendOptions) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

// WithBackoff sets the retry backoff strategy.
func WithBackoff(strategy BackoffStrategy) SendOption {
	return func(o *sendOptions) {
		if strategy != nil {
			o.backoff = strategy
		}
	}
}

// WithSignature enables HMAC-SHA256 request signing with the given secret.
func WithSignature(secret string) SendOption {
	return func(o *sendOptions) {
		o.signatureSecret = secret
	}
}

// WithHTTPClient overrides the HTTP client for this send.
func WithHTTPClient(client *http.Client) SendOption {
	return func(o *sendOptions) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithCircuitBreaker protects the endpoint with a circuit breaker. Reuse
// the same instance per endpoint to track failures across sends.
func WithCircuitBreaker(cb *CircuitBreaker) SendOption {
	return func(o *sendOptions) {
		o.circuit = cb
	}
}
