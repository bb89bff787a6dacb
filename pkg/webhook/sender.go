package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Sender delivers JSON payloads to webhook endpoints with retries and
// optional circuit breaking. It is the transport behind the webhook channel
// adapter, which forwards the notification's structured payload unmodified.
type Sender struct {
	client *http.Client
}

// NewSender creates a webhook sender with a pooled HTTP client.
func NewSender() *Sender {
	return &Sender{
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// NewSenderWithClient creates a sender with a custom HTTP client, falling
// back to defaults when nil.
func NewSenderWithClient(client *http.Client) *Sender {
	if client == nil {
		return NewSender()
	}
	return &Sender{client: client}
}

// Send marshals data to JSON and POSTs it to endpoint, retrying transient
// failures with backoff. Permanent failures (most 4xx codes) are not
// retried.
func (s *Sender) Send(ctx context.Context, endpoint string, data any, opts ...SendOption) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal payload to JSON: %w", err)
	}

	if err := validateEndpoint(endpoint, payload); err != nil {
		return err
	}

	options := defaultSendOptions()
	for _, opt := range opts {
		opt(options)
	}

	client := s.client
	if options.httpClient != nil {
		client = options.httpClient
	}

	if options.circuit != nil && !options.circuit.Allow() {
		return ErrCircuitOpen
	}

	var lastErr error
	for attempt := 0; attempt <= options.maxRetries; attempt++ {
		if attempt > 0 {
			delay := options.backoff.NextInterval(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		statusCode, err := s.attempt(ctx, client, endpoint, payload, options)

		if options.circuit != nil {
			if err == nil {
				options.circuit.RecordSuccess()
			} else {
				options.circuit.RecordFailure()
			}
		}

		if err == nil {
			return nil
		}
		lastErr = err

		if isPermanentStatus(statusCode) {
			return fmt.Errorf("%w: %w", ErrPermanentFailure, err)
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrDeliveryFailed, options.maxRetries+1, lastErr)
}

func (s *Sender) attempt(ctx context.Context, client *http.Client, endpoint string, payload []byte, options *sendOptions) (int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, options.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "alertkit-webhook/1.0")
	for k, v := range options.headers {
		req.Header.Set(k, v)
	}

	if options.signatureSecret != "" {
		for k, v := range signPayload(options.signatureSecret, payload) {
			req.Header.Set(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return 0, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return 0, fmt.Errorf("%w: %w", ErrTemporaryFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp.StatusCode, nil
	}

	// Cap the body read so a hostile endpoint cannot exhaust memory.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	errMsg := fmt.Sprintf("webhook returned status %d", resp.StatusCode)
	if len(body) > 0 {
		bodyStr := strings.ReplaceAll(string(body), "\n", " ")
		if len(bodyStr) > 200 {
			bodyStr = bodyStr[:200] + "..."
		}
		errMsg += ": " + bodyStr
	}
	return resp.StatusCode, fmt.Errorf("%s", errMsg)
}

func validateEndpoint(endpoint string, payload []byte) error {
	if endpoint == "" {
		return fmt.Errorf("%w: URL is required", ErrInvalidURL)
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: only http and https schemes are supported", ErrInvalidURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidURL)
	}
	if len(payload) == 0 {
		return fmt.Errorf("%w: payload cannot be empty", ErrInvalidPayload)
	}
	return nil
}

// isPermanentStatus reports whether the HTTP status indicates an error
// retries cannot fix. 408/425/429 are temporary despite being 4xx.
func isPermanentStatus(statusCode int) bool {
	if statusCode < 400 || statusCode >= 500 {
		return false
	}
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return false
	}
	return true
}
