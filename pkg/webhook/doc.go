// Package webhook is the transport behind the webhook delivery channel:
// POSTs JSON payloads to an endpoint with retry, exponential backoff,
// optional HMAC-SHA256 signing and a per-endpoint circuit breaker.
package webhook
