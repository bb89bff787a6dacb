package webhook

import "errors"

var (
	ErrInvalidURL       = errors.New("invalid webhook URL")
	ErrInvalidPayload   = errors.New("invalid webhook payload")
	ErrTimeout          = errors.New("webhook request timed out")
	ErrTemporaryFailure = errors.New("temporary webhook delivery failure")
	ErrPermanentFailure = errors.New("permanent webhook delivery failure")
	ErrDeliveryFailed   = errors.New("webhook delivery failed")
	ErrCircuitOpen      = errors.New("circuit breaker is open")
)
