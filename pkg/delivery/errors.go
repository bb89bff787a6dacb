package delivery

import "errors"

var (
	// ErrQueueFull is returned when the delivery queue is at capacity and
	// the incoming notification has no lower-priority entry to displace.
	ErrQueueFull = errors.New("delivery: queue full")

	// ErrNotRunning is returned when Stop is called on a coordinator that
	// was never started.
	ErrNotRunning = errors.New("delivery: coordinator not running")

	// ErrAddressNotFound is returned by a Directory when a recipient has no
	// address for the requested channel.
	ErrAddressNotFound = errors.New("delivery: recipient address not found")
)
