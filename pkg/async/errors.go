package async

import "errors"

var (
	// ErrTimeout is returned by AwaitWithTimeout when the deadline elapses
	// before the computation completes.
	ErrTimeout = errors.New("async operation timed out")
)
