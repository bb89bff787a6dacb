package bus

import "errors"

var (
	ErrBusClosed      = errors.New("event bus is closed")
	ErrClientRequired = errors.New("redis client is required")
)
