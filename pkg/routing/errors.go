package routing

import "errors"

var (
	// ErrEngineConfig is returned when the engine is constructed without a
	// required collaborator.
	ErrEngineConfig = errors.New("routing: invalid engine configuration")

	// ErrInvalidDocument is returned when an imported configuration
	// document cannot be decoded at all.
	ErrInvalidDocument = errors.New("routing: invalid configuration document")
)
