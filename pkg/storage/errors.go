package storage

import "errors"

var (
	ErrAlreadyExists            = errors.New("notification already exists")
	ErrPoolRequired             = errors.New("connection pool is required")
	ErrFailedToParseDBConfig    = errors.New("failed to parse db config")
	ErrFailedToOpenDBConnection = errors.New("failed to open db connection")
)
