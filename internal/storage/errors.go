package storage

import "errors"

// Storage errors shared by all backends.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when inserting a record whose unique key
	// already exists. Idempotent callers treat it as a no-op.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTradeClosed is returned when mutating a paper trade that is not open.
	ErrTradeClosed = errors.New("trade already closed")
)
