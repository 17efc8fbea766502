package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict indicates a concurrent write was detected. The operation is
	// retryable after reloading the aggregate.
	ErrConflict = errors.New("repository: write conflict")
)
