package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	// ErrStatusChanged means a conditional status update matched nothing
	// because the stored status moved on since it was read.
	ErrStatusChanged = errors.New("booking status changed concurrently")
)
