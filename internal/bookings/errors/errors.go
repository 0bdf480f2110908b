package errors

import "errors"

var (
	ErrNotFound  = errors.New("booking not found")
	ErrInvalidID = errors.New("invalid booking id")
	// ErrStatusChanged means the booking left the expected status between
	// read and write.
	ErrStatusChanged = errors.New("booking status changed concurrently")
	ErrLockHeld      = errors.New("booking lock is held")
)
