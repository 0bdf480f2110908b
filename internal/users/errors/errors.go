package errors

import "errors"

var (
	ErrNotFound = errors.New("user not found")

	ErrInvalidID = errors.New("invalid user ID format")

	ErrEmailTaken = errors.New("email already registered")

	ErrVerificationNotFound = errors.New("verification code not found")

	ErrNIDNotPending = errors.New("no pending NID submission")
)
