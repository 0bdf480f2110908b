package errors

import "errors"

var (
	ErrNotFound      = errors.New("listing not found")
	ErrInvalidID     = errors.New("invalid listing id")
	ErrTooManyImages = errors.New("listing has the maximum number of images")
	ErrImageNotFound = errors.New("image not found on listing")
	ErrStatusChanged = errors.New("listing status changed concurrently")
)
