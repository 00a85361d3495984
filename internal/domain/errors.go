package domain

import "errors"

var (
	// ErrValidation marks a malformed join/send payload.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a lookup of a record that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrPersistence marks a failed store call.
	ErrPersistence = errors.New("persistence failure")
)
