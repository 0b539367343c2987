package storage

import "errors"

// Storage errors shared by all backends.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when an insert collides with a unique
	// constraint that the operation does not resolve itself.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrForeignKey is returned when a referenced parent or lookup row
	// does not exist.
	ErrForeignKey = errors.New("foreign key violation")
)
