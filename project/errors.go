package project

import "errors"

// Store and inspector errors.
var (
	// ErrNotFound is returned when a file record does not exist.
	ErrNotFound = errors.New("file record not found")

	// ErrInvalidRecord is returned when a record fails shape checks.
	ErrInvalidRecord = errors.New("invalid file record")
)
