package storage

import "errors"

// Common storage errors.
var (
	// ErrNotFound is returned when no entry is stored for a key.
	ErrNotFound = errors.New("entry not found")
)
