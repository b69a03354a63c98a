package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound      = errors.New("activity not found")
	ErrMissingID     = errors.New("change event without activity id")
	ErrInvalidChange = errors.New("invalid change event")
)
