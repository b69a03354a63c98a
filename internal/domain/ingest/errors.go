package ingest

import "errors"

var (
	// ErrMissingID is returned for rows without an identifier.
	ErrMissingID = errors.New("missing activity id")
	// ErrInvalidTime is returned for missing or unparseable timestamps.
	ErrInvalidTime = errors.New("invalid activity time")
	// ErrInvalidWindow is returned when the end time precedes the start time.
	ErrInvalidWindow = errors.New("activity ends before it starts")
	// ErrInvalidPrice is returned for negative or non-numeric prices.
	ErrInvalidPrice = errors.New("invalid activity price")
)
