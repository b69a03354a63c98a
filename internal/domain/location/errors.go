package location

import "errors"

var (
	// ErrMalformed is returned when a stored location matches no strategy or
	// carries non-finite or out-of-range values.
	ErrMalformed = errors.New("malformed stored location")
	// ErrUnparseable is returned when free-text input cannot be turned into a
	// coordinate. It is never replaced by a default.
	ErrUnparseable = errors.New("unparseable location input")
)
