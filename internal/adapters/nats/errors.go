package natsadapter

import "errors"

var (
	// ErrNotStarted is returned when a subscriber is closed before Start.
	ErrNotStarted = errors.New("change subscriber not started")
	// ErrAlreadyStarted is returned by a second Start call.
	ErrAlreadyStarted = errors.New("change subscriber already started")
	// ErrMalformedPayload marks a message that can never be decoded.
	ErrMalformedPayload = errors.New("malformed change payload")
)
