package service

import "errors"

var (
	// ErrNotStarted is returned by operations that need a started service.
	ErrNotStarted = errors.New("service not started")
	// ErrBackpressure is returned when a change cannot be queued right now.
	ErrBackpressure = errors.New("change queue backpressure")
	// ErrBootstrap wraps failures of the initial fetch or load.
	ErrBootstrap = errors.New("bootstrap failed")
)
