package geocode

import "errors"

var (
	// ErrUpstream is returned for non-2xx answers other than "no match".
	ErrUpstream = errors.New("geocoder upstream error")
	// ErrDecode is returned when the upstream body cannot be decoded.
	ErrDecode = errors.New("geocoder response undecodable")
	// ErrBreakerOpen is returned while the circuit breaker rejects calls.
	ErrBreakerOpen = errors.New("geocoder circuit open")
)
