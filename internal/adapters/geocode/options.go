package geocode

import (
	"net/http"
	"time"

	"github.com/okian/nearby/pkg/logger"
)

// Defaults for the HTTP geocoder.
const (
	DefaultTimeout        = 3 * time.Second
	DefaultBreakerTimeout = 30 * time.Second
	DefaultMinRequests    = 5
	DefaultFailureRatio   = 0.6
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Client) {
		if c != nil {
			g.http = c
		}
	}
}

// WithTimeout bounds a single lookup.
func WithTimeout(d time.Duration) Option {
	return func(g *Client) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithBreaker tunes the circuit breaker: it opens once at least minRequests
// calls were seen in the window and the failure ratio reaches ratio, and it
// stays open for openFor.
func WithBreaker(minRequests uint32, ratio float64, openFor time.Duration) Option {
	return func(g *Client) {
		if minRequests > 0 {
			g.minRequests = minRequests
		}
		if ratio > 0 && ratio <= 1 {
			g.failureRatio = ratio
		}
		if openFor > 0 {
			g.openFor = openFor
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(g *Client) {
		if l != nil {
			g.logger = l
		}
	}
}
