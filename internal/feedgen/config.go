// Package feedgen drives a running nearby instance with synthetic change
// events and checks that the served state converges to what was sent.
package feedgen

import (
	"errors"
	"time"

	"github.com/okian/nearby/internal/domain/geo"
)

var (
	// ErrRejected is returned when the service refuses a change.
	ErrRejected = errors.New("feedgen: change rejected")
	// ErrNotReady is returned when the service never reports ready.
	ErrNotReady = errors.New("feedgen: service not ready")
	// ErrMismatch is returned when served activities differ from the plan.
	ErrMismatch = errors.New("feedgen: served state does not match")
)

// Config holds configuration for one run.
type Config struct {
	BaseURL string // service base URL, used for readiness and verification

	Inserts    int // activities created
	Updates    int // title changes applied to live activities
	Deletes    int // live activities removed
	Duplicates int // redeliveries of already sent events

	Workers int           // concurrent senders; events for one id share a sender
	Timeout time.Duration // per-request HTTP timeout
	Settle  time.Duration // how long verification waits for convergence
	Rate    float64       // events per second across all senders; zero is unpaced

	Center   geo.Coordinate // activities are scattered around this point
	RadiusKm float64
	Seed     uint64 // zero picks a time-based seed
}

// DefaultConfig returns settings for a quick local run.
func DefaultConfig() Config {
	return Config{
		BaseURL:    "http://localhost:9080",
		Inserts:    500,
		Updates:    200,
		Deletes:    50,
		Duplicates: 25,
		Workers:    8,
		Timeout:    5 * time.Second,
		Settle:     30 * time.Second,
		Center:     geo.Coordinate{Lat: 25.0330, Lng: 121.5654},
		RadiusKm:   10,
	}
}

// Stats summarises a run.
type Stats struct {
	Generated  int
	Accepted   int
	Duplicate  int
	Failed     int
	Verified   int
	Mismatched int
	Duration   time.Duration
}
