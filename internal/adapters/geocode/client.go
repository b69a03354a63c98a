// Package geocode is an HTTP place lookup used as the last user-input
// resolution strategy.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/okian/nearby/internal/domain/geo"
	"github.com/okian/nearby/internal/domain/location"
	"github.com/okian/nearby/pkg/logger"
	"github.com/okian/nearby/pkg/metrics"
)

const maxBody = 1 << 20

// Client queries a Nominatim-style endpoint: GET <base>?q=<text>&format=json
// answering [{"lat":"..","lon":".."}, ...]. The first hit wins.
type Client struct {
	base         *url.URL
	http         *http.Client
	timeout      time.Duration
	minRequests  uint32
	failureRatio float64
	openFor      time.Duration
	logger       logger.Logger

	cb *gobreaker.CircuitBreaker[geo.Coordinate]
}

var _ location.Geocoder = (*Client)(nil)

// New returns a Client for baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("geocoder url %q: invalid", baseURL)
	}
	g := &Client{
		base:         u,
		http:         &http.Client{},
		timeout:      DefaultTimeout,
		minRequests:  DefaultMinRequests,
		failureRatio: DefaultFailureRatio,
		openFor:      DefaultBreakerTimeout,
		logger:       logger.Get().Named("geocoder"),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.cb = gobreaker.NewCircuitBreaker[geo.Coordinate](gobreaker.Settings{
		Name:        "geocoder",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     g.openFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if c.Requests < g.minRequests {
				return false
			}
			return float64(c.TotalFailures)/float64(c.Requests) >= g.failureRatio
		},
		// A miss is an answer, not an outage.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, location.ErrUnparseable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.logger.Warn(context.Background(), "circuit breaker state change",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
		},
	})
	return g, nil
}

// Geocode implements location.Geocoder.
func (g *Client) Geocode(ctx context.Context, query string) (geo.Coordinate, error) {
	c, err := g.cb.Execute(func() (geo.Coordinate, error) {
		return g.lookup(ctx, query)
	})
	switch {
	case err == nil:
		metrics.RecordGeocoderRequest("hit")
		return c, nil
	case errors.Is(err, location.ErrUnparseable):
		metrics.RecordGeocoderRequest("miss")
		return geo.Coordinate{}, err
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordGeocoderRequest("rejected")
		return geo.Coordinate{}, fmt.Errorf("%w: %w", ErrBreakerOpen, err)
	default:
		metrics.RecordGeocoderRequest("error")
		return geo.Coordinate{}, err
	}
}

// State reports the breaker state name.
func (g *Client) State() string {
	return g.cb.State().String()
}

// hit fields arrive as strings from Nominatim and as numbers elsewhere.
type hit struct {
	Lat any `json:"lat"`
	Lon any `json:"lon"`
}

func float(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func (g *Client) lookup(ctx context.Context, query string) (geo.Coordinate, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	u := *g.base
	q := u.Query()
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("limit", "1")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("geocoder request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return geo.Coordinate{}, fmt.Errorf("%w: no match for %q", location.ErrUnparseable, query)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return geo.Coordinate{}, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var hits []hit
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&hits); err != nil {
		return geo.Coordinate{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if len(hits) == 0 {
		return geo.Coordinate{}, fmt.Errorf("%w: no match for %q", location.ErrUnparseable, query)
	}
	lat, okLat := float(hits[0].Lat)
	lng, okLng := float(hits[0].Lon)
	if !okLat || !okLng {
		return geo.Coordinate{}, fmt.Errorf("%w: lat %v lon %v", ErrDecode, hits[0].Lat, hits[0].Lon)
	}
	c, err := geo.New(lat, lng)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return c, nil
}
