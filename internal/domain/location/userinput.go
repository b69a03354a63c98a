package location

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/okian/nearby/internal/domain/geo"
	"github.com/okian/nearby/pkg/logger"
	"github.com/okian/nearby/pkg/metrics"
)

// User input strategies, in priority order.
const (
	StrategyCoordinates Strategy = "coordinates"
	StrategyAtSegment   Strategy = "at_segment"
	StrategyQueryParam  Strategy = "query_param"
	StrategyGeocoder    Strategy = "geocoder"
	strategyNone        Strategy = "unparseable"
)

const decimal = `([+-]?\d+(?:\.\d+)?)`

var (
	coordinatesPattern = regexp.MustCompile(`^\s*` + decimal + `(?:\s*,\s*|\s+)` + decimal + `\s*$`) //nolint:gochecknoglobals // compiled once
	atSegmentPattern   = regexp.MustCompile(`@` + decimal + `,` + decimal)                           //nolint:gochecknoglobals // compiled once
)

// queryKeys are the deep-link query parameters that may carry "lat,lng".
var queryKeys = []string{"q", "ll"} //nolint:gochecknoglobals // fixed key table

// Geocoder looks up a free-text place. Implementations return ErrUnparseable
// when the query has no match.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (geo.Coordinate, error)
}

// Resolver resolves free-text user input.
type Resolver struct {
	geocoder Geocoder
	logger   logger.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithGeocoder enables the geocoder as the last strategy.
func WithGeocoder(g Geocoder) Option {
	return func(r *Resolver) {
		r.geocoder = g
	}
}

// WithLogger sets the resolver logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver returns a Resolver. Without WithGeocoder only the local
// strategies run.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{logger: logger.Get().Named("location")}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveUserInput resolves text using, in order: bare coordinates, an
// "@lat,lng" link segment, a q/ll query parameter and the geocoder.
func (r *Resolver) ResolveUserInput(ctx context.Context, text string) (geo.Coordinate, error) {
	c, strategy, err := r.resolve(ctx, text)
	if err != nil {
		metrics.RecordUserInputResolution(string(strategyNone))
		r.logger.Debug(ctx, "user input unresolved", logger.String("input", text), logger.Error(err))
		return geo.Coordinate{}, err
	}
	metrics.RecordUserInputResolution(string(strategy))
	return c, nil
}

func (r *Resolver) resolve(ctx context.Context, text string) (geo.Coordinate, Strategy, error) {
	if c, s, ok := ParseUserInput(text); ok {
		return c, s, nil
	}
	if strings.TrimSpace(text) == "" || r.geocoder == nil {
		return geo.Coordinate{}, "", fmt.Errorf("%w: %q", ErrUnparseable, text)
	}
	c, err := r.geocoder.Geocode(ctx, strings.TrimSpace(text))
	if err != nil {
		if errors.Is(err, ErrUnparseable) {
			return geo.Coordinate{}, "", err
		}
		return geo.Coordinate{}, "", fmt.Errorf("geocode %q: %w", text, err)
	}
	if err := c.Validate(); err != nil {
		return geo.Coordinate{}, "", fmt.Errorf("%w: geocoder returned %s", ErrUnparseable, c)
	}
	return c, StrategyGeocoder, nil
}

// ParseUserInput runs the local strategies only. Out-of-range values do not
// match and fall through to the next strategy.
func ParseUserInput(text string) (geo.Coordinate, Strategy, bool) {
	if m := coordinatesPattern.FindStringSubmatch(text); m != nil {
		if c, ok := pair(m[1], m[2]); ok {
			return c, StrategyCoordinates, true
		}
	}
	if m := atSegmentPattern.FindStringSubmatch(text); m != nil {
		if c, ok := pair(m[1], m[2]); ok {
			return c, StrategyAtSegment, true
		}
	}
	if c, ok := fromQuery(text); ok {
		return c, StrategyQueryParam, true
	}
	return geo.Coordinate{}, "", false
}

func fromQuery(text string) (geo.Coordinate, bool) {
	u, err := url.Parse(strings.TrimSpace(text))
	if err != nil || u.RawQuery == "" {
		return geo.Coordinate{}, false
	}
	q := u.Query()
	for _, key := range queryKeys {
		for _, v := range q[key] {
			m := coordinatesPattern.FindStringSubmatch(v)
			if m == nil {
				continue
			}
			if c, ok := pair(m[1], m[2]); ok {
				return c, true
			}
		}
	}
	return geo.Coordinate{}, false
}

func pair(latText, lngText string) (geo.Coordinate, bool) {
	lat, ok := parseFinite(latText)
	if !ok {
		return geo.Coordinate{}, false
	}
	lng, ok := parseFinite(lngText)
	if !ok {
		return geo.Coordinate{}, false
	}
	return build(lat, lng)
}
