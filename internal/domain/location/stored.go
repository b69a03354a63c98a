// Package location turns stored location values and free-text user input into
// validated coordinates.
package location

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/okian/nearby/internal/domain/geo"
)

// Strategy names the rule that produced a coordinate.
type Strategy string

// Stored location strategies, tried in this order.
const (
	StrategyPair   Strategy = "pair"
	StrategyObject Strategy = "object"
	StrategyString Strategy = "string"
)

type storedStrategy struct {
	name Strategy
	try  func(raw any) (geo.Coordinate, bool)
}

var storedStrategies = []storedStrategy{ //nolint:gochecknoglobals // fixed strategy table
	{name: StrategyPair, try: fromPair},
	{name: StrategyObject, try: fromObject},
	{name: StrategyString, try: fromString},
}

// objectKeys lists the latitude/longitude field pairs accepted in objects.
var objectKeys = [][2]string{ //nolint:gochecknoglobals // fixed key table
	{"lat", "lng"},
	{"latitude", "longitude"},
	{"lat", "lon"},
}

// Resolve converts a decoded stored location into a coordinate.
func Resolve(raw any) (geo.Coordinate, error) {
	c, _, err := ResolveTagged(raw)
	return c, err
}

// ResolveTagged is Resolve that also reports which strategy matched.
func ResolveTagged(raw any) (geo.Coordinate, Strategy, error) {
	if raw == nil {
		return geo.Coordinate{}, "", fmt.Errorf("%w: absent", ErrMalformed)
	}
	for _, s := range storedStrategies {
		if c, ok := s.try(raw); ok {
			return c, s.name, nil
		}
	}
	return geo.Coordinate{}, "", fmt.Errorf("%w: unsupported value %T", ErrMalformed, raw)
}

func fromPair(raw any) (geo.Coordinate, bool) {
	switch v := raw.(type) {
	case []float64:
		if len(v) != 2 {
			return geo.Coordinate{}, false
		}
		return build(v[0], v[1])
	case [2]float64:
		return build(v[0], v[1])
	case []any:
		if len(v) != 2 {
			return geo.Coordinate{}, false
		}
		lat, ok := number(v[0])
		if !ok {
			return geo.Coordinate{}, false
		}
		lng, ok := number(v[1])
		if !ok {
			return geo.Coordinate{}, false
		}
		return build(lat, lng)
	}
	return geo.Coordinate{}, false
}

func fromObject(raw any) (geo.Coordinate, bool) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return geo.Coordinate{}, false
	}
	for _, keys := range objectKeys {
		latRaw, hasLat := obj[keys[0]]
		lngRaw, hasLng := obj[keys[1]]
		if !hasLat || !hasLng {
			continue
		}
		lat, ok := numberOrString(latRaw)
		if !ok {
			continue
		}
		lng, ok := numberOrString(lngRaw)
		if !ok {
			continue
		}
		if c, ok := build(lat, lng); ok {
			return c, true
		}
	}
	return geo.Coordinate{}, false
}

func fromString(raw any) (geo.Coordinate, bool) {
	s, ok := raw.(string)
	if !ok {
		return geo.Coordinate{}, false
	}
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return geo.Coordinate{}, false
	}
	lat, ok := parseFinite(parts[0])
	if !ok {
		return geo.Coordinate{}, false
	}
	lng, ok := parseFinite(parts[1])
	if !ok {
		return geo.Coordinate{}, false
	}
	return build(lat, lng)
}

func build(lat, lng float64) (geo.Coordinate, bool) {
	c, err := geo.New(lat, lng)
	if err != nil {
		return geo.Coordinate{}, false
	}
	return c, true
}

func number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		var err error
		if f, err = n.Float64(); err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func numberOrString(v any) (float64, bool) {
	if s, ok := v.(string); ok {
		return parseFinite(s)
	}
	return number(v)
}

// parseFinite parses a decimal and rejects NaN, Inf and overflow.
func parseFinite(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
