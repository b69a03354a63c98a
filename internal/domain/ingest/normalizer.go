// Package ingest normalizes untrusted activity rows into domain activities.
package ingest

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/okian/nearby/internal/domain/geo"
	"github.com/okian/nearby/internal/domain/location"
	"github.com/okian/nearby/internal/domain/model"
	"github.com/okian/nearby/pkg/logger"
	"github.com/okian/nearby/pkg/metrics"
)

// Source tells where a row came from.
type Source string

// Row sources.
const (
	SourceLoad   Source = "load"
	SourceChange Source = "change"
)

// WarningKind classifies a Warning.
type WarningKind string

// Warning kinds.
const (
	WarningLocationFallback WarningKind = "location_fallback"
	WarningSkipped          WarningKind = "skipped"
)

// Warning reports a row that was repaired or dropped.
type Warning struct {
	Kind   WarningKind
	Source Source
	ID     string
	Err    error
}

// Sink receives warnings. It must not block.
type Sink func(Warning)

// DefaultFallback is the coordinate substituted for malformed stored locations.
var DefaultFallback = geo.Coordinate{Lat: 25.0330, Lng: 121.5654} //nolint:gochecknoglobals // documented default

// timeLayouts are tried in order; zone-less layouts use the normalizer's location.
var timeLayouts = []string{ //nolint:gochecknoglobals // fixed layout table
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999",
}

// Normalizer converts RawActivity rows into Activity values.
type Normalizer struct {
	fallback geo.Coordinate
	zone     *time.Location
	sink     Sink
	logger   logger.Logger
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithFallback sets the substitute coordinate. Invalid coordinates are ignored.
func WithFallback(c geo.Coordinate) Option {
	return func(n *Normalizer) {
		if c.Validate() == nil {
			n.fallback = c
		}
	}
}

// WithTimeZone sets the zone used for timestamps without an offset.
func WithTimeZone(loc *time.Location) Option {
	return func(n *Normalizer) {
		if loc != nil {
			n.zone = loc
		}
	}
}

// WithSink sets the warning sink.
func WithSink(s Sink) Option {
	return func(n *Normalizer) {
		n.sink = s
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(n *Normalizer) {
		if l != nil {
			n.logger = l
		}
	}
}

// NewNormalizer creates a Normalizer using DefaultFallback and UTC.
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{
		fallback: DefaultFallback,
		zone:     time.UTC,
		logger:   logger.Get().Named("ingest"),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Fallback returns the configured substitute coordinate.
func (n *Normalizer) Fallback() geo.Coordinate {
	return n.fallback
}

// Normalize validates raw and builds an Activity. A malformed location is
// replaced by the fallback and reported; every other defect rejects the row.
// Rejections are reported to the sink before the error is returned.
func (n *Normalizer) Normalize(ctx context.Context, raw *model.RawActivity, src Source) (model.Activity, error) {
	a, err := n.normalize(ctx, raw, src)
	if err != nil {
		id := strings.TrimSpace(string(raw.ID))
		metrics.RecordRecordSkipped()
		n.logger.Warn(ctx, "activity row skipped",
			logger.String("id", id),
			logger.String("source", string(src)),
			logger.Error(err))
		n.emit(Warning{Kind: WarningSkipped, Source: src, ID: id, Err: err})
		return model.Activity{}, err
	}
	return a, nil
}

func (n *Normalizer) normalize(ctx context.Context, raw *model.RawActivity, src Source) (model.Activity, error) {
	id := strings.TrimSpace(string(raw.ID))
	if id == "" {
		return model.Activity{}, ErrMissingID
	}

	start, err := n.parseTime(raw.TimeStart)
	if err != nil {
		return model.Activity{}, fmt.Errorf("time_start: %w", err)
	}
	end := start
	if strings.TrimSpace(raw.TimeEnd) != "" {
		if end, err = n.parseTime(raw.TimeEnd); err != nil {
			return model.Activity{}, fmt.Errorf("time_end: %w", err)
		}
	}
	if end.Before(start) {
		return model.Activity{}, fmt.Errorf("%w: %s < %s", ErrInvalidWindow, end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	var created time.Time
	if strings.TrimSpace(raw.CreatedAt) != "" {
		if created, err = n.parseTime(raw.CreatedAt); err != nil {
			return model.Activity{}, fmt.Errorf("created_at: %w", err)
		}
	}

	unit := strings.TrimSpace(raw.Unit)
	price, err := parsePrice(raw.Price.String())
	if err != nil {
		return model.Activity{}, err
	}
	if strings.EqualFold(unit, model.UnitFree) {
		unit = model.UnitFree
		price = 0
	}

	coord, fallback := n.resolveLocation(ctx, raw, id, src)

	return model.Activity{
		ID:               id,
		Title:            strings.TrimSpace(raw.Title),
		Category:         category(raw.Category),
		Kind:             kind(raw),
		TimeStart:        start,
		TimeEnd:          end,
		Price:            price,
		Unit:             unit,
		Location:         coord,
		Photos:           photos(raw.Photos),
		CreatedAt:        created,
		OwnerID:          strings.TrimSpace(string(raw.UserID)),
		LocationFallback: fallback,
	}, nil
}

func (n *Normalizer) resolveLocation(ctx context.Context, raw *model.RawActivity, id string, src Source) (geo.Coordinate, bool) {
	decoded, err := raw.DecodedLocation()
	if err == nil {
		var c geo.Coordinate
		if c, err = location.Resolve(decoded); err == nil {
			return c, false
		}
	}
	metrics.RecordLocationFallback(string(src))
	n.logger.Warn(ctx, "stored location malformed, using fallback",
		logger.String("id", id),
		logger.String("source", string(src)),
		logger.String("fallback", n.fallback.String()),
		logger.Error(err))
	n.emit(Warning{Kind: WarningLocationFallback, Source: src, ID: id, Err: err})
	return n.fallback, true
}

func (n *Normalizer) emit(w Warning) {
	if n.sink != nil {
		n.sink(w)
	}
}

func (n *Normalizer) parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidTime)
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, n.zone); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
}

func parsePrice(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	p, ok := parseNumber(s)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, s)
	}
	if p < 0 {
		return 0, fmt.Errorf("%w: %v is negative", ErrInvalidPrice, p)
	}
	return p, nil
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func category(s string) model.Category {
	s = strings.TrimSpace(s)
	if s == "" {
		return model.CategoryOthers
	}
	return model.Category(s)
}

func kind(raw *model.RawActivity) model.Kind {
	switch model.Kind(strings.ToLower(strings.TrimSpace(raw.ResolvedKind()))) {
	case model.KindResource:
		return model.KindResource
	case model.KindActivity:
		return model.KindActivity
	}
	c := category(raw.Category)
	for _, r := range model.ResourceCategories {
		if r == c {
			return model.KindResource
		}
	}
	return model.KindActivity
}

func photos(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
