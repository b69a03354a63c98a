// Package filter evaluates discovery criteria over an ordered activity slice.
package filter

import (
	"fmt"
	"math"
	"time"

	"github.com/okian/nearby/internal/domain/geo"
	"github.com/okian/nearby/internal/domain/model"
	"github.com/okian/nearby/pkg/metrics"
)

// CategorySet is a set of categories. An empty set matches nothing.
type CategorySet map[model.Category]struct{}

// NewCategorySet builds a set from categories.
func NewCategorySet(cats ...model.Category) CategorySet {
	s := make(CategorySet, len(cats))
	for _, c := range cats {
		s[c] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s CategorySet) Has(c model.Category) bool {
	_, ok := s[c]
	return ok
}

// Criteria selects visible activities.
type Criteria struct {
	Categories    CategorySet
	PriceMin      float64
	PriceMax      float64
	RadiusKm      float64
	WindowStart   time.Time
	WindowEnd     time.Time
	RequireImages bool
}

// Defaults holds the configurable starting criteria.
type Defaults struct {
	PriceMin float64
	PriceMax float64
	RadiusKm float64
	// Window is applied on both sides of now.
	Window time.Duration
}

// DefaultSettings are used when no configuration overrides them.
var DefaultSettings = Defaults{ //nolint:gochecknoglobals // documented defaults
	PriceMin: 0,
	PriceMax: 1000,
	RadiusKm: 12,
	Window:   14 * 24 * time.Hour,
}

// Default returns criteria covering every known category around now.
func Default(now time.Time, d Defaults) Criteria {
	return Criteria{
		Categories:  NewCategorySet(model.AllCategories()...),
		PriceMin:    d.PriceMin,
		PriceMax:    d.PriceMax,
		RadiusKm:    d.RadiusKm,
		WindowStart: now.Add(-d.Window),
		WindowEnd:   now.Add(d.Window),
	}
}

// Validate checks the criteria invariants.
func (c *Criteria) Validate() error {
	switch {
	case !finite(c.PriceMin) || !finite(c.PriceMax):
		return fmt.Errorf("%w: price bounds must be finite", ErrInvalidCriteria)
	case c.PriceMin < 0:
		return fmt.Errorf("%w: price_min %v is negative", ErrInvalidCriteria, c.PriceMin)
	case c.PriceMin > c.PriceMax:
		return fmt.Errorf("%w: price_min %v > price_max %v", ErrInvalidCriteria, c.PriceMin, c.PriceMax)
	case !finite(c.RadiusKm) || c.RadiusKm <= 0:
		return fmt.Errorf("%w: radius_km %v must be positive", ErrInvalidCriteria, c.RadiusKm)
	case c.WindowStart.After(c.WindowEnd):
		return fmt.Errorf("%w: window start %s after end %s", ErrInvalidCriteria,
			c.WindowStart.Format(time.RFC3339), c.WindowEnd.Format(time.RFC3339))
	}
	return nil
}

// Evaluate returns the activities matching c around ref, preserving the
// input order. The result is never nil.
func Evaluate(acts []model.Activity, c Criteria, ref geo.Coordinate) ([]model.Activity, error) {
	start := time.Now()
	if err := c.Validate(); err != nil {
		metrics.RecordFilterEvaluation("invalid_criteria", msSince(start), 0)
		return nil, err
	}
	if err := ref.Validate(); err != nil {
		metrics.RecordFilterEvaluation("invalid_criteria", msSince(start), 0)
		return nil, fmt.Errorf("%w: reference point: %w", ErrInvalidCriteria, err)
	}

	out := make([]model.Activity, 0)
	if len(c.Categories) == 0 {
		metrics.RecordFilterEvaluation("ok", msSince(start), 0)
		return out, nil
	}
	for i := range acts {
		if Match(&acts[i], &c, ref) {
			out = append(out, acts[i])
		}
	}
	metrics.RecordFilterEvaluation("ok", msSince(start), len(out))
	return out, nil
}

// Match applies the predicates cheapest first. c is assumed valid.
func Match(a *model.Activity, c *Criteria, ref geo.Coordinate) bool {
	if !c.Categories.Has(a.Category) {
		return false
	}
	if c.RequireImages && !a.HasPhotos() {
		return false
	}
	if a.Price < c.PriceMin || a.Price > c.PriceMax {
		return false
	}
	// interval overlap, not containment
	if a.TimeStart.After(c.WindowEnd) || a.TimeEnd.Before(c.WindowStart) {
		return false
	}
	if geo.LatitudeSpanKm(a.Location, ref) > c.RadiusKm {
		return false
	}
	return geo.DistanceKm(a.Location, ref) <= c.RadiusKm
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
