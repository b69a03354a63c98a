package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/okian/nearby/internal/domain/filter"
	"github.com/okian/nearby/internal/domain/geo"
	"github.com/okian/nearby/internal/domain/model"
)

// parseQuery overlays query parameters on the default criteria and picks the
// reference point. Parameters:
//
//	categories  comma list; present but empty selects nothing
//	price_min, price_max, radius_km  decimals
//	from, to    RFC3339 window bounds
//	images      bool, require at least one photo
//	lat, lng    reference point (both or neither)
//	near        free text resolved like POST /resolve
func parseQuery(ctx context.Context, deps ActivityDependencies, q url.Values) (filter.Criteria, geo.Coordinate, error) {
	c := deps.DefaultCriteria()
	ref := deps.DefaultReference()

	if q.Has("categories") {
		var cats []model.Category
		for _, part := range strings.Split(q.Get("categories"), ",") {
			if part = strings.TrimSpace(part); part != "" {
				cats = append(cats, model.Category(part))
			}
		}
		c.Categories = filter.NewCategorySet(cats...)
	}

	floats := []struct {
		key string
		dst *float64
	}{
		{"price_min", &c.PriceMin},
		{"price_max", &c.PriceMax},
		{"radius_km", &c.RadiusKm},
	}
	for _, f := range floats {
		if !q.Has(f.key) {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(q.Get(f.key)), 64)
		if err != nil {
			return c, ref, fmt.Errorf("%w: %s: %w", ErrBadRequest, f.key, err)
		}
		*f.dst = v
	}

	times := []struct {
		key string
		dst *time.Time
	}{
		{"from", &c.WindowStart},
		{"to", &c.WindowEnd},
	}
	for _, tm := range times {
		if !q.Has(tm.key) {
			continue
		}
		v, err := time.Parse(time.RFC3339, strings.TrimSpace(q.Get(tm.key)))
		if err != nil {
			return c, ref, fmt.Errorf("%w: %s must be RFC3339: %w", ErrBadRequest, tm.key, err)
		}
		*tm.dst = v
	}

	if q.Has("images") {
		v, err := strconv.ParseBool(q.Get("images"))
		if err != nil {
			return c, ref, fmt.Errorf("%w: images: %w", ErrBadRequest, err)
		}
		c.RequireImages = v
	}

	switch {
	case q.Has("lat") || q.Has("lng"):
		lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
		lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
		if errLat != nil || errLng != nil {
			return c, ref, fmt.Errorf("%w: lat and lng must both be decimals", ErrBadRequest)
		}
		p, err := geo.New(lat, lng)
		if err != nil {
			return c, ref, fmt.Errorf("%w: %w", ErrBadRequest, err)
		}
		ref = p
	case strings.TrimSpace(q.Get("near")) != "":
		p, err := deps.Resolve(ctx, q.Get("near"))
		if err != nil {
			return c, ref, err
		}
		ref = p
	}
	return c, ref, nil
}
