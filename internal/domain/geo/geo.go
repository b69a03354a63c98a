// Package geo holds the canonical coordinate type and great-circle distance.
package geo

import (
	"errors"
	"fmt"
	"math"
)

// EarthRadiusKm is the mean Earth radius used for all distance math.
const EarthRadiusKm = 6371.0

// equalEpsilon is the per-axis tolerance, in degrees, for Equal.
const equalEpsilon = 1e-9

// ErrInvalidCoordinate is returned when a latitude/longitude pair is not finite or out of range.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// New validates lat/lng and returns a Coordinate.
func New(lat, lng float64) (Coordinate, error) {
	c := Coordinate{Lat: lat, Lng: lng}
	if err := c.Validate(); err != nil {
		return Coordinate{}, err
	}
	return c, nil
}

// Validate reports whether both components are finite and in range.
func (c Coordinate) Validate() error {
	switch {
	case math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0):
		return fmt.Errorf("%w: latitude %v is not finite", ErrInvalidCoordinate, c.Lat)
	case math.IsNaN(c.Lng) || math.IsInf(c.Lng, 0):
		return fmt.Errorf("%w: longitude %v is not finite", ErrInvalidCoordinate, c.Lng)
	case c.Lat < -90 || c.Lat > 90:
		return fmt.Errorf("%w: latitude %v outside [-90, 90]", ErrInvalidCoordinate, c.Lat)
	case c.Lng < -180 || c.Lng > 180:
		return fmt.Errorf("%w: longitude %v outside [-180, 180]", ErrInvalidCoordinate, c.Lng)
	}
	return nil
}

// Equal reports whether two coordinates match within a small epsilon.
func (c Coordinate) Equal(o Coordinate) bool {
	return math.Abs(c.Lat-o.Lat) <= equalEpsilon && math.Abs(c.Lng-o.Lng) <= equalEpsilon
}

// String renders the coordinate as "lat,lng".
func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}

// DistanceKm returns the haversine great-circle distance between a and b in kilometres.
func DistanceKm(a, b Coordinate) float64 {
	if a == b {
		return 0
	}
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)
	dLat := lat2 - lat1
	dLng := toRad(b.Lng - a.Lng)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng
	// rounding can push h a hair past 1 for antipodal points
	h = math.Min(1, math.Max(0, h))
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// LatitudeSpanKm is the meridional distance between two latitudes. It is a
// lower bound for DistanceKm, so it can reject far points without trig on longitude.
func LatitudeSpanKm(a, b Coordinate) float64 {
	return EarthRadiusKm * math.Abs(toRad(a.Lat)-toRad(b.Lat))
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
