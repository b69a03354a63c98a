package geo_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/nearby/internal/domain/geo"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNew(t *testing.T) {
	Convey("Given latitude/longitude pairs", t, func() {
		Convey("When they are in range", func() {
			c, err := geo.New(25.0330, 121.5654)

			Convey("Then a coordinate is returned", func() {
				So(err, ShouldBeNil)
				So(c.Lat, ShouldEqual, 25.0330)
				So(c.Lng, ShouldEqual, 121.5654)
			})
		})

		Convey("When they sit exactly on the bounds", func() {
			_, err1 := geo.New(90, 180)
			_, err2 := geo.New(-90, -180)

			Convey("Then they are accepted", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
			})
		})

		Convey("When they are out of range or not finite", func() {
			cases := [][2]float64{
				{90.0001, 0},
				{-91, 0},
				{0, 180.5},
				{0, -181},
				{math.NaN(), 0},
				{0, math.Inf(1)},
				{math.Inf(-1), math.Inf(1)},
			}

			Convey("Then ErrInvalidCoordinate is returned", func() {
				for _, tc := range cases {
					_, err := geo.New(tc[0], tc[1])
					So(errors.Is(err, geo.ErrInvalidCoordinate), ShouldBeTrue)
				}
			})
		})
	})
}

func TestDistanceKm(t *testing.T) {
	taipei := geo.Coordinate{Lat: 25.0330, Lng: 121.5654}
	kaohsiung := geo.Coordinate{Lat: 22.6273, Lng: 120.3014}

	Convey("Given two coordinates", t, func() {
		Convey("Then the distance to itself is zero", func() {
			points := []geo.Coordinate{taipei, kaohsiung, {Lat: 90, Lng: 0}, {Lat: -33.8688, Lng: 151.2093}, {}}
			for _, p := range points {
				So(geo.DistanceKm(p, p), ShouldEqual, 0)
			}
		})

		Convey("Then the distance is symmetric", func() {
			So(geo.DistanceKm(taipei, kaohsiung), ShouldEqual, geo.DistanceKm(kaohsiung, taipei))
		})

		Convey("Then Taipei to Kaohsiung is roughly 297 km", func() {
			So(geo.DistanceKm(taipei, kaohsiung), ShouldAlmostEqual, 297, 3)
		})

		Convey("Then one degree of longitude on the equator is about 111.19 km", func() {
			d := geo.DistanceKm(geo.Coordinate{Lat: 0, Lng: 0}, geo.Coordinate{Lat: 0, Lng: 1})
			So(d, ShouldAlmostEqual, 111.19, 0.01)
		})

		Convey("Then antipodal points are half the circumference apart", func() {
			d := geo.DistanceKm(geo.Coordinate{Lat: 0, Lng: 0}, geo.Coordinate{Lat: 0, Lng: 180})
			So(d, ShouldAlmostEqual, math.Pi*geo.EarthRadiusKm, 1e-6)
		})

		Convey("Then distinct points have a positive distance", func() {
			a := geo.Coordinate{Lat: 25.0330, Lng: 121.5654}
			b := geo.Coordinate{Lat: 25.0331, Lng: 121.5654}
			So(geo.DistanceKm(a, b), ShouldBeGreaterThan, 0)
		})

		Convey("Then the latitude span never exceeds the distance", func() {
			So(geo.LatitudeSpanKm(taipei, kaohsiung), ShouldBeLessThanOrEqualTo, geo.DistanceKm(taipei, kaohsiung))
		})
	})
}

func TestCoordinateEqual(t *testing.T) {
	Convey("Given nearly identical coordinates", t, func() {
		a := geo.Coordinate{Lat: 1, Lng: 2}
		b := geo.Coordinate{Lat: 1 + 1e-12, Lng: 2}

		So(a.Equal(b), ShouldBeTrue)
		So(a.Equal(geo.Coordinate{Lat: 1.001, Lng: 2}), ShouldBeFalse)
		So(a.String(), ShouldEqual, "1.000000,2.000000")
	})
}
