package config_test

import (
	"runtime"
	"testing"
	"time"

	"github.com/okian/nearby/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.EventQueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000)
			convey.So(cfg.LoadConcurrency, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.FallbackLat, convey.ShouldEqual, 25.0330)
			convey.So(cfg.FallbackLng, convey.ShouldEqual, 121.5654)
			convey.So(cfg.NATSURL, convey.ShouldBeEmpty)
			convey.So(cfg.PostgresDSN, convey.ShouldBeEmpty)
		})

		convey.Convey("Then the defaults validate", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then the filter defaults mirror the fields", func() {
			d := cfg.FilterDefaults()
			convey.So(d.RadiusKm, convey.ShouldEqual, 12)
			convey.So(d.PriceMax, convey.ShouldEqual, 1000)
			convey.So(d.Window, convey.ShouldEqual, 14*24*time.Hour)
		})
	})
}
