package config_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/okian/nearby/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		convey.Reset(clearConfigEnvVars)

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.EventQueueSize, convey.ShouldEqual, 10_000)
				convey.So(cfg.NATSSubjectPrefix, convey.ShouldEqual, "activities.changes")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("NEARBY_ADDR", ":8080")
			_ = os.Setenv("NEARBY_QUEUE_SIZE", "2048")
			_ = os.Setenv("NEARBY_NATS_URL", "nats://127.0.0.1:4222")
			_ = os.Setenv("NEARBY_NATS_ACK_WAIT", "10s")
			_ = os.Setenv("NEARBY_FALLBACK_LAT", "24.1477")
			_ = os.Setenv("NEARBY_FILTER_WINDOW", "72h")
			_ = os.Setenv("NEARBY_CORS_ALLOWED_ORIGINS", "https://map.example.com, https://m.example.com")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.EventQueueSize, convey.ShouldEqual, 2048)
				convey.So(cfg.NATSURL, convey.ShouldEqual, "nats://127.0.0.1:4222")
				convey.So(cfg.NATSAckWait, convey.ShouldEqual, 10*time.Second)
				convey.So(cfg.FallbackLat, convey.ShouldEqual, 24.1477)
				convey.So(cfg.FilterWindow, convey.ShouldEqual, 72*time.Hour)
				convey.So(cfg.CORSAllowedOrigins, convey.ShouldResemble, []string{"https://map.example.com", "https://m.example.com"})
				convey.So(cfg.GeocoderCacheTTL, convey.ShouldEqual, 24*time.Hour)
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			yamlContent := `
addr: ":9090"
queue_size: 300
postgres_dsn: "postgres://nearby@localhost:5432/nearby"
postgres_table: "posts"
marker_label_runes: 16
filter_radius_km: 5
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("NEARBY_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from the file and keep other defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.EventQueueSize, convey.ShouldEqual, 300)
				convey.So(cfg.PostgresTable, convey.ShouldEqual, "posts")
				convey.So(cfg.MarkerLabelRunes, convey.ShouldEqual, 16)
				convey.So(cfg.FilterRadiusKm, convey.ShouldEqual, 5)
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000)
			})
		})

		convey.Convey("When both file and environment variables are set", func() {
			tmpFile := createTempConfigFile("addr: \":9090\"\nqueue_size: 300\n")
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("NEARBY_CONFIG", tmpFile)
			_ = os.Setenv("NEARBY_ADDR", ":8080")

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables win", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.EventQueueSize, convey.ShouldEqual, 300)
			})
		})

		convey.Convey("When the YAML file is invalid", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("NEARBY_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When the file does not exist", func() {
			_ = os.Setenv("NEARBY_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When a numeric variable is not a number", func() {
			_ = os.Setenv("NEARBY_QUEUE_SIZE", "invalid")

			cfg, err := config.Load(ctx)
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})

		cases := []struct {
			name, key, value string
		}{
			{"empty addr", "NEARBY_ADDR", ""},
			{"unknown log level", "NEARBY_LOG_LEVEL", "verbose"},
			{"out of range fallback", "NEARBY_FALLBACK_LAT", "91"},
			{"zero queue", "NEARBY_QUEUE_SIZE", "0"},
			{"bad nats url", "NEARBY_NATS_URL", "not a url"},
			{"inverted price defaults", "NEARBY_FILTER_PRICE_MIN", "5000"},
			{"unknown time zone", "NEARBY_TIME_ZONE", "Mars/Olympus"},
		}
		for _, tc := range cases {
			convey.Convey("When loading config with "+tc.name, func() {
				_ = os.Setenv(tc.key, tc.value)

				cfg, err := config.Load(ctx)

				convey.Convey("Then it should return a validation error", func() {
					convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
					convey.So(cfg, convey.ShouldBeNil)
				})
			})
		}
	})
}

func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		if name, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(name, "NEARBY_") {
			_ = os.Unsetenv(name)
		}
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "nearby-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
