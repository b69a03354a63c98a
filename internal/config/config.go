// Package config defines service configuration and its loading.
//
// Keys are flat so every field can be set from a NEARBY_* variable.
package config

import (
	"runtime"
	"time"

	"github.com/okian/nearby/internal/domain/filter"
	"github.com/okian/nearby/internal/domain/ingest"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`

	// FallbackLat and FallbackLng replace unusable stored locations.
	FallbackLat float64 `koanf:"fallback_lat" validate:"latitude"`
	FallbackLng float64 `koanf:"fallback_lng" validate:"longitude"`

	// TimeZone applies to stored times written without an offset.
	TimeZone string `koanf:"time_zone" validate:"required"`

	// PostgresDSN enables the bulk fetch; empty starts from an empty store.
	PostgresDSN       string `koanf:"postgres_dsn"`
	PostgresTable     string `koanf:"postgres_table" validate:"required"`
	PostgresMaxConns  int32  `koanf:"postgres_max_conns" validate:"gte=1"`
	PostgresFetchSize int    `koanf:"postgres_fetch_limit" validate:"gte=0"`

	// NATSURL enables the change stream; empty leaves only POST /changes.
	NATSURL           string        `koanf:"nats_url" validate:"omitempty,url"`
	NATSStream        string        `koanf:"nats_stream" validate:"required"`
	NATSSubjectPrefix string        `koanf:"nats_subject_prefix" validate:"required"`
	NATSDurable       string        `koanf:"nats_durable" validate:"required"`
	NATSMaxDeliver    int           `koanf:"nats_max_deliver" validate:"gte=1"`
	NATSAckWait       time.Duration `koanf:"nats_ack_wait" validate:"gt=0"`

	// GeocoderURL enables free-text place lookup.
	GeocoderURL     string        `koanf:"geocoder_url" validate:"omitempty,url"`
	GeocoderTimeout time.Duration `koanf:"geocoder_timeout" validate:"gt=0"`

	// GeocoderCacheDir keeps geocoder answers on disk; empty disables it.
	GeocoderCacheDir string        `koanf:"geocoder_cache_dir"`
	GeocoderCacheTTL time.Duration `koanf:"geocoder_cache_ttl" validate:"gt=0"`

	// CORSAllowedOrigins enables CORS for browser map clients.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins" validate:"dive,required"`

	// EventQueueSize bounds the in-memory change queue.
	EventQueueSize int `koanf:"queue_size" validate:"gte=1"`

	// DedupeSize sets how many delivery keys are remembered.
	DedupeSize int `koanf:"dedupe_size" validate:"gte=1"`

	// LoadConcurrency bounds concurrent normalization during a bulk load.
	LoadConcurrency int `koanf:"load_concurrency" validate:"gte=1"`

	// MarkerLabelRunes caps marker label length.
	MarkerLabelRunes int `koanf:"marker_label_runes" validate:"gte=1"`

	// Filter defaults used when a query leaves a bound out.
	FilterPriceMin float64       `koanf:"filter_price_min" validate:"gte=0,ltefield=FilterPriceMax"`
	FilterPriceMax float64       `koanf:"filter_price_max" validate:"gte=0"`
	FilterRadiusKm float64       `koanf:"filter_radius_km" validate:"gt=0"`
	FilterWindow   time.Duration `koanf:"filter_window" validate:"gt=0"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		Addr:              ":9080",
		ShutdownTimeout:   10 * time.Second,
		FallbackLat:       ingest.DefaultFallback.Lat,
		FallbackLng:       ingest.DefaultFallback.Lng,
		TimeZone:          "UTC",
		PostgresTable:     "activities",
		PostgresMaxConns:  4,
		NATSStream:        "ACTIVITIES",
		NATSSubjectPrefix: "activities.changes",
		NATSDurable:       "nearby-applier",
		NATSMaxDeliver:    5,
		NATSAckWait:       30 * time.Second,
		GeocoderTimeout:   3 * time.Second,
		GeocoderCacheTTL:  24 * time.Hour,
		EventQueueSize:    10_000,
		DedupeSize:        50_000,
		LoadConcurrency:   runtime.NumCPU(),
		MarkerLabelRunes:  24,
		FilterPriceMin:    filter.DefaultSettings.PriceMin,
		FilterPriceMax:    filter.DefaultSettings.PriceMax,
		FilterRadiusKm:    filter.DefaultSettings.RadiusKm,
		FilterWindow:      filter.DefaultSettings.Window,
	}
}

// FilterDefaults returns the configured filter defaults.
func (c *Config) FilterDefaults() filter.Defaults {
	return filter.Defaults{
		PriceMin: c.FilterPriceMin,
		PriceMax: c.FilterPriceMax,
		RadiusKm: c.FilterRadiusKm,
		Window:   c.FilterWindow,
	}
}

// Location returns the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.TimeZone)
}
