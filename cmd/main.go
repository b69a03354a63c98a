package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/okian/nearby/internal/adapters/geocode"
	"github.com/okian/nearby/internal/adapters/http/api"
	"github.com/okian/nearby/internal/adapters/http/swagger"
	natsadapter "github.com/okian/nearby/internal/adapters/nats"
	"github.com/okian/nearby/internal/adapters/postgres"
	"github.com/okian/nearby/internal/adapters/repository"
	service "github.com/okian/nearby/internal/app"
	"github.com/okian/nearby/internal/config"
	"github.com/okian/nearby/internal/domain/geo"
	"github.com/okian/nearby/internal/domain/ingest"
	"github.com/okian/nearby/internal/domain/location"
	"github.com/okian/nearby/internal/domain/marker"
	"github.com/okian/nearby/internal/supervisor"
	"github.com/okian/nearby/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	corsMaxAge        = 300
)

func main() {
	// a missing .env is normal outside local development
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		os.Stderr.WriteString("failed to read .env: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// defaults -> optional file -> env
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "nearby exited", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc, cleanup, err := buildService(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := newHTTPServer(ctx, cfg.Addr, svc, cfg.CORSAllowedOrigins)

	tree := supervisor.NewTree(logger.Slog(), supervisor.TreeConfig{ShutdownTimeout: cfg.ShutdownTimeout})
	tree.AddDataService(supervisor.NewLifecycleService("discovery", svc, cfg.ShutdownTimeout))
	tree.AddAPIService(supervisor.NewHTTPService(srv, cfg.ShutdownTimeout))

	log.Info(ctx, "starting nearby", logger.String("addr", cfg.Addr))
	err = tree.Serve(ctx)
	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		log.Warn(ctx, "services did not stop in time", logger.Int("count", len(report)))
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info(ctx, "server stopped")
	return nil
}

// buildService wires the configured adapters into a discovery service.
// Adapters whose address is empty are left out. cleanup releases whatever
// connections were opened.
func buildService(ctx context.Context, cfg *config.Config) (*service.Service, func(), error) {
	log := logger.Get()
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*service.Service, func(), error) {
		cleanup()
		return nil, func() {}, err
	}

	zone, err := cfg.Location()
	if err != nil {
		return fail(fmt.Errorf("time zone: %w", err))
	}
	fallback := geo.Coordinate{Lat: cfg.FallbackLat, Lng: cfg.FallbackLng}
	normalizer := ingest.NewNormalizer(
		ingest.WithFallback(fallback),
		ingest.WithTimeZone(zone),
		ingest.WithLogger(log.Named("ingest")),
	)

	opts := []service.Option{
		service.WithLogger(log.Named("discovery")),
		service.WithQueueSize(cfg.EventQueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithFilterDefaults(cfg.FilterDefaults()),
		service.WithReference(fallback),
		service.WithProjector(marker.NewProjector(marker.WithLabelRunes(cfg.MarkerLabelRunes))),
		service.WithStoreOptions(
			repository.WithNormalizer(normalizer),
			repository.WithLoadConcurrency(cfg.LoadConcurrency),
		),
	}

	if cfg.PostgresDSN != "" {
		pool, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, pool.Close)
		fetcher, err := postgres.NewFetcher(pool,
			postgres.WithTable(cfg.PostgresTable),
			postgres.WithLimit(cfg.PostgresFetchSize),
			postgres.WithLogger(log.Named("postgres")),
		)
		if err != nil {
			return fail(err)
		}
		opts = append(opts, service.WithFetcher(fetcher))
	} else {
		log.Warn(ctx, "postgres_dsn not set; starting from an empty store")
	}

	if cfg.NATSURL != "" {
		conn, err := natsadapter.Connect(cfg.NATSURL, "nearby")
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() { drain(conn) })
		sub, err := natsadapter.NewSubscriber(conn,
			natsadapter.WithStream(cfg.NATSStream),
			natsadapter.WithSubjectPrefix(cfg.NATSSubjectPrefix),
			natsadapter.WithDurable(cfg.NATSDurable),
			natsadapter.WithMaxDeliver(cfg.NATSMaxDeliver),
			natsadapter.WithAckWait(cfg.NATSAckWait),
			natsadapter.WithLogger(log.Named("nats")),
		)
		if err != nil {
			return fail(err)
		}
		opts = append(opts, service.WithChangeSource(sub))
	}

	if cfg.GeocoderURL != "" {
		gc, err := geocode.New(cfg.GeocoderURL,
			geocode.WithTimeout(cfg.GeocoderTimeout),
			geocode.WithLogger(log.Named("geocode")),
		)
		if err != nil {
			return fail(err)
		}
		var g location.Geocoder = gc
		if cfg.GeocoderCacheDir != "" {
			db, err := geocode.OpenCache(cfg.GeocoderCacheDir)
			if err != nil {
				return fail(err)
			}
			closers = append(closers, func() { _ = db.Close() })
			g = geocode.NewCache(db, gc, cfg.GeocoderCacheTTL)
		}
		opts = append(opts, service.WithGeocoder(g))
	}

	return service.New(opts...), cleanup, nil
}

func drain(conn *nats.Conn) {
	if err := conn.Drain(); err != nil {
		conn.Close()
	}
}

// newHTTPServer mounts the API and the OpenAPI document on one mux. When
// origins is non-empty, browsers on those origins may call the API.
func newHTTPServer(ctx context.Context, addr string, svc *service.Service, origins []string) *http.Server {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc).Register(ctx, mux)

	var handler http.Handler = mux
	if len(origins) > 0 {
		handler = cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "Idempotency-Key"},
			ExposedHeaders: []string{"X-Generation"},
			MaxAge:         corsMaxAge,
		})(mux)
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}
