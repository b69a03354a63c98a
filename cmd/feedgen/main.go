package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsadapter "github.com/okian/nearby/internal/adapters/nats"
	"github.com/okian/nearby/internal/feedgen"
	"github.com/okian/nearby/pkg/logger"
)

const runTimeout = 10 * time.Minute

func main() {
	def := feedgen.DefaultConfig()
	var (
		baseURL    = flag.String("url", def.BaseURL, "Base URL of the nearby service")
		natsURL    = flag.String("nats", "", "Publish through JetStream at this URL instead of POST /changes")
		stream     = flag.String("stream", natsadapter.DefaultStream, "JetStream stream name")
		prefix     = flag.String("subject-prefix", natsadapter.DefaultSubjectPrefix, "Change subject prefix")
		inserts    = flag.Int("inserts", def.Inserts, "Activities to create")
		updates    = flag.Int("updates", def.Updates, "Updates to apply")
		deletes    = flag.Int("deletes", def.Deletes, "Deletes to apply")
		duplicates = flag.Int("duplicates", def.Duplicates, "Redeliveries to inject")
		workers    = flag.Int("workers", def.Workers, "Concurrent senders")
		timeout    = flag.Duration("timeout", def.Timeout, "HTTP request timeout")
		settle     = flag.Duration("settle", def.Settle, "How long to wait for the service to converge")
		pace       = flag.Float64("rate", 0, "Events per second across all workers; 0 sends as fast as possible")
		lat        = flag.Float64("lat", def.Center.Lat, "Latitude of the scatter centre")
		lng        = flag.Float64("lng", def.Center.Lng, "Longitude of the scatter centre")
		radius     = flag.Float64("radius", def.RadiusKm, "Scatter radius in km")
		seed       = flag.Uint64("seed", 0, "Random seed; 0 is time based")
		verbose    = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	cfg := def
	cfg.BaseURL = *baseURL
	cfg.Inserts, cfg.Updates, cfg.Deletes, cfg.Duplicates = *inserts, *updates, *deletes, *duplicates
	cfg.Workers, cfg.Timeout, cfg.Settle, cfg.Rate = *workers, *timeout, *settle, *pace
	cfg.Center.Lat, cfg.Center.Lng, cfg.RadiusKm = *lat, *lng, *radius
	cfg.Seed = *seed

	var sink feedgen.Sink = feedgen.NewHTTPSink(cfg.BaseURL, cfg.Timeout)
	if *natsURL != "" {
		conn, err := natsadapter.Connect(*natsURL, "nearby-feedgen")
		if err != nil {
			log.Error(ctx, "nats connect failed", logger.Error(err))
			os.Exit(1)
		}
		defer conn.Close()
		pub, err := natsadapter.NewPublisher(conn,
			natsadapter.WithStream(*stream),
			natsadapter.WithSubjectPrefix(*prefix),
		)
		if err != nil {
			log.Error(ctx, "publisher setup failed", logger.Error(err))
			os.Exit(1) //nolint:gocritic // exitAfterDefer: process is done
		}
		sink = pub
	}

	if _, err := feedgen.Run(ctx, cfg, sink); err != nil {
		log.Error(ctx, "feed run failed", logger.Error(err))
		os.Exit(1)
	}
}
