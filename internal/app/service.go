// Package service wires the discovery engine together: bulk bootstrap,
// change reconciliation and the read operations used by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	eventqueue "github.com/okian/nearby/internal/adapters/mq/queue"
	"github.com/okian/nearby/internal/adapters/mq/worker"
	"github.com/okian/nearby/internal/adapters/repository"
	"github.com/okian/nearby/internal/domain/dedupe"
	"github.com/okian/nearby/internal/domain/filter"
	"github.com/okian/nearby/internal/domain/geo"
	"github.com/okian/nearby/internal/domain/ingest"
	"github.com/okian/nearby/internal/domain/location"
	"github.com/okian/nearby/internal/domain/marker"
	"github.com/okian/nearby/internal/domain/model"
	"github.com/okian/nearby/internal/domain/types"
	"github.com/okian/nearby/pkg/logger"
	"github.com/okian/nearby/pkg/metrics"
)

// Fetcher returns every stored row for the initial load.
type Fetcher interface {
	FetchAll(ctx context.Context) ([]model.RawActivity, error)
}

// ChangeSource pushes change events to a handler until closed. A handler
// error asks the source to redeliver.
type ChangeSource interface {
	Start(ctx context.Context, h func(context.Context, model.ChangeEvent) error) error
	Close() error
}

// pipeline is the per-session ingest and storage path.
type pipeline struct {
	store   repository.Store
	deduper dedupe.Deduper
	queue   eventqueue.Queue
}

// Service implements the API dependencies for the discovery feed.
type Service struct {
	// mu guards the lifecycle; the hot paths only read pipe.
	mu   sync.RWMutex
	pipe atomic.Pointer[pipeline]

	applier *worker.Applier

	resolver  *location.Resolver
	projector *marker.Projector
	fetcher   Fetcher
	source    ChangeSource

	// Configuration
	queueSize    int
	dedupeSize   int
	defaults     filter.Defaults
	reference    geo.Coordinate
	storeOpts    []repository.Option
	resolverOpts []location.Option
	now          func() time.Time

	// State
	started   bool
	session   string
	startedAt time.Time
	cancel    context.CancelFunc

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		queueSize:  10_000,
		dedupeSize: dedupe.DefaultWindow,
		defaults:   filter.DefaultSettings,
		reference:  ingest.DefaultFallback,
		now:        time.Now,
		logger:     logger.Get().Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.projector == nil {
		s.projector = marker.NewProjector()
	}
	s.resolver = location.NewResolver(append([]location.Option{location.WithLogger(s.logger)}, s.resolverOpts...)...)
	return s
}

// Start bootstraps the session. The change source is subscribed first so
// nothing published during the bulk fetch is lost; those events wait in the
// queue and are applied on top of the loaded snapshot once the applier runs.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	session := uuid.NewString()
	log := s.logger.With(logger.String("session", session))
	log.Info(ctx, "starting discovery service...")

	// Background work outlives the bootstrap deadline.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	store := repository.NewTreapStore(append([]repository.Option{repository.WithLogger(log)}, s.storeOpts...)...)
	deduper := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	queue := eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	applier := worker.NewApplier(queue, store, worker.WithLogger(log))

	s.pipe.Store(&pipeline{store: store, deduper: deduper, queue: queue})

	abort := func(err error) error {
		if s.source != nil {
			_ = s.source.Close()
		}
		s.pipe.Store(nil)
		_ = queue.Close()
		cancel()
		log.Error(ctx, "bootstrap failed", logger.Error(err))
		return err
	}

	if s.source != nil {
		if err := s.source.Start(runCtx, s.Ingest); err != nil {
			return abort(fmt.Errorf("%w: subscribe: %w", ErrBootstrap, err))
		}
	}

	var batch []model.RawActivity
	if s.fetcher != nil {
		rows, err := s.fetcher.FetchAll(ctx)
		if err != nil {
			return abort(fmt.Errorf("%w: fetch: %w", ErrBootstrap, err))
		}
		batch = rows
	}
	if err := store.Load(ctx, batch); err != nil {
		return abort(fmt.Errorf("%w: load: %w", ErrBootstrap, err))
	}

	go applier.Run(runCtx)

	s.applier = applier
	s.cancel = cancel
	s.session = session
	s.startedAt = s.now()
	s.started = true
	log.Info(ctx, "discovery service started",
		logger.Int("activities", store.Count()),
		logger.Int("queued", queue.Len()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop closes the change source, drains the queue and waits for the applier.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping discovery service...")

	var errs []error
	if s.source != nil {
		if err := s.source.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close change source: %w", err))
		}
	}
	p := s.pipe.Swap(nil)
	_ = p.queue.Close()
	if err := s.applier.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	s.cancel()

	s.started = false
	s.logger.Info(ctx, "discovery service stopped")
	return errors.Join(errs...)
}

// Ingest accepts one change delivery for a ChangeSource. A returned error
// means the delivery was not accepted and should be retried.
func (s *Service) Ingest(ctx context.Context, ev model.ChangeEvent) error { //nolint:gocritic // hugeParam: events are passed by value through the queue
	_, err := s.Accept(ctx, ev)
	return err
}

// Accept queues ev for the applier unless its delivery id was seen inside
// the dedupe window, in which case it reports a duplicate.
func (s *Service) Accept(ctx context.Context, ev model.ChangeEvent) (bool, error) { //nolint:gocritic // hugeParam: events are passed by value through the queue
	p := s.pipe.Load()
	if p == nil {
		return false, ErrNotStarted
	}

	key := ev.DeliveryID
	if p.deduper.SeenAndRecord(ctx, key) {
		metrics.RecordDeliveryDeduped()
		s.logger.Debug(ctx, "redelivery dropped",
			logger.String("delivery_id", key),
			logger.String("operation", string(ev.Operation)))
		return true, nil
	}
	if err := p.queue.Enqueue(ctx, ev); err != nil {
		p.deduper.Unrecord(ctx, key)
		return false, fmt.Errorf("%w: %w", ErrBackpressure, err)
	}
	metrics.UpdateQueueSize(p.queue.Len())
	return false, nil
}

func (s *Service) snapshot() (*repository.Snapshot, error) {
	p := s.pipe.Load()
	if p == nil {
		return nil, ErrNotStarted
	}
	return p.store.Snapshot(), nil
}

// DefaultReference is the search centre used when a query names none.
func (s *Service) DefaultReference() geo.Coordinate {
	return s.reference
}

// DefaultCriteria returns the configured criteria around the current time.
func (s *Service) DefaultCriteria() filter.Criteria {
	return filter.Default(s.now(), s.defaults)
}

// Search evaluates c around ref over the latest committed snapshot.
func (s *Service) Search(_ context.Context, c filter.Criteria, ref geo.Coordinate) (types.Result, error) {
	snap, err := s.snapshot()
	if err != nil {
		return types.Result{}, err
	}
	acts, err := filter.Evaluate(snap.Activities, c, ref)
	if err != nil {
		return types.Result{}, err
	}
	return types.Result{Generation: snap.Generation, Activities: acts}, nil
}

// Markers projects the Search result for the map.
func (s *Service) Markers(ctx context.Context, c filter.Criteria, ref geo.Coordinate) ([]types.Marker, uint64, error) {
	res, err := s.Search(ctx, c, ref)
	if err != nil {
		return nil, 0, err
	}
	out := make([]types.Marker, len(res.Activities))
	for i := range res.Activities {
		a := &res.Activities[i]
		m := s.projector.Project(a)
		out[i] = types.Marker{ID: a.ID, Color: m.Color, Label: m.Label, Lat: a.Location.Lat, Lng: a.Location.Lng}
	}
	return out, res.Generation, nil
}

// Activity returns one activity from the latest snapshot.
func (s *Service) Activity(_ context.Context, id string) (model.Activity, error) {
	snap, err := s.snapshot()
	if err != nil {
		return model.Activity{}, err
	}
	a, ok := snap.Lookup(id)
	if !ok {
		return model.Activity{}, fmt.Errorf("%w: %s", repository.ErrNotFound, id)
	}
	return a, nil
}

// Resolve turns free-text user input into a coordinate.
func (s *Service) Resolve(ctx context.Context, text string) (geo.Coordinate, error) {
	return s.resolver.ResolveUserInput(ctx, text)
}

// Stats returns service statistics for monitoring.
func (s *Service) Stats() types.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := types.Stats{Started: s.started, QueueCapacity: s.queueSize}
	p := s.pipe.Load()
	if !s.started || p == nil {
		return st
	}
	snap := p.store.Snapshot()
	st.Session = s.session
	st.Generation = snap.Generation
	st.Activities = len(snap.Activities)
	st.QueueLength = p.queue.Len()
	st.DedupeSize = p.deduper.Size()
	st.UptimeSeconds = s.now().Sub(s.startedAt).Seconds()

	metrics.UpdateQueueSize(st.QueueLength)
	return st
}

// Ready reports whether the initial load has completed.
func (s *Service) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}
