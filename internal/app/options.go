package service

import (
	"time"

	"github.com/okian/nearby/internal/adapters/repository"
	"github.com/okian/nearby/internal/domain/filter"
	"github.com/okian/nearby/internal/domain/geo"
	"github.com/okian/nearby/internal/domain/location"
	"github.com/okian/nearby/internal/domain/marker"
	"github.com/okian/nearby/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithQueueSize sets the maximum size of the change queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many delivery keys are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithFetcher sets the bulk source used on Start.
func WithFetcher(f Fetcher) Option {
	return func(s *Service) {
		s.fetcher = f
	}
}

// WithChangeSource sets the push stream consumed after Start.
func WithChangeSource(src ChangeSource) Option {
	return func(s *Service) {
		s.source = src
	}
}

// WithGeocoder enables place lookup in Resolve.
func WithGeocoder(g location.Geocoder) Option {
	return func(s *Service) {
		if g != nil {
			s.resolverOpts = append(s.resolverOpts, location.WithGeocoder(g))
		}
	}
}

// WithProjector replaces the marker projector.
func WithProjector(p *marker.Projector) Option {
	return func(s *Service) {
		if p != nil {
			s.projector = p
		}
	}
}

// WithFilterDefaults sets the criteria used when a query omits bounds.
func WithFilterDefaults(d filter.Defaults) Option {
	return func(s *Service) {
		s.defaults = d
	}
}

// WithReference sets the default search centre.
func WithReference(c geo.Coordinate) Option {
	return func(s *Service) {
		if c.Validate() == nil {
			s.reference = c
		}
	}
}

// WithStoreOptions passes options to the activity store built on Start.
func WithStoreOptions(opts ...repository.Option) Option {
	return func(s *Service) {
		s.storeOpts = append(s.storeOpts, opts...)
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
