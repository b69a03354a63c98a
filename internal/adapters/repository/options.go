package repository

import (
	"github.com/okian/nearby/internal/domain/ingest"
	"github.com/okian/nearby/pkg/logger"
)

// Option applies a configuration option to the TreapStore.
type Option func(*TreapStore)

// WithNormalizer sets the row normalizer.
func WithNormalizer(n *ingest.Normalizer) Option {
	return func(s *TreapStore) {
		if n != nil {
			s.normalizer = n
		}
	}
}

// WithLoadConcurrency bounds how many rows Load normalizes in parallel.
func WithLoadConcurrency(n int) Option {
	return func(s *TreapStore) {
		if n > 0 {
			s.loadConcurrency = n
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *TreapStore) {
		if l != nil {
			s.logger = l
		}
	}
}
