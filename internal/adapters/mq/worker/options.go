package worker

import (
	"github.com/okian/nearby/internal/domain/model"
	"github.com/okian/nearby/pkg/logger"
)

// Option applies a configuration option to the Applier.
type Option func(*Applier)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *Applier) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *Applier) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithHook registers a callback invoked after every apply attempt.
func WithHook(h func(ev *model.ChangeEvent, changed bool, err error)) Option {
	return func(w *Applier) {
		w.hook = h
	}
}
