// Package worker drains the change queue into the activity store.
package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/nearby/internal/domain/model"
	"github.com/okian/nearby/pkg/logger"
)

// Store applies one change event.
type Store interface {
	ApplyChange(ctx context.Context, ev *model.ChangeEvent) (bool, error)
}

// Queue defines how the applier receives events.
type Queue interface {
	Dequeue() <-chan model.ChangeEvent
}

// Worker processes change events until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled, Shutdown is called or
	// the queue is closed and drained.
	Run(ctx context.Context)

	// Shutdown stops the worker and waits for the in-flight event.
	Shutdown(ctx context.Context) error
}

// Applier is the single consumer of the change queue. Running exactly one
// keeps the store single-writer.
type Applier struct {
	queue Queue
	store Store
	name  string
	hook  func(ev *model.ChangeEvent, changed bool, err error)

	stopOnce sync.Once
	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

var _ Worker = (*Applier)(nil)

// NewApplier creates the applier.
func NewApplier(q Queue, s Store, opts ...Option) *Applier {
	w := &Applier{
		queue:    q,
		store:    s,
		name:     "applier",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop.
func (w *Applier) Run(ctx context.Context) {
	defer close(w.done)

	events := w.queue.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			w.process(ctx, &ev)
		}
	}
}

// Shutdown signals the loop to stop and waits for it.
func (w *Applier) Shutdown(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when Run returns.
func (w *Applier) Done() <-chan struct{} {
	return w.done
}

func (w *Applier) process(ctx context.Context, ev *model.ChangeEvent) {
	changed, err := w.store.ApplyChange(ctx, ev)
	if err != nil {
		// a bad row never stops the loop
		w.logger.Warn(ctx, "change not applied",
			logger.String("operation", string(ev.Operation)),
			logger.String("id", string(ev.Row.ID)),
			logger.Error(err))
	} else if changed {
		w.logger.Debug(ctx, "change applied",
			logger.String("operation", string(ev.Operation)),
			logger.String("id", string(ev.Row.ID)))
	}
	if w.hook != nil {
		w.hook(ev, changed, err)
	}
}
