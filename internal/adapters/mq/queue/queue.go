// Package queue buffers change events between the change feed and the applier.
package queue

import (
	"context"
	"sync"

	"github.com/okian/nearby/internal/domain/model"
	"github.com/okian/nearby/pkg/metrics"
)

const defaultQueueCapacity = 10000

// Queue hands change events to the single applier.
type Queue interface {
	// Enqueue adds ev without blocking. It returns ErrFull on backpressure,
	// ErrClosed after Close, or ctx.Err().
	Enqueue(ctx context.Context, ev model.ChangeEvent) error

	// Dequeue returns the receive side. It is closed by Close.
	Dequeue() <-chan model.ChangeEvent

	Len() int

	Close() error

	IsClosed() bool
}

// InMemoryQueue is a bounded channel-backed Queue.
type InMemoryQueue struct {
	events   chan model.ChangeEvent
	capacity int

	mu     sync.RWMutex
	closed bool
}

var _ Queue = (*InMemoryQueue)(nil)

// NewInMemoryQueue creates a queue with the given options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.events = make(chan model.ChangeEvent, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue implements Queue.Enqueue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, ev model.ChangeEvent) error { //nolint:gocritic // hugeParam: value semantics for channel send
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError("closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError("context_cancelled")
		return err
	}

	select {
	case q.events <- ev:
		metrics.UpdateQueueSize(len(q.events))
		return nil
	default:
		metrics.RecordQueueEnqueueError("queue_full")
		return ErrFull
	}
}

// Dequeue implements Queue.Dequeue.
func (q *InMemoryQueue) Dequeue() <-chan model.ChangeEvent {
	return q.events
}

// Len returns the number of pending events.
func (q *InMemoryQueue) Len() int {
	size := len(q.events)
	metrics.UpdateQueueSize(size)
	return size
}

// Close stops accepting events. Pending events stay readable.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.events)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
