// Package dedupe tracks recently applied change deliveries so at-least-once
// redeliveries are dropped before they reach the store.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// DefaultWindow is the number of delivery keys remembered by default.
const DefaultWindow = 50000

// Deduper remembers delivery keys inside a bounded window. Empty keys are
// never recorded.
type Deduper interface {
	// SeenAndRecord atomically checks if key is in the window and records it
	// if not. Returns true if key was already present.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord removes key so a delivery that failed downstream (for example
	// on queue backpressure) is accepted again on redelivery.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

// window is a FIFO ring of keys; the oldest key is evicted when full.
type window struct {
	mu    sync.Mutex
	slots []string
	index map[string]int // key -> slot
	next  int
	size  atomic.Int64
}

// NewInMemoryDeduper creates a window deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	cfg := config{maxSize: DefaultWindow}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxSize <= 0 {
		cfg.maxSize = DefaultWindow
	}
	return &window{
		slots: make([]string, cfg.maxSize),
		index: make(map[string]int, cfg.maxSize),
	}
}

func (w *window) SeenAndRecord(_ context.Context, key string) bool {
	if key == "" {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.index[key]; ok {
		return true
	}
	if old := w.slots[w.next]; old != "" {
		if slot, ok := w.index[old]; ok && slot == w.next {
			delete(w.index, old)
			w.size.Add(-1)
		}
	}
	w.slots[w.next] = key
	w.index[key] = w.next
	w.next = (w.next + 1) % len(w.slots)
	w.size.Add(1)
	return false
}

func (w *window) Unrecord(_ context.Context, key string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	slot, ok := w.index[key]
	if !ok {
		return
	}
	delete(w.index, key)
	w.slots[slot] = ""
	w.size.Add(-1)
}

func (w *window) Size() int64 {
	return w.size.Load()
}
