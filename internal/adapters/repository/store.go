// Package repository holds the live, ordered activity collection.
package repository

import (
	"context"

	"github.com/okian/nearby/internal/domain/model"
)

// Snapshot is an immutable view of the last committed state. Activities are
// ordered newest CreatedAt first, ties by ID ascending. Callers must not
// modify it.
type Snapshot struct {
	Generation uint64
	Activities []model.Activity

	index map[string]int
}

// Lookup returns the activity with id in this snapshot.
func (s *Snapshot) Lookup(id string) (model.Activity, bool) {
	i, ok := s.index[id]
	if !ok {
		return model.Activity{}, false
	}
	return s.Activities[i], true
}

// Store is the activity collection. Mutations are serialized; reads never block.
type Store interface {
	// Load replaces the contents with the normalized batch. Rows that fail
	// normalization are skipped. If ctx is cancelled before commit nothing
	// changes and ctx.Err() is returned.
	Load(ctx context.Context, batch []model.RawActivity) error

	// ApplyChange applies one change event. It reports whether the state
	// changed; duplicate inserts and unknown ids are no-ops, not errors.
	ApplyChange(ctx context.Context, ev *model.ChangeEvent) (bool, error)

	// Snapshot returns the last committed state.
	Snapshot() *Snapshot

	// Get returns the activity with id from the committed state.
	Get(id string) (model.Activity, error)

	Count() int
	Generation() uint64
}
