package repository

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/nearby/internal/domain/ingest"
	"github.com/okian/nearby/internal/domain/model"
	"github.com/okian/nearby/pkg/logger"
	"github.com/okian/nearby/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: CreatedAt DESC, then ID ASC (deterministic).
// "less" means appears earlier, so in-order traversal yields the feed from
// newest to oldest. Priorities are random to keep the tree balanced.

// key is the ordering key of one activity.
type key struct {
	created int64 // unix nanoseconds
	id      string
}

func keyOf(a *model.Activity) key {
	return key{created: a.CreatedAt.UnixNano(), id: a.ID}
}

// less returns true if a should appear before b in the feed.
func less(a, b key) bool {
	if a.created != b.created {
		return a.created > b.created // newer first
	}
	return a.id < b.id
}

// treap node
type node struct {
	k     key
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

func insert(n *node, k key) *node {
	if n == nil {
		return &node{k: k, prio: rand.Uint64(), size: 1}
	}
	if less(k, n.k) {
		n.left = insert(n.left, k)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, k)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, k key) *node {
	if n == nil {
		return nil
	}
	switch {
	case n.k == k:
		// Merge children by rotating highest priority up until leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, k)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, k)
		}
	case less(k, n.k):
		n.left = deleteNode(n.left, k)
	default:
		n.right = deleteNode(n.right, k)
	}
	fix(n)
	return n
}

// collectAll appends every activity in feed order.
func collectAll(n *node, byID map[string]model.Activity, out *[]model.Activity) {
	if n == nil {
		return
	}
	collectAll(n.left, byID, out)
	if a, ok := byID[n.k.id]; ok {
		*out = append(*out, a)
	}
	collectAll(n.right, byID, out)
}

// TreapStore is the Store implementation.
type TreapStore struct {
	// mu serializes Load and ApplyChange; readers use snapshot.
	mu         sync.Mutex
	root       *node
	byID       map[string]model.Activity
	generation uint64

	snapshot atomic.Pointer[Snapshot]

	normalizer      *ingest.Normalizer
	loadConcurrency int
	logger          logger.Logger
}

var _ Store = (*TreapStore)(nil)

// NewTreapStore constructs an empty store at generation 0.
func NewTreapStore(opts ...Option) *TreapStore {
	s := &TreapStore{
		byID:            make(map[string]model.Activity),
		loadConcurrency: runtime.GOMAXPROCS(0),
		logger:          logger.Get().Named("store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.normalizer == nil {
		s.normalizer = ingest.NewNormalizer(ingest.WithLogger(s.logger))
	}
	s.snapshot.Store(&Snapshot{Activities: []model.Activity{}})
	return s
}

// Load implements Store.Load. Normalization runs concurrently, bounded by
// the load concurrency; the new tree is swapped in only after every row is
// processed and ctx is still live.
func (s *TreapStore) Load(ctx context.Context, batch []model.RawActivity) error {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		metrics.RecordLoad("cancelled", msSince(start))
		return err
	}

	normalized := make([]model.Activity, len(batch))
	ok := make([]bool, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.loadConcurrency)
	for i := range batch {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			a, err := s.normalizer.Normalize(gctx, &batch[i], ingest.SourceLoad)
			if err != nil {
				return nil // skipped and reported by the normalizer
			}
			normalized[i] = a
			ok[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.RecordLoad("cancelled", msSince(start))
		return err
	}

	var root *node
	byID := make(map[string]model.Activity, len(batch))
	for i := range normalized {
		if !ok[i] {
			continue
		}
		a := normalized[i]
		if _, dup := byID[a.ID]; dup {
			s.logger.Debug(ctx, "duplicate id in batch, keeping first", logger.String("id", a.ID))
			continue
		}
		byID[a.ID] = a
		root = insert(root, keyOf(&a))
	}

	// Last chance to abandon: nothing has been published yet.
	if err := ctx.Err(); err != nil {
		metrics.RecordLoad("cancelled", msSince(start))
		return err
	}

	s.root = root
	s.byID = byID
	s.generation++
	s.publishLocked()

	metrics.RecordLoad("ok", msSince(start))
	s.logger.Info(ctx, "activities loaded",
		logger.Int("rows", len(batch)),
		logger.Int("stored", len(byID)),
		logger.Uint64("generation", s.generation),
		logger.Duration("took", time.Since(start)))
	return nil
}

// ApplyChange implements Store.ApplyChange.
func (s *TreapStore) ApplyChange(ctx context.Context, ev *model.ChangeEvent) (bool, error) {
	start := time.Now()
	defer func() {
		metrics.RecordApplyLatency(msSince(start))
	}()

	id := strings.TrimSpace(string(ev.Row.ID))
	if id == "" {
		metrics.RecordChangeIgnored(string(ev.Operation), "missing_id")
		return false, fmt.Errorf("%w: %s", ErrMissingID, ev.Operation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return false, err
	}

	var (
		changed bool
		err     error
	)
	switch ev.Operation {
	case model.OpInsert:
		changed, err = s.insertLocked(ctx, id, &ev.Row)
	case model.OpUpdate:
		changed, err = s.updateLocked(ctx, id, &ev.Row)
	case model.OpDelete:
		changed = s.deleteLocked(ctx, id)
	default:
		metrics.RecordChangeIgnored(string(ev.Operation), "unknown_operation")
		return false, fmt.Errorf("%w: %w: %q", ErrInvalidChange, model.ErrUnknownOperation, ev.Operation)
	}
	if err != nil {
		metrics.RecordChangeIgnored(string(ev.Operation), "invalid_row")
		return false, fmt.Errorf("%w: %s %s: %w", ErrInvalidChange, ev.Operation, id, err)
	}
	if !changed {
		return false, nil
	}

	s.generation++
	s.publishLocked()
	metrics.RecordChangeApplied(string(ev.Operation))
	return true, nil
}

func (s *TreapStore) insertLocked(ctx context.Context, id string, row *model.RawActivity) (bool, error) {
	if _, exists := s.byID[id]; exists {
		metrics.RecordDuplicateInsert()
		s.logger.Debug(ctx, "duplicate insert ignored", logger.String("id", id))
		return false, nil
	}
	a, err := s.normalizer.Normalize(ctx, row, ingest.SourceChange)
	if err != nil {
		return false, err
	}
	s.byID[a.ID] = a
	s.root = insert(s.root, keyOf(&a))
	return true, nil
}

func (s *TreapStore) updateLocked(ctx context.Context, id string, row *model.RawActivity) (bool, error) {
	old, exists := s.byID[id]
	if !exists {
		metrics.RecordChangeIgnored(string(model.OpUpdate), "unknown_id")
		s.logger.Debug(ctx, "update for unknown id ignored", logger.String("id", id))
		return false, nil
	}
	a, err := s.normalizer.Normalize(ctx, row, ingest.SourceChange)
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(row.CreatedAt) == "" {
		a.CreatedAt = old.CreatedAt
	}
	if oldKey, newKey := keyOf(&old), keyOf(&a); oldKey != newKey {
		s.root = deleteNode(s.root, oldKey)
		s.root = insert(s.root, newKey)
	}
	s.byID[id] = a
	return true, nil
}

func (s *TreapStore) deleteLocked(ctx context.Context, id string) bool {
	old, exists := s.byID[id]
	if !exists {
		metrics.RecordChangeIgnored(string(model.OpDelete), "unknown_id")
		s.logger.Debug(ctx, "delete for unknown id ignored", logger.String("id", id))
		return false
	}
	s.root = deleteNode(s.root, keyOf(&old))
	delete(s.byID, id)
	return true
}

// publishLocked rebuilds and publishes the snapshot. Caller holds mu.
func (s *TreapStore) publishLocked() {
	acts := make([]model.Activity, 0, len(s.byID))
	collectAll(s.root, s.byID, &acts)
	index := make(map[string]int, len(acts))
	for i := range acts {
		index[acts[i].ID] = i
	}
	s.snapshot.Store(&Snapshot{Generation: s.generation, Activities: acts, index: index})

	metrics.UpdateActivities(len(acts))
	metrics.UpdateGeneration(s.generation)
}

// Snapshot implements Store.Snapshot.
func (s *TreapStore) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

// Get returns an activity from the committed snapshot.
func (s *TreapStore) Get(id string) (model.Activity, error) {
	if a, ok := s.snapshot.Load().Lookup(id); ok {
		return a, nil
	}
	return model.Activity{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Count returns the number of committed activities.
func (s *TreapStore) Count() int {
	return len(s.snapshot.Load().Activities)
}

// Generation returns the committed generation.
func (s *TreapStore) Generation() uint64 {
	return s.snapshot.Load().Generation
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
