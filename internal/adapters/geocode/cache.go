package geocode

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"

	"github.com/okian/nearby/internal/domain/geo"
	"github.com/okian/nearby/internal/domain/location"
	"github.com/okian/nearby/pkg/logger"
	"github.com/okian/nearby/pkg/metrics"
)

const cacheKeyPrefix = "geocode:"

// OpenCache opens the badger database backing Cache. An empty dir keeps
// everything in memory.
func OpenCache(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open geocode cache: %w", err)
	}
	return db, nil
}

type cacheEntry struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Miss bool    `json:"miss,omitempty"`
}

// Cache remembers answers from another Geocoder, misses included, so
// repeated place names do not hit the upstream service. Upstream failures
// are never cached.
type Cache struct {
	db     *badger.DB
	next   location.Geocoder
	ttl    time.Duration
	logger logger.Logger
}

var _ location.Geocoder = (*Cache)(nil)

// NewCache wraps next. Entries expire after ttl.
func NewCache(db *badger.DB, next location.Geocoder, ttl time.Duration) *Cache {
	return &Cache{db: db, next: next, ttl: ttl, logger: logger.Get().Named("geocode.cache")}
}

// Geocode implements location.Geocoder.
func (c *Cache) Geocode(ctx context.Context, query string) (geo.Coordinate, error) {
	key := cacheKey(query)
	if e, ok := c.get(ctx, key); ok {
		metrics.RecordGeocoderRequest("cache_hit")
		if e.Miss {
			return geo.Coordinate{}, fmt.Errorf("%w: no place named %q", location.ErrUnparseable, query)
		}
		return geo.Coordinate{Lat: e.Lat, Lng: e.Lng}, nil
	}

	coord, err := c.next.Geocode(ctx, query)
	switch {
	case err == nil:
		c.put(ctx, key, cacheEntry{Lat: coord.Lat, Lng: coord.Lng})
	case errors.Is(err, location.ErrUnparseable):
		c.put(ctx, key, cacheEntry{Miss: true})
	}
	return coord, err
}

func (c *Cache) get(ctx context.Context, key []byte) (cacheEntry, bool) {
	var e cacheEntry
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			c.logger.Warn(ctx, "geocode cache read failed", logger.Error(err))
		}
		return cacheEntry{}, false
	}
	return e, true
}

func (c *Cache) put(ctx context.Context, key []byte, e cacheEntry) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(key, data).WithTTL(c.ttl))
	})
	if err != nil {
		c.logger.Warn(ctx, "geocode cache write failed", logger.Error(err))
	}
}

// cacheKey folds case and whitespace so trivially different spellings of a
// query share one entry.
func cacheKey(query string) []byte {
	return []byte(cacheKeyPrefix + strings.ToLower(strings.Join(strings.Fields(query), " ")))
}
