// Package cache memoizes remote calls for a bounded time.
package cache

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/rewired-gh/hunterboard/internal/logger"
)

// Key identifies one memoized call: what kind of call and with which parameters.
type Key struct {
	Kind   string
	Params string
}

func (k Key) String() string {
	return k.Kind + "\x00" + k.Params
}

// Store holds memoized results. Each kind has its own TTL; a kind without a
// TTL is never cached.
type Store struct {
	cache *ristretto.Cache
	ttls  map[string]time.Duration
}

// New creates a Store with the given TTL per call kind.
func New(ttls map[string]time.Duration) (*Store, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        10000,
		MaxCost:            1000, // entries, each costs 1
		BufferItems:        64,
		Metrics:            true,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	t := make(map[string]time.Duration, len(ttls))
	for k, v := range ttls {
		t[k] = v
	}
	return &Store{cache: c, ttls: t}, nil
}

// Get returns the value stored under key while it is younger than its kind's TTL.
func (s *Store) Get(key Key) (any, bool) {
	return s.cache.Get(key.String())
}

// Put stores value under key for its kind's TTL. The value is visible to Get
// as soon as Put returns.
func (s *Store) Put(key Key, value any) {
	ttl := s.ttls[key.Kind]
	if ttl <= 0 {
		return
	}
	if !s.cache.SetWithTTL(key.String(), value, 1, ttl) {
		logger.Debug("Cache dropped %s(%s)", key.Kind, key.Params)
		return
	}
	s.cache.Wait()
}

// Clear drops every entry of every kind.
func (s *Store) Clear() {
	m := s.cache.Metrics
	logger.Debug("Cache cleared (hits: %d, misses: %d, added: %d)", m.Hits(), m.Misses(), m.KeysAdded())
	s.cache.Clear()
}

// Close stops the cache's background goroutines.
func (s *Store) Close() {
	s.cache.Close()
}

// Memo returns the cached value for key or calls fetch. The fetched value is
// stored only when keep reports true for it.
func Memo[V any](s *Store, key Key, fetch func() V, keep func(V) bool) V {
	if v, ok := s.Get(key); ok {
		if typed, ok := v.(V); ok {
			logger.Debug("Cache hit %s(%s)", key.Kind, key.Params)
			return typed
		}
	}
	v := fetch()
	if keep == nil || keep(v) {
		s.Put(key, v)
	}
	return v
}
