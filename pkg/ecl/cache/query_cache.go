// Package cache provides the query-result cache the evaluator consults
// before computing a query from scratch: an LRU+TTL store keyed by a
// compiled query's canonical cache key, with concurrent identical misses
// coalesced into a single computation.
package cache

import (
	"context"
	"strconv"
	"time"

	"resenje.org/singleflight"

	pkgcache "github.com/snomedtools/goecl/pkg/cache"
	"github.com/snomedtools/goecl/pkg/ecl/result"
)

// Config controls a QueryCache's capacity and entry lifetime.
type Config struct {
	// Capacity bounds the cache in arbitrary cost units; each entry's cost
	// is its result set's member count, so this is roughly "max total
	// concepts held across all cached results."
	Capacity int64

	// TTL is how long an entry stays valid after being set. Zero means
	// entries never expire on their own (only eviction removes them).
	TTL time.Duration
}

// DefaultConfig is a reasonable starting point for an in-process cache.
func DefaultConfig() Config {
	return Config{Capacity: 1_000_000, TTL: 5 * time.Minute}
}

// cacheKey adapts a compiler cache key (a bare uint64) to pkg/cache's
// KeyString constraint.
type cacheKey uint64

func (k cacheKey) KeyString() string {
	return strconv.FormatUint(uint64(k), 10)
}

// QueryCache caches whole result.Set values keyed by a compiled query's
// CacheKey. Concurrent lookups for the same key that both miss are
// coalesced via singleflight, so an expensive evaluation runs once no
// matter how many goroutines asked for it at the same moment.
type QueryCache struct {
	backing pkgcache.Cache[cacheKey, result.Set]
	group   singleflight.Group[cacheKey, result.Set]
}

// New builds a QueryCache backed by pkg/cache's theine implementation.
func New(config Config) (*QueryCache, error) {
	backing, err := pkgcache.NewStandardCache[cacheKey, result.Set](&pkgcache.Config{
		NumCounters: config.Capacity * 10,
		MaxCost:     config.Capacity,
		DefaultTTL:  config.TTL,
	})
	if err != nil {
		return nil, err
	}
	return &QueryCache{backing: backing}, nil
}

// Get returns the cached result for key, if present.
func (c *QueryCache) Get(key uint64) (result.Set, bool) {
	return c.backing.Get(cacheKey(key))
}

// Set stores value under key with a cost equal to its member count.
func (c *QueryCache) Set(key uint64, value result.Set) {
	c.backing.Set(cacheKey(key), value, int64(value.Len()))
}

// GetOrCompute returns the cached result for key if present; otherwise it
// calls compute exactly once even under concurrent callers racing on the
// same key, caches the result on success, and returns it. The returned
// shared bool reports whether the computed value was handed to more than
// one concurrent caller.
func (c *QueryCache) GetOrCompute(ctx context.Context, key uint64, compute func(context.Context) (result.Set, error)) (value result.Set, hit bool, shared bool, err error) {
	if v, ok := c.Get(key); ok {
		return v, true, false, nil
	}

	v, isShared, err := c.group.Do(ctx, cacheKey(key), compute)
	if err != nil {
		return result.Set{}, false, isShared, err
	}
	c.Set(key, v)
	return v, false, isShared, nil
}

// Close releases the cache's background workers.
func (c *QueryCache) Close() {
	c.backing.Close()
}
