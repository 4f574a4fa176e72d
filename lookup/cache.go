// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lookup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultTTL bounds how long a resolution is served without re-asking
// the boundary.
const DefaultTTL = 30 * time.Minute

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relink_lookup_cache_hits_total",
		Help: "Resolutions served from cache within TTL",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relink_lookup_cache_misses_total",
		Help: "Resolutions that invoked the resolver",
	})
)

// Resolver produces a resolution for one identifier. lookup.Client
// satisfies this; tests substitute fakes.
type Resolver func(ctx context.Context, identifier string) (Resolution, error)

type cacheEntry struct {
	value  Resolution
	expiry time.Time
}

// inflight coalesces concurrent resolutions of the same key: the first
// caller resolves, later callers wait on done and share the outcome.
type inflight struct {
	done  chan struct{}
	value Resolution
	err   error
}

// Cache is a time-bounded memoization of identifier resolutions, shared
// read/write across all concurrent document sessions of a batch.
//
// Thread Safety: Safe for concurrent use. GetOrResolve never resolves
// the same key twice concurrently; duplicate in-flight resolutions are
// coalesced.
//
// Expired entries are evicted lazily on lookup, not actively swept.
// Resolver failures are not cached: the next call retries resolution.
type Cache struct {
	ttl    time.Duration
	logger *slog.Logger

	mu       sync.Mutex
	entries  map[string]cacheEntry
	pending  map[string]*inflight
	resolves int64

	// persistent is the optional badger-backed second level.
	persistent *PersistentStore
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithTTL overrides the default entry lifetime.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithPersistentStore attaches a badger-backed second level consulted on
// memory misses and written through on resolve.
func WithPersistentStore(store *PersistentStore) CacheOption {
	return func(c *Cache) { c.persistent = store }
}

// NewCache creates a Cache with the given options.
func NewCache(logger *slog.Logger, opts ...CacheOption) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		ttl:     DefaultTTL,
		logger:  logger.With("component", "lookup.Cache"),
		entries: make(map[string]cacheEntry),
		pending: make(map[string]*inflight),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrResolve returns the cached resolution for key, or invokes
// resolver and caches the result under the configured TTL.
//
// Inputs:
//   - ctx: Context for cancellation while waiting on a coalesced
//     in-flight resolution or resolving.
//   - key: The lookup identifier. Must be non-empty.
//   - resolver: Invoked on miss or expiry.
//
// Outputs:
//   - Resolution: The cached or freshly resolved value.
//   - error: Resolver failure (not cached) or ctx cancellation.
func (c *Cache) GetOrResolve(ctx context.Context, key string, resolver Resolver) (Resolution, error) {
	if key == "" {
		return Resolution{}, ErrEmptyIdentifier
	}

	for {
		c.mu.Lock()

		if entry, ok := c.entries[key]; ok {
			if time.Now().Before(entry.expiry) {
				c.mu.Unlock()
				cacheHitsTotal.Inc()
				return entry.value, nil
			}
			// Lazy eviction.
			delete(c.entries, key)
		}

		if fl, ok := c.pending[key]; ok {
			c.mu.Unlock()
			select {
			case <-fl.done:
				if fl.err != nil {
					// The leading resolve failed; loop and try again
					// as the new leader.
					continue
				}
				return fl.value, nil
			case <-ctx.Done():
				return Resolution{}, ctx.Err()
			}
		}

		fl := &inflight{done: make(chan struct{})}
		c.pending[key] = fl
		c.resolves++
		c.mu.Unlock()

		cacheMissesTotal.Inc()
		value, err := c.resolve(ctx, key, resolver)

		c.mu.Lock()
		delete(c.pending, key)
		if err == nil {
			c.entries[key] = cacheEntry{value: value, expiry: time.Now().Add(c.ttl)}
		}
		c.mu.Unlock()

		fl.value, fl.err = value, err
		close(fl.done)
		return value, err
	}
}

// resolve consults the persistent level before the resolver.
func (c *Cache) resolve(ctx context.Context, key string, resolver Resolver) (Resolution, error) {
	if c.persistent != nil {
		if value, ok, err := c.persistent.Get(key); err != nil {
			c.logger.Warn("persistent cache read failed", "key", key, "error", err)
		} else if ok {
			return value, nil
		}
	}

	value, err := resolver(ctx, key)
	if err != nil {
		return Resolution{}, err
	}

	if c.persistent != nil {
		if err := c.persistent.Put(key, value, c.ttl); err != nil {
			c.logger.Warn("persistent cache write failed", "key", key, "error", err)
		}
	}
	return value, nil
}

// ResolveCount returns how many times a resolver was invoked. Observable
// for tests asserting hit/miss behavior.
func (c *Cache) ResolveCount() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolves
}

// Len returns the number of live in-memory entries, counting expired
// entries that have not been lazily evicted yet.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
