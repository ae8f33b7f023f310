/*
Copyright 2025 ForgeCI Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/groupcache/lru"

	"github.com/org/forgeci/pkg/metrics"
)

// subCache is the generic memo shared by the three C11 sub-caches: an
// LRU eviction order (groupcache/lru.Cache — the same recency-ordered
// cache client-go itself pulls in transitively) plus a size/age
// bookkeeping layer the spec requires and groupcache's Cache doesn't
// provide on its own. One mutex guards both structures per sub-cache,
// matching §5's "single coarse lock per sub-cache for size/eviction
// bookkeeping."
type subCache[V any] struct {
	name    string
	metrics metrics.Sink

	maxSize int64
	maxAge  time.Duration

	isValid func(V) bool
	sizeOf  func(V) int64

	mu        sync.Mutex
	lru       *lru.Cache
	cachedAt  map[string]time.Time
	totalSize int64

	hits      uint64
	misses    uint64
	evictions uint64
}

func newSubCache[V any](name string, sink metrics.Sink, maxSize int64, maxAge time.Duration, isValid func(V) bool, sizeOf func(V) int64) *subCache[V] {
	if sink == nil {
		sink = metrics.NoopSink{}
	}
	c := &subCache[V]{
		name:     name,
		metrics:  sink,
		maxSize:  maxSize,
		maxAge:   maxAge,
		isValid:  isValid,
		sizeOf:   sizeOf,
		cachedAt: make(map[string]time.Time),
	}
	c.lru = &lru.Cache{
		OnEvicted: func(key lru.Key, value interface{}) {
			v := value.(V)
			atomic.AddInt64(&c.totalSize, -c.sizeOf(v))
			delete(c.cachedAt, key.(string))
		},
	}
	return c
}

// Get returns the cached value for key. A miss (absent, or present but
// no longer valid) increments misses and — for a present-but-invalid
// entry — evictions (spec.md §8 invariant 8).
func (c *subCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, ok := c.lru.Get(key)
	if !ok {
		c.misses++
		c.metrics.CacheMiss(c.name)
		var zero V
		return zero, false
	}

	v := raw.(V)
	if !c.isValid(v) {
		c.lru.Remove(key)
		c.evictions++
		c.misses++
		c.metrics.CacheMiss(c.name)
		var zero V
		return zero, false
	}

	c.hits++
	c.metrics.CacheHit(c.name)
	return v, true
}

// Put replaces any existing entry under key (spec.md §3's Cache entries
// invariant) and enforces the size limit immediately so a single large
// write can't wait for the background sweep to bring the cache back
// under budget.
func (c *subCache[V]) Put(key string, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Remove(key)
	c.lru.Add(key, v)
	c.cachedAt[key] = time.Now()
	atomic.AddInt64(&c.totalSize, c.sizeOf(v))

	c.enforceSizeLocked()
}

// EnforceLimits runs the age- and size-based eviction sweep the
// background worker invokes every backgroundCleanupInterval.
func (c *subCache[V]) EnforceLimits() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enforceAgeLocked()
	c.enforceSizeLocked()
}

func (c *subCache[V]) enforceAgeLocked() {
	if c.maxAge <= 0 {
		return
	}
	now := time.Now()
	for key, at := range c.cachedAt {
		if now.Sub(at) > c.maxAge {
			c.lru.Remove(key)
			c.evictions++
		}
	}
}

// enforceSizeLocked evicts least-recently-used entries down to 80% of
// maxSize once the live total exceeds it (spec.md §4.11).
func (c *subCache[V]) enforceSizeLocked() {
	if c.maxSize <= 0 {
		return
	}
	target := int64(float64(c.maxSize) * 0.8)
	for atomic.LoadInt64(&c.totalSize) > c.maxSize && c.lru.Len() > 0 {
		c.lru.RemoveOldest()
		c.evictions++
		if atomic.LoadInt64(&c.totalSize) <= target {
			break
		}
	}
}

func (c *subCache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	hits, misses := c.hits, c.misses
	ratio := 0.0
	if hits+misses > 0 {
		ratio = float64(hits) / float64(hits+misses)
	}
	return Stats{
		Entries:   c.lru.Len(),
		TotalSize: atomic.LoadInt64(&c.totalSize),
		Hits:      hits,
		Misses:    misses,
		Evictions: c.evictions,
		HitRatio:  ratio,
	}
}

// Stats is the observability snapshot exposed per sub-cache and rolled
// up for the whole manager.
type Stats struct {
	Entries   int
	TotalSize int64
	Hits      uint64
	Misses    uint64
	Evictions uint64
	HitRatio  float64
}
