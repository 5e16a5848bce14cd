// Package stat collects per-method counters for compiled data-access
// operators: init timing, execution timing and cache hit/miss accounting.
//
// Counters are updated concurrently by every caller of a method and are read
// through Snapshot, which produces an eventually-consistent view without
// blocking writers.
package stat

import (
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/goliatone/go-sqldao/descriptor"
)

// Counter accumulates counters for one declared method. All updates are
// lock-free; the descriptive fields (operation kind, cache flags) are written
// once during compilation.
type Counter struct {
	operationKind atomic.Value // string

	cacheable       atomic.Bool
	useMultipleKeys atomic.Bool
	cacheNullObject atomic.Bool

	initCount     atomic.Int64
	totalInitTime atomic.Int64 // nanoseconds

	executeSuccessCount   atomic.Int64
	executeExceptionCount atomic.Int64
	totalExecuteTime      atomic.Int64 // nanoseconds

	hitCount  atomic.Int64
	missCount atomic.Int64
}

// SetOperationKind records the resolved operation kind for diagnostics.
func (c *Counter) SetOperationKind(kind string) { c.operationKind.Store(kind) }

// SetCacheable marks the method as running through a cached operator.
func (c *Counter) SetCacheable(v bool) { c.cacheable.Store(v) }

// SetUseMultipleKeys marks the method as caching one entry per key element.
func (c *Counter) SetUseMultipleKeys(v bool) { c.useMultipleKeys.Store(v) }

// SetCacheNullObject marks the method as caching absent-row markers.
func (c *Counter) SetCacheNullObject(v bool) { c.cacheNullObject.Store(v) }

// RecordInit adds one compilation and its duration.
func (c *Counter) RecordInit(d time.Duration) {
	c.initCount.Add(1)
	c.totalInitTime.Add(int64(d))
}

// RecordExecuteSuccess adds one successful execution and its duration.
func (c *Counter) RecordExecuteSuccess(d time.Duration) {
	c.executeSuccessCount.Add(1)
	c.totalExecuteTime.Add(int64(d))
}

// RecordExecuteException adds one failed execution and its duration.
func (c *Counter) RecordExecuteException(d time.Duration) {
	c.executeExceptionCount.Add(1)
	c.totalExecuteTime.Add(int64(d))
}

// RecordHits adds n cache hits.
func (c *Counter) RecordHits(n int) { c.hitCount.Add(int64(n)) }

// RecordMisses adds n cache misses.
func (c *Counter) RecordMisses(n int) { c.missCount.Add(int64(n)) }

// Reset zeroes the counters. Descriptive fields set at compile time survive.
func (c *Counter) Reset() {
	c.initCount.Store(0)
	c.totalInitTime.Store(0)
	c.executeSuccessCount.Store(0)
	c.executeExceptionCount.Store(0)
	c.totalExecuteTime.Store(0)
	c.hitCount.Store(0)
	c.missCount.Store(0)
}

// Snapshot returns a point-in-time view of the counters. Fields are read
// independently, so a snapshot taken under concurrent updates may mix
// adjacent states; that is acceptable for monitoring.
func (c *Counter) Snapshot() Stats {
	kind, _ := c.operationKind.Load().(string)
	return Stats{
		OperationKind:         kind,
		Cacheable:             c.cacheable.Load(),
		UseMultipleKeys:       c.useMultipleKeys.Load(),
		CacheNullObject:       c.cacheNullObject.Load(),
		InitCount:             c.initCount.Load(),
		TotalInitTime:         time.Duration(c.totalInitTime.Load()),
		ExecuteSuccessCount:   c.executeSuccessCount.Load(),
		ExecuteExceptionCount: c.executeExceptionCount.Load(),
		TotalExecuteTime:      time.Duration(c.totalExecuteTime.Load()),
		HitCount:              c.hitCount.Load(),
		MissCount:             c.missCount.Load(),
	}
}

// Stats is an immutable counters view for one method.
type Stats struct {
	Method descriptor.MethodKey

	OperationKind   string
	Cacheable       bool
	UseMultipleKeys bool
	CacheNullObject bool

	InitCount     int64
	TotalInitTime time.Duration

	ExecuteSuccessCount   int64
	ExecuteExceptionCount int64
	TotalExecuteTime      time.Duration

	HitCount  int64
	MissCount int64
}

// ExecuteCount returns the total number of executions.
func (s Stats) ExecuteCount() int64 {
	return s.ExecuteSuccessCount + s.ExecuteExceptionCount
}

// AverageExecuteTime returns the mean execution duration.
func (s Stats) AverageExecuteTime() time.Duration {
	n := s.ExecuteCount()
	if n == 0 {
		return 0
	}
	return s.TotalExecuteTime / time.Duration(n)
}

// HitRate returns the cache hit ratio in [0, 1].
func (s Stats) HitRate() float64 {
	total := s.HitCount + s.MissCount
	if total == 0 {
		return 0
	}
	return float64(s.HitCount) / float64(total)
}

// Registry holds one Counter per declared method. Counters are created
// idempotently, so every handle compiled for the same method shares one.
type Registry struct {
	counters *xsync.MapOf[descriptor.MethodKey, *Counter]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{counters: xsync.NewMapOf[descriptor.MethodKey, *Counter]()}
}

// Counter returns the counter for key, creating it on first use.
func (r *Registry) Counter(key descriptor.MethodKey) *Counter {
	c, _ := r.counters.LoadOrCompute(key, func() *Counter { return &Counter{} })
	return c
}

// Lookup returns the counter for key if one was ever created.
func (r *Registry) Lookup(key descriptor.MethodKey) (*Counter, bool) {
	return r.counters.Load(key)
}

// All returns snapshots for every method seen so far.
func (r *Registry) All() []Stats {
	var out []Stats
	r.counters.Range(func(key descriptor.MethodKey, c *Counter) bool {
		s := c.Snapshot()
		s.Method = key
		out = append(out, s)
		return true
	})
	return out
}

// ResetAll zeroes every counter.
func (r *Registry) ResetAll() {
	r.counters.Range(func(_ descriptor.MethodKey, c *Counter) bool {
		c.Reset()
		return true
	})
}
