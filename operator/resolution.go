package operator

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/goliatone/go-sqldao/descriptor"
)

// CompileFunc builds the operator for one method. It runs at most once per
// key at a time; see ResolutionCache.
type CompileFunc func(key descriptor.MethodKey) (Operator, error)

// ResolutionCache memoizes compiled operators per method with single-flight
// semantics: under concurrent first use, exactly one caller compiles while
// the rest wait for that attempt's outcome. Successful compilations are
// cached for the process lifetime; failures are handed to that attempt's
// waiters but never memoized, so the next call retries from scratch.
// Different keys never contend with each other.
type ResolutionCache struct {
	cells   *xsync.MapOf[descriptor.MethodKey, *resolutionCell]
	compile CompileFunc
}

// resolutionCell is the per-key slot. The WaitGroup is released only after op
// and err are written, which publishes the fully constructed operator to
// every waiter.
type resolutionCell struct {
	done sync.WaitGroup
	op   Operator
	err  error
}

// NewResolutionCache creates a cache that compiles through fn.
func NewResolutionCache(fn CompileFunc) *ResolutionCache {
	return &ResolutionCache{
		cells:   xsync.NewMapOf[descriptor.MethodKey, *resolutionCell](),
		compile: fn,
	}
}

// Get returns the compiled operator for key, compiling it on first use.
func (c *ResolutionCache) Get(key descriptor.MethodKey) (Operator, error) {
	if cell, ok := c.cells.Load(key); ok {
		cell.done.Wait()
		return cell.op, cell.err
	}

	cell := &resolutionCell{}
	cell.done.Add(1)
	if winner, loaded := c.cells.LoadOrStore(key, cell); loaded {
		winner.done.Wait()
		return winner.op, winner.err
	}

	cell.op, cell.err = c.compile(key)
	if cell.err != nil {
		// Drop the failed slot before releasing waiters: callers arriving
		// after this point start a fresh attempt instead of observing the
		// stale failure.
		c.cells.Delete(key)
	}
	cell.done.Done()
	return cell.op, cell.err
}

// Peek returns the compiled operator if one is already published, without
// triggering compilation.
func (c *ResolutionCache) Peek(key descriptor.MethodKey) (Operator, bool) {
	cell, ok := c.cells.Load(key)
	if !ok {
		return nil, false
	}
	cell.done.Wait()
	if cell.err != nil {
		return nil, false
	}
	return cell.op, true
}

// Size returns the number of published slots, for diagnostics.
func (c *ResolutionCache) Size() int {
	return c.cells.Size()
}
