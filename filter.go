package log

import "sync"

// FilterFunc is a predicate over a Record. Predicates are expected to be
// pure functions of the record's source-static fields (source location,
// tags) unless the owning sink's cache is disabled — see DisableCache below.
type FilterFunc func(*Record) bool

// FilterChain is a disjunction of predicates: an empty chain accepts
// everything, a non-empty chain accepts a record iff at least one
// predicate accepts it. Mutation and the evaluation cache are guarded
// together so a batch being evaluated never observes a half-mutated
// chain (§4.5 "Concurrency").
type FilterChain struct {
	mu        sync.Mutex
	filters   []FilterFunc
	cacheOn   bool
	cache     map[SourceLocation]bool
}

// NewFilterChain returns an empty chain with caching enabled.
func NewFilterChain() *FilterChain {
	return &FilterChain{cacheOn: true, cache: make(map[SourceLocation]bool)}
}

// Add appends a predicate to the chain and invalidates the cache.
func (c *FilterChain) Add(f FilterFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filters = append(c.filters, f)
	c.invalidate()
}

// Replace discards the existing chain and installs fs in its place,
// invalidating the cache.
func (c *FilterChain) Replace(fs ...FilterFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filters = append([]FilterFunc(nil), fs...)
	c.invalidate()
}

// Clear empties the chain (an empty chain accepts everything) and
// invalidates the cache.
func (c *FilterChain) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filters = nil
	c.invalidate()
}

// EnableCache turns memoization on and invalidates any stale entries.
func (c *FilterChain) EnableCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cacheOn = true
	c.invalidate()
}

// DisableCache turns memoization off. Predicates that inspect
// non-source-static fields (timestamp, message body) MUST run with the
// cache disabled, per §4.5.
func (c *FilterChain) DisableCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cacheOn = false
	c.invalidate()
}

func (c *FilterChain) invalidate() {
	c.cache = make(map[SourceLocation]bool)
}

// Accepts evaluates the chain against rec. The caller is expected to
// hold the chain locked for the duration of a batch (Lock/Unlock below)
// so that Accepts is consistent across every record in that batch.
func (c *FilterChain) Accepts(rec *Record) bool {
	if len(c.filters) == 0 {
		return true
	}

	if c.cacheOn {
		if v, ok := c.cache[rec.Source]; ok {
			return v
		}
	}

	verdict := false
	for _, f := range c.filters {
		if f(rec) {
			verdict = true
			break
		}
	}

	if c.cacheOn {
		c.cache[rec.Source] = verdict
	}
	return verdict
}

// Lock/Unlock expose the chain's mutex directly so a sink's write path
// can hold it across an entire batch (per §4.5/§5's fixed-lock-order
// requirement), rather than re-locking per record.
func (c *FilterChain) Lock()   { c.mu.Lock() }
func (c *FilterChain) Unlock() { c.mu.Unlock() }
