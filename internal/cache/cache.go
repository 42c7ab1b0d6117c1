// Package cache implements the per-run, per-step Response Cache: a
// step's result is memoized under its step ID, with TTL 0 meaning
// "valid for the remainder of the run." The cache is owned by exactly
// one run and discarded at run end — no cross-run sharing.
package cache

import (
	"sync"
	"time"

	"github.com/stepflow/orchestrator/internal/domain"
)

// entry holds one memoized step result.
type entry struct {
	storedAt time.Time
	ttl      time.Duration
	result   domain.StepExecutionResult
}

// Cache is a run-scoped response cache keyed by step ID.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// New creates an empty run-scoped cache.
func New() *Cache {
	return &Cache{entries: make(map[string]*entry)}
}

// Get returns the cached result for stepID if present and not expired.
// A zero TTL entry never expires for the lifetime of the cache.
func (c *Cache) Get(stepID string) (domain.StepExecutionResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[stepID]
	if !ok {
		return domain.StepExecutionResult{}, false
	}
	if e.ttl > 0 && time.Since(e.storedAt) >= e.ttl {
		return domain.StepExecutionResult{}, false
	}
	return e.result, true
}

// Set stores result for stepID with the given ttl (0 = valid for the
// whole run). Only called for cacheable steps that finished SUCCESS.
func (c *Cache) Set(stepID string, result domain.StepExecutionResult, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[stepID] = &entry{
		storedAt: time.Now(),
		ttl:      ttl,
		result:   result,
	}
}

// Invalidate drops stepID's cached entry, if any.
func (c *Cache) Invalidate(stepID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, stepID)
}

// Size returns the number of memoized entries, used by tests.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
