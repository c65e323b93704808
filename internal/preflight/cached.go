package preflight

import (
	"context"
	"sync"
	"time"
)

const defaultCacheTTL = 30 * time.Second

// CachedValidator caches check results for status displays. Clip creation must
// call Refresh (or the underlying Validator) so it never acts on a stale result.
type CachedValidator struct {
	checker Checker
	ttl     time.Duration

	mu     sync.RWMutex
	cached *Result
}

func NewCachedValidator(checker Checker, ttl time.Duration) *CachedValidator {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedValidator{checker: checker, ttl: ttl}
}

// Get returns the cached result if fresh, otherwise re-checks.
func (c *CachedValidator) Get(ctx context.Context) *Result {
	c.mu.RLock()
	if c.cached != nil && time.Since(c.cached.CheckedAt) < c.ttl {
		res := c.cached
		c.mu.RUnlock()
		return res
	}
	c.mu.RUnlock()

	return c.Refresh(ctx)
}

// Check always runs a fresh check and updates the cache.
func (c *CachedValidator) Check(ctx context.Context) *Result {
	return c.Refresh(ctx)
}

func (c *CachedValidator) Peek() *Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cached
}

func (c *CachedValidator) Refresh(ctx context.Context) *Result {
	res := c.checker.Check(ctx)
	c.mu.Lock()
	c.cached = res
	c.mu.Unlock()
	return res
}

func (c *CachedValidator) Invalidate() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}
