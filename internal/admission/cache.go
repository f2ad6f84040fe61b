package admission

import (
	"fmt"
	"sync"
	"time"

	"github.com/avolkova/ragcore/internal/core/domain"
)

const (
	cacheTokenBucket = 100
	cacheTimeBucket  = 5 * time.Minute
)

type cacheEntry struct {
	decision domain.CostDecision
	created  time.Time
	ttl      time.Duration
}

// decisionCache stores cost decisions behind a single lock; the read path
// checks expiry before returning a hit.
type decisionCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry

	hits    uint64
	lookups uint64
}

func newDecisionCache() *decisionCache {
	return &decisionCache{entries: make(map[string]cacheEntry)}
}

func cacheKey(operation string, tokens int, now time.Time, requesterID string) string {
	return fmt.Sprintf("%s|%d|%d|%s",
		operation,
		tokens/cacheTokenBucket,
		now.Unix()/int64(cacheTimeBucket.Seconds()),
		requesterID,
	)
}

// get returns a copy of the cached decision with the cache-hit flag set and
// zero incremental cost; the stored entry is never mutated.
func (c *decisionCache) get(key string, now time.Time) (domain.CostDecision, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lookups++
	entry, ok := c.entries[key]
	if !ok {
		return domain.CostDecision{}, false
	}
	if now.Sub(entry.created) > entry.ttl {
		delete(c.entries, key)
		return domain.CostDecision{}, false
	}

	c.hits++
	decision := entry.decision
	decision.CacheHit = true
	decision.EstimatedCost = 0
	return decision, true
}

func (c *decisionCache) put(key string, decision domain.CostDecision, now time.Time, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{decision: decision, created: now, ttl: ttl}
}

func (c *decisionCache) sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, entry := range c.entries {
		if now.Sub(entry.created) > entry.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *decisionCache) hitRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lookups == 0 {
		return 0
	}
	return float64(c.hits) / float64(c.lookups)
}

func (c *decisionCache) hitCount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits
}
