package admission

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avolkova/ragcore/internal/core/domain"
)

// Controller is the cost-aware admission layer. It owns the only
// process-wide mutable state in the pipeline: usage counters, the decision
// cache, the circuit breaker and the batch queues, each behind its own
// lock. Construct one per process and inject it; multiple independent
// instances are fine in tests.
type Controller struct {
	policy  Policy
	usage   *usageTracker
	cache   *decisionCache
	breaker *breaker
	batcher *batcher

	scheduler *scheduler
	onFlush   func(FlushedBatch)

	now func() time.Time
}

type Option func(*Controller)

// WithFlushHook observes every drained batch; used by metrics.
func WithFlushHook(fn func(FlushedBatch)) Option {
	return func(c *Controller) { c.onFlush = fn }
}

func NewController(policy Policy, opts ...Option) *Controller {
	policy = policy.normalize()
	now := time.Now

	c := &Controller{
		policy:  policy,
		usage:   newUsageTracker(now()),
		cache:   newDecisionCache(),
		breaker: newBreaker(policy.BreakerFailureThreshold, policy.BreakerOpenTimeout),
		batcher: newBatcher(policy.BatchWindow, policy.BatchQueueCap, policy.BatchDiscount),
		now:     now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.scheduler = newScheduler(policy.SweepInterval, c.maintain)
	return c
}

// Close stops background maintenance and drains pending batches.
func (c *Controller) Close() {
	c.scheduler.stop()
	c.drain(c.batcher.flushAll(c.now()))
}

// ShouldProceed is the per-operation allow/deny/degrade decision. It never
// panics into the caller: on internal failure it records a breaker failure
// and fails open for critical priority only.
func (c *Controller) ShouldProceed(
	_ context.Context,
	operation string,
	estimatedTokens int,
	estimatedCost float64,
	priority domain.Priority,
	requesterID string,
) (decision domain.CostDecision) {
	if !priority.Valid() {
		priority = domain.PriorityMedium
	}

	defer func() {
		if rec := recover(); rec != nil {
			now := c.now()
			c.breaker.recordFailure(now)
			slog.Error("admission_internal_failure", "operation", operation, "error", fmt.Sprint(rec))
			if priority == domain.PriorityCritical {
				decision = domain.CostDecision{
					Allowed:       true,
					Reason:        "admission control degraded; critical work proceeds",
					Action:        domain.ActionProceed,
					EstimatedCost: estimatedCost,
					Priority:      priority,
				}
				return
			}
			decision = domain.CostDecision{
				Allowed:    false,
				Reason:     "admission control degraded",
				Action:     domain.ActionDefer,
				Priority:   priority,
				RetryAfter: c.breaker.backoff(now),
			}
		}
	}()

	now := c.now()

	// 1. Open breaker rejects everything but critical work.
	if c.breaker.state() == domain.BreakerOpen && priority != domain.PriorityCritical {
		return domain.CostDecision{
			Allowed:      false,
			Reason:       "circuit breaker open",
			Action:       domain.ActionDefer,
			Priority:     priority,
			RetryAfter:   c.breaker.backoff(now),
			Alternatives: []string{"retry after the backoff delay", "use a cached or local response"},
		}
	}

	// 2. Decision cache.
	key := cacheKey(operation, estimatedTokens, now, requesterID)
	if c.policy.CacheEnabled {
		if cached, ok := c.cache.get(key, now); ok {
			return cached
		}
	}

	// 3. Sliding-window rate limit per priority bucket.
	limit := int(float64(c.policy.HourlyRequestLimit) * priorityMultiplier(priority))
	if c.usage.countInWindow(now, priority) >= limit {
		return domain.CostDecision{
			Allowed:       false,
			Reason:        fmt.Sprintf("rate limit exceeded: %d requests/hour for %s priority", limit, priority),
			Action:        domain.ActionDefer,
			EstimatedCost: estimatedCost,
			Priority:      priority,
			Alternatives:  []string{"defer until the trailing window frees capacity", "raise the request priority"},
		}
	}

	// 4. Budget quota per priority tier.
	daily, monthly := c.usage.spent(now)
	remaining := c.policy.DailyBudget - daily
	if m := c.policy.MonthlyBudget - monthly; m < remaining {
		remaining = m
	}
	if remaining < 0 {
		remaining = 0
	}
	allocation := remaining * priorityQuota(priority)
	if estimatedCost > allocation {
		if priority != domain.PriorityCritical {
			return domain.CostDecision{
				Allowed:       false,
				Reason:        fmt.Sprintf("budget quota exceeded: cost %.4f over %s allocation %.4f", estimatedCost, priority, allocation),
				Action:        domain.ActionDefer,
				EstimatedCost: estimatedCost,
				Priority:      priority,
				Alternatives:  []string{"defer to the next budget window", "batch with similar requests", "use a local fallback"},
			}
		}
		// Critical work force-proceeds past quota denial.
		slog.Warn("budget_quota_bypassed",
			"operation", operation,
			"estimated_cost", estimatedCost,
			"allocation", allocation,
		)
	}

	// 5. Optional batching for batchable operations.
	if c.policy.isBatchable(operation) && priority != domain.PriorityCritical {
		entry := batchEntry{operation: operation, tokens: estimatedTokens, cost: estimatedCost, requester: requesterID}
		if batchID, ok := c.batcher.enqueue(now, priority, entry); ok {
			c.usage.markBatched()
			return domain.CostDecision{
				Allowed:       false,
				Reason:        "enqueued for batched processing",
				Action:        domain.ActionBatch,
				EstimatedCost: estimatedCost * (1 - c.policy.BatchDiscount),
				Priority:      priority,
				BatchID:       batchID,
				RetryAfter:    c.policy.BatchWindow,
			}
		}
	}

	// 6. Proceed: charge the rolling usage and cache the decision.
	c.usage.record(now, estimatedCost, estimatedTokens, priority, requesterID)
	decision = domain.CostDecision{
		Allowed:       true,
		Reason:        "within rate and budget limits",
		Action:        domain.ActionProceed,
		EstimatedCost: estimatedCost,
		Priority:      priority,
	}
	if c.policy.CacheEnabled {
		c.cache.put(key, decision, now, c.policy.CacheTTL)
	}
	return decision
}

// RefundCost credits back an estimate charged by ShouldProceed when the
// work terminated without spending it (empty retrieval charges zero).
func (c *Controller) RefundCost(amount float64) {
	if amount <= 0 {
		return
	}
	c.usage.refund(c.now(), amount)
}

// RecordOutcome feeds a finished request back into the usage counters and
// the circuit breaker.
func (c *Controller) RecordOutcome(latency time.Duration, success bool) {
	c.usage.recordOutcome(latency, success)
	if success {
		c.breaker.recordSuccess()
	} else {
		c.breaker.recordFailure(c.now())
	}
}

// Metrics returns a point-in-time snapshot; safe to call anytime.
func (c *Controller) Metrics() domain.UsageSnapshot {
	snap := c.usage.snapshot(c.now())
	snap.Cached = c.cache.hitCount()
	snap.CacheHitRate = c.cache.hitRate()
	snap.Breaker = c.breaker.state()
	return snap
}

// FlushBatches drains every pending batch immediately and returns how many
// batches were processed.
func (c *Controller) FlushBatches() int {
	flushed := c.batcher.flushAll(c.now())
	c.drain(flushed)
	return len(flushed)
}

// maintain is the background job body: usage prune/reset, cache sweep,
// idle-batch flush. Each touches one lock at a time, so foreground
// admission checks never race with it.
func (c *Controller) maintain() {
	now := c.now()
	c.usage.sweep(now)
	if removed := c.cache.sweep(now); removed > 0 {
		slog.Debug("decision_cache_sweep", "removed", removed)
	}
	c.drain(c.batcher.flushDue(now))
}

func (c *Controller) drain(flushed []FlushedBatch) {
	now := c.now()
	for _, batch := range flushed {
		c.usage.recordBatch(now, batch.RawCost, batch.DiscountedCost)
		slog.Info("batch_flushed",
			"batch_id", batch.BatchID,
			"priority", batch.Priority,
			"entries", batch.Entries,
			"raw_cost", batch.RawCost,
			"discounted_cost", batch.DiscountedCost,
		)
		if c.onFlush != nil {
			c.onFlush(batch)
		}
	}
}
