package domain

import "time"

// DegradeAction is the suggested fallback when a request is not allowed to
// proceed at full cost.
type DegradeAction string

const (
	ActionProceed DegradeAction = "proceed"
	ActionDefer   DegradeAction = "defer"
	ActionCache   DegradeAction = "cache"
	ActionLocal   DegradeAction = "local"
	ActionBatch   DegradeAction = "batch"
)

// CostDecision is produced fresh per admission check. Cache entries are
// copies with CacheHit set, never mutated in place.
type CostDecision struct {
	Allowed       bool          `json:"allowed"`
	Reason        string        `json:"reason"`
	Action        DegradeAction `json:"action"`
	EstimatedCost float64       `json:"estimated_cost"`
	Priority      Priority      `json:"priority"`
	Alternatives  []string      `json:"alternatives,omitempty"`
	RetryAfter    time.Duration `json:"retry_after,omitempty"`
	BatchID       string        `json:"batch_id,omitempty"`
	CacheHit      bool          `json:"cache_hit"`
}

type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// UsageSnapshot is a point-in-time copy of the admission controller's
// process-lifetime counters; safe to read anytime.
type UsageSnapshot struct {
	Successful      uint64        `json:"successful"`
	Failed          uint64        `json:"failed"`
	Cached          uint64        `json:"cached"`
	Batched         uint64        `json:"batched"`
	HourlyCost      float64       `json:"hourly_cost"`
	DailyCost       float64       `json:"daily_cost"`
	MonthlyCost     float64       `json:"monthly_cost"`
	LatencyP50      time.Duration `json:"latency_p50"`
	LatencyP95      time.Duration `json:"latency_p95"`
	CacheHitRate    float64       `json:"cache_hit_rate"`
	BatchEfficiency float64       `json:"batch_efficiency"`
	Breaker         BreakerState  `json:"breaker"`
}
