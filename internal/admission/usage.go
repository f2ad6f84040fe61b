package admission

import (
	"sort"
	"sync"
	"time"

	"github.com/avolkova/ragcore/internal/core/domain"
)

const (
	usageWindow       = time.Hour
	latencySampleSize = 1024
)

type usageRecord struct {
	at        time.Time
	cost      float64
	tokens    int
	priority  domain.Priority
	requester string
}

// usageTracker owns the rolling request/cost/latency state. One lock; all
// reads return copies.
type usageTracker struct {
	mu sync.Mutex

	records []usageRecord

	dailySpent   float64
	monthlySpent float64
	dayAnchor    time.Time
	monthAnchor  time.Time

	successful uint64
	failed     uint64
	batched    uint64

	latencies []time.Duration

	rawBatchedCost        float64
	discountedBatchedCost float64
}

func newUsageTracker(now time.Time) *usageTracker {
	return &usageTracker{
		dayAnchor:   now,
		monthAnchor: now,
		latencies:   make([]time.Duration, 0, latencySampleSize),
	}
}

// record charges one allowed request against the rolling usage.
func (u *usageTracker) record(now time.Time, cost float64, tokens int, priority domain.Priority, requester string) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.rolloverLocked(now)
	u.records = append(u.records, usageRecord{
		at:        now,
		cost:      cost,
		tokens:    tokens,
		priority:  priority,
		requester: requester,
	})
	u.dailySpent += cost
	u.monthlySpent += cost
}

// refund credits back a charge that never turned into real spend. The
// window records keep their request count (rate limiting counts requests,
// not cost) but their cost is reduced so the hourly sum stays consistent.
func (u *usageTracker) refund(now time.Time, amount float64) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.rolloverLocked(now)
	u.dailySpent -= amount
	if u.dailySpent < 0 {
		u.dailySpent = 0
	}
	u.monthlySpent -= amount
	if u.monthlySpent < 0 {
		u.monthlySpent = 0
	}
	remaining := amount
	for i := len(u.records) - 1; i >= 0 && remaining > 0; i-- {
		if u.records[i].cost >= remaining {
			u.records[i].cost -= remaining
			remaining = 0
		} else {
			remaining -= u.records[i].cost
			u.records[i].cost = 0
		}
	}
}

// countInWindow counts requests for a priority bucket in the trailing hour.
func (u *usageTracker) countInWindow(now time.Time, priority domain.Priority) int {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.pruneLocked(now)
	n := 0
	for _, r := range u.records {
		if r.priority == priority {
			n++
		}
	}
	return n
}

func (u *usageTracker) spent(now time.Time) (daily, monthly float64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.rolloverLocked(now)
	return u.dailySpent, u.monthlySpent
}

func (u *usageTracker) recordOutcome(latency time.Duration, success bool) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if success {
		u.successful++
	} else {
		u.failed++
	}
	if len(u.latencies) >= latencySampleSize {
		copy(u.latencies, u.latencies[1:])
		u.latencies = u.latencies[:latencySampleSize-1]
	}
	u.latencies = append(u.latencies, latency)
}

func (u *usageTracker) markBatched() {
	u.mu.Lock()
	u.batched++
	u.mu.Unlock()
}

// recordBatch charges a drained batch's discounted cost; the batched
// request count was taken at enqueue time.
func (u *usageTracker) recordBatch(now time.Time, rawCost, discountedCost float64) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.rolloverLocked(now)
	u.rawBatchedCost += rawCost
	u.discountedBatchedCost += discountedCost
	u.dailySpent += discountedCost
	u.monthlySpent += discountedCost
}

// sweep prunes stale window records and applies day/month boundary resets.
func (u *usageTracker) sweep(now time.Time) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.pruneLocked(now)
	u.rolloverLocked(now)
}

func (u *usageTracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-usageWindow)
	keep := u.records[:0]
	for _, r := range u.records {
		if r.at.After(cutoff) {
			keep = append(keep, r)
		}
	}
	u.records = keep
}

func (u *usageTracker) rolloverLocked(now time.Time) {
	if now.YearDay() != u.dayAnchor.YearDay() || now.Year() != u.dayAnchor.Year() {
		u.dailySpent = 0
		u.dayAnchor = now
	}
	if now.Month() != u.monthAnchor.Month() || now.Year() != u.monthAnchor.Year() {
		u.monthlySpent = 0
		u.monthAnchor = now
	}
}

func (u *usageTracker) snapshot(now time.Time) domain.UsageSnapshot {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.pruneLocked(now)
	u.rolloverLocked(now)

	var hourly float64
	for _, r := range u.records {
		hourly += r.cost
	}

	snap := domain.UsageSnapshot{
		Successful:  u.successful,
		Failed:      u.failed,
		Batched:     u.batched,
		HourlyCost:  hourly,
		DailyCost:   u.dailySpent,
		MonthlyCost: u.monthlySpent,
	}
	snap.LatencyP50 = percentileLocked(u.latencies, 0.50)
	snap.LatencyP95 = percentileLocked(u.latencies, 0.95)
	if u.rawBatchedCost > 0 {
		snap.BatchEfficiency = 1 - u.discountedBatchedCost/u.rawBatchedCost
	}
	return snap
}

func percentileLocked(samples []time.Duration, q float64) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(q * float64(len(sorted)-1))
	return sorted[idx]
}
