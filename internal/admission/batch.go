package admission

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avolkova/ragcore/internal/core/domain"
)

type batchEntry struct {
	operation string
	tokens    int
	cost      float64
	requester string
	enqueued  time.Time
}

type batchQueue struct {
	id      string
	entries []batchEntry
}

type FlushedBatch struct {
	Priority       domain.Priority
	BatchID        string
	Entries        int
	RawCost        float64
	DiscountedCost float64
}

// batcher accumulates batchable low-urgency work per priority bucket behind
// a single lock. Queues drain on the batch window elapsing or when
// explicitly triggered.
type batcher struct {
	mu     sync.Mutex
	queues map[domain.Priority]*batchQueue

	window   time.Duration
	capacity int
	discount float64
}

func newBatcher(window time.Duration, capacity int, discount float64) *batcher {
	return &batcher{
		queues:   make(map[domain.Priority]*batchQueue),
		window:   window,
		capacity: capacity,
		discount: discount,
	}
}

// enqueue returns the owning batch id, or false when the priority's queue
// is at capacity.
func (b *batcher) enqueue(now time.Time, priority domain.Priority, entry batchEntry) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	queue, ok := b.queues[priority]
	if !ok {
		queue = &batchQueue{id: uuid.NewString()}
		b.queues[priority] = queue
	}
	if len(queue.entries) >= b.capacity {
		return "", false
	}
	entry.enqueued = now
	queue.entries = append(queue.entries, entry)
	return queue.id, true
}

// flushDue drains every queue whose oldest entry has waited at least the
// batch window, applying the flat batching discount to aggregated cost.
func (b *batcher) flushDue(now time.Time) []FlushedBatch {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []FlushedBatch
	for priority, queue := range b.queues {
		if len(queue.entries) == 0 {
			continue
		}
		if now.Sub(queue.entries[0].enqueued) < b.window {
			continue
		}
		out = append(out, b.drainLocked(priority, queue))
	}
	return out
}

// flushAll drains every non-empty queue regardless of age.
func (b *batcher) flushAll(now time.Time) []FlushedBatch {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []FlushedBatch
	for priority, queue := range b.queues {
		if len(queue.entries) == 0 {
			continue
		}
		out = append(out, b.drainLocked(priority, queue))
	}
	return out
}

func (b *batcher) drainLocked(priority domain.Priority, queue *batchQueue) FlushedBatch {
	var raw float64
	for _, entry := range queue.entries {
		raw += entry.cost
	}
	flushed := FlushedBatch{
		Priority:       priority,
		BatchID:        queue.id,
		Entries:        len(queue.entries),
		RawCost:        raw,
		DiscountedCost: raw * (1 - b.discount),
	}
	delete(b.queues, priority)
	return flushed
}

func (b *batcher) depth(priority domain.Priority) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	queue, ok := b.queues[priority]
	if !ok {
		return 0
	}
	return len(queue.entries)
}
