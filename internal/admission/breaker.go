package admission

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/avolkova/ragcore/internal/core/domain"
)

var errRecordedFailure = errors.New("admission: recorded failure")

// breaker wraps a gobreaker state machine and tracks the last failure time
// beside it; gobreaker does not expose failure timestamps and the backoff
// delay surfaced in cost decisions is derived from them.
type breaker struct {
	cb          *gobreaker.CircuitBreaker[any]
	openTimeout time.Duration

	mu          sync.Mutex
	lastFailure time.Time
}

func newBreaker(failureThreshold uint32, openTimeout time.Duration) *breaker {
	b := &breaker{openTimeout: openTimeout}
	b.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "admission",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit_breaker_state_change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return b
}

func (b *breaker) state() domain.BreakerState {
	switch b.cb.State() {
	case gobreaker.StateOpen:
		return domain.BreakerOpen
	case gobreaker.StateHalfOpen:
		return domain.BreakerHalfOpen
	default:
		return domain.BreakerClosed
	}
}

// recordFailure counts one failure; while open the state machine ignores
// it, which matches the half-open probe discipline.
func (b *breaker) recordFailure(now time.Time) {
	b.mu.Lock()
	b.lastFailure = now
	b.mu.Unlock()
	_, _ = b.cb.Execute(func() (any, error) { return nil, errRecordedFailure })
}

func (b *breaker) recordSuccess() {
	_, _ = b.cb.Execute(func() (any, error) { return nil, nil })
}

// backoff is the remaining open window derived from time since the last
// failure, clamped to [1s, openTimeout].
func (b *breaker) backoff(now time.Time) time.Duration {
	b.mu.Lock()
	last := b.lastFailure
	b.mu.Unlock()

	if last.IsZero() {
		return b.openTimeout
	}
	remaining := b.openTimeout - now.Sub(last)
	if remaining < time.Second {
		return time.Second
	}
	if remaining > b.openTimeout {
		return b.openTimeout
	}
	return remaining
}
