package admission

import (
	"sync"
	"time"
)

// scheduler runs periodic maintenance on a ticker until stopped; stop is
// idempotent and waits for the loop to exit so tests and shutdown are
// leak-free.
type scheduler struct {
	ticker *time.Ticker
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

func newScheduler(interval time.Duration, job func()) *scheduler {
	s := &scheduler{
		ticker: time.NewTicker(interval),
		done:   make(chan struct{}),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.done:
				return
			case <-s.ticker.C:
				job()
			}
		}
	}()
	return s
}

func (s *scheduler) stop() {
	s.once.Do(func() {
		s.ticker.Stop()
		close(s.done)
	})
	s.wg.Wait()
}
