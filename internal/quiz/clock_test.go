package quiz

import (
	"sync"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// manualScheduler queues callbacks until Fire is called.
type manualScheduler struct {
	mu      sync.Mutex
	pending []*scheduledFunc
}

type scheduledFunc struct {
	f       func()
	stopped bool
}

func (s *manualScheduler) AfterFunc(_ time.Duration, f func()) func() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sf := &scheduledFunc{f: f}
	s.pending = append(s.pending, sf)
	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		was := !sf.stopped
		sf.stopped = true
		return was
	}
}

// Fire runs every queued, non-cancelled callback once and reports how many ran.
func (s *manualScheduler) Fire() int {
	s.mu.Lock()
	queued := s.pending
	s.pending = nil
	s.mu.Unlock()

	ran := 0
	for _, sf := range queued {
		s.mu.Lock()
		stopped := sf.stopped
		sf.stopped = true
		s.mu.Unlock()
		if stopped {
			continue
		}
		sf.f()
		ran++
	}
	return ran
}

// elapse moves the clock forward one second at a time, firing ticks as a real scheduler would.
func elapse(clock *fakeClock, sched *manualScheduler, seconds int) {
	for i := 0; i < seconds; i++ {
		clock.Advance(time.Second)
		sched.Fire()
	}
}
