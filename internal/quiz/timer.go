package quiz

import (
	"log"
	"math"
	"sync"
	"time"
)

// DefaultTimeLimit is used whenever a time limit is missing or nonsensical.
const DefaultTimeLimit = 3600

const tickInterval = time.Second

// TimerState is the lifecycle state of a countdown.
type TimerState int

const (
	TimerIdle TimerState = iota
	TimerRunning
	TimerPaused
	TimerExpired
)

func (s TimerState) String() string {
	switch s {
	case TimerIdle:
		return "idle"
	case TimerRunning:
		return "running"
	case TimerPaused:
		return "paused"
	case TimerExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Scheduler runs f once after d. The returned function cancels it.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

type systemScheduler struct{}

// SystemScheduler runs callbacks on real time.AfterFunc timers.
var SystemScheduler Scheduler = systemScheduler{}

func (systemScheduler) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// NormalizeTimeLimit coerces a time limit in seconds to a positive whole number,
// falling back to DefaultTimeLimit for zero, negative, NaN or infinite input.
func NormalizeTimeLimit(seconds float64) int {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 1 || seconds > math.MaxInt32 {
		log.Printf("timer: invalid time limit %v, using %d", seconds, DefaultTimeLimit)
		return DefaultTimeLimit
	}
	return int(math.Floor(seconds))
}

// Timer is a wall-clock countdown with pause and resume.
//
// Remaining time is always derived from the start instant and the total time
// spent paused, never from counting ticks, so late or throttled ticks do not
// accumulate drift. Callbacks run outside the timer's lock.
type Timer struct {
	mu    sync.Mutex
	now   func() time.Time
	sched Scheduler

	limit     int
	remaining int
	state     TimerState

	startedAt time.Time
	pausedAt  time.Time
	paused    time.Duration

	gen    uint64
	cancel func() bool

	onExpire func()
	onTick   func(remaining int)
}

// NewTimer creates an idle countdown of limit seconds.
func NewTimer(limit int, onExpire func()) *Timer {
	return NewTimerWithClock(limit, onExpire, time.Now, systemScheduler{})
}

// NewTimerWithClock allows deterministic clocks and schedulers in tests.
func NewTimerWithClock(limit int, onExpire func(), now func() time.Time, sched Scheduler) *Timer {
	l := NormalizeTimeLimit(float64(limit))
	return &Timer{
		now:       now,
		sched:     sched,
		limit:     l,
		remaining: l,
		state:     TimerIdle,
		onExpire:  onExpire,
	}
}

// OnTick registers fn to receive the remaining seconds after every tick.
func (t *Timer) OnTick(fn func(remaining int)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onTick = fn
}

// Start begins the countdown, or resumes it when paused. It is a no-op while
// running or expired. Callbacks only ever run from scheduled ticks, never from Start.
func (t *Timer) Start() {
	t.mu.Lock()
	now := t.now()
	switch t.state {
	case TimerIdle:
		t.startedAt = now
		t.paused = 0
	case TimerPaused:
		t.paused += now.Sub(t.pausedAt)
		t.pausedAt = time.Time{}
	default:
		t.mu.Unlock()
		return
	}
	t.state = TimerRunning
	t.gen++
	t.scheduleLocked(now)
	t.mu.Unlock()
}

// Pause freezes the countdown at its current value.
func (t *Timer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != TimerRunning {
		return
	}
	now := t.now()
	t.remaining = t.computeLocked(now)
	t.pausedAt = now
	t.state = TimerPaused
	t.stopLocked()
}

// Reset returns the timer to idle with the configured limit.
func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked()
}

// ResetTo returns the timer to idle with a new limit, coerced like NewTimer's.
func (t *Timer) ResetTo(seconds int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.limit = NormalizeTimeLimit(float64(seconds))
	t.resetLocked()
}

// Stop halts the countdown at its current value and guarantees no further
// callbacks. A later Start begins a fresh countdown.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == TimerRunning {
		t.remaining = t.computeLocked(t.now())
	}
	t.stopLocked()
	if t.state != TimerExpired {
		t.state = TimerIdle
	}
}

// Remaining returns the seconds left, always within [0, limit].
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == TimerRunning {
		return t.computeLocked(t.now())
	}
	return t.remaining
}

// State returns the current lifecycle state.
func (t *Timer) State() TimerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Limit returns the configured countdown length in seconds.
func (t *Timer) Limit() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.limit
}

func (t *Timer) tick(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.state != TimerRunning {
		t.mu.Unlock()
		return
	}
	now := t.now()
	remaining := t.computeLocked(now)
	t.remaining = remaining

	onTick := t.onTick
	var onExpire func()
	if remaining == 0 {
		t.state = TimerExpired
		t.stopLocked()
		onExpire = t.onExpire
	} else {
		t.scheduleLocked(now)
	}
	t.mu.Unlock()

	if onTick != nil {
		onTick(remaining)
	}
	if onExpire != nil {
		onExpire()
	}
}

// scheduleLocked arms the next tick for the current generation, landing just
// after the next whole elapsed second so the display flips on time.
func (t *Timer) scheduleLocked(now time.Time) {
	gen := t.gen
	elapsed := now.Sub(t.startedAt) - t.paused
	if elapsed < 0 {
		elapsed = 0
	}
	next := tickInterval - elapsed%tickInterval
	t.cancel = t.sched.AfterFunc(next, func() { t.tick(gen) })
}

func (t *Timer) computeLocked(now time.Time) int {
	elapsed := now.Sub(t.startedAt) - t.paused
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := t.limit - int(elapsed/time.Second)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// stopLocked invalidates any scheduled tick.
func (t *Timer) stopLocked() {
	t.gen++
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

func (t *Timer) resetLocked() {
	t.stopLocked()
	t.state = TimerIdle
	t.remaining = t.limit
	t.startedAt = time.Time{}
	t.pausedAt = time.Time{}
	t.paused = 0
}
