package testutil

import (
	"sync"
	"time"
)

// StepClock is a thread-safe fake wall clock for tests.
//
// Each call to Now advances the clock by a fixed step, so consecutive ledger
// operations get distinct, predictable timestamps.
type StepClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	ticks int64
}

// DefaultEpoch is the first timestamp handed out by NewDefaultStepClock.
var DefaultEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// NewStepClock creates a clock whose first Now returns start.
func NewStepClock(start time.Time, step time.Duration) *StepClock {
	return &StepClock{start: start.UTC(), step: step}
}

// NewDefaultStepClock starts at DefaultEpoch and advances one second per call.
func NewDefaultStepClock() *StepClock {
	return NewStepClock(DefaultEpoch, time.Second)
}

// Now returns the current time and advances the clock.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.start.Add(time.Duration(c.ticks) * c.step)
	c.ticks++
	return t
}

// Peek returns the time the next call to Now will return.
func (c *StepClock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start.Add(time.Duration(c.ticks) * c.step)
}

// Reset rewinds the clock to its start.
func (c *StepClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks = 0
}
