package testutil

import (
	"sync"
	"time"
)

// StepClock is a deterministic wall clock for tests. Each call to Now
// returns the previous time plus step, starting at start.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StepClock struct {
	mu    sync.Mutex
	next  time.Time
	start time.Time
	step  time.Duration
}

// NewStepClock creates a clock whose first Now returns start.
func NewStepClock(start time.Time, step time.Duration) *StepClock {
	return &StepClock{next: start, start: start, step: step}
}

// Now returns the current time and advances the clock by one step.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.next
	c.next = c.next.Add(c.step)
	return t
}

// Peek returns the time the next call to Now will return.
func (c *StepClock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next
}

// Reset rewinds the clock to its start time.
func (c *StepClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next = c.start
}
