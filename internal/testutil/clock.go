package testutil

import (
	"sync"
	"time"
)

// DeterministicClock hands out reproducible timestamps for tests that record
// wall-clock times. Each call to Now returns the base time advanced by one
// more step, so repeated runs of the same scenario see identical values.
type DeterministicClock struct {
	mu   sync.Mutex
	base time.Time
	step time.Duration
	n    int64
}

// NewDeterministicClock creates a clock whose first Now call returns base.
func NewDeterministicClock(base time.Time, step time.Duration) *DeterministicClock {
	return &DeterministicClock{base: base, step: step}
}

// Now returns the next timestamp. Suitable as a drop-in time source wherever
// a func() time.Time is accepted.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.base.Add(time.Duration(c.n) * c.step)
	c.n++
	return t
}

// Reset rewinds the clock so the next Now call returns base again.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = 0
}
