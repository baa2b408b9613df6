package testutil

import "sync/atomic"

// DeterministicClock hands out base+1, base+2, ... one second per Now call.
// Two clocks with the same base stamp byte-identical records for the same
// sequence of committed operations. Safe for concurrent use.
type DeterministicClock struct {
	base  uint64
	ticks atomic.Uint64
}

// NewDeterministicClock returns a clock whose first Now is base+1.
func NewDeterministicClock(base uint64) *DeterministicClock {
	return &DeterministicClock{base: base}
}

// Now implements ledger.Clock.
func (c *DeterministicClock) Now() uint64 {
	return c.base + c.ticks.Add(1)
}

// Current is the last timestamp handed out, or base before the first Now.
func (c *DeterministicClock) Current() uint64 {
	return c.base + c.ticks.Load()
}
