package lockfree

import (
	"runtime"

	"github.com/llxisdsh/lockfree/internal/opt"
)

// SyncCounter is a logical counter kept in two physical counters that
// live on different cache lines and must advance together.
//
// An increment first advances count1, then count2. Between the two
// steps the pair is "half done" (count1 == count2+1), and that state
// alone tells any observer how to finish it: advance count2 to count1.
// Every goroutine that sees a half-done increment completes it before
// starting its own, so no increment is lost, duplicated or stuck, and
// two observers never see counters more than one apart.
//
// The zero value is a counter at 0.
type SyncCounter struct {
	_      noCopy
	count1 opt.PaddedUint64
	count2 opt.PaddedUint64
}

// Increment advances the counter by one. It is lock-free.
func (c *SyncCounter) Increment() {
	for {
		c1, c2 := c.count1.Load(), c.count2.Load()
		for c1 != c2 {
			c1, c2 = c.help(c1, c2)
		}
		if c.count1.CompareAndSwap(c1, c1+1) {
			// Half done. A failure here means a helper already
			// finished it for us.
			c.count2.CompareAndSwap(c1, c1+1)
			return
		}
	}
}

// UnsyncedIncrement advances count1 and count2 with two independent
// adds and no coordination. It exists as a racy baseline for comparison:
// observers can see the counters arbitrarily far apart while it runs.
// It must not be mixed with Increment or Sync on the same counter, since
// a helper finishing its first add makes the second one overshoot.
func (c *SyncCounter) UnsyncedIncrement() {
	c.count1.Add(1)
	runtime.Gosched()
	c.count2.Add(1)
}

// Sync returns the counter value, finishing any half-done increment it
// observes. It is obstruction-free: continuous increments can make it
// retry indefinitely.
func (c *SyncCounter) Sync() uint64 {
	c1, c2 := c.count1.Load(), c.count2.Load()
	var spins int
	for c1 != c2 {
		c1, c2 = c.help(c1, c2)
		if c1 != c2 {
			delay(&spins)
		}
	}
	return c1
}

// GetIfEqual returns both counters without helping. count1 is validated
// to be unchanged across the load of count2, so the pair existed at one
// instant; it may still be half done (count1 == count2+1).
func (c *SyncCounter) GetIfEqual() (count1, count2 uint64) {
	count1 = c.count1.Load()
	for {
		count2 = c.count2.Load()
		if c.count1.CompareAndSwap(count1, count1) {
			return count1, count2
		}
		count1 = c.count1.Load()
	}
}

// help finishes the half-done increment described by (c1, c2), if that
// observation is still current, and returns a fresh observation.
//
// count2 only ever advances to an already advanced count1, so a pair
// with c1 == c2+1 fully determines the finishing CAS. Any other unequal
// pair comes from loads taken at different instants and is reloaded.
func (c *SyncCounter) help(c1, c2 uint64) (uint64, uint64) {
	if c1 == c2+1 {
		c.count2.CompareAndSwap(c2, c1)
	}
	return c.count1.Load(), c.count2.Load()
}
