package lockfree

import (
	"fmt"
	"math"
	"sync/atomic"
)

// Handle identifies one slot of a fixed-capacity arena. Holding a handle
// obtained from IndexPool.Get is the only proof of ownership of its slot.
type Handle uint32

// NoHandle is the sentinel meaning "none".
const NoHandle = Handle(math.MaxUint32)

// MaxCapacity is the largest capacity an IndexPool accepts.
const MaxCapacity = math.MaxInt32

const (
	slotFree uint32 = 0
	slotUsed uint32 = 1

	defaultSearchPasses = 16
)

// PoolConfig defines configurable options for IndexPool initialization.
type PoolConfig struct {
	// searchPasses bounds how many full sweeps over the flags Get makes
	// before reporting exhaustion.
	searchPasses int
}

// WithSearchPasses sets the number of full passes over the slot flags a
// Get performs before giving up. Values below 1 are ignored.
//
// More passes make spurious exhaustion under heavy churn less likely, at
// the cost of a longer worst case for a pool that is genuinely full.
func WithSearchPasses(n int) func(*PoolConfig) {
	return func(c *PoolConfig) {
		if n > 0 {
			c.searchPasses = n
		}
	}
}

// IndexPool is a lock-free allocator of integer handles in [0, Cap()).
//
// Each handle has a free/used flag. Get claims a flag with a CAS starting
// from a rotating hint; Free releases it.
//
// Progress:
//   - Get is lock-free but not wait-free. The search is bounded to a fixed
//     number of passes, so under pathological contention it may report
//     exhaustion even though a flag was briefly free somewhere in the array.
//     Exhaustion is a normal, recoverable outcome.
//   - Free is O(1).
type IndexPool struct {
	_      noCopy
	flags  []atomic.Uint32
	hint   atomic.Uint32
	used   atomic.Uint32
	passes int
}

// NewIndexPool creates a pool of capacity handles, all free.
// It panics if capacity is not in [1, MaxCapacity].
func NewIndexPool(capacity int, options ...func(*PoolConfig)) *IndexPool {
	if capacity < 1 || capacity > MaxCapacity {
		panic(fmt.Sprintf("lockfree: capacity %d out of range [1, %d]", capacity, MaxCapacity))
	}
	c := PoolConfig{searchPasses: defaultSearchPasses}
	for _, o := range options {
		o(&c)
	}
	return &IndexPool{
		flags:  make([]atomic.Uint32, capacity),
		passes: c.searchPasses,
	}
}

// Get claims a free handle. It returns NoHandle and false when no flag
// could be claimed within the bounded search.
func (p *IndexPool) Get() (Handle, bool) {
	n := uint32(len(p.flags))
	start := p.hint.Load() % n
	for pass := 0; pass < p.passes && p.used.Load() < n; pass++ {
		i := start
		for {
			if p.flags[i].CompareAndSwap(slotFree, slotUsed) {
				p.used.Add(1)
				p.hint.Store((i + 1) % n)
				return Handle(i), true
			}
			if i++; i == n {
				i = 0
			}
			if i == start {
				break
			}
		}
	}
	return NoHandle, false
}

// Free returns h to the pool. The caller must hold h and must not touch
// its slot afterwards.
//
// It panics if h is out of range or not currently in use.
func (p *IndexPool) Free(h Handle) {
	if int64(h) >= int64(len(p.flags)) {
		panic(fmt.Sprintf("lockfree: free of handle %d out of range [0, %d)", h, len(p.flags)))
	}
	if !p.flags[h].CompareAndSwap(slotUsed, slotFree) {
		panic(fmt.Sprintf("lockfree: double free of handle %d", h))
	}
	p.used.Add(^uint32(0))
}

// InUse reports whether h is currently claimed.
func (p *IndexPool) InUse(h Handle) bool {
	return int64(h) < int64(len(p.flags)) && p.flags[h].Load() == slotUsed
}

// Used returns the number of claimed handles. Under concurrent Get/Free
// the result is only a snapshot.
func (p *IndexPool) Used() int {
	return int(p.used.Load())
}

// Cap returns the number of handles the pool manages.
func (p *IndexPool) Cap() int {
	return len(p.flags)
}
