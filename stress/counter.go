package stress

import (
	"context"
	"sync/atomic"

	"github.com/llxisdsh/lockfree"
)

// CounterReport is the outcome of Counter.
type CounterReport struct {
	// Increments is the number of Increment calls that returned.
	Increments uint64
	// Final is the value of Sync after every worker stopped.
	Final uint64
	// Stable reports whether a second Sync returned Final again.
	Stable bool
	// Count1 and Count2 are GetIfEqual after the final Sync.
	Count1, Count2 uint64
	// ReaderFinals is the last Sync of each reader, taken after all
	// incrementers stopped.
	ReaderFinals []uint64
	// Apart counts observations where a reader's Sync went backwards or
	// GetIfEqual returned counters more than one apart.
	Apart uint64
}

// OK reports whether the counter ended consistent and no increment was
// lost or duplicated.
func (r CounterReport) OK() bool {
	if r.Final != r.Increments || !r.Stable || r.Apart != 0 {
		return false
	}
	if r.Count1 != r.Final || r.Count2 != r.Final {
		return false
	}
	for _, v := range r.ReaderFinals {
		if v != r.Final {
			return false
		}
	}
	return true
}

// Counter has cfg.Writers goroutines Increment a SyncCounter while
// cfg.Readers goroutines Sync it. Readers keep going until the last
// incrementer stopped and then record where they converged.
func Counter(ctx context.Context, cfg Config) (CounterReport, error) {
	var r CounterReport
	if err := cfg.Validate(); err != nil {
		return r, err
	}
	var c lockfree.SyncCounter

	var increments, apart atomic.Uint64
	var active atomic.Int64
	active.Store(int64(cfg.Writers))
	finals := make([]uint64, cfg.Readers)

	workers := make([]worker, 0, cfg.Writers+cfg.Readers)
	for range cfg.Writers {
		workers = append(workers, func(running func() bool) error {
			defer active.Add(-1)
			var n uint64
			for running() {
				c.Increment()
				n++
				maybeYield(cfg.Jitter)
			}
			increments.Add(n)
			return nil
		})
	}
	for i := range cfg.Readers {
		workers = append(workers, func(running func() bool) error {
			var last uint64
			for running() || active.Load() > 0 {
				v := c.Sync()
				if v < last {
					apart.Add(1)
				}
				last = v
				if c1, c2 := c.GetIfEqual(); c1 != c2 && c1 != c2+1 {
					apart.Add(1)
				}
				maybeYield(cfg.Jitter)
			}
			finals[i] = c.Sync()
			return nil
		})
	}

	err := runFor(ctx, cfg.Duration, workers)

	r.Increments = increments.Load()
	r.Final = c.Sync()
	r.Stable = c.Sync() == r.Final
	r.Count1, r.Count2 = c.GetIfEqual()
	r.ReaderFinals = finals
	r.Apart = apart.Load()
	return r, err
}
