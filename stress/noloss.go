package stress

import (
	"context"

	"github.com/llxisdsh/lockfree"
	"github.com/llxisdsh/pb"
)

// NoLossReport is the outcome of NoLoss.
type NoLossReport struct {
	// Written is the sum of all values successfully published.
	Written uint64
	// Taken is the sum of all values removed by readers.
	Taken uint64
	// Leftover is the value still published after the run, if any.
	Leftover uint64
	// Writes and Takes count the successful operations.
	Writes uint64
	Takes  uint64
}

// OK reports whether every written value was taken exactly once.
func (r NoLossReport) OK() bool {
	return r.Taken+r.Leftover == r.Written
}

// NoLoss has writers publish 1, 2, 3, ... each with TryWrite while
// readers Take. TryWrite never discards a value, so the sum of all taken
// values plus what is left in the buffer must equal the sum of all
// values written.
func NoLoss(ctx context.Context, cfg Config) (NoLossReport, error) {
	var r NoLossReport
	if err := cfg.Validate(); err != nil {
		return r, err
	}
	b := lockfree.NewExchangeBuffer[uint64](cfg.capacity())

	var maxima pb.MapOf[int, uint64]
	taken := make([]uint64, cfg.Readers)
	takes := make([]uint64, cfg.Readers)

	workers := make([]worker, 0, cfg.Writers+cfg.Readers)
	for i := range cfg.Writers {
		workers = append(workers, func(running func() bool) error {
			var n uint64
			for running() {
				if b.TryWrite(n + 1) {
					n++
				}
				maybeYield(cfg.Jitter)
			}
			maxima.Store(i, n)
			return nil
		})
	}
	for i := range cfg.Readers {
		workers = append(workers, func(running func() bool) error {
			for running() {
				if v, ok := b.Take(); ok {
					taken[i] += v
					takes[i]++
				}
				maybeYield(cfg.Jitter)
			}
			return nil
		})
	}

	err := runFor(ctx, cfg.Duration, workers)

	maxima.Range(func(_ int, n uint64) bool {
		r.Written += gaussSum(n)
		r.Writes += n
		return true
	})
	for i := range taken {
		r.Taken += taken[i]
		r.Takes += takes[i]
	}
	if v, ok := b.Take(); ok {
		r.Leftover = v
	}
	return r, err
}
