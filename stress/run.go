package stress

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/valyala/fastrand"
	"golang.org/x/sync/errgroup"
)

// windowSize is the number of recent observations kept per reader for
// violation reports.
const windowSize = 8

// worker runs until running reports false.
type worker func(running func() bool) error

// runFor runs workers concurrently until d elapses or ctx is done. It
// returns the first worker error, or the cause if ctx ended the run.
func runFor(ctx context.Context, d time.Duration, workers []worker) error {
	runCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	var stopped atomic.Bool
	stop := context.AfterFunc(runCtx, func() { stopped.Store(true) })
	defer stop()
	running := func() bool { return !stopped.Load() }

	var g errgroup.Group
	for _, w := range workers {
		g.Go(func() error {
			if err := w(running); err != nil {
				stopped.Store(true)
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("stress: run interrupted: %w", err)
	}
	return nil
}

// maybeYield yields the processor on roughly one call in 64 when on.
func maybeYield(on bool) {
	if on && fastrand.Uint32n(64) == 0 {
		runtime.Gosched()
	}
}

// Observation is one value seen by a reader.
type Observation struct {
	Reader int
	Writer int
	Value  uint64
}

// window keeps the last windowSize observations of one reader.
type window struct {
	q *queue.Queue
}

func newWindow() window {
	return window{q: queue.New()}
}

func (w window) add(o Observation) {
	w.q.Add(o)
	if w.q.Length() > windowSize {
		w.q.Remove()
	}
}

func (w window) snapshot() []Observation {
	out := make([]Observation, w.q.Length())
	for i := range out {
		out[i] = w.q.Get(i).(Observation)
	}
	return out
}

func gaussSum(n uint64) uint64 {
	return n * (n + 1) / 2
}
