package stress

import (
	"context"

	"github.com/llxisdsh/lockfree"
	"github.com/llxisdsh/pb"
)

// OrderingReport is the outcome of Ordering and MultiWriterOrdering.
type OrderingReport struct {
	// Written maps each writer to the last value it published.
	Written map[int]uint64
	// Observed maps each writer to the largest of its values any reader saw.
	Observed map[int]uint64
	// Reads counts successful reads.
	Reads uint64
	// Violations counts reads that went backwards for their writer or
	// returned a value no writer could have published.
	Violations uint64
	// Window holds the last observations of the first reader that saw a
	// violation, ending with the violating one.
	Window []Observation
}

// OK reports whether every reader saw each writer's values in order and
// no reader saw a value that was never written.
func (r OrderingReport) OK() bool {
	if r.Violations != 0 {
		return false
	}
	for w, v := range r.Observed {
		if v > r.Written[w] {
			return false
		}
	}
	return true
}

// sample is the payload of the ordering scenarios.
type sample struct {
	Writer int64
	Seq    uint64
}

// Ordering has one writer publish 1, 2, 3, ... with Write while readers
// Read. Every reader must see a non-decreasing sequence and no value
// larger than the last one written.
func Ordering(ctx context.Context, cfg Config) (OrderingReport, error) {
	cfg.Writers = 1
	return ordering(ctx, cfg)
}

// MultiWriterOrdering is Ordering with cfg.Writers writers, each tagging
// its values with its id. Readers check each writer's subsequence
// independently.
func MultiWriterOrdering(ctx context.Context, cfg Config) (OrderingReport, error) {
	return ordering(ctx, cfg)
}

type readerResult struct {
	reads      uint64
	violations uint64
	window     []Observation
}

func ordering(ctx context.Context, cfg Config) (OrderingReport, error) {
	var r OrderingReport
	if err := cfg.Validate(); err != nil {
		return r, err
	}
	b := lockfree.NewExchangeBuffer[sample](cfg.capacity())

	var written, observed pb.MapOf[int, uint64]
	results := make([]readerResult, cfg.Readers)

	workers := make([]worker, 0, cfg.Writers+cfg.Readers)
	for i := range cfg.Writers {
		workers = append(workers, func(running func() bool) error {
			s := sample{Writer: int64(i), Seq: 1}
			for running() {
				if _, _, err := b.Write(s); err == nil {
					s.Seq++
				}
				maybeYield(cfg.Jitter)
			}
			written.Store(i, s.Seq-1)
			return nil
		})
	}
	for i := range cfg.Readers {
		workers = append(workers, func(running func() bool) error {
			res := &results[i]
			last := make([]uint64, cfg.Writers)
			win := newWindow()
			for running() {
				maybeYield(cfg.Jitter)
				s, ok := b.Read()
				if !ok {
					continue
				}
				res.reads++
				w := int(s.Writer)
				win.add(Observation{Reader: i, Writer: w, Value: s.Seq})
				if w < 0 || w >= cfg.Writers || s.Seq < last[w] {
					res.violations++
					if res.window == nil {
						res.window = win.snapshot()
					}
					continue
				}
				last[w] = s.Seq
			}
			for w, v := range last {
				raiseTo(&observed, w, v)
			}
			return nil
		})
	}

	err := runFor(ctx, cfg.Duration, workers)

	r.Written = make(map[int]uint64, cfg.Writers)
	written.Range(func(w int, v uint64) bool {
		r.Written[w] = v
		return true
	})
	r.Observed = make(map[int]uint64, cfg.Writers)
	observed.Range(func(w int, v uint64) bool {
		r.Observed[w] = v
		return true
	})
	for _, res := range results {
		r.Reads += res.reads
		r.Violations += res.violations
		if r.Window == nil && res.window != nil {
			r.Window = res.window
		}
	}
	return r, err
}

// raiseTo sets m[k] to v unless it already holds something larger.
func raiseTo(m *pb.MapOf[int, uint64], k int, v uint64) {
	m.ProcessEntry(k, func(e *pb.EntryOf[int, uint64]) (*pb.EntryOf[int, uint64], uint64, bool) {
		if e != nil && e.Value >= v {
			return e, e.Value, true
		}
		return &pb.EntryOf[int, uint64]{Value: v}, v, e != nil
	})
}
