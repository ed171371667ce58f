package stress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/llxisdsh/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llxisdsh/lockfree/internal/opt"
)

func shortConfig() Config {
	cfg := DefaultConfig()
	cfg.Duration = 200 * time.Millisecond
	if opt.Race_ {
		cfg.Duration = 50 * time.Millisecond
	}
	cfg.Jitter = true
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	for name, mutate := range map[string]func(*Config){
		"zero duration":     func(c *Config) { c.Duration = 0 },
		"no writers":        func(c *Config) { c.Writers = 0 },
		"no readers":        func(c *Config) { c.Readers = -1 },
		"negative capacity": func(c *Config) { c.Capacity = -1 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestConfig_Capacity(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, cfg.Writers+cfg.Readers+1, cfg.capacity())
	cfg.Capacity = 3
	assert.Equal(t, 3, cfg.capacity())
}

func TestWindow(t *testing.T) {
	w := newWindow()
	for i := range windowSize + 3 {
		w.add(Observation{Value: uint64(i)})
	}
	got := w.snapshot()
	require.Len(t, got, windowSize)
	assert.Equal(t, uint64(3), got[0].Value)
	assert.Equal(t, uint64(windowSize+2), got[windowSize-1].Value)
}

// Readers merge their maxima into a shared map concurrently; run with
// -race to check the map under contention.
func TestRaiseTo_Concurrent(t *testing.T) {
	const goroutines, keys, rounds = 8, 4, 500
	var m pb.MapOf[int, uint64]

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := range goroutines {
		go func() {
			defer wg.Done()
			for r := range rounds {
				for k := range keys {
					raiseTo(&m, k, uint64(r*goroutines+g))
				}
			}
			m.Store(keys+g, uint64(g))
		}()
	}
	wg.Wait()

	want := uint64((rounds-1)*goroutines + goroutines - 1)
	for k := range keys {
		got, ok := m.Load(k)
		require.True(t, ok, "key %d missing", k)
		assert.Equal(t, want, got, "key %d", k)
	}
	for g := range goroutines {
		got, ok := m.Load(keys + g)
		require.True(t, ok)
		assert.Equal(t, uint64(g), got)
	}
}

func TestNoLoss(t *testing.T) {
	r, err := NoLoss(context.Background(), shortConfig())
	require.NoError(t, err)
	assert.True(t, r.OK(), "report: %+v", r)
	assert.NotZero(t, r.Writes)
}

func TestNoLoss_SmallCapacity(t *testing.T) {
	cfg := shortConfig()
	cfg.Capacity = 2
	r, err := NoLoss(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, r.OK(), "report: %+v", r)
}

func TestOrdering(t *testing.T) {
	cfg := shortConfig()
	cfg.Writers = 3
	r, err := Ordering(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, r.OK(), "report: %+v", r)
	assert.Len(t, r.Written, 1)
	assert.Empty(t, r.Window)
}

func TestMultiWriterOrdering(t *testing.T) {
	r, err := MultiWriterOrdering(context.Background(), shortConfig())
	require.NoError(t, err)
	assert.True(t, r.OK(), "report: %+v", r)
	assert.Len(t, r.Written, DefaultConfig().Writers)
	assert.NotZero(t, r.Reads)
}

func TestOrderingReport_OK(t *testing.T) {
	r := OrderingReport{
		Written:  map[int]uint64{0: 10},
		Observed: map[int]uint64{0: 10},
	}
	assert.True(t, r.OK())
	r.Observed[0] = 11
	assert.False(t, r.OK())
	r.Observed[0] = 5
	r.Violations = 1
	assert.False(t, r.OK())
}

func TestCounter(t *testing.T) {
	r, err := Counter(context.Background(), shortConfig())
	require.NoError(t, err)
	assert.True(t, r.OK(), "report: %+v", r)
	assert.NotZero(t, r.Increments)
	assert.Len(t, r.ReaderFinals, DefaultConfig().Readers)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := shortConfig()
	cfg.Duration = time.Minute

	start := time.Now()
	r, err := NoLoss(ctx, cfg)
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), cfg.Duration)
	assert.True(t, r.OK(), "report: %+v", r)
}

func TestRun_InvalidConfig(t *testing.T) {
	_, err := Counter(context.Background(), Config{})
	require.ErrorIs(t, err, ErrInvalidConfig)
}
