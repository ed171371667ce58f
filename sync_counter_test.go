package lockfree

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/llxisdsh/lockfree/internal/opt"
)

func TestSyncCounter_ZeroValue(t *testing.T) {
	var c SyncCounter
	if v := c.Sync(); v != 0 {
		t.Fatalf("Sync() = %d, want 0", v)
	}
	if c1, c2 := c.GetIfEqual(); c1 != 0 || c2 != 0 {
		t.Fatalf("GetIfEqual() = (%d, %d), want (0, 0)", c1, c2)
	}
}

func TestSyncCounter_Sequential(t *testing.T) {
	var c SyncCounter
	for i := 1; i <= 100; i++ {
		c.Increment()
		if v := c.Sync(); v != uint64(i) {
			t.Fatalf("after %d increments Sync() = %d", i, v)
		}
	}
}

func TestSyncCounter_HelpFinishesHalfDoneIncrement(t *testing.T) {
	var c SyncCounter
	c.Increment()
	// Simulate an incrementer that stalled between its two CASes.
	c.count1.Add(1)

	if c1, c2 := c.GetIfEqual(); c1 != 2 || c2 != 1 {
		t.Fatalf("GetIfEqual() = (%d, %d), want (2, 1)", c1, c2)
	}
	if v := c.Sync(); v != 2 {
		t.Fatalf("Sync() = %d, want 2", v)
	}
	c.Increment()
	if c1, c2 := c.GetIfEqual(); c1 != 3 || c2 != 3 {
		t.Fatalf("GetIfEqual() = (%d, %d), want (3, 3)", c1, c2)
	}
}

func TestSyncCounter_Concurrent(t *testing.T) {
	const incrementers, readers = 8, 8
	per := 20000
	if opt.Race_ {
		per = 2000
	}
	total := uint64(incrementers * per)

	var c SyncCounter
	var done atomic.Int32
	var apart atomic.Int64
	final := make([]uint64, readers)

	var wg sync.WaitGroup
	wg.Add(incrementers + readers)
	for range incrementers {
		go func() {
			defer wg.Done()
			defer done.Add(1)
			for range per {
				c.Increment()
			}
		}()
	}
	for i := range readers {
		go func() {
			defer wg.Done()
			var last uint64
			for done.Load() < incrementers {
				v := c.Sync()
				if v < last {
					apart.Add(1)
				}
				last = v
				if c1, c2 := c.GetIfEqual(); c1 != c2 && c1 != c2+1 {
					apart.Add(1)
				}
			}
			final[i] = c.Sync()
		}()
	}
	wg.Wait()

	if n := apart.Load(); n != 0 {
		t.Fatalf("%d observations went backwards or saw counters more than one apart", n)
	}
	if v := c.Sync(); v != total {
		t.Fatalf("Sync() = %d, want %d", v, total)
	}
	if v := c.Sync(); v != total {
		t.Fatalf("second Sync() = %d, want %d", v, total)
	}
	if c1, c2 := c.GetIfEqual(); c1 != total || c2 != total {
		t.Fatalf("GetIfEqual() = (%d, %d), want both %d", c1, c2, total)
	}
	for i, v := range final {
		if v != total {
			t.Errorf("reader %d converged on %d, want %d", i, v, total)
		}
	}
}

func TestSyncCounter_UnsyncedIncrement(t *testing.T) {
	const goroutines, per = 4, 1000
	var c SyncCounter
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for range goroutines {
		go func() {
			defer wg.Done()
			for range per {
				c.UnsyncedIncrement()
			}
		}()
	}
	wg.Wait()

	if c1, c2 := c.GetIfEqual(); c1 != goroutines*per || c2 != goroutines*per {
		t.Fatalf("GetIfEqual() = (%d, %d), want both %d", c1, c2, goroutines*per)
	}
}
