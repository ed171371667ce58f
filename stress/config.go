package stress

import (
	"errors"
	"fmt"
	"time"

	"github.com/llxisdsh/lockfree"
)

// ErrInvalidConfig is wrapped by every error returned from Config.Validate.
var ErrInvalidConfig = errors.New("stress: invalid config")

// Config describes one stress run.
type Config struct {
	// Duration is how long workers run before they are stopped.
	Duration time.Duration
	// Writers is the number of writing (or incrementing) goroutines.
	Writers int
	// Readers is the number of reading (or taking, or syncing) goroutines.
	Readers int
	// Capacity is the slot count of the buffer under test. Zero means
	// Writers+Readers+1, enough that no write ever finds the pool empty.
	Capacity int
	// Jitter makes workers yield at random points to diversify
	// interleavings.
	Jitter bool
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		Duration: 5 * time.Second,
		Writers:  4,
		Readers:  4,
	}
}

// Validate reports whether c can be run.
func (c Config) Validate() error {
	switch {
	case c.Duration <= 0:
		return fmt.Errorf("%w: duration %v must be positive", ErrInvalidConfig, c.Duration)
	case c.Writers < 1:
		return fmt.Errorf("%w: need at least one writer, got %d", ErrInvalidConfig, c.Writers)
	case c.Readers < 1:
		return fmt.Errorf("%w: need at least one reader, got %d", ErrInvalidConfig, c.Readers)
	case c.Capacity < 0 || c.Capacity > lockfree.MaxCapacity:
		return fmt.Errorf("%w: capacity %d out of range [0, %d]", ErrInvalidConfig, c.Capacity, lockfree.MaxCapacity)
	}
	return nil
}

func (c Config) capacity() int {
	if c.Capacity > 0 {
		return c.Capacity
	}
	return c.Writers + c.Readers + 1
}
