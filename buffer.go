package lockfree

import (
	"errors"
	"sync/atomic"
)

// ErrExhausted is returned by Write when no free slot could be obtained.
// The buffer is unchanged; the caller may retry, drop the value or use a
// larger capacity.
var ErrExhausted = errors.New("lockfree: no free slot")

// cells is the storage a slotBuffer constructs values into.
type cells[T any] interface {
	Construct(h Handle, v T)
	Destroy(h Handle)
	Move(h Handle) T
}

// tagged is the published cell of a buffer: the low 32 bits hold the
// handle plus one (zero means nothing is published), the high 32 bits a
// counter bumped by every publish and take. The counter lets a reader
// tell "same handle" from "same value" after the handle was freed and
// reused in between.
type tagged uint64

//go:nosplit
func (t tagged) empty() bool {
	return uint32(t) == 0
}

//go:nosplit
func (t tagged) handle() Handle {
	return Handle(uint32(t) - 1)
}

//go:nosplit
func (t tagged) counter() uint32 {
	return uint32(t >> 32)
}

// next returns the successor of t publishing h (NoHandle for none).
//
//go:nosplit
func (t tagged) next(h Handle) tagged {
	return tagged(uint64(t.counter()+1)<<32 | uint64(uint32(h)+1))
}

// slotBuffer holds at most one published value. Every value lives in a
// slot claimed from pool; publication swaps the tagged handle.
//
// Ownership of a slot is exclusive at every instant: claimed by a writer
// that is constructing into it, published in the buffer, or being
// evicted by the writer or taker that swapped it out.
type slotBuffer[T any] struct {
	_         noCopy
	published atomic.Uint64
	pool      *IndexPool
	cells     cells[T]
}

// Write publishes v, evicting and returning the previous value if any.
//
// It fails with ErrExhausted, leaving the buffer untouched, only when no
// slot is free. The publish loop is lock-free: a failed CAS means another
// writer or taker succeeded.
func (b *slotBuffer[T]) Write(v T) (evicted T, loaded bool, err error) {
	h, ok := b.pool.Get()
	if !ok {
		return evicted, false, ErrExhausted
	}
	evicted, loaded = b.publish(h, v)
	return evicted, loaded, nil
}

// ForceWrite is Write that waits, with backoff, for a free slot instead
// of failing. It only blocks while more writers than the capacity allows
// are in flight.
func (b *slotBuffer[T]) ForceWrite(v T) (evicted T, loaded bool) {
	h, ok := b.pool.Get()
	for spins := 0; !ok; h, ok = b.pool.Get() {
		delay(&spins)
	}
	return b.publish(h, v)
}

// TryWrite publishes v only if the buffer is empty, with a single attempt.
// It reports false if the buffer was occupied, if a concurrent writer or
// taker won the race, or if no slot was free; the content of the buffer
// is never touched in that case.
func (b *slotBuffer[T]) TryWrite(v T) bool {
	if !tagged(b.published.Load()).empty() {
		return false
	}
	h, ok := b.pool.Get()
	if !ok {
		return false
	}
	b.cells.Construct(h, v)
	cur := b.published.Load()
	if tagged(cur).empty() &&
		b.published.CompareAndSwap(cur, uint64(tagged(cur).next(h))) {
		return true
	}
	b.cells.Destroy(h)
	b.pool.Free(h)
	return false
}

// Take removes and returns the published value, if any.
func (b *slotBuffer[T]) Take() (v T, ok bool) {
	old, ok := UpdateIf[uint64](&b.published, func(cur uint64) (uint64, bool) {
		t := tagged(cur)
		if t.empty() {
			return cur, false
		}
		return uint64(t.next(NoHandle)), true
	})
	if !ok {
		return v, false
	}
	return b.evict(tagged(old))
}

// Empty reports whether nothing is published. The answer may be stale by
// the time the caller acts on it.
func (b *slotBuffer[T]) Empty() bool {
	return tagged(b.published.Load()).empty()
}

// Version returns the number of publishes and takes so far, modulo 2^32.
func (b *slotBuffer[T]) Version() uint32 {
	return tagged(b.published.Load()).counter()
}

// Cap returns the number of slots, i.e. the number of writers that can
// be in flight at once plus the published value.
func (b *slotBuffer[T]) Cap() int {
	return b.pool.Cap()
}

func (b *slotBuffer[T]) publish(h Handle, v T) (evicted T, loaded bool) {
	b.cells.Construct(h, v)
	old := Update[uint64](&b.published, func(cur uint64) uint64 {
		return uint64(tagged(cur).next(h))
	})
	return b.evict(tagged(old))
}

// evict moves the value out of the slot of a handle that was just
// swapped out of the published cell and returns the slot to the pool.
func (b *slotBuffer[T]) evict(old tagged) (v T, ok bool) {
	if old.empty() {
		return v, false
	}
	h := old.handle()
	v = b.cells.Move(h)
	b.pool.Free(h)
	return v, true
}

// TakeBuffer is a lock-free single-value mailbox for any payload type.
//
// Operations:
//   - Write: publish, evicting (and returning) the previous value.
//   - TryWrite: publish only into an empty buffer.
//   - Take: remove the published value.
//
// Values are never updated in place: every write constructs into a fresh
// slot and publishes its handle, so no operation holds a lock.
//
// Usage:
//
//	b := NewTakeBuffer[string](4)
//	b.Write("hello")
//	if v, ok := b.Take(); ok {
//		fmt.Println(v)
//	}
type TakeBuffer[T any] struct {
	slotBuffer[T]
}

// NewTakeBuffer creates an empty TakeBuffer with capacity slots. Size
// capacity as the number of goroutines that may write concurrently plus
// one for the published value; Write fails with ErrExhausted beyond that.
func NewTakeBuffer[T any](capacity int, options ...func(*PoolConfig)) *TakeBuffer[T] {
	b := &TakeBuffer[T]{}
	b.pool = NewIndexPool(capacity, options...)
	b.cells = NewStorage[T](capacity)
	return b
}

// ExchangeBuffer is a TakeBuffer that can also be peeked with Read.
//
// T must be pointer-free (NewExchangeBuffer panics otherwise), because
// Read copies a slot that a concurrent writer may be destroying and
// reusing. The copy is trusted only if the tagged handle it came from is
// still published afterwards.
type ExchangeBuffer[T any] struct {
	slotBuffer[T]
	storage *RelocatableStorage[T]
}

// NewExchangeBuffer creates an empty ExchangeBuffer with capacity slots.
func NewExchangeBuffer[T any](capacity int, options ...func(*PoolConfig)) *ExchangeBuffer[T] {
	b := &ExchangeBuffer[T]{storage: NewRelocatableStorage[T](capacity)}
	b.pool = NewIndexPool(capacity, options...)
	b.cells = b.storage
	return b
}

// Read returns a copy of the published value without removing it.
//
// The copy is of a value that was published at some instant between the
// call and its return. Read is only obstruction-free: a goroutine that
// writes continuously can make it retry indefinitely.
func (b *ExchangeBuffer[T]) Read() (v T, ok bool) {
	cur := b.published.Load()
	if tagged(cur).empty() {
		return v, false
	}
	v = b.storage.Load(tagged(cur).handle())
	// A no-op CAS, rather than a load, validates: it fails if any publish
	// or take bumped the counter since cur was loaded.
	if b.published.CompareAndSwap(cur, cur) {
		return v, true
	}
	return b.slowRead()
}

func (b *ExchangeBuffer[T]) slowRead() (v T, ok bool) {
	var spins int
	for {
		cur := b.published.Load()
		if tagged(cur).empty() {
			return v, false
		}
		v = b.storage.Load(tagged(cur).handle())
		if b.published.CompareAndSwap(cur, cur) {
			return v, true
		}
		delay(&spins)
	}
}
