package lockfree

import (
	"fmt"
	"sync/atomic"
)

const (
	cellDead uint32 = 0
	cellLive uint32 = 1
)

// Storage is a fixed arena of cells for values of type T, addressed by
// handles from an IndexPool of the same capacity.
//
// Storage does no synchronization of its own beyond detecting misuse:
// the owner of a handle is the only party that may touch its cell, and
// ownership is transferred through atomics elsewhere (the pool, or a
// buffer's published handle).
type Storage[T any] struct {
	cells []storageCell[T]
}

type storageCell[T any] struct {
	live atomic.Uint32
	v    T
}

// NewStorage creates a Storage with capacity empty cells.
func NewStorage[T any](capacity int) *Storage[T] {
	if capacity < 1 || capacity > MaxCapacity {
		panic(fmt.Sprintf("lockfree: capacity %d out of range [1, %d]", capacity, MaxCapacity))
	}
	return &Storage[T]{cells: make([]storageCell[T], capacity)}
}

// Construct stores v into the empty cell at h.
// It panics if the cell already holds a live value.
func (s *Storage[T]) Construct(h Handle, v T) {
	c := &s.cells[h]
	if !c.live.CompareAndSwap(cellDead, cellLive) {
		panic(fmt.Sprintf("lockfree: construct into live cell %d", h))
	}
	c.v = v
}

// Destroy zeroes the live value at h, releasing anything it references.
// It panics if the cell is empty.
func (s *Storage[T]) Destroy(h Handle) {
	c := &s.cells[h]
	if !c.live.CompareAndSwap(cellLive, cellDead) {
		panic(fmt.Sprintf("lockfree: destroy of empty cell %d", h))
	}
	// The caller still holds h, so nobody can construct into the cell yet.
	var zero T
	c.v = zero
}

// View returns a pointer to the live value at h for in-place access.
// The pointer is valid until the cell is destroyed.
func (s *Storage[T]) View(h Handle) *T {
	c := &s.cells[h]
	if c.live.Load() != cellLive {
		panic(fmt.Sprintf("lockfree: view of empty cell %d", h))
	}
	return &c.v
}

// Move returns the value at h and destroys the cell.
func (s *Storage[T]) Move(h Handle) T {
	v := *s.View(h)
	s.Destroy(h)
	return v
}

// Live reports whether the cell at h holds a value.
func (s *Storage[T]) Live(h Handle) bool {
	return s.cells[h].live.Load() == cellLive
}

// Cap returns the number of cells.
func (s *Storage[T]) Cap() int {
	return len(s.cells)
}
