package lockfree

import (
	"fmt"
	"reflect"
	"sync/atomic"
	"unsafe"
)

const wordSize = unsafe.Sizeof(uintptr(0))

// RelocatableStorage is a Storage for pointer-free values that may be
// copied out while another goroutine destroys or rebuilds the same cell.
//
// Cells are arrays of machine words written and read with word-sized
// atomic stores and loads. A Load racing a Destroy or Construct returns
// an arbitrary mix of old and new words; callers must re-validate before
// trusting the copy (see ExchangeBuffer.Read). Because T holds no
// pointers, a torn copy is just wrong bits, never a dangling reference.
type RelocatableStorage[T any] struct {
	words  []uintptr
	live   []atomic.Uint32
	stride int
}

// NewRelocatableStorage creates a RelocatableStorage with capacity empty
// cells. It panics if T contains pointers (pointers, strings, slices,
// maps, channels, funcs or interfaces, at any depth).
func NewRelocatableStorage[T any](capacity int) *RelocatableStorage[T] {
	if capacity < 1 || capacity > MaxCapacity {
		panic(fmt.Sprintf("lockfree: capacity %d out of range [1, %d]", capacity, MaxCapacity))
	}
	if t := reflect.TypeFor[T](); !PointerFree(t) {
		panic(fmt.Sprintf("lockfree: %v is not pointer-free and cannot be read concurrently", t))
	}
	var zero T
	stride := int((unsafe.Sizeof(zero) + wordSize - 1) / wordSize)
	return &RelocatableStorage[T]{
		words:  make([]uintptr, capacity*stride),
		live:   make([]atomic.Uint32, capacity),
		stride: stride,
	}
}

// PointerFree reports whether values of type t contain no pointers the
// garbage collector would have to trace.
func PointerFree(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Array:
		return t.Len() == 0 || PointerFree(t.Elem())
	case reflect.Struct:
		for i := range t.NumField() {
			if !PointerFree(t.Field(i).Type) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func (s *RelocatableStorage[T]) cell(h Handle) []uintptr {
	off := int(h) * s.stride
	return s.words[off : off+s.stride : off+s.stride]
}

// Construct stores v into the empty cell at h.
// It panics if the cell already holds a live value.
func (s *RelocatableStorage[T]) Construct(h Handle, v T) {
	if !s.live[h].CompareAndSwap(cellDead, cellLive) {
		panic(fmt.Sprintf("lockfree: construct into live cell %d", h))
	}
	storeWords(s.cell(h), &v)
}

// Destroy zeroes the cell at h. It panics if the cell is empty.
func (s *RelocatableStorage[T]) Destroy(h Handle) {
	if !s.live[h].CompareAndSwap(cellLive, cellDead) {
		panic(fmt.Sprintf("lockfree: destroy of empty cell %d", h))
	}
	c := s.cell(h)
	for i := range c {
		atomic.StoreUintptr(&c[i], 0)
	}
}

// Load copies the cell at h. It never blocks and never checks liveness;
// the result is only meaningful if the caller can prove the cell was not
// rebuilt during the copy.
func (s *RelocatableStorage[T]) Load(h Handle) T {
	return loadWords[T](s.cell(h))
}

// Move returns the value at h and destroys the cell.
func (s *RelocatableStorage[T]) Move(h Handle) T {
	if s.live[h].Load() != cellLive {
		panic(fmt.Sprintf("lockfree: move from empty cell %d", h))
	}
	v := s.Load(h)
	s.Destroy(h)
	return v
}

// Live reports whether the cell at h holds a value.
func (s *RelocatableStorage[T]) Live(h Handle) bool {
	return s.live[h].Load() == cellLive
}

// Cap returns the number of cells.
func (s *RelocatableStorage[T]) Cap() int {
	return len(s.live)
}

// storeWords writes *v into dst with word-sized atomic stores. Values
// that are word aligned and a whole number of words long are copied word
// by word; anything else goes through a byte view, zero-filling the tail
// of the last word.
func storeWords[T any](dst []uintptr, v *T) {
	size := unsafe.Sizeof(*v)
	if size == 0 {
		return
	}
	if unsafe.Alignof(*v) >= wordSize && size%wordSize == 0 {
		src := unsafe.Slice((*uintptr)(unsafe.Pointer(v)), len(dst))
		for i := range dst {
			atomic.StoreUintptr(&dst[i], src[i])
		}
		return
	}
	src := unsafe.Slice((*byte)(unsafe.Pointer(v)), size)
	for i := range dst {
		var w uintptr
		copy(unsafe.Slice((*byte)(unsafe.Pointer(&w)), wordSize), src[uintptr(i)*wordSize:])
		atomic.StoreUintptr(&dst[i], w)
	}
}

// loadWords is the inverse of storeWords.
func loadWords[T any](src []uintptr) (v T) {
	size := unsafe.Sizeof(v)
	if size == 0 {
		return v
	}
	if unsafe.Alignof(v) >= wordSize && size%wordSize == 0 {
		dst := unsafe.Slice((*uintptr)(unsafe.Pointer(&v)), len(src))
		for i := range src {
			dst[i] = atomic.LoadUintptr(&src[i])
		}
		return v
	}
	dst := unsafe.Slice((*byte)(unsafe.Pointer(&v)), size)
	for i := range src {
		w := atomic.LoadUintptr(&src[i])
		copy(dst[uintptr(i)*wordSize:], unsafe.Slice((*byte)(unsafe.Pointer(&w)), wordSize))
	}
	return v
}
