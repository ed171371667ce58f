package lockfree

import "sync/atomic"

// Word is a single atomically updatable cell. The typed atomics of
// sync/atomic satisfy it: atomic.Uint32, atomic.Uint64, atomic.Int64,
// atomic.Pointer[T] and so on.
type Word[T comparable] interface {
	Load() T
	CompareAndSwap(old, new T) bool
}

// SwapIfNotEqual stores new unless the current value equals unexpected.
// It retries while concurrent updates keep changing the value and reports
// whether it stored.
//
// Usage:
//
//	var x atomic.Int64
//	x.Store(73)
//	SwapIfNotEqual(&x, 73, 42) // false, x == 73
//	SwapIfNotEqual(&x, 37, 42) // true, x == 42
func SwapIfNotEqual[T comparable](w Word[T], unexpected, new T) bool {
	for {
		cur := w.Load()
		if cur == unexpected {
			return false
		}
		if w.CompareAndSwap(cur, new) {
			return true
		}
	}
}

// Update replaces the current value with fn(current), retrying with a
// fresh value until the CAS succeeds. It returns the replaced value.
//
// fn must be pure: it may run several times and only the result of the
// last call is published.
func Update[T comparable](w Word[T], fn func(old T) T) (old T) {
	for {
		old = w.Load()
		if w.CompareAndSwap(old, fn(old)) {
			return old
		}
	}
}

// UpdateIf is Update where fn may decline the observed value by returning
// ok == false, which ends the loop without a store. It returns the last
// observed value and whether fn's result was published.
func UpdateIf[T comparable](w Word[T], fn func(old T) (T, bool)) (old T, ok bool) {
	for {
		old = w.Load()
		next, accept := fn(old)
		if !accept {
			return old, false
		}
		if w.CompareAndSwap(old, next) {
			return old, true
		}
	}
}

// MultiplyInt64 atomically multiplies *w by m and returns the old value.
func MultiplyInt64(w *atomic.Int64, m int64) (old int64) {
	return Update[int64](w, func(v int64) int64 { return v * m })
}
