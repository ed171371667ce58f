//go:build !lockfree_disable_padding

package opt

import (
	"sync/atomic"
	"unsafe"
)

// Padding_ reports whether PaddedUint64 occupies a full cache line.
const Padding_ = true

// PaddedUint64 is an atomic counter that owns its cache line, so two of
// them placed next to each other never share one.
// Padding can be disabled via the lockfree_disable_padding build tag.
type PaddedUint64 struct {
	atomic.Uint64
	_ [(CacheLineSize_ - unsafe.Sizeof(atomic.Uint64{})%CacheLineSize_) % CacheLineSize_]byte
}
