//go:build lockfree_disable_padding

package opt

import "sync/atomic"

// Padding_ reports whether PaddedUint64 occupies a full cache line.
const Padding_ = false

// PaddedUint64 is an unpadded atomic counter.
// Padding is force-disabled via the lockfree_disable_padding build tag.
// Use: go build -tags=lockfree_disable_padding
type PaddedUint64 struct {
	atomic.Uint64
}
