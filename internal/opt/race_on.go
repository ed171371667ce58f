//go:build race

package opt

// Race_ reports whether the race detector is enabled.
// Stress runs scale their windows down under the detector, which slows
// every atomic access by an order of magnitude.
const Race_ = true
