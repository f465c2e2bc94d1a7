// Package taint defines the byte-level taint collaborator boundary the
// attribution engine depends on, and a reference in-process shadow map
// implementation used when replaying recorded traces.
package taint

// Tracker is the minimum contract the attribution engine requires from
// a byte-level taint engine. Implementations must be safe to call while
// disabled: Mark returns 0 and Query returns no labels, never an error.
type Tracker interface {
	// Mark labels every byte in [addr, addr+length) with the given
	// source label and returns the number of bytes actually marked.
	// Marking fewer bytes than requested is not an error.
	Mark(addr uint64, length uint32, label uint32) int

	// Query returns the per-byte label sets for [addr, addr+length).
	// The slice has one entry per byte; a nil or empty entry means the
	// byte is untainted. A byte may carry multiple labels when
	// provenance was merged.
	Query(addr uint64, length uint32) [][]uint32

	// Enabled reports whether taint tracking is active.
	Enabled() bool

	// Enable activates taint tracking. Bytes touched before enablement
	// carry no labels.
	Enable()
}
