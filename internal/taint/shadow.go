package taint

import "sort"

// ShadowMap is a sparse per-address label map implementing Tracker for
// trace replay. Label sets are interned so that a large buffer marked
// with one label costs one shared set, and Query allocates nothing per
// untainted byte.
type ShadowMap struct {
	enabled bool
	bytes   map[uint64][]uint32 // addr -> interned label set
	sets    map[string][]uint32 // canonical key -> shared set
}

// NewShadowMap returns a disabled shadow map. Call Enable before Mark
// for labels to stick.
func NewShadowMap() *ShadowMap {
	return &ShadowMap{
		bytes: make(map[uint64][]uint32),
		sets:  make(map[string][]uint32),
	}
}

// Enabled reports whether the map is accepting labels.
func (m *ShadowMap) Enabled() bool { return m.enabled }

// Enable turns the map on.
func (m *ShadowMap) Enable() { m.enabled = true }

// Mark labels every byte of the range with the given source label,
// merging with any labels already present. Returns 0 while disabled.
func (m *ShadowMap) Mark(addr uint64, length uint32, label uint32) int {
	if !m.enabled {
		return 0
	}
	for i := uint32(0); i < length; i++ {
		a := addr + uint64(i)
		m.bytes[a] = m.intern(merge(m.bytes[a], label))
	}
	return int(length)
}

// Query returns per-byte label sets for the range. While disabled it
// reports every byte untainted.
func (m *ShadowMap) Query(addr uint64, length uint32) [][]uint32 {
	out := make([][]uint32, length)
	if !m.enabled {
		return out
	}
	for i := uint32(0); i < length; i++ {
		out[i] = m.bytes[addr+uint64(i)]
	}
	return out
}

// ClearRange removes all labels from the range. Upstream engines clear
// taint on overwrite with untainted data; replayed traces can do the
// same explicitly.
func (m *ShadowMap) ClearRange(addr uint64, length uint32) {
	for i := uint32(0); i < length; i++ {
		delete(m.bytes, addr+uint64(i))
	}
}

// merge returns the sorted union of set and label, reusing set when the
// label is already present.
func merge(set []uint32, label uint32) []uint32 {
	for _, l := range set {
		if l == label {
			return set
		}
	}
	out := make([]uint32, 0, len(set)+1)
	out = append(out, set...)
	out = append(out, label)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (m *ShadowMap) intern(set []uint32) []uint32 {
	key := setKey(set)
	if shared, ok := m.sets[key]; ok {
		return shared
	}
	m.sets[key] = set
	return set
}

func setKey(set []uint32) string {
	b := make([]byte, 0, len(set)*4)
	for _, l := range set {
		b = append(b, byte(l), byte(l>>8), byte(l>>16), byte(l>>24))
	}
	return string(b)
}
