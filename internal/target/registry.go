package target

import (
	"fmt"

	"github.com/deptrack/deptrack/pkg/types"
)

// ErrInvalidTarget is returned when a target with an empty identifying
// field is registered.
var ErrInvalidTarget = fmt.Errorf("target: invalid target (empty identifying field)")

// Source is the bookkeeping record for one registered source endpoint.
// Records live in the registry's arena; external code holds the index,
// never the record.
type Source struct {
	target types.Target
	index  int

	// TotalReads and TotalBytes count read events and bytes read.
	// LabeledBytes counts bytes of this source currently carrying a
	// provenance label in the live taint state; with taint disabled it
	// stays at zero while the other counters advance.
	TotalReads   uint32
	TotalBytes   uint32
	LabeledBytes uint32
}

// Target returns the endpoint identity attached to this source.
func (s *Source) Target() types.Target { return s.target }

// Index returns this source's position in the registry. Assigned at
// registration and never reassigned; it doubles as the provenance label.
func (s *Source) Index() int { return s.index }

// Stats returns a read-only snapshot of the source's counters.
func (s *Source) Stats() types.SourceStats {
	return types.SourceStats{
		Index:        s.index,
		Target:       s.target,
		TotalReads:   s.TotalReads,
		TotalBytes:   s.TotalBytes,
		LabeledBytes: s.LabeledBytes,
	}
}

// Sink is the bookkeeping record for one registered sink endpoint.
type Sink struct {
	target types.Target
	index  int

	TotalWrites     uint32
	TotalBytes      uint32
	TotalTaintBytes uint32

	// LabeledBytes maps source index to bytes attributed to that source.
	// A byte with merged provenance increments every contributing
	// source's entry, so the values may sum past TotalTaintBytes.
	LabeledBytes map[uint32]uint32
}

// Target returns the endpoint identity attached to this sink.
func (s *Sink) Target() types.Target { return s.target }

// Index returns this sink's position in the registry.
func (s *Sink) Index() int { return s.index }

// Stats returns a read-only snapshot of the sink's counters and its
// attribution map.
func (s *Sink) Stats() types.SinkStats {
	st := types.SinkStats{
		Index:           s.index,
		Target:          s.target,
		TotalWrites:     s.TotalWrites,
		TotalBytes:      s.TotalBytes,
		TotalTaintBytes: s.TotalTaintBytes,
	}
	if len(s.LabeledBytes) > 0 {
		st.LabeledBytes = make(map[uint32]uint32, len(s.LabeledBytes))
		for k, v := range s.LabeledBytes {
			st.LabeledBytes[k] = v
		}
	}
	return st
}

// Registry holds the ordered source and sink records. Both collections
// are append-only and built before monitored execution begins; once
// assigned, an index denotes the same endpoint for the life of the run.
// Counters are mutated exclusively by the attribution engine on the
// single callback goroutine.
type Registry struct {
	sources []Source
	sinks   []Sink
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// AddSource registers a source endpoint and returns its stable index.
// Invalid targets are refused and leave the registry unchanged.
func (r *Registry) AddSource(t types.Target) (int, error) {
	if !t.Valid() {
		return 0, fmt.Errorf("register source: %w", ErrInvalidTarget)
	}
	idx := len(r.sources)
	r.sources = append(r.sources, Source{target: t, index: idx})
	return idx, nil
}

// AddSink registers a sink endpoint and returns its stable index.
// Invalid targets are refused and leave the registry unchanged.
func (r *Registry) AddSink(t types.Target) (int, error) {
	if !t.Valid() {
		return 0, fmt.Errorf("register sink: %w", ErrInvalidTarget)
	}
	idx := len(r.sinks)
	r.sinks = append(r.sinks, Sink{target: t, index: idx})
	return idx, nil
}

// Source returns the record for the given index. An out-of-range index
// is registry corruption in the caller and panics.
func (r *Registry) Source(idx int) *Source {
	if idx < 0 || idx >= len(r.sources) {
		panic(fmt.Sprintf("target: source index %d out of range (have %d)", idx, len(r.sources)))
	}
	return &r.sources[idx]
}

// Sink returns the record for the given index. An out-of-range index
// panics.
func (r *Registry) Sink(idx int) *Sink {
	if idx < 0 || idx >= len(r.sinks) {
		panic(fmt.Sprintf("target: sink index %d out of range (have %d)", idx, len(r.sinks)))
	}
	return &r.sinks[idx]
}

// MatchSource returns the index of the source whose target equals t,
// or -1 when no source matches.
func (r *Registry) MatchSource(t types.Target) int {
	for i := range r.sources {
		if r.sources[i].target.Equal(t) {
			return i
		}
	}
	return -1
}

// MatchSink returns the index of the sink whose target equals t, or -1
// when no sink matches.
func (r *Registry) MatchSink(t types.Target) int {
	for i := range r.sinks {
		if r.sinks[i].target.Equal(t) {
			return i
		}
	}
	return -1
}

// NumSources returns the number of registered sources.
func (r *Registry) NumSources() int { return len(r.sources) }

// NumSinks returns the number of registered sinks.
func (r *Registry) NumSinks() int { return len(r.sinks) }

// SourceStats snapshots every source in registration order.
func (r *Registry) SourceStats() []types.SourceStats {
	out := make([]types.SourceStats, 0, len(r.sources))
	for i := range r.sources {
		out = append(out, r.sources[i].Stats())
	}
	return out
}

// SinkStats snapshots every sink in registration order.
func (r *Registry) SinkStats() []types.SinkStats {
	out := make([]types.SinkStats, 0, len(r.sinks))
	for i := range r.sinks {
		out = append(out, r.sinks[i].Stats())
	}
	return out
}
