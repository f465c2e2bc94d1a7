// Package tracker implements the attribution engine: it marks bytes
// read from registered sources with provenance labels, queries the
// labels back on writes to registered sinks, and accumulates the
// per-(source, sink) dependency matrix in the endpoint registry.
package tracker

import (
	"log/slog"

	"github.com/deptrack/deptrack/internal/metrics"
	"github.com/deptrack/deptrack/internal/target"
	"github.com/deptrack/deptrack/internal/taint"
	"github.com/deptrack/deptrack/pkg/types"
)

// Publisher receives attribution events as the engine produces them.
type Publisher interface {
	Publish(ev types.Event)
}

// Engine drives attribution for one monitored execution. All methods
// run on the single callback goroutine delivering trace events; nothing
// here blocks or suspends.
type Engine struct {
	registry *target.Registry
	taint    taint.Tracker
	metrics  *metrics.Collector
	log      *slog.Logger

	factory   Factory
	publisher Publisher

	descriptors map[descKey]*descriptor
	processes   map[uint64]string // asid -> most recently scheduled process
	procFilter  *ProcessFilter
}

// Factory creates events for the engine to publish; nil disables
// event emission (counters still advance).
type Factory interface {
	New(eventType string) types.Event
}

// Options configures an Engine. Registry and Taint are required.
type Options struct {
	Registry *target.Registry
	Taint    taint.Tracker
	Metrics  *metrics.Collector
	Logger   *slog.Logger

	Factory   Factory
	Publisher Publisher

	// ProcessFilter restricts classification to matching processes.
	// Nil means all processes are monitored.
	ProcessFilter *ProcessFilter
}

// New returns an engine over the given registry and taint tracker.
func New(opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		registry:    opts.Registry,
		taint:       opts.Taint,
		metrics:     opts.Metrics,
		log:         log,
		factory:     opts.Factory,
		publisher:   opts.Publisher,
		descriptors: make(map[descKey]*descriptor),
		processes:   make(map[uint64]string),
		procFilter:  opts.ProcessFilter,
	}
}

// OnSourceRead records a read of length bytes from the source at
// sourceIndex and asks the taint tracker to label the read buffer with
// that source's index. Returns the number of bytes actually labeled;
// zero while taint is disabled, which is the expected state before
// enablement, not an error.
func (e *Engine) OnSourceRead(sourceIndex int, addr uint64, length uint32) uint32 {
	src := e.registry.Source(sourceIndex)
	src.TotalReads++
	src.TotalBytes += length

	marked := 0
	if e.taint != nil && e.taint.Enabled() {
		marked = e.taint.Mark(addr, length, uint32(sourceIndex))
	}
	if marked > 0 {
		src.LabeledBytes += uint32(marked)
		e.metrics.AddBytesLabeled(uint64(marked))
	}
	e.log.Debug("source read",
		"source", src.Target().String(), "index", sourceIndex,
		"bytes", length, "labeled", marked)
	return uint32(marked)
}

// OnSinkWrite records a write of length bytes to the sink at sinkIndex
// and attributes every tainted byte in the written buffer back to its
// contributing sources. A byte with merged provenance increments every
// contributing source's attributed count; the per-source sums may
// therefore exceed the sink's tainted byte total. That answers "did
// source X contribute", not "partition the bytes exactly". Returns the
// number of tainted bytes found.
func (e *Engine) OnSinkWrite(sinkIndex int, addr uint64, length uint32) uint32 {
	snk := e.registry.Sink(sinkIndex)
	snk.TotalWrites++
	snk.TotalBytes += length

	if e.taint == nil || !e.taint.Enabled() {
		return 0
	}

	e.metrics.AddBytesQueried(uint64(length))

	// Working memory stays O(distinct labels seen), not O(bytes).
	perSource := make(map[uint32]uint32)
	var tainted uint32
	for _, labels := range e.taint.Query(addr, length) {
		if len(labels) == 0 {
			continue
		}
		tainted++
		for _, label := range labels {
			perSource[label]++
		}
	}
	if tainted == 0 {
		return 0
	}

	snk.TotalTaintBytes += tainted
	if snk.LabeledBytes == nil {
		snk.LabeledBytes = make(map[uint32]uint32)
	}
	for label, n := range perSource {
		snk.LabeledBytes[label] += n
	}
	e.metrics.AddBytesTainted(uint64(tainted))

	e.log.Debug("sink write",
		"sink", snk.Target().String(), "index", sinkIndex,
		"bytes", length, "tainted", tainted, "sources", len(perSource))
	return tainted
}

// TrackedDescriptors returns the number of descriptors currently
// tracked as a source or sink.
func (e *Engine) TrackedDescriptors() int {
	n := 0
	for _, d := range e.descriptors {
		if d.sourceIdx >= 0 || d.sinkIdx >= 0 {
			n++
		}
	}
	return n
}

func (e *Engine) publish(ev types.Event) {
	if e.publisher != nil {
		e.publisher.Publish(ev)
	}
}

func (e *Engine) newEvent(eventType string) types.Event {
	if e.factory != nil {
		return e.factory.New(eventType)
	}
	return types.Event{Type: eventType}
}
