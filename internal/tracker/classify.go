package tracker

import (
	"github.com/deptrack/deptrack/pkg/types"
)

// descKey identifies a descriptor within one address space.
type descKey struct {
	asid uint64
	pid  int
	fd   int
}

// descriptor records the classification a descriptor received when it
// was opened. An index of -1 means untracked for that role. A
// descriptor may be tracked as source and sink simultaneously when the
// same identity is registered in both lists.
type descriptor struct {
	identity  types.Target
	sourceIdx int
	sinkIdx   int
}

func (d *descriptor) tracked() bool { return d.sourceIdx >= 0 || d.sinkIdx >= 0 }

// HandleEvent dispatches one trace event through the classification
// state machine. Open-kind events resolve an identity and match it
// against the registry; read and write events on tracked descriptors
// drive the attribution paths; everything else is a no-op for the core.
func (e *Engine) HandleEvent(ev types.TraceEvent) {
	e.metrics.IncEvent(string(ev.Kind))

	switch ev.Kind {
	case types.TraceSched:
		e.processes[ev.ASID] = ev.Process
	case types.TraceOpen, types.TraceConnect:
		e.handleOpen(ev)
	case types.TraceRead, types.TracePRead:
		e.handleRead(ev)
	case types.TraceWrite, types.TracePWrite:
		e.handleWrite(ev)
	case types.TraceClose:
		delete(e.descriptors, descKey{asid: ev.ASID, pid: ev.PID, fd: ev.FD})
	}
}

// handleOpen classifies the descriptor against the registry. Identity
// is resolved fresh on every open, so a descriptor reused after close
// with a different path is re-classified rather than inheriting its
// previous match.
func (e *Engine) handleOpen(ev types.TraceEvent) {
	if !e.processAllowed(ev.ASID) {
		return
	}
	identity := ev.Identity()
	if !identity.Valid() {
		// Unresolvable identity: treat as unmatched, touch nothing.
		return
	}

	key := descKey{asid: ev.ASID, pid: ev.PID, fd: ev.FD}
	d := &descriptor{
		identity:  identity,
		sourceIdx: e.registry.MatchSource(identity),
		sinkIdx:   e.registry.MatchSink(identity),
	}
	e.descriptors[key] = d

	if !d.tracked() {
		e.metrics.IncUnmatched()
		out := e.newEvent(types.EventUntracked)
		out.ASID, out.PID, out.FD = ev.ASID, ev.PID, ev.FD
		out.Target = identity.String()
		e.publish(out)
		return
	}
	if d.sourceIdx >= 0 {
		out := e.newEvent(types.EventSourceMatched)
		out.ASID, out.PID, out.FD = ev.ASID, ev.PID, ev.FD
		out.Target = identity.String()
		idx := d.sourceIdx
		out.SourceIndex = &idx
		e.publish(out)
	}
	if d.sinkIdx >= 0 {
		out := e.newEvent(types.EventSinkMatched)
		out.ASID, out.PID, out.FD = ev.ASID, ev.PID, ev.FD
		out.Target = identity.String()
		idx := d.sinkIdx
		out.SinkIndex = &idx
		e.publish(out)
	}
}

func (e *Engine) handleRead(ev types.TraceEvent) {
	d, ok := e.descriptors[descKey{asid: ev.ASID, pid: ev.PID, fd: ev.FD}]
	if !ok || d.sourceIdx < 0 {
		return
	}
	labeled := e.OnSourceRead(d.sourceIdx, ev.Addr, ev.Length)

	out := e.newEvent(types.EventSourceRead)
	out.ASID, out.PID, out.FD = ev.ASID, ev.PID, ev.FD
	out.Target = d.identity.String()
	idx := d.sourceIdx
	out.SourceIndex = &idx
	out.Bytes = ev.Length
	out.LabeledBytes = labeled
	e.publish(out)
}

func (e *Engine) handleWrite(ev types.TraceEvent) {
	d, ok := e.descriptors[descKey{asid: ev.ASID, pid: ev.PID, fd: ev.FD}]
	if !ok || d.sinkIdx < 0 {
		return
	}
	tainted := e.OnSinkWrite(d.sinkIdx, ev.Addr, ev.Length)

	out := e.newEvent(types.EventSinkWrite)
	out.ASID, out.PID, out.FD = ev.ASID, ev.PID, ev.FD
	out.Target = d.identity.String()
	idx := d.sinkIdx
	out.SinkIndex = &idx
	out.Bytes = ev.Length
	out.TaintedBytes = tainted
	e.publish(out)
}

// processAllowed applies the configured process-name filter against the
// process most recently scheduled in the event's address space.
func (e *Engine) processAllowed(asid uint64) bool {
	if e.procFilter == nil {
		return true
	}
	return e.procFilter.Match(e.processes[asid])
}
