package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deptrack/deptrack/internal/target"
	"github.com/deptrack/deptrack/internal/taint"
	"github.com/deptrack/deptrack/pkg/types"
)

func open(fd int, path string) types.TraceEvent {
	return types.TraceEvent{Kind: types.TraceOpen, ASID: 1, PID: 100, FD: fd, Path: path}
}

func read(fd int, addr uint64, length uint32) types.TraceEvent {
	return types.TraceEvent{Kind: types.TraceRead, ASID: 1, PID: 100, FD: fd, Addr: addr, Length: length}
}

func write(fd int, addr uint64, length uint32) types.TraceEvent {
	return types.TraceEvent{Kind: types.TraceWrite, ASID: 1, PID: 100, FD: fd, Addr: addr, Length: length}
}

func closeFD(fd int) types.TraceEvent {
	return types.TraceEvent{Kind: types.TraceClose, ASID: 1, PID: 100, FD: fd}
}

func TestClassifyTracksMatchedDescriptors(t *testing.T) {
	eng, reg, shadow := newTestEngine(t,
		[]types.Target{types.FileTarget("/tmp/in")},
		[]types.Target{types.FileTarget("/tmp/out")},
	)
	shadow.Enable()

	eng.HandleEvent(open(3, "/tmp/in"))
	eng.HandleEvent(read(3, 0x1000, 100))
	eng.HandleEvent(open(4, "/tmp/out"))
	eng.HandleEvent(write(4, 0x1000, 100))

	assert.Equal(t, uint32(100), reg.Source(0).LabeledBytes)
	assert.Equal(t, map[uint32]uint32{0: 100}, reg.Sink(0).LabeledBytes)
	assert.Equal(t, 2, eng.TrackedDescriptors())
}

func TestUnmatchedDescriptorTouchesNothing(t *testing.T) {
	eng, reg, shadow := newTestEngine(t,
		[]types.Target{types.FileTarget("/tmp/in")},
		[]types.Target{types.FileTarget("/tmp/out")},
	)
	shadow.Enable()

	eng.HandleEvent(open(3, "/etc/passwd"))
	eng.HandleEvent(read(3, 0x1000, 100))
	eng.HandleEvent(write(3, 0x1000, 100))

	assert.Equal(t, uint32(0), reg.Source(0).TotalReads)
	assert.Equal(t, uint32(0), reg.Source(0).TotalBytes)
	assert.Equal(t, uint32(0), reg.Sink(0).TotalWrites)
	assert.Equal(t, uint32(0), reg.Sink(0).TotalBytes)
}

func TestEventWithoutOpenIsIgnored(t *testing.T) {
	eng, reg, shadow := newTestEngine(t,
		[]types.Target{types.FileTarget("/tmp/in")},
		nil,
	)
	shadow.Enable()

	eng.HandleEvent(read(3, 0x1000, 100))
	assert.Equal(t, uint32(0), reg.Source(0).TotalReads)
}

func TestDescriptorReuseIsReclassified(t *testing.T) {
	eng, reg, shadow := newTestEngine(t,
		[]types.Target{types.FileTarget("/tmp/in")},
		nil,
	)
	shadow.Enable()

	// Same descriptor number, different identity after close+reopen.
	eng.HandleEvent(open(3, "/tmp/in"))
	eng.HandleEvent(read(3, 0x1000, 10))
	eng.HandleEvent(closeFD(3))
	eng.HandleEvent(open(3, "/tmp/unrelated"))
	eng.HandleEvent(read(3, 0x2000, 10))

	src := reg.Source(0)
	assert.Equal(t, uint32(1), src.TotalReads)
	assert.Equal(t, uint32(10), src.TotalBytes)
}

func TestDescriptorTrackedAsSourceAndSink(t *testing.T) {
	eng, reg, shadow := newTestEngine(t,
		[]types.Target{types.FileTarget("/tmp/log")},
		[]types.Target{types.FileTarget("/tmp/log")},
	)
	shadow.Enable()

	eng.HandleEvent(open(3, "/tmp/log"))
	eng.HandleEvent(read(3, 0x1000, 20))
	eng.HandleEvent(write(3, 0x1000, 20))

	assert.Equal(t, uint32(20), reg.Source(0).TotalBytes)
	assert.Equal(t, uint32(20), reg.Sink(0).TotalBytes)
	assert.Equal(t, map[uint32]uint32{0: 20}, reg.Sink(0).LabeledBytes)
	assert.Equal(t, 1, eng.TrackedDescriptors())
}

func TestNetworkTargetClassification(t *testing.T) {
	eng, reg, shadow := newTestEngine(t,
		nil,
		[]types.Target{types.NetworkTarget("10.0.0.1", 443)},
	)
	shadow.Enable()

	eng.HandleEvent(types.TraceEvent{Kind: types.TraceConnect, ASID: 1, PID: 100, FD: 5, Address: "10.0.0.1", Port: 443})
	eng.HandleEvent(write(5, 0x1000, 64))

	assert.Equal(t, uint32(1), reg.Sink(0).TotalWrites)
	assert.Equal(t, uint32(64), reg.Sink(0).TotalBytes)
}

func TestPositionalVariantsDispatch(t *testing.T) {
	eng, reg, shadow := newTestEngine(t,
		[]types.Target{types.FileTarget("/tmp/in")},
		[]types.Target{types.FileTarget("/tmp/out")},
	)
	shadow.Enable()

	eng.HandleEvent(open(3, "/tmp/in"))
	eng.HandleEvent(types.TraceEvent{Kind: types.TracePRead, ASID: 1, PID: 100, FD: 3, Addr: 0x1000, Length: 50, Pos: 1024})
	eng.HandleEvent(open(4, "/tmp/out"))
	eng.HandleEvent(types.TraceEvent{Kind: types.TracePWrite, ASID: 1, PID: 100, FD: 4, Addr: 0x1000, Length: 50, Pos: 0})

	assert.Equal(t, uint32(50), reg.Source(0).TotalBytes)
	assert.Equal(t, map[uint32]uint32{0: 50}, reg.Sink(0).LabeledBytes)
}

func TestProcessFilterGatesClassification(t *testing.T) {
	reg := target.NewRegistry()
	_, err := reg.AddSource(types.FileTarget("/tmp/in"))
	require.NoError(t, err)

	filter, err := NewProcessFilter([]string{"curl*"})
	require.NoError(t, err)

	shadow := taint.NewShadowMap()
	shadow.Enable()
	eng := New(Options{Registry: reg, Taint: shadow, ProcessFilter: filter})

	// No sched event yet: the address space has no known process and
	// classification is suppressed.
	eng.HandleEvent(open(3, "/tmp/in"))
	eng.HandleEvent(read(3, 0x1000, 10))
	assert.Equal(t, uint32(0), reg.Source(0).TotalReads)

	eng.HandleEvent(types.TraceEvent{Kind: types.TraceSched, ASID: 1, Process: "curl"})
	eng.HandleEvent(open(3, "/tmp/in"))
	eng.HandleEvent(read(3, 0x1000, 10))
	assert.Equal(t, uint32(1), reg.Source(0).TotalReads)
}

func TestProcessFilterPatterns(t *testing.T) {
	filter, err := NewProcessFilter([]string{"curl*", "wget"})
	require.NoError(t, err)

	assert.True(t, filter.Match("curl"))
	assert.True(t, filter.Match("curl-7.88"))
	assert.True(t, filter.Match("wget"))
	assert.False(t, filter.Match("bash"))
	assert.False(t, filter.Match(""))

	// Nil filter admits everything.
	var none *ProcessFilter
	assert.True(t, none.Match("anything"))

	_, err = NewProcessFilter([]string{"[bad"})
	assert.Error(t, err)

	empty, err := NewProcessFilter(nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

type capturePublisher struct {
	events []types.Event
}

func (c *capturePublisher) Publish(ev types.Event) { c.events = append(c.events, ev) }

func TestClassifyPublishesAttributionEvents(t *testing.T) {
	reg := target.NewRegistry()
	_, err := reg.AddSource(types.FileTarget("/tmp/in"))
	require.NoError(t, err)
	_, err = reg.AddSink(types.FileTarget("/tmp/out"))
	require.NoError(t, err)

	shadow := taint.NewShadowMap()
	shadow.Enable()
	pub := &capturePublisher{}
	eng := New(Options{Registry: reg, Taint: shadow, Publisher: pub})

	eng.HandleEvent(open(3, "/tmp/in"))
	eng.HandleEvent(read(3, 0x1000, 10))
	eng.HandleEvent(open(4, "/tmp/out"))
	eng.HandleEvent(write(4, 0x1000, 10))
	eng.HandleEvent(open(5, "/etc/hosts"))

	var kinds []string
	for _, ev := range pub.events {
		kinds = append(kinds, ev.Type)
	}
	assert.Equal(t, []string{
		types.EventSourceMatched,
		types.EventSourceRead,
		types.EventSinkMatched,
		types.EventSinkWrite,
		types.EventUntracked,
	}, kinds)

	sinkWrite := pub.events[3]
	assert.Equal(t, "/tmp/out", sinkWrite.Target)
	assert.Equal(t, uint32(10), sinkWrite.Bytes)
	assert.Equal(t, uint32(10), sinkWrite.TaintedBytes)
	require.NotNil(t, sinkWrite.SinkIndex)
	assert.Equal(t, 0, *sinkWrite.SinkIndex)

	untracked := pub.events[4]
	assert.Equal(t, "/etc/hosts", untracked.Target)
	assert.Nil(t, untracked.SourceIndex)
	assert.Nil(t, untracked.SinkIndex)
}
