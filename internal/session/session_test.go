package session

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deptrack/deptrack/internal/config"
	"github.com/deptrack/deptrack/internal/store/sqlite"
	"github.com/deptrack/deptrack/internal/trace"
	"github.com/deptrack/deptrack/pkg/types"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSession(t *testing.T, yaml string) *Session {
	t.Helper()
	cfg, err := config.LoadFromBytes([]byte(yaml))
	require.NoError(t, err)
	s, err := New(cfg, discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func writeTrace(t *testing.T, events []types.TraceEvent) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.jsonl")
	f, err := os.Create(path)
	require.NoError(t, err)
	enc := json.NewEncoder(f)
	for _, ev := range events {
		require.NoError(t, enc.Encode(ev))
	}
	require.NoError(t, f.Close())
	return path
}

// copyThrough models a process that reads a source file and writes the
// same buffer to a network sink.
func copyThrough(n uint32) []types.TraceEvent {
	return []types.TraceEvent{
		{Seq: 1, Kind: types.TraceSched, ASID: 7, Process: "cp"},
		{Seq: 2, Kind: types.TraceOpen, ASID: 7, PID: 42, FD: 3, Path: "/data/secret.bin"},
		{Seq: 3, Kind: types.TraceRead, ASID: 7, PID: 42, FD: 3, Addr: 0x4000, Length: n},
		{Seq: 4, Kind: types.TraceConnect, ASID: 7, PID: 42, FD: 4, Address: "192.168.1.5", Port: 9000},
		{Seq: 5, Kind: types.TraceWrite, ASID: 7, PID: 42, FD: 4, Addr: 0x4000, Length: n},
		{Seq: 6, Kind: types.TraceClose, ASID: 7, PID: 42, FD: 3},
		{Seq: 7, Kind: types.TraceClose, ASID: 7, PID: 42, FD: 4},
	}
}

const baseConfig = `
targets:
  sources:
    - file: /data/secret.bin
  sinks:
    - network:
        address: 192.168.1.5
        port: 9000
taint:
  enabled: true
`

func TestReplayAttributesFullFlow(t *testing.T) {
	s := newTestSession(t, baseConfig)

	r, err := trace.Open(writeTrace(t, copyThrough(128)))
	require.NoError(t, err)
	defer r.Close()
	require.NoError(t, s.Run(context.Background(), r))

	rep := s.Report()
	require.Len(t, rep.Sources, 1)
	assert.Equal(t, uint32(128), rep.Sources[0].LabeledBytes)
	require.Len(t, rep.Sinks, 1)
	assert.Equal(t, uint32(128), rep.Sinks[0].Sink.TotalTaintBytes)
	require.Len(t, rep.Sinks[0].Contributions, 1)
	assert.Equal(t, 0, rep.Sinks[0].Contributions[0].SourceIndex)
	assert.Equal(t, uint32(128), rep.Sinks[0].Contributions[0].Bytes)

	// Both descriptors were closed at end of trace.
	assert.Equal(t, 0, s.Engine().TrackedDescriptors())
}

func TestDisabledTaintStillCountsTraffic(t *testing.T) {
	s := newTestSession(t, `
targets:
  sources:
    - file: /data/secret.bin
  sinks:
    - network:
        address: 192.168.1.5
        port: 9000
taint:
  enabled: false
`)

	for _, ev := range copyThrough(64) {
		s.HandleEvent(ev)
	}

	stats := s.Registry().SinkStats()
	require.Len(t, stats, 1)
	assert.Equal(t, uint32(1), stats[0].TotalWrites)
	assert.Equal(t, uint32(64), stats[0].TotalBytes)
	assert.Equal(t, uint32(0), stats[0].TotalTaintBytes)
	assert.Empty(t, stats[0].LabeledBytes)
}

func TestEnableAtEventGate(t *testing.T) {
	// The gate opens at event 4, after the source read, so those bytes
	// carry no labels even though the sink write is queried afterwards.
	s := newTestSession(t, baseConfig+"  enable_at_event: 4\n")

	for _, ev := range copyThrough(64) {
		s.HandleEvent(ev)
	}

	sources := s.Registry().SourceStats()
	require.Len(t, sources, 1)
	assert.Equal(t, uint32(64), sources[0].TotalBytes)
	assert.Equal(t, uint32(0), sources[0].LabeledBytes)

	sinks := s.Registry().SinkStats()
	require.Len(t, sinks, 1)
	assert.Equal(t, uint32(0), sinks[0].TotalTaintBytes)
}

func TestEnableAtEventEmitsEvent(t *testing.T) {
	s := newTestSession(t, baseConfig+"  enable_at_event: 2\n")
	ch := s.Broker().Subscribe(s.ID, 64)
	defer s.Broker().Unsubscribe(s.ID, ch)

	for _, ev := range copyThrough(32) {
		s.HandleEvent(ev)
	}

	found := false
	for len(ch) > 0 {
		if ev := <-ch; ev.Type == types.EventTaintEnabled {
			found = true
		}
	}
	assert.True(t, found)
}

func TestInvalidTargetFailsStartup(t *testing.T) {
	cfg := &config.Config{}
	cfg.Targets.Sources = []config.TargetSpec{{File: ""}}
	_, err := New(cfg, discard())
	assert.Error(t, err)
}

func TestProcessFilterSkipsOtherProcesses(t *testing.T) {
	s := newTestSession(t, `
targets:
  sources:
    - file: /data/secret.bin
  sinks:
    - network:
        address: 192.168.1.5
        port: 9000
  processes:
    - "curl"
taint:
  enabled: true
`)
	// copyThrough schedules process "cp", which the filter rejects, so
	// its opens never classify.
	for _, ev := range copyThrough(64) {
		s.HandleEvent(ev)
	}
	assert.Equal(t, uint32(0), s.Registry().SourceStats()[0].TotalBytes)
	assert.Equal(t, 0, s.Engine().TrackedDescriptors())
}

func TestCloseSavesMatrixAndEvents(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "deptrack.db")
	cfg, err := config.LoadFromBytes([]byte(baseConfig + "storage:\n  sqlite_path: " + dbPath + "\n"))
	require.NoError(t, err)
	s, err := New(cfg, discard())
	require.NoError(t, err)

	for _, ev := range copyThrough(64) {
		s.HandleEvent(ev)
	}
	require.NoError(t, s.Close(context.Background()))

	db, err := sqlite.Open(dbPath)
	require.NoError(t, err)
	defer db.Close()

	sessions, err := db.Sessions(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{s.ID}, sessions)

	_, sinks, err := db.LoadMatrix(context.Background(), s.ID)
	require.NoError(t, err)
	require.Len(t, sinks, 1)
	assert.Equal(t, map[uint32]uint32{0: 64}, sinks[0].LabeledBytes)

	evs, err := db.QueryEvents(context.Background(), types.EventQuery{SessionID: s.ID})
	require.NoError(t, err)
	assert.NotEmpty(t, evs)
}
