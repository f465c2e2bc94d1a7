package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deptrack/deptrack/pkg/types"
)

func TestAppendWritesOneLinePerEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	s, err := New(path, 10, 2)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.AppendEvent(ctx, types.Event{ID: "a", SessionID: "s1", Type: types.EventSourceRead, Bytes: 100}))
	require.NoError(t, s.AppendEvent(ctx, types.Event{ID: "b", SessionID: "s1", Type: types.EventSinkWrite, Bytes: 50}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var events []types.Event
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var ev types.Event
		require.NoError(t, json.Unmarshal(sc.Bytes(), &ev))
		events = append(events, ev)
	}
	require.NoError(t, sc.Err())

	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].ID)
	assert.Equal(t, uint32(50), events[1].Bytes)
}

func TestQueryUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	s, err := New(path, 10, 2)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.QueryEvents(context.Background(), types.EventQuery{})
	assert.Error(t, err)
}

func TestEmptyPathRejected(t *testing.T) {
	_, err := New("", 10, 2)
	assert.Error(t, err)
}

func TestRotationKeepsBackups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.jsonl")
	s, err := New(path, 1, 2)
	require.NoError(t, err)
	defer s.Close()

	// Push the file past 1MB so the next append rotates.
	big := make([]byte, 1024)
	for i := range big {
		big[i] = 'x'
	}
	ctx := context.Background()
	ev := types.Event{ID: "big", SessionID: "s1", Type: types.EventSourceRead, Fields: map[string]any{"pad": string(big)}}
	for i := 0; i < 1100; i++ {
		require.NoError(t, s.AppendEvent(ctx, ev))
	}

	_, err = os.Stat(path + ".1")
	assert.NoError(t, err, "expected rotated backup")
}
