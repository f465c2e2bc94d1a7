// Package trace reads recorded syscall traces produced by the
// instrumentation layer: one JSON event per line, in retirement order.
package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/deptrack/deptrack/pkg/types"
)

// Reader streams trace events from a JSONL stream. Events are returned
// in file order, which the instrumentation layer guarantees to be
// program order per address space.
type Reader struct {
	scanner *bufio.Scanner
	closer  io.Closer
	line    int
}

// Open opens a trace file, or stdin when path is "-".
func Open(path string) (*Reader, error) {
	if path == "-" {
		return NewReader(io.NopCloser(os.Stdin)), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace: %w", err)
	}
	return NewReader(f), nil
}

// NewReader wraps an arbitrary JSONL stream.
func NewReader(rc io.ReadCloser) *Reader {
	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &Reader{scanner: sc, closer: rc}
}

// Next returns the next event, or io.EOF at end of trace. Blank lines
// are skipped; malformed lines and unknown kinds are errors since they
// indicate a corrupt or incompatible trace.
func (r *Reader) Next() (types.TraceEvent, error) {
	for r.scanner.Scan() {
		r.line++
		line := r.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev types.TraceEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return types.TraceEvent{}, fmt.Errorf("trace line %d: %w", r.line, err)
		}
		if err := validate(ev); err != nil {
			return types.TraceEvent{}, fmt.Errorf("trace line %d: %w", r.line, err)
		}
		return ev, nil
	}
	if err := r.scanner.Err(); err != nil {
		return types.TraceEvent{}, fmt.Errorf("read trace: %w", err)
	}
	return types.TraceEvent{}, io.EOF
}

// Close closes the underlying stream.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

func validate(ev types.TraceEvent) error {
	switch ev.Kind {
	case types.TraceOpen, types.TraceConnect, types.TraceRead, types.TracePRead,
		types.TraceWrite, types.TracePWrite, types.TraceClose, types.TraceSched:
	default:
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	return nil
}
