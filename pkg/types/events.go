package types

import "time"

// Attribution event types published on the broker and persisted by the
// event stores.
const (
	EventSourceMatched = "source_matched"
	EventSinkMatched   = "sink_matched"
	EventSourceRead    = "source_read"
	EventSinkWrite     = "sink_write"
	EventTaintEnabled  = "taint_enabled"
	EventUntracked     = "untracked"
)

// Event is one attribution event. Every event is self-contained for
// independent parsing and analysis.
type Event struct {
	ID        string    `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	Seq       int64     `json:"seq,omitempty"`
	PID       int       `json:"pid,omitempty"`
	ASID      uint64    `json:"asid,omitempty"`
	FD        int       `json:"fd,omitempty"`

	// Endpoint identity the event resolved to, when any.
	Target string `json:"target,omitempty"`

	// Index of the matched source or sink in the registry.
	SourceIndex *int `json:"source_index,omitempty"`
	SinkIndex   *int `json:"sink_index,omitempty"`

	// Byte accounting for read/write events.
	Bytes        uint32 `json:"bytes,omitempty"`
	LabeledBytes uint32 `json:"labeled_bytes,omitempty"`
	TaintedBytes uint32 `json:"tainted_bytes,omitempty"`

	Fields map[string]any `json:"fields,omitempty"`
}

// EventQuery selects events from a store.
type EventQuery struct {
	SessionID string
	Types     []string
	Since     *time.Time
	Until     *time.Time

	TargetLike string

	Limit  int
	Offset int
	Asc    bool
}
