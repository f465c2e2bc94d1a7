package types

// SourceStats is a read-only snapshot of a registered source's counters.
type SourceStats struct {
	Index        int    `json:"index"`
	Target       Target `json:"target"`
	TotalReads   uint32 `json:"total_reads"`
	TotalBytes   uint32 `json:"total_bytes"`
	LabeledBytes uint32 `json:"labeled_bytes"`
}

// SinkStats is a read-only snapshot of a registered sink's counters and
// its per-source attribution map.
type SinkStats struct {
	Index           int    `json:"index"`
	Target          Target `json:"target"`
	TotalWrites     uint32 `json:"total_writes"`
	TotalBytes      uint32 `json:"total_bytes"`
	TotalTaintBytes uint32 `json:"total_taint_bytes"`

	// LabeledBytes maps a source index to the cumulative number of bytes
	// written to this sink that carry that source's provenance. With
	// merged provenance a single byte may be attributed to more than one
	// source, so the values may sum to more than TotalTaintBytes.
	LabeledBytes map[uint32]uint32 `json:"labeled_bytes,omitempty"`
}
