// Package report renders the dependency result the whole system exists
// to produce: per sink, the breakdown of which sources contributed how
// many attributed bytes.
package report

import (
	"sort"
	"time"

	"github.com/deptrack/deptrack/pkg/types"
)

// Report is the final attribution result for one session.
type Report struct {
	SessionID   string    `json:"session_id"`
	GeneratedAt time.Time `json:"generated_at"`

	Sources []types.SourceStats `json:"sources"`
	Sinks   []SinkBreakdown     `json:"sinks"`
}

// SinkBreakdown is one sink's aggregate totals plus its per-source
// attribution, resolved to source identity strings.
type SinkBreakdown struct {
	Sink types.SinkStats `json:"sink"`

	// Contributions lists every source with non-zero attribution,
	// ordered by attributed bytes descending then source index.
	Contributions []Contribution `json:"contributions,omitempty"`
}

// Contribution is one (source, sink) attribution entry.
type Contribution struct {
	SourceIndex int          `json:"source_index"`
	Source      types.Target `json:"source"`
	Bytes       uint32       `json:"bytes"`
}

// Build assembles a report from registry snapshots. Sources outside the
// snapshot range (a label persisted from a corrupt run) are skipped.
func Build(sessionID string, sources []types.SourceStats, sinks []types.SinkStats) *Report {
	r := &Report{
		SessionID:   sessionID,
		GeneratedAt: time.Now().UTC(),
		Sources:     sources,
	}
	for _, snk := range sinks {
		bd := SinkBreakdown{Sink: snk}
		for srcIdx, bytes := range snk.LabeledBytes {
			if bytes == 0 {
				continue
			}
			c := Contribution{SourceIndex: int(srcIdx), Bytes: bytes}
			if int(srcIdx) < len(sources) {
				c.Source = sources[srcIdx].Target
			}
			bd.Contributions = append(bd.Contributions, c)
		}
		sort.Slice(bd.Contributions, func(i, j int) bool {
			a, b := bd.Contributions[i], bd.Contributions[j]
			if a.Bytes != b.Bytes {
				return a.Bytes > b.Bytes
			}
			return a.SourceIndex < b.SourceIndex
		})
		r.Sinks = append(r.Sinks, bd)
	}
	return r
}
