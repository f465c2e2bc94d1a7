package report

import (
	"fmt"
	"strings"
)

// FormatMarkdown renders a report as markdown.
func FormatMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Dependency Report: %s\n", r.SessionID))
	sb.WriteString(fmt.Sprintf("**Generated:** %s\n\n", r.GeneratedAt.Format("2006-01-02 15:04:05 UTC")))

	sb.WriteString("## Sources\n")
	if len(r.Sources) == 0 {
		sb.WriteString("No sources registered.\n\n")
	} else {
		sb.WriteString("| # | Source | Reads | Bytes | Labeled |\n")
		sb.WriteString("|---|--------|-------|-------|--------|\n")
		for _, src := range r.Sources {
			sb.WriteString(fmt.Sprintf("| %d | %s | %d | %d | %d |\n",
				src.Index, src.Target.String(), src.TotalReads, src.TotalBytes, src.LabeledBytes))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Sinks\n")
	if len(r.Sinks) == 0 {
		sb.WriteString("No sinks registered.\n")
	}
	for _, bd := range r.Sinks {
		snk := bd.Sink
		sb.WriteString(fmt.Sprintf("### %s\n", snk.Target.String()))
		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Writes | %d |\n", snk.TotalWrites))
		sb.WriteString(fmt.Sprintf("| Bytes written | %d |\n", snk.TotalBytes))
		sb.WriteString(fmt.Sprintf("| Tainted bytes | %d |\n", snk.TotalTaintBytes))
		sb.WriteString("\n")

		if len(bd.Contributions) == 0 {
			sb.WriteString("No attributed sources.\n\n")
			continue
		}
		sb.WriteString("| Source | Attributed bytes |\n")
		sb.WriteString("|--------|------------------|\n")
		for _, c := range bd.Contributions {
			name := c.Source.String()
			if name == "" {
				name = fmt.Sprintf("source #%d", c.SourceIndex)
			}
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", name, c.Bytes))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// FormatText renders a report as plain text for terminal output and the
// end-of-run summary log.
func FormatText(r *Report) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("dependency report for session %s\n", r.SessionID))
	for _, src := range r.Sources {
		sb.WriteString(fmt.Sprintf("source %d %q: reads=%d bytes=%d labeled=%d\n",
			src.Index, src.Target.String(), src.TotalReads, src.TotalBytes, src.LabeledBytes))
	}
	for _, bd := range r.Sinks {
		snk := bd.Sink
		sb.WriteString(fmt.Sprintf("sink %d %q: writes=%d bytes=%d tainted=%d\n",
			snk.Index, snk.Target.String(), snk.TotalWrites, snk.TotalBytes, snk.TotalTaintBytes))
		for _, c := range bd.Contributions {
			name := c.Source.String()
			if name == "" {
				name = fmt.Sprintf("source #%d", c.SourceIndex)
			}
			sb.WriteString(fmt.Sprintf("  %s -> %d bytes\n", name, c.Bytes))
		}
	}
	return sb.String()
}
