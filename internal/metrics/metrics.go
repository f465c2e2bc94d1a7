package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Collector provides a minimal Prometheus-compatible metrics exporter
// for the attribution engine.
type Collector struct {
	startedAt time.Time

	eventsTotal atomic.Uint64
	byType      sync.Map // string -> *atomic.Uint64

	bytesLabeled atomic.Uint64
	bytesQueried atomic.Uint64
	bytesTainted atomic.Uint64
	unmatched    atomic.Uint64
}

func New() *Collector {
	return &Collector{startedAt: time.Now().UTC()}
}

func (c *Collector) IncEvent(eventType string) {
	if c == nil {
		return
	}
	c.eventsTotal.Add(1)
	if eventType == "" {
		eventType = "unknown"
	}
	ptr, _ := c.byType.LoadOrStore(eventType, &atomic.Uint64{})
	ptr.(*atomic.Uint64).Add(1)
}

func (c *Collector) AddBytesLabeled(n uint64) {
	if c == nil {
		return
	}
	c.bytesLabeled.Add(n)
}

func (c *Collector) AddBytesQueried(n uint64) {
	if c == nil {
		return
	}
	c.bytesQueried.Add(n)
}

func (c *Collector) AddBytesTainted(n uint64) {
	if c == nil {
		return
	}
	c.bytesTainted.Add(n)
}

func (c *Collector) IncUnmatched() {
	if c == nil {
		return
	}
	c.unmatched.Add(1)
}

type HandlerOptions struct {
	TrackedDescriptors func() int
	DroppedEvents      func() int64
}

func (c *Collector) Handler(opts HandlerOptions) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		fmt.Fprint(w, "# HELP deptrack_up Whether the deptrack session is running.\n")
		fmt.Fprint(w, "# TYPE deptrack_up gauge\n")
		fmt.Fprint(w, "deptrack_up 1\n")

		fmt.Fprint(w, "# HELP deptrack_events_total Total trace events processed.\n")
		fmt.Fprint(w, "# TYPE deptrack_events_total counter\n")
		fmt.Fprintf(w, "deptrack_events_total %d\n", c.eventsTotal.Load())

		fmt.Fprint(w, "# HELP deptrack_bytes_labeled_total Source bytes marked with provenance labels.\n")
		fmt.Fprint(w, "# TYPE deptrack_bytes_labeled_total counter\n")
		fmt.Fprintf(w, "deptrack_bytes_labeled_total %d\n", c.bytesLabeled.Load())

		fmt.Fprint(w, "# HELP deptrack_bytes_queried_total Sink bytes queried for taint.\n")
		fmt.Fprint(w, "# TYPE deptrack_bytes_queried_total counter\n")
		fmt.Fprintf(w, "deptrack_bytes_queried_total %d\n", c.bytesQueried.Load())

		fmt.Fprint(w, "# HELP deptrack_bytes_tainted_total Sink bytes found tainted.\n")
		fmt.Fprint(w, "# TYPE deptrack_bytes_tainted_total counter\n")
		fmt.Fprintf(w, "deptrack_bytes_tainted_total %d\n", c.bytesTainted.Load())

		fmt.Fprint(w, "# HELP deptrack_unmatched_events_total Events whose identity matched no registered target.\n")
		fmt.Fprint(w, "# TYPE deptrack_unmatched_events_total counter\n")
		fmt.Fprintf(w, "deptrack_unmatched_events_total %d\n", c.unmatched.Load())

		types := snapshotKeys(&c.byType)
		if len(types) > 0 {
			fmt.Fprint(w, "# HELP deptrack_events_by_type_total Total trace events by kind.\n")
			fmt.Fprint(w, "# TYPE deptrack_events_by_type_total counter\n")
			for _, t := range types {
				ptr, _ := c.byType.Load(t)
				n := uint64(0)
				if ptr != nil {
					n = ptr.(*atomic.Uint64).Load()
				}
				fmt.Fprintf(w, "deptrack_events_by_type_total{kind=%q} %d\n", escapeLabelValue(t), n)
			}
		}

		if opts.TrackedDescriptors != nil {
			fmt.Fprint(w, "# HELP deptrack_tracked_descriptors Currently tracked descriptors.\n")
			fmt.Fprint(w, "# TYPE deptrack_tracked_descriptors gauge\n")
			fmt.Fprintf(w, "deptrack_tracked_descriptors %d\n", opts.TrackedDescriptors())
		}

		if opts.DroppedEvents != nil {
			fmt.Fprint(w, "# HELP deptrack_dropped_events_total Events dropped on slow live subscribers.\n")
			fmt.Fprint(w, "# TYPE deptrack_dropped_events_total counter\n")
			fmt.Fprintf(w, "deptrack_dropped_events_total %d\n", opts.DroppedEvents())
		}
	})
}

func snapshotKeys(m *sync.Map) []string {
	var out []string
	m.Range(func(k, _ any) bool {
		if s, ok := k.(string); ok {
			out = append(out, s)
		}
		return true
	})
	sort.Strings(out)
	return out
}

func escapeLabelValue(v string) string {
	// Prometheus text format label escaping for " and \ and newlines.
	v = strings.ReplaceAll(v, "\\", "\\\\")
	v = strings.ReplaceAll(v, "\n", "\\n")
	v = strings.ReplaceAll(v, "\"", "\\\"")
	return v
}
