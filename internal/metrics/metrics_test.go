package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerExportsCountersAndEscapes(t *testing.T) {
	c := New()
	c.IncEvent("read")
	c.IncEvent("read")
	c.IncEvent("bad\n\"kind\"")
	c.AddBytesLabeled(100)
	c.AddBytesQueried(50)
	c.AddBytesTainted(25)
	c.IncUnmatched()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	c.Handler(HandlerOptions{
		TrackedDescriptors: func() int { return 4 },
		DroppedEvents:      func() int64 { return 7 },
	}).ServeHTTP(rec, req)

	body := rec.Body.String()
	assertContains := func(substr string) {
		t.Helper()
		if !strings.Contains(body, substr) {
			t.Fatalf("metrics output missing %q. Got:\n%s", substr, body)
		}
	}

	assertContains("deptrack_up 1")
	assertContains("deptrack_events_total 3")
	assertContains("deptrack_bytes_labeled_total 100")
	assertContains("deptrack_bytes_queried_total 50")
	assertContains("deptrack_bytes_tainted_total 25")
	assertContains("deptrack_unmatched_events_total 1")
	assertContains(`deptrack_events_by_type_total{kind="read"} 2`)
	assertContains(`deptrack_events_by_type_total{kind="bad\\n\\\"kind\\\""} 1`)
	assertContains("deptrack_tracked_descriptors 4")
	assertContains("deptrack_dropped_events_total 7")
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.IncEvent("read")
	c.AddBytesLabeled(1)
	c.AddBytesQueried(1)
	c.AddBytesTainted(1)
	c.IncUnmatched()
}
