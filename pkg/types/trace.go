package types

// TraceEventKind identifies a recorded syscall event.
type TraceEventKind string

const (
	TraceOpen    TraceEventKind = "open"
	TraceConnect TraceEventKind = "connect"
	TraceRead    TraceEventKind = "read"
	TracePRead   TraceEventKind = "pread"
	TraceWrite   TraceEventKind = "write"
	TracePWrite  TraceEventKind = "pwrite"
	TraceClose   TraceEventKind = "close"
	TraceSched   TraceEventKind = "sched"
)

// TraceEvent is one monitored syscall delivered by the instrumentation
// layer, replayed from a recorded trace. Field presence depends on Kind:
// open carries Path, connect carries Address/Port, read/write variants
// carry Addr/Length (the guest buffer), sched carries Process.
type TraceEvent struct {
	Seq    int64          `json:"seq"`
	Kind   TraceEventKind `json:"kind"`
	ASID   uint64         `json:"asid"`
	PID    int            `json:"pid,omitempty"`
	FD     int            `json:"fd,omitempty"`
	Path   string         `json:"path,omitempty"`
	Address string        `json:"address,omitempty"`
	Port   uint16         `json:"port,omitempty"`
	Addr   uint64         `json:"addr,omitempty"`
	Length uint32         `json:"length,omitempty"`

	// Process is the name of the process observed on a sched event.
	Process string `json:"process,omitempty"`

	// Pos is the file offset for positional read/write variants.
	Pos uint64 `json:"pos,omitempty"`
}

// Identity returns the endpoint identity an open-kind event resolves to,
// or an invalid target when the event carries none.
func (ev TraceEvent) Identity() Target {
	switch ev.Kind {
	case TraceOpen:
		return FileTarget(ev.Path)
	case TraceConnect:
		return NetworkTarget(ev.Address, ev.Port)
	default:
		return Target{}
	}
}
