package types

import "fmt"

// TargetKind discriminates the concrete variant of a Target.
type TargetKind string

const (
	TargetFile    TargetKind = "file"
	TargetNetwork TargetKind = "network"
)

// Target identifies a trackable I/O endpoint: a file path, or a network
// address and port. The zero value is an invalid target of no kind.
// Targets are immutable values; an endpoint's identity never changes
// after construction.
type Target struct {
	Kind TargetKind `json:"kind" yaml:"kind"`

	// File variant.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// Network variant.
	Address string `json:"address,omitempty" yaml:"address,omitempty"`
	Port    uint16 `json:"port,omitempty" yaml:"port,omitempty"`
}

// FileTarget returns a file endpoint for the given path.
func FileTarget(path string) Target {
	return Target{Kind: TargetFile, Path: path}
}

// NetworkTarget returns a network endpoint for the given address and port.
func NetworkTarget(address string, port uint16) Target {
	return Target{Kind: TargetNetwork, Address: address, Port: port}
}

// String renders the canonical display form: the path for files,
// "address::port" for network endpoints.
func (t Target) String() string {
	switch t.Kind {
	case TargetFile:
		return t.Path
	case TargetNetwork:
		return fmt.Sprintf("%s::%d", t.Address, t.Port)
	default:
		return ""
	}
}

// Valid reports whether the target has a non-empty identifying field.
// A file target is valid iff its path is non-empty; a network target is
// valid iff its address is non-empty.
func (t Target) Valid() bool {
	switch t.Kind {
	case TargetFile:
		return t.Path != ""
	case TargetNetwork:
		return t.Address != ""
	default:
		return false
	}
}

// Equal reports whether two targets denote the same endpoint. Targets of
// differing kinds are never equal; within a kind the identifying fields
// must match exactly (case-sensitive, no path or address normalization).
func (t Target) Equal(other Target) bool {
	if t.Kind != other.Kind {
		return false
	}
	switch t.Kind {
	case TargetFile:
		return t.Path == other.Path
	case TargetNetwork:
		return t.Address == other.Address && t.Port == other.Port
	default:
		return true
	}
}
