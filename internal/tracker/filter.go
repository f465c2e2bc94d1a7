package tracker

import (
	"fmt"

	"github.com/gobwas/glob"
)

// ProcessFilter gates event classification on the name of the process
// currently scheduled in the event's address space. Patterns are globs;
// an event whose process matches no pattern is ignored before any
// registry matching happens. Target equality itself is always exact.
type ProcessFilter struct {
	patterns []glob.Glob
	raw      []string
}

// NewProcessFilter compiles the given glob patterns. An empty pattern
// list yields a nil filter, meaning all processes are monitored.
func NewProcessFilter(patterns []string) (*ProcessFilter, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	f := &ProcessFilter{raw: patterns}
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid process pattern %q: %w", p, err)
		}
		f.patterns = append(f.patterns, g)
	}
	return f, nil
}

// Match reports whether the process name matches any pattern. An empty
// name (no sched event seen yet for the address space) never matches.
func (f *ProcessFilter) Match(name string) bool {
	if f == nil {
		return true
	}
	if name == "" {
		return false
	}
	for _, g := range f.patterns {
		if g.Match(name) {
			return true
		}
	}
	return false
}
