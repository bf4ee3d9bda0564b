package capability

import (
	"github.com/hupe1980/crewmesh/core"
	"github.com/hupe1980/crewmesh/logging"
)

// Set is an ordered collection of capabilities with name-based dispatch. Each
// Set carries its own private session holders, so one Set belongs to exactly
// one task run.
type Set struct {
	ordered []*Capability
	byName  map[string]*Capability
}

// NewSet materializes live capabilities from descriptors. Descriptor order is
// preserved for planner presentation.
func NewSet(descriptors []Descriptor, transport core.Transport, retry RetryPolicy, logger logging.Logger) *Set {
	s := &Set{byName: make(map[string]*Capability, len(descriptors))}
	for _, d := range descriptors {
		c := New(d, transport, retry, logger)
		s.ordered = append(s.ordered, c)
		s.byName[d.FuncName] = c
	}
	return s
}

// Get returns the capability registered under name.
func (s *Set) Get(name string) (*Capability, bool) {
	c, ok := s.byName[name]
	return c, ok
}

// All returns the capabilities in presentation order.
func (s *Set) All() []*Capability { return s.ordered }

// Infos returns the planner-facing descriptions in presentation order.
func (s *Set) Infos() []core.CapabilityInfo {
	infos := make([]core.CapabilityInfo, len(s.ordered))
	for i, c := range s.ordered {
		infos[i] = c.Descriptor().Info()
	}
	return infos
}

// Len reports the number of bound capabilities.
func (s *Set) Len() int { return len(s.ordered) }
