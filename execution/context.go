// Package execution builds and memoizes execution contexts: the versioned
// capability bundles task runs plan against.
//
// A Context is immutable after construction and valid for exactly one crew
// membership version. The Cache keeps at most one Context per crew, rebuilds
// lazily when the stored version no longer matches the crew's current
// membership version, and serializes per-crew so concurrent misses collapse
// into a single rebuild.
package execution

import (
	"time"

	"github.com/hupe1980/crewmesh/capability"
	"github.com/hupe1980/crewmesh/core"
	"github.com/hupe1980/crewmesh/logging"
)

// Context is the memoized capability bundle for one crew at one membership
// version. It stores only immutable descriptors; live capabilities with their
// mutable session holders are materialized per run via NewSet, which keeps
// concurrent runs against the same cached context session-isolated.
type Context struct {
	crewID      string
	crewName    string
	version     uint64
	descriptors []capability.Descriptor
	built       time.Time
}

// NewContext constructs a context from bound descriptors.
func NewContext(crewID, crewName string, version uint64, descriptors []capability.Descriptor) *Context {
	return &Context{
		crewID:      crewID,
		crewName:    crewName,
		version:     version,
		descriptors: descriptors,
		built:       time.Now().UTC(),
	}
}

// CrewID returns the owning crew's identity.
func (c *Context) CrewID() string { return c.crewID }

// CrewName returns the crew's display name for planner prompts.
func (c *Context) CrewName() string { return c.crewName }

// Version returns the crew membership version this context was built at.
func (c *Context) Version() uint64 { return c.version }

// Built returns the construction timestamp.
func (c *Context) Built() time.Time { return c.built }

// Descriptors returns the ordered capability descriptors. Callers must treat
// the slice as read-only.
func (c *Context) Descriptors() []capability.Descriptor { return c.descriptors }

// Infos returns the planner-facing capability descriptions in order.
func (c *Context) Infos() []core.CapabilityInfo {
	infos := make([]core.CapabilityInfo, len(c.descriptors))
	for i, d := range c.descriptors {
		infos[i] = d.Info()
	}
	return infos
}

// NewSet materializes a private capability set for one task run. Every call
// returns fresh capabilities with independent session holders; two runs that
// both invoke the same agent never share a remote conversation.
func (c *Context) NewSet(transport core.Transport, retry capability.RetryPolicy, logger logging.Logger) *capability.Set {
	return capability.NewSet(c.descriptors, transport, retry, logger)
}
