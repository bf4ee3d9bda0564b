package testutil

import (
	"fmt"
	"time"

	"github.com/hupe1980/crewmesh/core"
)

// CrewBuilder helps construct crews with fluent chaining for tests.
// Example:
//
//	crew := NewCrewBuilder("research-crew").
//		Agent("Researcher", "finds facts", "research").
//		Agent("Writer", "writes prose", "writing").
//		Build()
//
// Agent ids and endpoints are derived from the agent name so transport fakes
// can script replies per agent.
type CrewBuilder struct {
	name    string
	members []core.CrewMember
}

// NewCrewBuilder creates a builder for a crew with the given name.
func NewCrewBuilder(name string) *CrewBuilder {
	return &CrewBuilder{name: name}
}

// Agent appends an active member (chainable).
func (b *CrewBuilder) Agent(name, description, role string) *CrewBuilder {
	return b.add(name, description, role, true)
}

// InactiveAgent appends a member whose agent is inactive (chainable).
func (b *CrewBuilder) InactiveAgent(name, description, role string) *CrewBuilder {
	return b.add(name, description, role, false)
}

func (b *CrewBuilder) add(name, description, role string, active bool) *CrewBuilder {
	b.members = append(b.members, core.CrewMember{
		Agent: core.Agent{
			ID:          fmt.Sprintf("agent-%s", name),
			Name:        name,
			Description: description,
			Endpoint:    fmt.Sprintf("endpoint-%s", name),
			Active:      active,
		},
		Role:     role,
		Position: len(b.members),
	})
	return b
}

// Build materializes the crew at membership version 1.
func (b *CrewBuilder) Build() core.Crew {
	return core.Crew{
		ID:      fmt.Sprintf("crew-%s", b.name),
		Name:    b.name,
		Members: b.members,
		Version: 1,
		Created: time.Now().UTC(),
	}
}
