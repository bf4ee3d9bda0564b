package core

import (
	"time"

	"github.com/google/uuid"
)

// Agent describes one external conversational service that can be enlisted
// into crews. The Description is surfaced verbatim to the planning oracle as
// the capability description, so it should explain what the agent is good at
// in natural language.
//
// An Agent value referenced by a running task is treated as an immutable
// snapshot: updates to the stored agent only take effect for execution
// contexts built after the update.
type Agent struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	// Endpoint locates the agent's remote conversation API. Its meaning is
	// owned by the Transport implementation (for Direct Line it is the bot
	// secret or token endpoint).
	Endpoint string `json:"endpoint"`
	Active   bool   `json:"active"`
}

// CrewMember binds an agent into a crew under a role label. Position controls
// the order in which capabilities are presented to the planner; it does not
// imply execution order.
type CrewMember struct {
	Agent    Agent  `json:"agent"`
	Role     string `json:"role"`
	Position int    `json:"position"`
}

// Crew is an ordered, versioned group of agents. Version increases
// monotonically on every membership mutation and is the sole cache
// invalidation key for execution contexts: a context built at version N is
// stale the moment the crew reaches version N+1.
type Crew struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Members     []CrewMember `json:"members"`
	Version     uint64       `json:"version"`
	Created     time.Time    `json:"created"`
}

// ActiveMembers returns the members whose agent is active, preserving order.
func (c *Crew) ActiveMembers() []CrewMember {
	active := make([]CrewMember, 0, len(c.Members))
	for _, m := range c.Members {
		if m.Agent.Active {
			active = append(active, m)
		}
	}
	return active
}

// NewID generates a unique identifier for tasks, messages, conversations and
// telemetry events.
func NewID() string { return uuid.NewString() }
