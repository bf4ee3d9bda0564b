package capability

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/hupe1980/crewmesh/core"
)

// Binder turns an ordered crew membership into a capability descriptor set.
// The zero value is ready to use.
type Binder struct{}

// Bind derives one descriptor per active member, preserving member order.
// Function names are deterministic and stable across rebuilds with identical
// membership: ask_<snake_case(agent name)>, with the first 8 characters of
// the agent id appended when two agents would collide.
//
// Returns core.ErrEmptyCrew when no member is active.
func (Binder) Bind(members []core.CrewMember) ([]Descriptor, error) {
	seen := make(map[string]bool, len(members))
	descriptors := make([]Descriptor, 0, len(members))

	for _, m := range members {
		if !m.Agent.Active {
			continue
		}

		name := "ask_" + snakeCase(m.Agent.Name)
		if seen[name] {
			name = fmt.Sprintf("%s_%s", name, shortID(m.Agent.ID))
		}
		seen[name] = true

		descriptors = append(descriptors, Descriptor{
			AgentID:     m.Agent.ID,
			AgentName:   m.Agent.Name,
			FuncName:    name,
			Description: describe(m),
			Endpoint:    m.Agent.Endpoint,
			Role:        m.Role,
		})
	}

	if len(descriptors) == 0 {
		return nil, core.ErrEmptyCrew
	}
	return descriptors, nil
}

// describe builds the function description shown to the planner from the
// agent's free-text capability description and its crew role.
func describe(m core.CrewMember) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ask the %s agent a question or give it a task.", m.Agent.Name)
	if m.Role != "" {
		fmt.Fprintf(&b, " This agent has the role: %s.", m.Role)
	}
	if m.Agent.Description != "" {
		fmt.Fprintf(&b, " Capabilities: %s", m.Agent.Description)
	}
	return b.String()
}

// snakeCase lowercases a display name into a function-safe identifier,
// collapsing runs of non-alphanumerics into single underscores.
func snakeCase(s string) string {
	var b strings.Builder
	lastUnderscore := true // suppress leading underscore
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

func shortID(id string) string {
	clean := strings.ReplaceAll(id, "-", "")
	if len(clean) > 8 {
		clean = clean[:8]
	}
	return clean
}
