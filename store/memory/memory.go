// Package memory provides a volatile store implementation keeping agents,
// crews, tasks, transcripts and telemetry in process-local maps. It is safe
// for concurrent access and suited to tests and ephemeral demo runs; returned
// values are defensive copies so callers cannot mutate internal state.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/crewmesh/core"
)

// Store implements core.AgentStore, core.CrewStore, core.TaskStore and
// core.TelemetryWriter in memory.
type Store struct {
	mu        sync.RWMutex
	agents    map[string]core.Agent
	crews     map[string]*core.Crew
	tasks     map[string]*core.Task
	messages  map[string][]core.TaskMessage
	telemetry []core.TelemetryEvent
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{
		agents:   make(map[string]core.Agent),
		crews:    make(map[string]*core.Crew),
		tasks:    make(map[string]*core.Task),
		messages: make(map[string][]core.TaskMessage),
	}
}

// PutAgent stores or replaces an agent definition.
func (s *Store) PutAgent(_ context.Context, a core.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[a.ID] = a
	return nil
}

// GetAgent returns an agent by id.
func (s *Store) GetAgent(_ context.Context, id string) (core.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[id]
	if !ok {
		return core.Agent{}, core.ErrAgentNotFound
	}
	return a, nil
}

// ListAgents returns all agents ordered by name.
func (s *Store) ListAgents(_ context.Context) ([]core.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	agents := make([]core.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		agents = append(agents, a)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].Name < agents[j].Name })
	return agents, nil
}

// PutCrew stores or replaces a crew. Membership carried on the crew value is
// authoritative; Version starts at 1 when unset.
func (s *Store) PutCrew(_ context.Context, c core.Crew) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Created.IsZero() {
		c.Created = time.Now().UTC()
	}
	crew := c
	crew.Members = append([]core.CrewMember(nil), c.Members...)
	s.crews[c.ID] = &crew
	return nil
}

// GetCrew returns a copy of the crew with members ordered by position.
func (s *Store) GetCrew(_ context.Context, id string) (*core.Crew, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	crew, ok := s.crews[id]
	if !ok {
		return nil, core.ErrCrewNotFound
	}
	cp := *crew
	cp.Members = append([]core.CrewMember(nil), crew.Members...)
	sort.SliceStable(cp.Members, func(i, j int) bool { return cp.Members[i].Position < cp.Members[j].Position })
	return &cp, nil
}

// CrewVersion returns the current membership version.
func (s *Store) CrewVersion(_ context.Context, id string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	crew, ok := s.crews[id]
	if !ok {
		return 0, core.ErrCrewNotFound
	}
	return crew.Version, nil
}

// AddMember appends a member and bumps the membership version atomically.
func (s *Store) AddMember(_ context.Context, crewID string, m core.CrewMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	crew, ok := s.crews[crewID]
	if !ok {
		return core.ErrCrewNotFound
	}
	crew.Members = append(crew.Members, m)
	crew.Version++
	return nil
}

// RemoveMember removes a member by agent id and bumps the membership version
// atomically. Removing an absent member is a no-op without a version bump.
func (s *Store) RemoveMember(_ context.Context, crewID, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	crew, ok := s.crews[crewID]
	if !ok {
		return core.ErrCrewNotFound
	}
	for i, m := range crew.Members {
		if m.Agent.ID == agentID {
			crew.Members = append(crew.Members[:i], crew.Members[i+1:]...)
			crew.Version++
			return nil
		}
	}
	return nil
}

// CreateTask stores a new task.
func (s *Store) CreateTask(_ context.Context, t *core.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.tasks[t.ID] = &cp
	return nil
}

// GetTask returns a copy of a task.
func (s *Store) GetTask(_ context.Context, id string) (*core.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, core.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

// SetTaskStatus applies a lifecycle transition, stamping started/completed
// times and recording the terminal cause for failed tasks.
func (s *Store) SetTaskStatus(_ context.Context, id string, status core.TaskStatus, cause string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return core.ErrTaskNotFound
	}
	now := time.Now().UTC()
	t.Status = status
	switch status {
	case core.TaskInProgress:
		t.Started = &now
	case core.TaskCompleted, core.TaskFailed:
		t.Completed = &now
		t.Error = cause
	}
	return nil
}

// AppendMessage appends a transcript message. Messages are never updated or
// removed.
func (s *Store) AppendMessage(_ context.Context, m core.TaskMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[m.TaskID] = append(s.messages[m.TaskID], m)
	return nil
}

// Messages returns a copy of the transcript in append order.
func (s *Store) Messages(_ context.Context, taskID string) ([]core.TaskMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[taskID]
	out := make([]core.TaskMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

// WriteTelemetry appends a run's telemetry events.
func (s *Store) WriteTelemetry(_ context.Context, events []core.TelemetryEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.telemetry = append(s.telemetry, events...)
	return nil
}

// TelemetryEvents returns a copy of all persisted telemetry events.
func (s *Store) TelemetryEvents() []core.TelemetryEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.TelemetryEvent, len(s.telemetry))
	copy(out, s.telemetry)
	return out
}
