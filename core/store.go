package core

import "context"

// AgentStore persists agent definitions.
type AgentStore interface {
	PutAgent(ctx context.Context, a Agent) error
	GetAgent(ctx context.Context, id string) (Agent, error)
	ListAgents(ctx context.Context) ([]Agent, error)
}

// CrewStore persists crews and their membership. Every membership mutation
// (add, remove, role change) must bump the crew's Version in the same store
// operation so version reads never race the change they invalidate.
type CrewStore interface {
	PutCrew(ctx context.Context, c Crew) error
	// GetCrew returns the crew with members resolved to agent snapshots,
	// ordered by position. Returns ErrCrewNotFound for unknown ids.
	GetCrew(ctx context.Context, id string) (*Crew, error)
	// CrewVersion returns the current membership version without loading
	// members; the context cache uses it for the staleness check.
	CrewVersion(ctx context.Context, id string) (uint64, error)
	AddMember(ctx context.Context, crewID string, m CrewMember) error
	RemoveMember(ctx context.Context, crewID, agentID string) error
}

// TaskStore persists tasks and their append-only transcripts.
type TaskStore interface {
	CreateTask(ctx context.Context, t *Task) error
	GetTask(ctx context.Context, id string) (*Task, error)
	// SetTaskStatus applies a lifecycle transition, recording the terminal
	// cause for failed tasks and stamping started/completed times.
	SetTaskStatus(ctx context.Context, id string, status TaskStatus, cause string) error
	AppendMessage(ctx context.Context, m TaskMessage) error
	// Messages returns the transcript ordered by creation.
	Messages(ctx context.Context, taskID string) ([]TaskMessage, error)
}

// TelemetryWriter receives the telemetry event stream of a finished run.
// Writes are at-least-once durable; the engine does not implement durability
// itself.
type TelemetryWriter interface {
	WriteTelemetry(ctx context.Context, events []TelemetryEvent) error
}
