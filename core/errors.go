package core

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the orchestration engine. Callers should match
// them with errors.Is.
var (
	// ErrEmptyCrew is returned by the capability binder when a crew has no
	// active members: an orchestrator cannot run with zero capabilities.
	ErrEmptyCrew = errors.New("crew has no active members")

	// ErrTaskAlreadyTerminal is returned when a run is requested for a task
	// that already reached completed or failed. Task execution is
	// exactly-once per task lifecycle; retries mean creating a new task.
	ErrTaskAlreadyTerminal = errors.New("task is already in a terminal state")

	// ErrPlanLimitExceeded terminates runs whose planning loop exceeds the
	// configured iteration bound, guarding against a runaway oracle.
	ErrPlanLimitExceeded = errors.New("planning iteration limit exceeded")

	// ErrCrewNotFound is returned by crew stores for unknown crew ids.
	ErrCrewNotFound = errors.New("crew not found")

	// ErrAgentNotFound is returned by agent stores for unknown agent ids.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrTaskNotFound is returned by task stores for unknown task ids.
	ErrTaskNotFound = errors.New("task not found")
)

// TransportError reports a transport-level failure reaching a remote agent:
// network errors, timeouts, 5xx responses, missing replies. Transport errors
// are transient by definition and are retried by the capability layer.
type TransportError struct {
	Op  string // operation that failed ("start_conversation", "send", "poll")
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("agent transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AgentUnavailableError is surfaced after the retry budget for transport
// failures is exhausted. Last carries the final transport error.
type AgentUnavailableError struct {
	AgentName string
	Attempts  int
	Last      error
}

func (e *AgentUnavailableError) Error() string {
	return fmt.Sprintf("agent %q unavailable after %d attempts: %v", e.AgentName, e.Attempts, e.Last)
}

func (e *AgentUnavailableError) Unwrap() error { return e.Last }

// AgentCallError reports an application-level failure returned by the remote
// agent itself. It is not retried: the agent answered, just unhappily.
type AgentCallError struct {
	AgentName string
	Message   string
}

func (e *AgentCallError) Error() string {
	return fmt.Sprintf("agent %q returned an error: %s", e.AgentName, e.Message)
}
