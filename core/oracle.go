package core

import "context"

// ActionKind discriminates the two shapes a planning decision can take. The
// set is closed so the orchestrator's state machine stays exhaustively
// testable despite the oracle's open-ended reasoning.
type ActionKind string

const (
	// ActionInvoke selects one capability for exactly one call.
	ActionInvoke ActionKind = "invoke"
	// ActionConclude signals the oracle has a final answer.
	ActionConclude ActionKind = "conclude"
)

// Action is the tagged union produced by a planning step.
type Action struct {
	Kind ActionKind
	// Capability and Message are set for ActionInvoke.
	Capability string
	Message    string
	// FinalAnswer is set for ActionConclude.
	FinalAnswer string
	// Rationale optionally carries interim reasoning emitted alongside an
	// invocation; the orchestrator records it as a system message.
	Rationale string
}

// TokenUsage reports token consumption of one oracle call when the provider
// makes it available.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// CapabilityInfo is the planner-facing description of one bound capability.
type CapabilityInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// PlanRequest carries everything an oracle needs to choose the next action:
// the task statement, the full transcript so far in creation order, and the
// capability set it may invoke.
type PlanRequest struct {
	Instruction  string
	TaskTitle    string
	TaskText     string
	CrewName     string
	Transcript   []TaskMessage
	Capabilities []CapabilityInfo
}

// Oracle is the external reasoning process driving the plan/call loop. Plan
// must always return one of the two Action shapes; content is free-form.
type Oracle interface {
	Plan(ctx context.Context, req PlanRequest) (Action, TokenUsage, error)

	// Name identifies the oracle (model name) for telemetry attribution.
	Name() string
}
