package core

import "time"

// TelemetryKind distinguishes the two instrumented call types.
type TelemetryKind string

const (
	// TelemetryOracleCall brackets one planning step.
	TelemetryOracleCall TelemetryKind = "oracle_call"
	// TelemetryAgentCall brackets one capability invocation.
	TelemetryAgentCall TelemetryKind = "agent_call"
)

// TelemetryEvent records one oracle or agent call. Events are write-once:
// after End is set they are never mutated, and recorders only ever append.
type TelemetryEvent struct {
	ID     string        `json:"id"`
	TaskID string        `json:"task_id"`
	Kind   TelemetryKind `json:"kind"`
	// Target is the capability function name for agent calls and the model
	// name for oracle calls.
	Target  string    `json:"target"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Success bool      `json:"success"`
	Error   string    `json:"error,omitempty"`
	// Token fields apply to oracle calls only.
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
}

// Latency returns the wall-clock duration of the call.
func (e TelemetryEvent) Latency() time.Duration { return e.End.Sub(e.Start) }
