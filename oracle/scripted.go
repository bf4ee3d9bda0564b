// Package oracle provides planning oracle implementations: provider-backed
// oracles under oracle/openai and oracle/anthropic, plus a deterministic
// Scripted oracle for tests and examples.
package oracle

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/crewmesh/core"
)

// Step is one scripted planning outcome: either an action or an error.
type Step struct {
	Action core.Action
	Err    error
}

// Scripted is a deterministic Oracle that replays a fixed sequence of steps.
// Safe for concurrent use; each Plan call consumes the next step.
type Scripted struct {
	name string

	mu       sync.Mutex
	steps    []Step
	next     int
	requests []core.PlanRequest
}

// NewScripted constructs a scripted oracle replaying the given actions.
func NewScripted(actions ...core.Action) *Scripted {
	steps := make([]Step, len(actions))
	for i, a := range actions {
		steps[i] = Step{Action: a}
	}
	return NewScriptedSteps(steps...)
}

// NewScriptedSteps constructs a scripted oracle with explicit steps, allowing
// error injection.
func NewScriptedSteps(steps ...Step) *Scripted {
	return &Scripted{name: "scripted", steps: steps}
}

// Plan replays the next scripted step. Exhausting the script is an error so
// tests fail loudly on unexpected extra planning steps.
func (s *Scripted) Plan(_ context.Context, req core.PlanRequest) (core.Action, core.TokenUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)
	if s.next >= len(s.steps) {
		return core.Action{}, core.TokenUsage{}, fmt.Errorf("scripted oracle exhausted after %d steps", len(s.steps))
	}
	step := s.steps[s.next]
	s.next++
	if step.Err != nil {
		return core.Action{}, core.TokenUsage{}, step.Err
	}
	return step.Action, core.TokenUsage{PromptTokens: 10, CompletionTokens: 5}, nil
}

// Name identifies the oracle for telemetry attribution.
func (s *Scripted) Name() string { return s.name }

// Requests returns every PlanRequest observed, for assertions on transcript
// causality.
func (s *Scripted) Requests() []core.PlanRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.PlanRequest, len(s.requests))
	copy(out, s.requests)
	return out
}
