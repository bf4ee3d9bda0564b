package oracle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/crewmesh/core"
)

func TestDecodeMessageArg(t *testing.T) {
	msg, err := DecodeMessageArg(`{"message": "find sources"}`)
	require.NoError(t, err)
	assert.Equal(t, "find sources", msg)
}

func TestDecodeMessageArgInvalid(t *testing.T) {
	_, err := DecodeMessageArg(`not json`)
	assert.Error(t, err)

	_, err = DecodeMessageArg(`{}`)
	assert.Error(t, err)
}

func TestMessageParameters(t *testing.T) {
	params := MessageParameters()
	assert.Equal(t, "object", params["type"])
	assert.Equal(t, []string{"message"}, params["required"])
}

func TestTaskPrompt(t *testing.T) {
	prompt := TaskPrompt(core.PlanRequest{
		TaskTitle: "Summarize",
		TaskText:  "Summarize the topic.",
		CrewName:  "research",
	})
	assert.Contains(t, prompt, "TASK: Summarize")
	assert.Contains(t, prompt, "Summarize the topic.")
	assert.Contains(t, prompt, "CREW: research")
}

func TestScriptedReplaysInOrder(t *testing.T) {
	s := NewScripted(
		core.Action{Kind: core.ActionInvoke, Capability: "ask_one", Message: "first"},
		core.Action{Kind: core.ActionConclude, FinalAnswer: "done"},
	)

	action, usage, err := s.Plan(context.Background(), core.PlanRequest{TaskTitle: "t"})
	require.NoError(t, err)
	assert.Equal(t, core.ActionInvoke, action.Kind)
	assert.Equal(t, "ask_one", action.Capability)
	assert.Equal(t, 10, usage.PromptTokens)

	action, _, err = s.Plan(context.Background(), core.PlanRequest{TaskTitle: "t"})
	require.NoError(t, err)
	assert.Equal(t, core.ActionConclude, action.Kind)
}

func TestScriptedExhaustionIsAnError(t *testing.T) {
	s := NewScripted(core.Action{Kind: core.ActionConclude, FinalAnswer: "done"})

	_, _, err := s.Plan(context.Background(), core.PlanRequest{})
	require.NoError(t, err)

	_, _, err = s.Plan(context.Background(), core.PlanRequest{})
	assert.Error(t, err)
}

func TestScriptedStepErrors(t *testing.T) {
	wantErr := errors.New("model overloaded")
	s := NewScriptedSteps(Step{Err: wantErr})

	_, _, err := s.Plan(context.Background(), core.PlanRequest{})
	assert.ErrorIs(t, err, wantErr)
}

func TestScriptedRecordsRequests(t *testing.T) {
	s := NewScripted(core.Action{Kind: core.ActionConclude, FinalAnswer: "done"})

	_, _, err := s.Plan(context.Background(), core.PlanRequest{TaskTitle: "observed"})
	require.NoError(t, err)

	requests := s.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, "observed", requests[0].TaskTitle)
}
