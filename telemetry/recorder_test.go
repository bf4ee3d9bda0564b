package telemetry

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/crewmesh/core"
)

func TestBeginEndRecordsEvent(t *testing.T) {
	r := NewRecorder("task-1")

	end := r.Begin(core.TelemetryOracleCall, "gpt-4o-mini")
	end(core.TokenUsage{PromptTokens: 120, CompletionTokens: 40}, nil)

	events := r.Events()
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, "task-1", ev.TaskID)
	assert.Equal(t, core.TelemetryOracleCall, ev.Kind)
	assert.Equal(t, "gpt-4o-mini", ev.Target)
	assert.True(t, ev.Success)
	assert.Empty(t, ev.Error)
	assert.Equal(t, 120, ev.PromptTokens)
	assert.Equal(t, 40, ev.CompletionTokens)
	assert.NotEmpty(t, ev.ID)
	assert.False(t, ev.Start.IsZero())
	assert.False(t, ev.End.Before(ev.Start))
}

func TestEndRecordsFailure(t *testing.T) {
	r := NewRecorder("task-1")

	end := r.Begin(core.TelemetryAgentCall, "ask_researcher")
	end(core.TokenUsage{}, errors.New("agent unreachable"))

	events := r.Events()
	require.Len(t, events, 1)
	assert.False(t, events[0].Success)
	assert.Equal(t, "agent unreachable", events[0].Error)
}

func TestEndIsIdempotent(t *testing.T) {
	r := NewRecorder("task-1")

	end := r.Begin(core.TelemetryAgentCall, "ask_writer")
	end(core.TokenUsage{}, nil)
	end(core.TokenUsage{}, errors.New("late failure"))

	events := r.Events()
	require.Len(t, events, 1)
	assert.True(t, events[0].Success, "the first End call must win")
}

func TestEventsPreserveAppendOrder(t *testing.T) {
	r := NewRecorder("task-1")

	r.Begin(core.TelemetryOracleCall, "gpt-4o-mini")(core.TokenUsage{}, nil)
	r.Begin(core.TelemetryAgentCall, "ask_researcher")(core.TokenUsage{}, nil)
	r.Begin(core.TelemetryOracleCall, "gpt-4o-mini")(core.TokenUsage{}, nil)

	events := r.Events()
	require.Len(t, events, 3)
	assert.Equal(t, core.TelemetryOracleCall, events[0].Kind)
	assert.Equal(t, core.TelemetryAgentCall, events[1].Kind)
	assert.Equal(t, core.TelemetryOracleCall, events[2].Kind)

	assert.Equal(t, 2, r.Count(core.TelemetryOracleCall))
	assert.Equal(t, 1, r.Count(core.TelemetryAgentCall))
}

func TestEventsReturnsCopies(t *testing.T) {
	r := NewRecorder("task-1")
	r.Begin(core.TelemetryAgentCall, "ask_one")(core.TokenUsage{}, nil)

	events := r.Events()
	events[0].Target = "mutated"

	assert.Equal(t, "ask_one", r.Events()[0].Target)
}

func TestRecorderConcurrentUse(t *testing.T) {
	r := NewRecorder("task-1")

	const workers = 32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			end := r.Begin(core.TelemetryAgentCall, "ask_worker")
			end(core.TokenUsage{}, nil)
		}()
	}
	wg.Wait()

	assert.Len(t, r.Events(), workers)
}
