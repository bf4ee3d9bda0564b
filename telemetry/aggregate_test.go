package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/crewmesh/core"
)

func event(kind core.TelemetryKind, target string, success bool, latency time.Duration, prompt, completion int) core.TelemetryEvent {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return core.TelemetryEvent{
		ID:               core.NewID(),
		TaskID:           "task-1",
		Kind:             kind,
		Target:           target,
		Start:            start,
		End:              start.Add(latency),
		Success:          success,
		PromptTokens:     prompt,
		CompletionTokens: completion,
	}
}

func TestAggregateFoldsPerTarget(t *testing.T) {
	events := []core.TelemetryEvent{
		event(core.TelemetryOracleCall, "gpt-4o-mini", true, 100*time.Millisecond, 1000, 200),
		event(core.TelemetryOracleCall, "gpt-4o-mini", true, 300*time.Millisecond, 2000, 400),
		event(core.TelemetryAgentCall, "ask_researcher", true, time.Second, 0, 0),
		event(core.TelemetryAgentCall, "ask_researcher", false, 2*time.Second, 0, 0),
	}

	stats := Aggregate(events)
	require.Len(t, stats, 2)

	oracle := stats["gpt-4o-mini"]
	assert.Equal(t, core.TelemetryOracleCall, oracle.Kind)
	assert.Equal(t, 2, oracle.Calls)
	assert.Equal(t, 0, oracle.Failures)
	assert.Equal(t, 200*time.Millisecond, oracle.AvgLatency)
	assert.Equal(t, 3000, oracle.PromptTokens)
	assert.Equal(t, 600, oracle.CompletionTokens)
	assert.Equal(t, 1.0, oracle.SuccessRate())

	agent := stats["ask_researcher"]
	assert.Equal(t, 2, agent.Calls)
	assert.Equal(t, 1, agent.Failures)
	assert.Equal(t, 0.5, agent.SuccessRate())
	assert.Zero(t, agent.EstimatedCostUSD)
}

func TestAggregateEstimatesCost(t *testing.T) {
	events := []core.TelemetryEvent{
		event(core.TelemetryOracleCall, "gpt-4", true, time.Second, 1000, 1000),
	}

	stats := Aggregate(events)
	assert.InDelta(t, 0.09, stats["gpt-4"].EstimatedCostUSD, 1e-9)
}

func TestAggregateUnknownModelHasZeroCost(t *testing.T) {
	events := []core.TelemetryEvent{
		event(core.TelemetryOracleCall, "experimental-model", true, time.Second, 5000, 5000),
	}

	stats := Aggregate(events)
	assert.Zero(t, stats["experimental-model"].EstimatedCostUSD)
}

func TestAggregateEmptyStream(t *testing.T) {
	assert.Empty(t, Aggregate(nil))
}

func TestSuccessRateNoCalls(t *testing.T) {
	assert.Zero(t, Stats{}.SuccessRate())
}
