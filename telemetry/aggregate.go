package telemetry

import (
	"strings"
	"time"

	"github.com/hupe1980/crewmesh/core"
)

// tokenCosts maps model names to USD cost per 1K prompt/completion tokens.
// Unknown models aggregate with zero cost.
var tokenCosts = map[string]struct{ prompt, completion float64 }{
	"gpt-4":         {prompt: 0.03, completion: 0.06},
	"gpt-4o":        {prompt: 0.0025, completion: 0.01},
	"gpt-4o-mini":   {prompt: 0.00015, completion: 0.0006},
	"gpt-3.5-turbo": {prompt: 0.0015, completion: 0.002},
}

// Stats summarizes all calls against one target (a capability function name
// or an oracle model name).
type Stats struct {
	Target           string        `json:"target"`
	Kind             core.TelemetryKind `json:"kind"`
	Calls            int           `json:"calls"`
	Failures         int           `json:"failures"`
	TotalLatency     time.Duration `json:"total_latency"`
	AvgLatency       time.Duration `json:"avg_latency"`
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	EstimatedCostUSD float64       `json:"estimated_cost_usd"`
}

// SuccessRate returns the fraction of successful calls, 0 for no calls.
func (s Stats) SuccessRate() float64 {
	if s.Calls == 0 {
		return 0
	}
	return float64(s.Calls-s.Failures) / float64(s.Calls)
}

// Aggregate folds a telemetry event stream into per-target statistics. The
// fold is pure: it derives everything from the events themselves, so external
// aggregators can apply it to persisted streams without engine state.
func Aggregate(events []core.TelemetryEvent) map[string]Stats {
	out := make(map[string]Stats)
	for _, ev := range events {
		s := out[ev.Target]
		s.Target = ev.Target
		s.Kind = ev.Kind
		s.Calls++
		if !ev.Success {
			s.Failures++
		}
		s.TotalLatency += ev.Latency()
		s.PromptTokens += ev.PromptTokens
		s.CompletionTokens += ev.CompletionTokens
		s.EstimatedCostUSD += estimateCost(ev.Target, ev.PromptTokens, ev.CompletionTokens)
		s.AvgLatency = s.TotalLatency / time.Duration(s.Calls)
		out[ev.Target] = s
	}
	return out
}

// estimateCost prices token usage for known model names.
func estimateCost(model string, promptTokens, completionTokens int) float64 {
	c, ok := tokenCosts[strings.ToLower(model)]
	if !ok {
		return 0
	}
	return float64(promptTokens)/1000*c.prompt + float64(completionTokens)/1000*c.completion
}
