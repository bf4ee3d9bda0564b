package oracle

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/crewmesh/core"
)

// MessageParameters is the JSON schema every capability function exposes to
// the planner: a single required message argument.
func MessageParameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type":        "string",
				"description": "The message to send to the agent",
			},
		},
		"required": []string{"message"},
	}
}

// DecodeMessageArg extracts the message argument from a provider tool call's
// JSON arguments payload.
func DecodeMessageArg(raw string) (string, error) {
	var args struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return "", fmt.Errorf("decode capability arguments: %w", err)
	}
	if args.Message == "" {
		return "", fmt.Errorf("capability arguments missing message field")
	}
	return args.Message, nil
}

// TaskPrompt renders the opening user message presented to the planner.
func TaskPrompt(req core.PlanRequest) string {
	return fmt.Sprintf("TASK: %s\n\n%s\n\nCREW: %s", req.TaskTitle, req.TaskText, req.CrewName)
}
