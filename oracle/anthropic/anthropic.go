// Package anthropic implements the planning oracle on the Anthropic Messages
// API. Capabilities become tool definitions; a tool_use block in the response
// becomes an invoke action, a text-only response becomes a conclusion.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/hupe1980/crewmesh/core"
	"github.com/hupe1980/crewmesh/oracle"
)

// Options configure the Anthropic oracle (model id, temperature, max tokens,
// API key).
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Oracle wraps the Anthropic Messages API behind core.Oracle.
type Oracle struct {
	client *anthropic.Client
	opts   Options
}

// New creates an Anthropic oracle using the official client.
func New(optFns ...func(o *Options)) *Oracle {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Oracle{client: &client, opts: opts}
}

// NewFromClient creates an Anthropic oracle from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Oracle {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Oracle{client: client, opts: opts}
}

// Name returns the configured model identifier.
func (o *Oracle) Name() string { return string(o.opts.Model) }

// Plan asks the model for the next action given the task, the transcript so
// far and the capability set.
func (o *Oracle) Plan(ctx context.Context, req core.PlanRequest) (core.Action, core.TokenUsage, error) {
	params := anthropic.MessageNewParams{
		Model:       o.opts.Model,
		Messages:    buildMessages(req),
		MaxTokens:   o.opts.MaxTokens,
		Temperature: anthropic.Float(o.opts.Temperature),
		System:      []anthropic.TextBlockParam{{Text: req.Instruction}},
		Tools:       buildTools(req.Capabilities),
	}

	resp, err := o.client.Messages.New(ctx, params)
	if err != nil {
		return core.Action{}, core.TokenUsage{}, fmt.Errorf("anthropic api error: %w", err)
	}

	usage := core.TokenUsage{
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
	}

	var text strings.Builder
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.AsText().Text)
		case "tool_use":
			toolBlock := block.AsToolUse()
			args := ""
			if toolBlock.Input != nil {
				if argsBytes, err := json.Marshal(toolBlock.Input); err == nil {
					args = string(argsBytes)
				}
			}
			message, err := oracle.DecodeMessageArg(args)
			if err != nil {
				return core.Action{}, usage, err
			}
			return core.Action{
				Kind:       core.ActionInvoke,
				Capability: toolBlock.Name,
				Message:    message,
				Rationale:  text.String(),
			}, usage, nil
		}
	}

	return core.Action{
		Kind:        core.ActionConclude,
		FinalAnswer: text.String(),
	}, usage, nil
}

// buildMessages converts the plan request into Anthropic messages. System
// transcript entries are folded into user turns since the Messages API keeps
// the system prompt separate.
func buildMessages(req core.PlanRequest) []anthropic.MessageParam {
	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(oracle.TaskPrompt(req))),
	}
	for _, m := range req.Transcript {
		switch m.Author {
		case core.AuthorAgent:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(
				fmt.Sprintf("Response from %s:\n%s", m.AgentName, m.Content),
			)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return messages
}

// buildTools exposes each capability with the shared single-message schema.
func buildTools(capabilities []core.CapabilityInfo) []anthropic.ToolUnionParam {
	params := oracle.MessageParameters()
	tools := make([]anthropic.ToolUnionParam, len(capabilities))
	for i, c := range capabilities {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type:       constant.Object("object"),
			Properties: params["properties"],
		}
		if required, ok := params["required"].([]string); ok {
			inputSchema.Required = required
		}
		tools[i] = anthropic.ToolUnionParamOfTool(inputSchema, c.Name)
	}
	return tools
}
