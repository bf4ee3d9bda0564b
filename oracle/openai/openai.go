// Package openai implements the planning oracle on the OpenAI Chat
// Completions API with function/tool calling. Capabilities are exposed as
// tool definitions; a tool call in the response becomes an invoke action, a
// plain text response becomes a conclusion.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/hupe1980/crewmesh/core"
	"github.com/hupe1980/crewmesh/oracle"
)

// Options configure the OpenAI oracle. Fields mirror a minimal subset of
// Chat Completion parameters; extend via functional options without breaking
// callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Oracle wraps the OpenAI Chat Completions API behind core.Oracle.
type Oracle struct {
	client *openai.Client
	opts   Options
}

// New creates an OpenAI oracle using the default client (API key from the
// environment).
func New(optFns ...func(o *Options)) *Oracle {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates an OpenAI oracle from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Oracle {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Oracle{client: client, opts: opts}
}

// Name returns the configured model identifier.
func (o *Oracle) Name() string { return o.opts.Model }

// Plan asks the model for the next action given the task, the transcript so
// far and the capability set.
func (o *Oracle) Plan(ctx context.Context, req core.PlanRequest) (core.Action, core.TokenUsage, error) {
	params := openai.ChatCompletionNewParams{
		Messages:            buildMessages(req),
		Model:               o.opts.Model,
		Temperature:         openai.Float(o.opts.Temperature),
		MaxCompletionTokens: openai.Int(o.opts.MaxCompletionTokens),
		Tools:               buildTools(req.Capabilities),
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return core.Action{}, core.TokenUsage{}, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return core.Action{}, core.TokenUsage{}, fmt.Errorf("openai returned no choices")
	}

	usage := core.TokenUsage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
	}

	choice := resp.Choices[0]
	if len(choice.Message.ToolCalls) > 0 {
		// One capability call per planning step; extra parallel calls are
		// ignored and the oracle re-plans with the result of the first.
		tc := choice.Message.ToolCalls[0]
		message, err := oracle.DecodeMessageArg(tc.Function.Arguments)
		if err != nil {
			return core.Action{}, usage, err
		}
		return core.Action{
			Kind:       core.ActionInvoke,
			Capability: tc.Function.Name,
			Message:    message,
			Rationale:  choice.Message.Content,
		}, usage, nil
	}

	return core.Action{
		Kind:        core.ActionConclude,
		FinalAnswer: choice.Message.Content,
	}, usage, nil
}

// buildMessages converts the plan request into chat messages: instruction as
// system prompt, the task statement as the opening user message, then the
// transcript in creation order.
func buildMessages(req core.PlanRequest) []openai.ChatCompletionMessageParamUnion {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(req.Instruction),
		openai.UserMessage(oracle.TaskPrompt(req)),
	}
	for _, m := range req.Transcript {
		switch m.Author {
		case core.AuthorAgent:
			messages = append(messages, openai.UserMessage(
				fmt.Sprintf("Response from %s:\n%s", m.AgentName, m.Content),
			))
		case core.AuthorSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}
	return messages
}

// buildTools exposes each capability as a function definition with the
// shared single-message schema.
func buildTools(capabilities []core.CapabilityInfo) []openai.ChatCompletionToolParam {
	tools := make([]openai.ChatCompletionToolParam, len(capabilities))
	for i, c := range capabilities {
		tools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        c.Name,
				Description: openai.String(c.Description),
				Parameters:  oracle.MessageParameters(),
			},
		}
	}
	return tools
}
