// Package anthropic adapts the Anthropic Messages API to the
// provider.Provider interface.
//
// Anthropic differs from the other backends in two ways the adapter has to
// reconcile: the system prompt is an out-of-band request field rather than a
// message, and tool results travel as dedicated tool_result content blocks
// tagged with the originating call id.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/parleyhq/parley/chat"
)

const defaultMaxTokens = 4096

// Provider wraps the Anthropic client behind provider.Provider.
type Provider struct {
	client anthropic.Client
	apiKey string
}

// New creates an Anthropic provider with the given API key.
func New(apiKey string) *Provider {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &Provider{client: anthropic.NewClient(opts...), apiKey: apiKey}
}

// Name implements provider.Provider.
func (p *Provider) Name() string { return "anthropic" }

// IsAvailable implements provider.Provider.
func (p *Provider) IsAvailable() bool { return p.apiKey != "" }

// BuildMessages converts normalized messages to Anthropic format, returning
// the extracted system prompt alongside the message list. Exported for the
// adapter round-trip tests.
func BuildMessages(msgs []chat.ChatMessage) (system string, out []anthropic.MessageParam) {
	for _, m := range msgs {
		switch m.Role {
		case chat.RoleSystem:
			system = m.Content
		case chat.RoleTool:
			out = append(out, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false),
			))
		case chat.RoleAssistant:
			if len(m.ToolCalls) == 0 {
				if m.Content != "" {
					out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
				}
				continue
			}
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				var input any
				if tc.Function.Arguments != "" {
					if err := json.Unmarshal([]byte(tc.Function.Arguments), &input); err != nil {
						input = tc.Function.Arguments
					}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Function.Name))
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return system, out
}

func buildTools(tools []chat.ToolSchema) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{Type: constant.Object("object")}
		if props, ok := t.Parameters["properties"]; ok {
			inputSchema.Properties = props
		}
		switch req := t.Parameters["required"].(type) {
		case []string:
			inputSchema.Required = req
		case []any:
			for _, r := range req {
				if s, ok := r.(string); ok {
					inputSchema.Required = append(inputSchema.Required, s)
				}
			}
		}
		out[i] = anthropic.ToolUnionParamOfTool(inputSchema, t.Name)
	}
	return out
}

func (p *Provider) buildParams(msgs []chat.ChatMessage, model string, tools []chat.ToolSchema, temperature float64) anthropic.MessageNewParams {
	system, messages := BuildMessages(msgs)
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		Messages:    messages,
		MaxTokens:   defaultMaxTokens,
		Temperature: anthropic.Float(temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(tools) > 0 {
		params.Tools = buildTools(tools)
	}
	return params
}

// Complete implements provider.Provider.
func (p *Provider) Complete(ctx context.Context, msgs []chat.ChatMessage, model string, tools []chat.ToolSchema, temperature float64) (chat.ChatMessage, error) {
	resp, err := p.client.Messages.New(ctx, p.buildParams(msgs, model, tools, temperature))
	if err != nil {
		return chat.ChatMessage{}, fmt.Errorf("provider anthropic: %w", err)
	}

	msg := chat.AssistantMessage("")
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			msg.Content += block.AsText().Text
		case "tool_use":
			toolBlock := block.AsToolUse()
			args := "{}"
			if toolBlock.Input != nil {
				if raw, err := json.Marshal(toolBlock.Input); err == nil {
					args = string(raw)
				}
			}
			msg.ToolCalls = append(msg.ToolCalls, chat.ToolCall{
				ID:       toolBlock.ID,
				Type:     "function",
				Function: chat.ToolCallFunction{Name: toolBlock.Name, Arguments: args},
			})
		}
	}
	return msg, nil
}

// Stream implements provider.Provider. Tool-call arguments arrive as
// successive JSON fragments (input_json_delta); the in-progress call is
// accumulated per content block and only surfaced at content_block_stop.
func (p *Provider) Stream(ctx context.Context, msgs []chat.ChatMessage, model string, tools []chat.ToolSchema, temperature float64) (<-chan chat.StreamChunk, <-chan error) {
	out := make(chan chat.StreamChunk, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		stream := p.client.Messages.NewStreaming(ctx, p.buildParams(msgs, model, tools, temperature))
		var current *chat.ToolCall

		emit := func(c chat.StreamChunk) bool {
			select {
			case out <- c:
				return true
			case <-ctx.Done():
				errCh <- ctx.Err()
				return false
			}
		}

		for stream.Next() {
			event := stream.Current()
			switch event.Type {
			case "content_block_start":
				if event.ContentBlock.Type == "tool_use" {
					current = &chat.ToolCall{
						ID:       event.ContentBlock.ID,
						Type:     "function",
						Function: chat.ToolCallFunction{Name: event.ContentBlock.Name},
					}
				}
			case "content_block_delta":
				switch event.Delta.Type {
				case "text_delta":
					if !emit(chat.StreamChunk{Delta: event.Delta.Text}) {
						return
					}
				case "input_json_delta":
					if current != nil {
						current.Function.Arguments += event.Delta.PartialJSON
					}
				}
			case "content_block_stop":
				if current != nil {
					if current.Function.Arguments == "" {
						current.Function.Arguments = "{}"
					}
					if !emit(chat.StreamChunk{
						FinishReason: chat.FinishToolCalls,
						ToolCalls:    []chat.ToolCall{*current},
					}) {
						return
					}
					current = nil
				}
			case "message_delta":
				if event.Delta.StopReason == "end_turn" {
					if !emit(chat.StreamChunk{FinishReason: chat.FinishStop}) {
						return
					}
				}
			}
		}
		if err := stream.Err(); err != nil {
			errCh <- fmt.Errorf("provider anthropic: %w", err)
		}
	}()

	return out, errCh
}

// ListModels implements provider.Provider with a static catalogue.
func (p *Provider) ListModels(context.Context) ([]chat.ModelInfo, error) {
	return []chat.ModelInfo{
		{ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", Provider: "anthropic", SupportsStreaming: true, SupportsTools: true, ContextWindow: 200000},
		{ID: "claude-haiku-4-20250414", Name: "Claude Haiku 4", Provider: "anthropic", SupportsStreaming: true, SupportsTools: true, ContextWindow: 200000},
		{ID: "claude-3-5-sonnet-20241022", Name: "Claude 3.5 Sonnet", Provider: "anthropic", SupportsStreaming: true, SupportsTools: true, ContextWindow: 200000},
	}, nil
}
