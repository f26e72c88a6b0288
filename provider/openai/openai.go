// Package openai adapts the OpenAI Chat Completions API (streaming and
// function/tool calling) to the provider.Provider interface.
package openai

import (
	"context"
	"fmt"
	"sort"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/parleyhq/parley/chat"
)

// aggCall aggregates partial tool call streaming deltas (id, name, arguments)
// so a complete call can be reconstructed when the finish reason arrives.
type aggCall struct{ id, name, args string }

// Provider wraps the OpenAI client behind provider.Provider.
type Provider struct {
	client openai.Client
	apiKey string
}

// New creates an OpenAI provider with the given API key.
func New(apiKey string) *Provider {
	return &Provider{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		apiKey: apiKey,
	}
}

// Name implements provider.Provider.
func (p *Provider) Name() string { return "openai" }

// IsAvailable implements provider.Provider.
func (p *Provider) IsAvailable() bool { return p.apiKey != "" }

// BuildMessages converts normalized messages to the OpenAI union format.
// Exported for the adapter round-trip tests.
func BuildMessages(msgs []chat.ChatMessage) []openai.ChatCompletionMessageParamUnion {
	var out []openai.ChatCompletionMessageParamUnion
	for _, m := range msgs {
		switch m.Role {
		case chat.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case chat.RoleUser:
			out = append(out, openai.UserMessage(m.Content))
		case chat.RoleAssistant:
			if len(m.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(m.Content))
				continue
			}
			assistant := openai.ChatCompletionAssistantMessageParam{
				ToolCalls: make([]openai.ChatCompletionMessageToolCallParam, 0, len(m.ToolCalls)),
			}
			if m.Content != "" {
				assistant.Content.OfString = openai.String(m.Content)
			}
			for _, tc := range m.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID:   tc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Function.Name,
						Arguments: tc.Function.Arguments,
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case chat.RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		default:
			if m.Content != "" {
				out = append(out, openai.UserMessage(m.Content))
			}
		}
	}
	return out
}

func buildParams(msgs []chat.ChatMessage, model string, tools []chat.ToolSchema, temperature float64) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:    BuildMessages(msgs),
		Model:       openai.ChatModel(model),
		Temperature: openai.Float(temperature),
	}
	if len(tools) == 0 {
		return params
	}
	oaTools := make([]openai.ChatCompletionToolParam, len(tools))
	for i, t := range tools {
		oaTools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  t.Parameters,
			},
		}
	}
	params.Tools = oaTools
	return params
}

// Complete implements provider.Provider.
func (p *Provider) Complete(ctx context.Context, msgs []chat.ChatMessage, model string, tools []chat.ToolSchema, temperature float64) (chat.ChatMessage, error) {
	resp, err := p.client.Chat.Completions.New(ctx, buildParams(msgs, model, tools, temperature))
	if err != nil {
		return chat.ChatMessage{}, fmt.Errorf("provider openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		// Malformed response; degrade to an empty assistant message.
		return chat.AssistantMessage(""), nil
	}
	choice := resp.Choices[0]
	msg := chat.AssistantMessage(choice.Message.Content)
	for _, tc := range choice.Message.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, chat.ToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: chat.ToolCallFunction{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return msg, nil
}

// Stream implements provider.Provider. Tool-call fragments are accumulated
// per choice index and surfaced only on the terminal chunk; partial argument
// strings never leave the adapter.
func (p *Provider) Stream(ctx context.Context, msgs []chat.ChatMessage, model string, tools []chat.ToolSchema, temperature float64) (<-chan chat.StreamChunk, <-chan error) {
	out := make(chan chat.StreamChunk, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		stream := p.client.Chat.Completions.NewStreaming(ctx, buildParams(msgs, model, tools, temperature))
		agg := map[int64]*aggCall{}

		for stream.Next() {
			ck := stream.Current()
			for _, choice := range ck.Choices {
				for _, tc := range choice.Delta.ToolCalls {
					ac, ok := agg[tc.Index]
					if !ok {
						ac = &aggCall{}
						agg[tc.Index] = ac
					}
					if tc.ID != "" {
						ac.id = tc.ID
					}
					if tc.Function.Name != "" {
						ac.name += tc.Function.Name
					}
					if tc.Function.Arguments != "" {
						ac.args += tc.Function.Arguments
					}
				}

				if choice.Delta.Content != "" {
					select {
					case out <- chat.StreamChunk{Delta: choice.Delta.Content}:
					case <-ctx.Done():
						errCh <- ctx.Err()
						return
					}
				}

				if choice.FinishReason != "" {
					terminal := chat.StreamChunk{FinishReason: choice.FinishReason}
					if choice.FinishReason == chat.FinishToolCalls && len(agg) > 0 {
						terminal.ToolCalls = collectCalls(agg)
					}
					select {
					case out <- terminal:
					case <-ctx.Done():
						errCh <- ctx.Err()
						return
					}
				}
			}
		}
		if err := stream.Err(); err != nil {
			errCh <- fmt.Errorf("provider openai: %w", err)
		}
	}()

	return out, errCh
}

// collectCalls flattens the per-index accumulators in index order.
func collectCalls(agg map[int64]*aggCall) []chat.ToolCall {
	indexes := make([]int64, 0, len(agg))
	for i := range agg {
		indexes = append(indexes, i)
	}
	sort.Slice(indexes, func(a, b int) bool { return indexes[a] < indexes[b] })

	calls := make([]chat.ToolCall, 0, len(agg))
	for _, i := range indexes {
		ac := agg[i]
		calls = append(calls, chat.ToolCall{
			ID:       ac.id,
			Type:     "function",
			Function: chat.ToolCallFunction{Name: ac.name, Arguments: ac.args},
		})
	}
	return calls
}

// ListModels implements provider.Provider with a static catalogue.
func (p *Provider) ListModels(context.Context) ([]chat.ModelInfo, error) {
	return []chat.ModelInfo{
		{ID: "gpt-4o", Name: "GPT-4o", Provider: "openai", SupportsStreaming: true, SupportsTools: true, ContextWindow: 128000},
		{ID: "gpt-4o-mini", Name: "GPT-4o Mini", Provider: "openai", SupportsStreaming: true, SupportsTools: true, ContextWindow: 128000},
		{ID: "gpt-4-turbo", Name: "GPT-4 Turbo", Provider: "openai", SupportsStreaming: true, SupportsTools: true, ContextWindow: 128000},
		{ID: "gpt-3.5-turbo", Name: "GPT-3.5 Turbo", Provider: "openai", SupportsStreaming: true, SupportsTools: true, ContextWindow: 16385},
	}, nil
}
