// Package gemini adapts the Gemini API (via google.golang.org/genai) to the
// provider.Provider interface.
//
// Gemini takes the system prompt through a dedicated system_instruction
// field and requires at least one non-system message; a history that is
// empty after system extraction fails fast instead of issuing an empty call.
// The backend does not assign tool-call ids, so the adapter synthesizes them.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"

	"github.com/parleyhq/parley/chat"
	"github.com/parleyhq/parley/internal/util"
)

// Provider wraps the genai client behind provider.Provider.
type Provider struct {
	client *genai.Client
	apiKey string
}

// New creates a Gemini provider with the given API key.
func New(apiKey string) (*Provider, error) {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("provider gemini: %w", err)
	}
	return &Provider{client: client, apiKey: apiKey}, nil
}

// Name implements provider.Provider.
func (p *Provider) Name() string { return "gemini" }

// IsAvailable implements provider.Provider.
func (p *Provider) IsAvailable() bool { return p.apiKey != "" }

// BuildContents converts normalized messages into Gemini contents, pulling
// the first system message out as the system instruction. Exported for the
// adapter round-trip tests.
func BuildContents(msgs []chat.ChatMessage) (contents []*genai.Content, systemInstruction string) {
	for _, m := range msgs {
		switch m.Role {
		case chat.RoleSystem:
			if systemInstruction == "" {
				systemInstruction = m.Content
			}
		case chat.RoleUser:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: m.Content}},
			})
		case chat.RoleAssistant:
			var parts []*genai.Part
			if m.Content != "" {
				parts = append(parts, &genai.Part{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				args := map[string]any{}
				if tc.Function.Arguments != "" {
					// Malformed arguments degrade to an empty object.
					_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
				}
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{Name: tc.Function.Name, Args: args},
				})
			}
			if len(parts) > 0 {
				contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: parts})
			}
		case chat.RoleTool:
			contents = append(contents, &genai.Content{
				Role: genai.RoleUser,
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						Name:     "tool_response",
						Response: map[string]any{"result": m.Content},
					},
				}},
			})
		}
	}
	return contents, systemInstruction
}

// schemaKeys is the subset of JSON-Schema the Gemini declaration format
// understands; everything else is dropped rather than failing the request.
var schemaKeys = map[string]bool{
	"type": true, "description": true, "properties": true,
	"required": true, "items": true, "enum": true, "default": true,
}

// SanitizeSchema strips unsupported JSON-Schema keys recursively.
func SanitizeSchema(schema map[string]any) map[string]any {
	out := make(map[string]any, len(schema))
	for k, v := range schema {
		if !schemaKeys[k] {
			continue
		}
		switch nested := v.(type) {
		case map[string]any:
			if k == "properties" {
				props := make(map[string]any, len(nested))
				for name, prop := range nested {
					if pm, ok := prop.(map[string]any); ok {
						props[name] = SanitizeSchema(pm)
					} else {
						props[name] = prop
					}
				}
				out[k] = props
			} else {
				out[k] = SanitizeSchema(nested)
			}
		default:
			out[k] = v
		}
	}
	return out
}

func buildConfig(tools []chat.ToolSchema, systemInstruction string, temperature float64) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(temperature)),
	}
	if systemInstruction != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: systemInstruction}}}
	}
	if len(tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, len(tools))
		for i, t := range tools {
			decls[i] = &genai.FunctionDeclaration{
				Name:                 t.Name,
				Description:          t.Description,
				ParametersJsonSchema: SanitizeSchema(t.Parameters),
			}
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	return config
}

func partToCall(part *genai.Part) chat.ToolCall {
	args := "{}"
	if part.FunctionCall.Args != nil {
		if raw, err := json.Marshal(part.FunctionCall.Args); err == nil {
			args = string(raw)
		}
	}
	return chat.ToolCall{
		ID:       util.NewCallID(),
		Type:     "function",
		Function: chat.ToolCallFunction{Name: part.FunctionCall.Name, Arguments: args},
	}
}

// Complete implements provider.Provider.
func (p *Provider) Complete(ctx context.Context, msgs []chat.ChatMessage, model string, tools []chat.ToolSchema, temperature float64) (chat.ChatMessage, error) {
	contents, system := BuildContents(msgs)
	if len(contents) == 0 {
		return chat.ChatMessage{}, fmt.Errorf("provider gemini: no user/assistant messages to send (got %d messages total)", len(msgs))
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, buildConfig(tools, system, temperature))
	if err != nil {
		return chat.ChatMessage{}, fmt.Errorf("provider gemini: %w", err)
	}

	msg := chat.AssistantMessage("")
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return msg, nil
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			msg.Content += part.Text
		}
		if part.FunctionCall != nil {
			msg.ToolCalls = append(msg.ToolCalls, partToCall(part))
		}
	}
	return msg, nil
}

// Stream implements provider.Provider. Function calls arrive as whole parts
// rather than fragments; they are accumulated and surfaced on the terminal
// chunk only.
func (p *Provider) Stream(ctx context.Context, msgs []chat.ChatMessage, model string, tools []chat.ToolSchema, temperature float64) (<-chan chat.StreamChunk, <-chan error) {
	out := make(chan chat.StreamChunk, 32)
	errCh := make(chan error, 1)

	contents, system := BuildContents(msgs)
	if len(contents) == 0 {
		close(out)
		errCh <- fmt.Errorf("provider gemini: no user/assistant messages to send (got %d messages total)", len(msgs))
		close(errCh)
		return out, errCh
	}

	go func() {
		defer close(out)
		defer close(errCh)

		var accumulated []chat.ToolCall
		for resp, err := range p.client.Models.GenerateContentStream(ctx, model, contents, buildConfig(tools, system, temperature)) {
			if err != nil {
				errCh <- fmt.Errorf("provider gemini: %w", err)
				return
			}
			if len(resp.Candidates) == 0 {
				continue
			}
			candidate := resp.Candidates[0]
			if candidate.Content != nil {
				var text string
				for _, part := range candidate.Content.Parts {
					if part.Text != "" {
						text += part.Text
					}
					if part.FunctionCall != nil {
						accumulated = append(accumulated, partToCall(part))
					}
				}
				if text != "" {
					select {
					case out <- chat.StreamChunk{Delta: text}:
					case <-ctx.Done():
						errCh <- ctx.Err()
						return
					}
				}
			}
			if candidate.FinishReason != "" {
				terminal := chat.StreamChunk{FinishReason: chat.FinishStop}
				if len(accumulated) > 0 {
					terminal.FinishReason = chat.FinishToolCalls
					terminal.ToolCalls = accumulated
				}
				select {
				case out <- terminal:
				case <-ctx.Done():
					errCh <- ctx.Err()
				}
				return
			}
		}
	}()

	return out, errCh
}

// ListModels implements provider.Provider with a static catalogue.
func (p *Provider) ListModels(context.Context) ([]chat.ModelInfo, error) {
	return []chat.ModelInfo{
		{ID: "gemini-2.5-flash", Name: "Gemini 2.5 Flash", Provider: "gemini", SupportsStreaming: true, SupportsTools: true, ContextWindow: 1048576},
		{ID: "gemini-2.5-pro", Name: "Gemini 2.5 Pro", Provider: "gemini", SupportsStreaming: true, SupportsTools: true, ContextWindow: 1048576},
		{ID: "gemini-2.5-flash-lite", Name: "Gemini 2.5 Flash Lite", Provider: "gemini", SupportsStreaming: true, SupportsTools: true, ContextWindow: 1048576},
		{ID: "gemini-3-flash-preview", Name: "Gemini 3 Flash Preview", Provider: "gemini", SupportsStreaming: true, SupportsTools: true, ContextWindow: 1048576},
		{ID: "gemini-3-pro-preview", Name: "Gemini 3 Pro Preview", Provider: "gemini", SupportsStreaming: true, SupportsTools: true, ContextWindow: 1048576},
	}, nil
}
