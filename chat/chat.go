// Package chat defines the normalized message model shared by every provider
// adapter and by the orchestrator. It is the interchange format: adapters
// translate these types to and from each backend's wire format, and the
// orchestration loop only ever sees these types.
package chat

import "strings"

// Roles used throughout the conversation log.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Finish reasons surfaced on the terminal chunk of a stream.
const (
	FinishStop      = "stop"
	FinishToolCalls = "tool_calls"
)

// ToolCallFunction is the concrete function target of a tool call.
// Arguments is the raw JSON-encoded argument object as produced by the model.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is one requested tool invocation surfaced by a model. The ID
// correlates the call with the eventual tool-result message.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"` // always "function"
	Function ToolCallFunction `json:"function"`
}

// ChatMessage is one turn unit exchanged with a provider. Value type,
// never mutated after construction.
//
// A message with Role == RoleTool carries the ToolCallID of the assistant
// tool call it answers. AgentName identifies the authoring agent in group
// conversations and is empty elsewhere.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	AgentName  string     `json:"agent_name,omitempty"`
}

// SystemMessage constructs a system-role message.
func SystemMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleSystem, Content: content}
}

// UserMessage constructs a user-role message.
func UserMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: content}
}

// AssistantMessage constructs an assistant-role message.
func AssistantMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Content: content}
}

// ToolMessage constructs a tool-result message answering the given call id.
func ToolMessage(content, toolCallID string) ChatMessage {
	return ChatMessage{Role: RoleTool, Content: content, ToolCallID: toolCallID}
}

// StreamChunk is one increment of a streaming response. Delta may be empty.
// ToolCalls is only non-nil once the backend has signalled completion of a
// tool-call block; partially accumulated calls are never surfaced. A chunk
// with a non-empty FinishReason terminates the stream.
type StreamChunk struct {
	Delta        string     `json:"delta"`
	FinishReason string     `json:"finish_reason,omitempty"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
}

// ModelInfo describes one model offered by a provider.
type ModelInfo struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Provider          string `json:"provider"`
	SupportsStreaming bool   `json:"supports_streaming"`
	SupportsTools     bool   `json:"supports_tools"`
	ContextWindow     int    `json:"context_window"`
}

// ToolSchema is the provider-facing description of an invocable tool:
// name, description and a JSON-Schema parameter object.
type ToolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ParseModelString splits "provider/model" into its parts. A bare model id
// defaults to the openai provider.
func ParseModelString(s string) (provider, model string) {
	if i := strings.IndexByte(s, '/'); i >= 0 {
		return s[:i], s[i+1:]
	}
	return "openai", s
}
