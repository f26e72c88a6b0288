package orchestrator

// Event types emitted by the streaming chat paths. Consumers must treat
// unknown types as forward-compatible no-ops.
const (
	EventChunk          = "chunk"
	EventToolCall       = "tool_call"
	EventToolResult     = "tool_result"
	EventAgentTurnStart = "agent_turn_start"
	EventAgentTurnEnd   = "agent_turn_end"
	EventDone           = "done"
	EventError          = "error"
)

// Event is one outbound streaming protocol message.
type Event struct {
	Type           string `json:"type"`
	Delta          string `json:"delta,omitempty"`
	ToolName       string `json:"tool_name,omitempty"`
	ToolArgs       string `json:"tool_args,omitempty"`
	ToolResult     string `json:"tool_result,omitempty"`
	AgentName      string `json:"agent_name,omitempty"`
	Model          string `json:"model,omitempty"`
	MessageID      string `json:"message_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Error          string `json:"error,omitempty"`
}
