package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/chat"
)

func TestBuildMessagesRoleMapping(t *testing.T) {
	msgs := []chat.ChatMessage{
		chat.SystemMessage("be brief"),
		chat.UserMessage("hi"),
		chat.AssistantMessage("hello"),
		chat.ToolMessage("42", "call_1"),
	}

	out := BuildMessages(msgs)
	require.Len(t, out, 4)
	assert.NotNil(t, out[0].OfSystem)
	assert.NotNil(t, out[1].OfUser)
	assert.NotNil(t, out[2].OfAssistant)
	require.NotNil(t, out[3].OfTool)
	assert.Equal(t, "call_1", out[3].OfTool.ToolCallID)
}

func TestBuildMessagesAssistantToolCalls(t *testing.T) {
	msgs := []chat.ChatMessage{{
		Role:    chat.RoleAssistant,
		Content: "let me check",
		ToolCalls: []chat.ToolCall{{
			ID:       "call_abc",
			Type:     "function",
			Function: chat.ToolCallFunction{Name: "get_datetime", Arguments: "{}"},
		}},
	}}

	out := BuildMessages(msgs)
	require.Len(t, out, 1)
	assistant := out[0].OfAssistant
	require.NotNil(t, assistant)
	require.Len(t, assistant.ToolCalls, 1)
	assert.Equal(t, "call_abc", assistant.ToolCalls[0].ID)
	assert.Equal(t, "get_datetime", assistant.ToolCalls[0].Function.Name)
}

func TestBuildParamsTools(t *testing.T) {
	params := buildParams(
		[]chat.ChatMessage{chat.UserMessage("hi")},
		"gpt-4o-mini",
		[]chat.ToolSchema{{
			Name:        "web_search",
			Description: "Search the web.",
			Parameters:  map[string]any{"type": "object", "properties": map[string]any{"query": map[string]any{"type": "string"}}},
		}},
		0.3,
	)

	assert.Equal(t, "gpt-4o-mini", string(params.Model))
	require.Len(t, params.Tools, 1)
	assert.Equal(t, "web_search", params.Tools[0].Function.Name)
}

func TestIsAvailable(t *testing.T) {
	assert.True(t, New("sk-test").IsAvailable())
	assert.False(t, New("").IsAvailable())
}
