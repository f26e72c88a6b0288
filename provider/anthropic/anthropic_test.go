package anthropic

import (
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/chat"
)

func TestBuildMessagesExtractsSystem(t *testing.T) {
	system, out := BuildMessages([]chat.ChatMessage{
		chat.SystemMessage("be brief"),
		chat.UserMessage("hi"),
		chat.AssistantMessage("hello"),
	})

	assert.Equal(t, "be brief", system)
	require.Len(t, out, 2)
	assert.Equal(t, sdk.MessageParamRoleUser, out[0].Role)
	assert.Equal(t, sdk.MessageParamRoleAssistant, out[1].Role)
}

func TestBuildMessagesToolUseAndResult(t *testing.T) {
	_, out := BuildMessages([]chat.ChatMessage{
		{
			Role: chat.RoleAssistant,
			ToolCalls: []chat.ToolCall{{
				ID:       "toolu_1",
				Type:     "function",
				Function: chat.ToolCallFunction{Name: "code_executor", Arguments: `{"code":"print(1)"}`},
			}},
		},
		chat.ToolMessage("1", "toolu_1"),
	})

	require.Len(t, out, 2)

	// The tool call becomes an assistant tool_use block.
	require.Len(t, out[0].Content, 1)
	use := out[0].Content[0].OfToolUse
	require.NotNil(t, use)
	assert.Equal(t, "toolu_1", use.ID)
	assert.Equal(t, "code_executor", use.Name)

	// The tool result rides in a user message, per the Messages API shape.
	assert.Equal(t, sdk.MessageParamRoleUser, out[1].Role)
	result := out[1].Content[0].OfToolResult
	require.NotNil(t, result)
	assert.Equal(t, "toolu_1", result.ToolUseID)
}

func TestBuildToolsRequiredVariants(t *testing.T) {
	schemas := []chat.ToolSchema{
		{Name: "a", Parameters: map[string]any{"properties": map[string]any{}, "required": []string{"x"}}},
		{Name: "b", Parameters: map[string]any{"properties": map[string]any{}, "required": []any{"y", "z"}}},
	}

	out := buildTools(schemas)
	require.Len(t, out, 2)
	require.NotNil(t, out[0].OfTool)
	assert.Equal(t, "a", out[0].OfTool.Name)
	assert.Equal(t, []string{"x"}, out[0].OfTool.InputSchema.Required)
	assert.Equal(t, []string{"y", "z"}, out[1].OfTool.InputSchema.Required)
}

func TestIsAvailable(t *testing.T) {
	assert.True(t, New("sk-ant-test").IsAvailable())
	assert.False(t, New("").IsAvailable())
}
