package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/chat"
	"github.com/parleyhq/parley/provider"
	"github.com/parleyhq/parley/store"
	"github.com/parleyhq/parley/tool"
)

// stubTool returns a fixed result and records invocations.
type stubTool struct {
	name   string
	result string
	calls  int
}

func (t *stubTool) Name() string                { return t.name }
func (t *stubTool) Description() string         { return "stub" }
func (t *stubTool) Parameters() map[string]any  { return map[string]any{"type": "object", "properties": map[string]any{}} }
func (t *stubTool) Execute(context.Context, map[string]any) (string, error) {
	t.calls++
	return t.result, nil
}

func toolCallMessage(name, args string) chat.ChatMessage {
	return chat.ChatMessage{
		Role: chat.RoleAssistant,
		ToolCalls: []chat.ToolCall{{
			ID:       "call_test01",
			Type:     "function",
			Function: chat.ToolCallFunction{Name: name, Arguments: args},
		}},
	}
}

func newTestService(t *testing.T, mock *provider.Mock, tools ...tool.Tool) (*Service, store.Store) {
	t.Helper()

	providers := provider.NewRegistry()
	providers.Add(mock)

	registry := tool.NewRegistry()
	for _, tl := range tools {
		registry.Register(tl)
	}

	st := store.NewMemory()
	return NewService(providers, registry, st, nil), st
}

func collect(events <-chan Event) []Event {
	var out []Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func eventTypes(events []Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

func TestChatToolRoundTripScenario(t *testing.T) {
	mock := provider.NewMock("mock",
		toolCallMessage("code_executor", `{"code":"print(2+2)"}`),
		chat.AssistantMessage("The answer is 4."),
	)
	executor := &stubTool{name: "code_executor", result: "4"}
	svc, st := newTestService(t, mock, executor)

	final, err := svc.Chat(context.Background(), ChatRequest{
		Content: "Add 2 and 2 using code",
		Model:   "mock/mock-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "The answer is 4.", final.Content)
	assert.Equal(t, 2, mock.Calls())
	assert.Equal(t, 1, executor.calls)

	msgs, err := st.Messages(context.Background(), final.ConversationID)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, chat.RoleUser, msgs[0].Role)
	assert.Equal(t, chat.RoleAssistant, msgs[1].Role)
	assert.Contains(t, msgs[1].ToolCallsJSON, "code_executor")
	assert.Equal(t, chat.RoleTool, msgs[2].Role)
	assert.Equal(t, "4", msgs[2].Content)
	assert.Equal(t, "call_test01", msgs[2].ToolCallID)
	assert.Equal(t, chat.RoleAssistant, msgs[3].Role)
	assert.Equal(t, "The answer is 4.", msgs[3].Content)
}

func TestChatBoundedLoop(t *testing.T) {
	// The script's last entry repeats, so the model asks for a tool forever.
	mock := provider.NewMock("mock", toolCallMessage("echo", `{}`))
	svc, _ := newTestService(t, mock, &stubTool{name: "echo", result: "ok"})

	final, err := svc.Chat(context.Background(), ChatRequest{Content: "loop", Model: "mock/mock-1"})
	require.NoError(t, err)

	assert.Equal(t, "Max tool iterations reached.", final.Content)
	assert.Equal(t, DefaultMaxIterations, mock.Calls())
	// The sentinel is not persisted.
	assert.Empty(t, final.ID)
}

func TestChatUnknownProvider(t *testing.T) {
	svc, _ := newTestService(t, provider.NewMock("mock"))

	_, err := svc.Chat(context.Background(), ChatRequest{Content: "hi", Model: "missing/some-model"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `provider "missing" not found`)
}

func TestChatUnknownToolFedBackAsResult(t *testing.T) {
	mock := provider.NewMock("mock",
		toolCallMessage("nonexistent", `{}`),
		chat.AssistantMessage("recovered"),
	)
	svc, st := newTestService(t, mock)

	final, err := svc.Chat(context.Background(), ChatRequest{Content: "go", Model: "mock/mock-1"})
	require.NoError(t, err)
	assert.Equal(t, "recovered", final.Content)

	msgs, err := st.Messages(context.Background(), final.ConversationID)
	require.NoError(t, err)
	assert.Contains(t, msgs[2].Content, `tool "nonexistent" not found`)
}

func TestStreamChatEventSequence(t *testing.T) {
	mock := provider.NewMock("mock",
		toolCallMessage("code_executor", `{"code":"print(2+2)"}`),
		chat.AssistantMessage("The answer is 4."),
	)
	svc, _ := newTestService(t, mock, &stubTool{name: "code_executor", result: "4"})

	events := collect(svc.StreamChat(context.Background(), ChatRequest{
		Content: "Add 2 and 2 using code",
		Model:   "mock/mock-1",
	}))

	assert.Equal(t, []string{
		EventAgentTurnStart,
		EventToolCall,
		EventToolResult,
		EventChunk,
		EventAgentTurnEnd,
		EventDone,
	}, eventTypes(events))

	assert.Equal(t, "code_executor", events[1].ToolName)
	assert.Equal(t, `{"code":"print(2+2)"}`, events[1].ToolArgs)
	assert.Equal(t, "4", events[2].ToolResult)
	assert.Equal(t, "The answer is 4.", events[3].Delta)

	done := events[len(events)-1]
	assert.NotEmpty(t, done.ConversationID)
	assert.NotEmpty(t, done.MessageID)
	assert.Equal(t, events[4].MessageID, done.MessageID)
}

func TestStreamChatProviderNotFound(t *testing.T) {
	svc, _ := newTestService(t, provider.NewMock("mock"))

	events := collect(svc.StreamChat(context.Background(), ChatRequest{Content: "hi", Model: "nope/x"}))
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Type)
	assert.Contains(t, events[0].Error, "not found")
}

func addAgent(t *testing.T, st store.Store, id, name string) *store.Agent {
	t.Helper()
	a := &store.Agent{ID: id, Name: name, Provider: "mock", Model: "mock/mock-1", IsActive: true}
	require.NoError(t, st.CreateAgent(context.Background(), a))
	return a
}

func TestGroupRoundCompleteness(t *testing.T) {
	mock := provider.NewMock("mock", chat.AssistantMessage("hello from an agent"))
	svc, st := newTestService(t, mock)

	addAgent(t, st, "agent-a", "Alpha")
	addAgent(t, st, "agent-b", "Beta")

	events := collect(svc.StreamGroupChat(context.Background(), ChatRequest{Content: "hi all"}))

	var starts, ends []string
	for _, ev := range events {
		switch ev.Type {
		case EventAgentTurnStart:
			starts = append(starts, ev.AgentName)
		case EventAgentTurnEnd:
			ends = append(ends, ev.AgentName)
		}
	}
	// Snapshot order is agent id ascending.
	assert.Equal(t, []string{"Alpha", "Beta"}, starts)
	assert.Equal(t, []string{"Alpha", "Beta"}, ends)
	assert.Equal(t, EventDone, events[len(events)-1].Type)

	// Every turn-end precedes the done marker and each agent produced one
	// persisted assistant message.
	convID := events[len(events)-1].ConversationID
	msgs, err := st.Messages(context.Background(), convID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "Alpha", msgs[1].AgentName)
	assert.Equal(t, "Beta", msgs[2].AgentName)
}

func TestGroupHistoryReframing(t *testing.T) {
	mock := provider.NewMock("mock", chat.AssistantMessage("noted"))
	svc, st := newTestService(t, mock)
	ctx := context.Background()

	addAgent(t, st, "agent-a", "Alpha")
	addAgent(t, st, "agent-b", "Beta")

	conv := &store.Conversation{Title: "Group Chat", IsGroup: true}
	require.NoError(t, st.CreateConversation(ctx, conv))
	require.NoError(t, st.AppendMessage(ctx, &store.Message{
		ConversationID: conv.ID, Role: chat.RoleUser, Content: "previous question",
	}))
	require.NoError(t, st.AppendMessage(ctx, &store.Message{
		ConversationID: conv.ID, Role: chat.RoleAssistant, Content: "alpha's take", AgentName: "Alpha",
	}))
	require.NoError(t, st.AppendMessage(ctx, &store.Message{
		ConversationID: conv.ID, Role: chat.RoleAssistant, Content: "beta's take", AgentName: "Beta",
	}))

	collect(svc.StreamGroupChat(ctx, ChatRequest{ConversationID: conv.ID, Content: "continue"}))

	require.Len(t, mock.Histories, 2)

	// Beta's private view: Alpha's message is reframed as user input with a
	// name prefix; Beta's own stays assistant-role verbatim.
	betaView := mock.Histories[1]
	var sawAlpha, sawOwn bool
	for _, m := range betaView {
		if m.Role == chat.RoleUser && m.Content == "[Alpha]: alpha's take" {
			sawAlpha = true
		}
		if m.Role == chat.RoleAssistant && m.Content == "beta's take" {
			sawOwn = true
		}
	}
	assert.True(t, sawAlpha, "Alpha's message should be reframed for Beta")
	assert.True(t, sawOwn, "Beta's own message should stay assistant-role")

	// Beta also sees what Alpha said earlier in this same round.
	var sawRoundMessage bool
	for _, m := range betaView {
		if m.Role == chat.RoleUser && m.Content == "[Alpha]: noted" {
			sawRoundMessage = true
		}
	}
	assert.True(t, sawRoundMessage, "Beta should see Alpha's turn from this round")
}

func TestGroupNoActiveAgents(t *testing.T) {
	svc, st := newTestService(t, provider.NewMock("mock"))

	events := collect(svc.StreamGroupChat(context.Background(), ChatRequest{Content: "anyone?"}))
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Type)
	assert.Equal(t, "No active agents found for group chat.", events[0].Error)

	// Only the user message was persisted.
	msgs, err := st.Messages(context.Background(), events[0].ConversationID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, chat.RoleUser, msgs[0].Role)
}

func TestGroupAgentToolLoopCeiling(t *testing.T) {
	mock := provider.NewMock("mock", toolCallMessage("echo", `{}`))
	svc, _ := newTestService(t, mock, &stubTool{name: "echo", result: "ok"})
	st := svc.store
	addAgent(t, st, "agent-a", "Alpha")

	events := collect(svc.StreamGroupChat(context.Background(), ChatRequest{Content: "loop"}))

	assert.Equal(t, DefaultGroupIterations, mock.Calls())
	assert.Equal(t, EventDone, events[len(events)-1].Type)
}

func TestDelegateReturnsConversationIDExplicitly(t *testing.T) {
	mock := provider.NewMock("mock", chat.AssistantMessage("campaign plan ready"))
	svc, st := newTestService(t, mock)
	agent := addAgent(t, st, "agent-m", "Marketing")

	response, convID, err := svc.Delegate(context.Background(), agent.ID, "draft a campaign", "Main Agent")
	require.NoError(t, err)
	assert.Equal(t, "campaign plan ready", response)
	require.NotEmpty(t, convID)

	conv, err := st.GetConversation(context.Background(), convID)
	require.NoError(t, err)
	assert.Equal(t, agent.ID, conv.AgentID)

	msgs, err := st.Messages(context.Background(), convID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "[Delegated by Main Agent]: draft a campaign", msgs[0].Content)
	assert.Equal(t, "Marketing", msgs[1].AgentName)

	// A second delegation reuses the same conversation.
	_, convID2, err := svc.Delegate(context.Background(), agent.ID, "another task", "Main Agent")
	require.NoError(t, err)
	assert.Equal(t, convID, convID2)
}

func TestBuildAgentPromptFallback(t *testing.T) {
	prompt := buildAgentPrompt(&store.Agent{Name: "Scout"}, nil)
	assert.Contains(t, prompt, "You are Scout, a capable AI assistant.")

	configured := buildAgentPrompt(&store.Agent{
		Name:               "Analyst",
		SystemPrompt:       "You analyze data.",
		PersonalityTone:    "precise",
		PersonalityTraits:  []string{"thorough", "curious"},
		CommunicationStyle: "concise",
		ReasoningStyle:     "analytical",
		MemoryContext:      "The team ships weekly.",
		MemoryInstructions: "Always cite sources.",
	}, []*store.Skill{{Name: "summarize", Instructions: "Keep it short.", IsActive: true}})

	assert.Contains(t, configured, "You analyze data.")
	assert.Contains(t, configured, "Your tone is precise.")
	assert.Contains(t, configured, "thorough, curious")
	assert.Contains(t, configured, "concise style")
	assert.Contains(t, configured, "analytical reasoning style")
	assert.Contains(t, configured, "## Memory\nThe team ships weekly.")
	assert.Contains(t, configured, "## Standing Instructions\nAlways cite sources.")
	assert.Contains(t, configured, "## Skill: summarize")
	assert.NotContains(t, buildAgentPrompt(&store.Agent{Name: "X"}, []*store.Skill{{Name: "off", Instructions: "hidden", IsActive: false}}), "hidden")
}

func TestAgentViewPassesThroughToolMessages(t *testing.T) {
	msgs := []*store.Message{
		{Role: chat.RoleUser, Content: "question"},
		{Role: chat.RoleAssistant, Content: "own reply", AgentName: "Me"},
		{Role: chat.RoleTool, Content: "tool output", ToolCallID: "call_1"},
		{Role: chat.RoleAssistant, Content: "other reply"},
	}
	view := agentView(msgs, "Me", "prompt")

	require.Len(t, view, 5)
	assert.Equal(t, chat.RoleSystem, view[0].Role)
	assert.Equal(t, chat.RoleUser, view[1].Role)
	assert.Equal(t, chat.RoleAssistant, view[2].Role)
	assert.Equal(t, chat.RoleTool, view[3].Role)
	assert.Equal(t, "call_1", view[3].ToolCallID)
	// Unnamed foreign assistant messages get the generic prefix.
	assert.Equal(t, chat.RoleUser, view[4].Role)
	assert.Equal(t, "[Another Agent]: other reply", view[4].Content)
}

// blockingTool parks inside Execute until the request context is cancelled.
type blockingTool struct {
	started chan struct{}
}

func (t *blockingTool) Name() string               { return "slow" }
func (t *blockingTool) Description() string        { return "blocks" }
func (t *blockingTool) Parameters() map[string]any { return map[string]any{"type": "object", "properties": map[string]any{}} }
func (t *blockingTool) Execute(ctx context.Context, _ map[string]any) (string, error) {
	select {
	case t.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return "interrupted", nil
}

func TestStreamChatCancellationStopsLoop(t *testing.T) {
	mock := provider.NewMock("mock", toolCallMessage("slow", `{}`))
	blocker := &blockingTool{started: make(chan struct{}, 1)}
	svc, _ := newTestService(t, mock, blocker)

	ctx, cancel := context.WithCancel(context.Background())
	events := svc.StreamChat(ctx, ChatRequest{Content: "go", Model: "mock/mock-1"})

	<-blocker.started
	cancel()

	for range events {
	}
	assert.Equal(t, 1, mock.Calls(), "loop should stop after the in-flight iteration")
}
