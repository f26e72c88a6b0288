// Package orchestrator is the conversation engine: it drives the bounded
// agentic loop for a single agent, schedules group rounds across every
// active agent, and handles agent-to-agent delegation. All persisted
// conversation state flows through the store; per-agent views are derived
// projections computed fresh each turn.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/parleyhq/parley/chat"
	"github.com/parleyhq/parley/logging"
	"github.com/parleyhq/parley/provider"
	"github.com/parleyhq/parley/store"
	"github.com/parleyhq/parley/tool"
)

const (
	// DefaultMaxIterations bounds the single-agent tool loop.
	DefaultMaxIterations = 10
	// DefaultGroupIterations bounds each agent's tool loop within a group turn.
	DefaultGroupIterations = 5

	ceilingMessage = "Max tool iterations reached."
)

// ChatRequest carries one inbound chat turn.
type ChatRequest struct {
	ConversationID string
	Content        string
	Model          string // "provider/model" or bare model id
	SystemPrompt   string
	Temperature    float64
}

// Service orchestrates providers, tools, and the store for chat turns.
type Service struct {
	providers *provider.Registry
	tools     *tool.Registry
	store     store.Store
	logger    logging.Logger

	maxIterations   int
	groupIterations int
}

// Option configures a Service.
type Option func(*Service)

// WithMaxIterations overrides the single-agent loop ceiling.
func WithMaxIterations(n int) Option {
	return func(s *Service) { s.maxIterations = n }
}

// WithGroupIterations overrides the per-agent ceiling within a group round.
func WithGroupIterations(n int) Option {
	return func(s *Service) { s.groupIterations = n }
}

// NewService creates the orchestration service.
func NewService(providers *provider.Registry, tools *tool.Registry, st store.Store, logger logging.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	s := &Service{
		providers:       providers,
		tools:           tools,
		store:           st,
		logger:          logger,
		maxIterations:   DefaultMaxIterations,
		groupIterations: DefaultGroupIterations,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ensureConversation loads the conversation or creates one when the id is
// empty or unknown.
func (s *Service) ensureConversation(ctx context.Context, id, model string, isGroup bool) (*store.Conversation, error) {
	if id != "" {
		conv, err := s.store.GetConversation(ctx, id)
		if err == nil {
			return conv, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	title := "New Chat"
	if isGroup {
		title = "Group Chat"
	}
	conv := &store.Conversation{ID: id, Title: title, Model: model, IsGroup: isGroup}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// historyFromMessages converts persisted rows into the normalized model,
// optionally prefixing a system prompt.
func historyFromMessages(msgs []*store.Message, systemPrompt string) []chat.ChatMessage {
	var out []chat.ChatMessage
	if systemPrompt != "" {
		out = append(out, chat.SystemMessage(systemPrompt))
	}
	for _, m := range msgs {
		out = append(out, chat.ChatMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCalls:  decodeToolCalls(m.ToolCallsJSON),
			ToolCallID: m.ToolCallID,
			AgentName:  m.AgentName,
		})
	}
	return out
}

func decodeToolCalls(raw string) []chat.ToolCall {
	if raw == "" {
		return nil
	}
	var calls []chat.ToolCall
	if err := json.Unmarshal([]byte(raw), &calls); err != nil {
		return nil
	}
	return calls
}

func encodeToolCalls(calls []chat.ToolCall) string {
	raw, err := json.Marshal(calls)
	if err != nil {
		return "[]"
	}
	return string(raw)
}

// resolveProvider parses a model string and looks up the provider.
func (s *Service) resolveProvider(model string) (provider.Provider, string, error) {
	providerName, modelID := chat.ParseModelString(model)
	prov, err := s.providers.Get(providerName)
	if err != nil {
		return nil, "", err
	}
	return prov, modelID, nil
}

// executeToolCall runs one call and always yields result text; lookup and
// execution failures become text the model can read.
func (s *Service) executeToolCall(ctx context.Context, tc chat.ToolCall) string {
	result, err := s.tools.Execute(ctx, tc.Function.Name, tc.Function.Arguments)
	if err != nil {
		s.logger.Warn("tool execution failed", "tool", tc.Function.Name, "error", err)
		return "Tool error: " + err.Error()
	}
	return result
}

// Chat runs the non-streaming single-agent loop and returns the final
// assistant message. When the iteration ceiling is hit the returned message
// carries the ceiling sentinel and is not persisted.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (*store.Message, error) {
	prov, modelID, err := s.resolveProvider(req.Model)
	if err != nil {
		return nil, err
	}
	conv, err := s.ensureConversation(ctx, req.ConversationID, req.Model, false)
	if err != nil {
		return nil, err
	}

	if err := s.store.AppendMessage(ctx, &store.Message{
		ConversationID: conv.ID, Role: chat.RoleUser, Content: req.Content,
	}); err != nil {
		return nil, err
	}

	persisted, err := s.store.Messages(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	prompt := req.SystemPrompt
	if prompt == "" {
		prompt = conv.SystemPrompt
	}
	history := historyFromMessages(persisted, prompt)
	schemas := s.tools.AsProviderFormat(nil)

	for i := 0; i < s.maxIterations; i++ {
		result, err := prov.Complete(ctx, history, modelID, schemas, req.Temperature)
		if err != nil {
			return nil, err
		}

		if len(result.ToolCalls) == 0 {
			final := &store.Message{
				ConversationID: conv.ID, Role: chat.RoleAssistant, Content: result.Content,
			}
			if err := s.store.AppendMessage(ctx, final); err != nil {
				return nil, err
			}
			return final, nil
		}

		if err := s.store.AppendMessage(ctx, &store.Message{
			ConversationID: conv.ID,
			Role:           chat.RoleAssistant,
			Content:        result.Content,
			ToolCallsJSON:  encodeToolCalls(result.ToolCalls),
		}); err != nil {
			return nil, err
		}
		history = append(history, result)

		for _, tc := range result.ToolCalls {
			text := s.executeToolCall(ctx, tc)
			if err := s.store.AppendMessage(ctx, &store.Message{
				ConversationID: conv.ID, Role: chat.RoleTool, Content: text, ToolCallID: tc.ID,
			}); err != nil {
				return nil, err
			}
			history = append(history, chat.ToolMessage(text, tc.ID))
		}
	}

	return &store.Message{ConversationID: conv.ID, Role: chat.RoleAssistant, Content: ceilingMessage}, nil
}

// emit sends an event unless the context is done.
func emit(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// drainStream consumes one provider stream, forwarding text deltas through
// onDelta and accumulating completed tool calls for the terminal chunk.
func drainStream(chunks <-chan chat.StreamChunk, errs <-chan error, onDelta func(string) bool) (string, []chat.ToolCall, error) {
	var full strings.Builder
	var calls []chat.ToolCall
	for chunk := range chunks {
		if chunk.Delta != "" {
			full.WriteString(chunk.Delta)
			if onDelta != nil && !onDelta(chunk.Delta) {
				return full.String(), calls, context.Canceled
			}
		}
		if len(chunk.ToolCalls) > 0 {
			calls = append(calls, chunk.ToolCalls...)
		}
	}
	if err := <-errs; err != nil {
		return full.String(), calls, err
	}
	return full.String(), calls, nil
}

// StreamChat runs the streaming single-agent loop. The returned channel is
// closed after the terminal done or error event.
func (s *Service) StreamChat(ctx context.Context, req ChatRequest) <-chan Event {
	out := make(chan Event, 32)

	go func() {
		defer close(out)

		fail := func(err error) {
			emit(ctx, out, Event{Type: EventError, Error: err.Error()})
		}

		prov, modelID, err := s.resolveProvider(req.Model)
		if err != nil {
			fail(err)
			return
		}
		conv, err := s.ensureConversation(ctx, req.ConversationID, req.Model, false)
		if err != nil {
			fail(err)
			return
		}
		if err := s.store.AppendMessage(ctx, &store.Message{
			ConversationID: conv.ID, Role: chat.RoleUser, Content: req.Content,
		}); err != nil {
			fail(err)
			return
		}

		persisted, err := s.store.Messages(ctx, conv.ID)
		if err != nil {
			fail(err)
			return
		}
		prompt := req.SystemPrompt
		if prompt == "" {
			prompt = conv.SystemPrompt
		}
		history := historyFromMessages(persisted, prompt)
		schemas := s.tools.AsProviderFormat(nil)

		if !emit(ctx, out, Event{Type: EventAgentTurnStart, AgentName: "Assistant"}) {
			return
		}

		for i := 0; i < s.maxIterations; i++ {
			chunks, errs := prov.Stream(ctx, history, modelID, schemas, req.Temperature)
			full, calls, err := drainStream(chunks, errs, func(delta string) bool {
				return emit(ctx, out, Event{Type: EventChunk, Delta: delta})
			})
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					fail(err)
				}
				return
			}

			if len(calls) == 0 {
				final := &store.Message{ConversationID: conv.ID, Role: chat.RoleAssistant, Content: full}
				if err := s.store.AppendMessage(ctx, final); err != nil {
					fail(err)
					return
				}
				if !emit(ctx, out, Event{Type: EventAgentTurnEnd, AgentName: "Assistant", MessageID: final.ID}) {
					return
				}
				emit(ctx, out, Event{Type: EventDone, ConversationID: conv.ID, MessageID: final.ID})
				return
			}

			if err := s.store.AppendMessage(ctx, &store.Message{
				ConversationID: conv.ID,
				Role:           chat.RoleAssistant,
				Content:        full,
				ToolCallsJSON:  encodeToolCalls(calls),
			}); err != nil {
				fail(err)
				return
			}
			history = append(history, chat.ChatMessage{Role: chat.RoleAssistant, Content: full, ToolCalls: calls})

			for _, tc := range calls {
				if !emit(ctx, out, Event{Type: EventToolCall, ToolName: tc.Function.Name, ToolArgs: tc.Function.Arguments}) {
					return
				}
				text := s.executeToolCall(ctx, tc)
				if err := s.store.AppendMessage(ctx, &store.Message{
					ConversationID: conv.ID, Role: chat.RoleTool, Content: text, ToolCallID: tc.ID,
				}); err != nil {
					fail(err)
					return
				}
				history = append(history, chat.ToolMessage(text, tc.ID))
				if !emit(ctx, out, Event{Type: EventToolResult, ToolName: tc.Function.Name, ToolResult: text}) {
					return
				}
			}
		}

		emit(ctx, out, Event{Type: EventDone, ConversationID: conv.ID})
	}()

	return out
}

// agentView derives one agent's private projection of the shared log: its
// own assistant messages stay assistant-role, every other agent's assistant
// messages are reframed as user-role text prefixed with the sender's name,
// and user/tool messages pass through unchanged.
func agentView(msgs []*store.Message, agentName, systemPrompt string) []chat.ChatMessage {
	out := []chat.ChatMessage{chat.SystemMessage(systemPrompt)}
	for _, m := range msgs {
		if m.Role == chat.RoleAssistant && m.AgentName != agentName {
			sender := m.AgentName
			if sender == "" {
				sender = "Another Agent"
			}
			out = append(out, chat.UserMessage(fmt.Sprintf("[%s]: %s", sender, m.Content)))
			continue
		}
		out = append(out, chat.ChatMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCalls:  decodeToolCalls(m.ToolCallsJSON),
			ToolCallID: m.ToolCallID,
		})
	}
	return out
}

// StreamGroupChat gives every active agent exactly one turn in response to
// the user message. Turns run strictly sequentially; each agent re-reads
// the persisted history so it sees what earlier agents in the round said.
func (s *Service) StreamGroupChat(ctx context.Context, req ChatRequest) <-chan Event {
	out := make(chan Event, 32)

	go func() {
		defer close(out)

		conv, err := s.ensureConversation(ctx, req.ConversationID, "", true)
		if err != nil {
			emit(ctx, out, Event{Type: EventError, Error: err.Error()})
			return
		}
		if err := s.store.AppendMessage(ctx, &store.Message{
			ConversationID: conv.ID, Role: chat.RoleUser, Content: req.Content,
		}); err != nil {
			emit(ctx, out, Event{Type: EventError, Error: err.Error()})
			return
		}

		// The snapshot is fixed for the round; agents activated mid-round
		// are not retroactively included.
		agents, err := s.store.ListActiveAgents(ctx)
		if err != nil {
			emit(ctx, out, Event{Type: EventError, Error: err.Error()})
			return
		}
		if len(agents) == 0 {
			emit(ctx, out, Event{
				Type:           EventError,
				Error:          "No active agents found for group chat.",
				ConversationID: conv.ID,
			})
			return
		}

		skills, err := s.store.ListSkills(ctx)
		if err != nil {
			emit(ctx, out, Event{Type: EventError, Error: err.Error()})
			return
		}

		for _, agent := range agents {
			if !s.runGroupTurn(ctx, out, conv.ID, agent, skills, req.Temperature) {
				return
			}
		}

		emit(ctx, out, Event{Type: EventDone, ConversationID: conv.ID})
	}()

	return out
}

// runGroupTurn executes one agent's full turn. It reports false when the
// consumer is gone and the round should stop.
func (s *Service) runGroupTurn(ctx context.Context, out chan<- Event, convID string, agent *store.Agent, skills []*store.Skill, temperature float64) bool {
	prov, modelID, err := s.resolveProvider(agent.Model)
	if err != nil {
		s.logger.Warn("skipping agent with unavailable provider", "agent", agent.Name, "error", err)
		return true
	}

	persisted, err := s.store.Messages(ctx, convID)
	if err != nil {
		return emit(ctx, out, Event{Type: EventError, Error: err.Error()})
	}

	prompt := buildAgentPrompt(agent, skills) + groupInstruction(agent.Name)
	history := agentView(persisted, agent.Name, prompt)
	schemas := s.tools.AsProviderFormat(agent.EnabledTools)

	if !emit(ctx, out, Event{Type: EventAgentTurnStart, AgentName: agent.Name, Model: agent.Model}) {
		return false
	}

	var lastMessageID string
	for i := 0; i < s.groupIterations; i++ {
		chunks, errs := prov.Stream(ctx, history, modelID, schemas, temperature)
		full, calls, err := drainStream(chunks, errs, func(delta string) bool {
			return emit(ctx, out, Event{Type: EventChunk, Delta: delta, AgentName: agent.Name})
		})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return false
			}
			return emit(ctx, out, Event{Type: EventError, Error: err.Error(), AgentName: agent.Name})
		}

		if len(calls) == 0 {
			final := &store.Message{
				ConversationID: convID, Role: chat.RoleAssistant, Content: full, AgentName: agent.Name,
			}
			if err := s.store.AppendMessage(ctx, final); err != nil {
				return emit(ctx, out, Event{Type: EventError, Error: err.Error()})
			}
			lastMessageID = final.ID
			break
		}

		record := &store.Message{
			ConversationID: convID,
			Role:           chat.RoleAssistant,
			Content:        full,
			AgentName:      agent.Name,
			ToolCallsJSON:  encodeToolCalls(calls),
		}
		if err := s.store.AppendMessage(ctx, record); err != nil {
			return emit(ctx, out, Event{Type: EventError, Error: err.Error()})
		}
		lastMessageID = record.ID
		history = append(history, chat.ChatMessage{Role: chat.RoleAssistant, Content: full, ToolCalls: calls})

		for _, tc := range calls {
			if !emit(ctx, out, Event{Type: EventToolCall, ToolName: tc.Function.Name, ToolArgs: tc.Function.Arguments, AgentName: agent.Name}) {
				return false
			}
			text := s.executeToolCall(ctx, tc)
			if err := s.store.AppendMessage(ctx, &store.Message{
				ConversationID: convID, Role: chat.RoleTool, Content: text, ToolCallID: tc.ID,
			}); err != nil {
				return emit(ctx, out, Event{Type: EventError, Error: err.Error()})
			}
			history = append(history, chat.ToolMessage(text, tc.ID))
			if !emit(ctx, out, Event{Type: EventToolResult, ToolName: tc.Function.Name, ToolResult: text, AgentName: agent.Name}) {
				return false
			}
		}
	}

	return emit(ctx, out, Event{Type: EventAgentTurnEnd, AgentName: agent.Name, MessageID: lastMessageID})
}

// Delegate runs a task as the target agent inside that agent's own
// conversation and returns the response text along with the conversation id
// the work was persisted in.
func (s *Service) Delegate(ctx context.Context, agentID, task, delegatedBy string) (string, string, error) {
	agent, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		return "", "", err
	}
	prov, modelID, err := s.resolveProvider(agent.Model)
	if err != nil {
		return "", "", err
	}

	conv, err := s.agentConversation(ctx, agent)
	if err != nil {
		return "", "", err
	}

	content := task
	if delegatedBy != "" {
		content = fmt.Sprintf("[Delegated by %s]: %s", delegatedBy, task)
	}
	if err := s.store.AppendMessage(ctx, &store.Message{
		ConversationID: conv.ID, Role: chat.RoleUser, Content: content,
	}); err != nil {
		return "", "", err
	}

	skills, err := s.store.ListSkills(ctx)
	if err != nil {
		return "", "", err
	}

	persisted, err := s.store.Messages(ctx, conv.ID)
	if err != nil {
		return "", "", err
	}
	history := historyFromMessages(persisted, buildAgentPrompt(agent, skills))
	schemas := s.tools.AsProviderFormat(agent.EnabledTools)

	for i := 0; i < s.maxIterations; i++ {
		result, err := prov.Complete(ctx, history, modelID, schemas, 0.7)
		if err != nil {
			return "", "", err
		}

		if len(result.ToolCalls) == 0 {
			if err := s.store.AppendMessage(ctx, &store.Message{
				ConversationID: conv.ID, Role: chat.RoleAssistant, Content: result.Content, AgentName: agent.Name,
			}); err != nil {
				return "", "", err
			}
			return result.Content, conv.ID, nil
		}

		if err := s.store.AppendMessage(ctx, &store.Message{
			ConversationID: conv.ID,
			Role:           chat.RoleAssistant,
			Content:        result.Content,
			AgentName:      agent.Name,
			ToolCallsJSON:  encodeToolCalls(result.ToolCalls),
		}); err != nil {
			return "", "", err
		}
		history = append(history, result)

		for _, tc := range result.ToolCalls {
			text := s.executeToolCall(ctx, tc)
			if err := s.store.AppendMessage(ctx, &store.Message{
				ConversationID: conv.ID, Role: chat.RoleTool, Content: text, ToolCallID: tc.ID,
			}); err != nil {
				return "", "", err
			}
			history = append(history, chat.ToolMessage(text, tc.ID))
		}
	}

	return ceilingMessage, conv.ID, nil
}

// agentConversation finds the agent's own conversation, creating it on
// first delegation.
func (s *Service) agentConversation(ctx context.Context, agent *store.Agent) (*store.Conversation, error) {
	existing, err := s.store.ListConversations(ctx, 1, 0, agent.ID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return existing[0], nil
	}
	conv := &store.Conversation{
		Title:   "Chat with " + agent.Name,
		Model:   agent.Model,
		AgentID: agent.ID,
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}
