package provider

import (
	"context"
	"sync"

	"github.com/parleyhq/parley/chat"
)

// Mock is an in-memory Provider replaying a scripted sequence of assistant
// messages. Each Complete or Stream call consumes the next script entry;
// once the script is exhausted the last entry repeats. It records every
// history it receives so tests can assert on per-agent views.
type Mock struct {
	mu        sync.Mutex
	name      string
	script    []chat.ChatMessage
	calls     int
	Histories [][]chat.ChatMessage
}

// NewMock constructs a mock provider with the given scripted responses.
func NewMock(name string, script ...chat.ChatMessage) *Mock {
	if len(script) == 0 {
		script = []chat.ChatMessage{chat.AssistantMessage("mock response")}
	}
	return &Mock{name: name, script: script}
}

// Name implements Provider.
func (m *Mock) Name() string { return m.name }

// IsAvailable implements Provider.
func (m *Mock) IsAvailable() bool { return true }

// Calls returns how many completions have been issued.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *Mock) next(msgs []chat.ChatMessage) chat.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := make([]chat.ChatMessage, len(msgs))
	copy(snapshot, msgs)
	m.Histories = append(m.Histories, snapshot)
	i := m.calls
	if i >= len(m.script) {
		i = len(m.script) - 1
	}
	m.calls++
	return m.script[i]
}

// Complete implements Provider.
func (m *Mock) Complete(_ context.Context, msgs []chat.ChatMessage, _ string, _ []chat.ToolSchema, _ float64) (chat.ChatMessage, error) {
	return m.next(msgs), nil
}

// Stream implements Provider; it emits the scripted content as a single
// delta followed by a terminal chunk.
func (m *Mock) Stream(ctx context.Context, msgs []chat.ChatMessage, _ string, _ []chat.ToolSchema, _ float64) (<-chan chat.StreamChunk, <-chan error) {
	out := make(chan chat.StreamChunk, 4)
	errCh := make(chan error, 1)
	resp := m.next(msgs)
	go func() {
		defer close(out)
		defer close(errCh)
		if resp.Content != "" {
			select {
			case out <- chat.StreamChunk{Delta: resp.Content}:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
		terminal := chat.StreamChunk{FinishReason: chat.FinishStop}
		if len(resp.ToolCalls) > 0 {
			terminal.FinishReason = chat.FinishToolCalls
			terminal.ToolCalls = resp.ToolCalls
		}
		select {
		case out <- terminal:
		case <-ctx.Done():
			errCh <- ctx.Err()
		}
	}()
	return out, errCh
}

// ListModels implements Provider.
func (m *Mock) ListModels(context.Context) ([]chat.ModelInfo, error) {
	return []chat.ModelInfo{{
		ID:                "mock-1",
		Name:              "Mock 1",
		Provider:          m.name,
		SupportsStreaming: true,
		SupportsTools:     true,
		ContextWindow:     8192,
	}}, nil
}
