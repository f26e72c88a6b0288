package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/chat"
)

func TestFormatMessagesFlattensRoles(t *testing.T) {
	msgs := []chat.ChatMessage{
		chat.SystemMessage("be brief"),
		chat.UserMessage("hi"),
		chat.AssistantMessage("hello"),
	}

	wire := formatMessages(msgs)
	require.Len(t, wire, 3)
	assert.Equal(t, "system", wire[0].Role)
	assert.Equal(t, "be brief", wire[0].Content)
	assert.Equal(t, "assistant", wire[2].Role)
}

func TestCompleteAgainstLocalServer(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3", req.Model)
		assert.False(t, req.Stream)

		json.NewEncoder(w).Encode(chatResponse{
			Message: wireMessage{Role: "assistant", Content: "pong"},
			Done:    true,
		})
	}))
	defer ts.Close()

	p := New(ts.URL)
	msg, err := p.Complete(context.Background(), []chat.ChatMessage{chat.UserMessage("ping")}, "llama3", nil, 0.5)
	require.NoError(t, err)
	assert.Equal(t, chat.RoleAssistant, msg.Role)
	assert.Equal(t, "pong", msg.Content)
}

func TestStreamLineDelimitedChunks(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, delta := range []string{"Hel", "lo"} {
			fmt.Fprintf(w, `{"message":{"role":"assistant","content":%q},"done":false}`+"\n", delta)
		}
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true}`)
	}))
	defer ts.Close()

	p := New(ts.URL)
	chunks, errs := p.Stream(context.Background(), []chat.ChatMessage{chat.UserMessage("hi")}, "llama3", nil, 0.7)

	var full string
	var sawStop bool
	for chunk := range chunks {
		full += chunk.Delta
		if chunk.FinishReason == chat.FinishStop {
			sawStop = true
		}
	}
	require.NoError(t, <-errs)
	assert.Equal(t, "Hello", full)
	assert.True(t, sawStop)
}

func TestStreamServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	p := New(ts.URL)
	chunks, errs := p.Stream(context.Background(), nil, "llama3", nil, 0.7)
	for range chunks {
	}
	err := <-errs
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status")
}

func TestListModels(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		fmt.Fprintln(w, `{"models":[{"name":"llama3:8b","details":{"context_length":8192}},{"name":"phi3"}]}`)
	}))
	defer ts.Close()

	models, err := New(ts.URL).ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "llama3:8b", models[0].ID)
	assert.Equal(t, 8192, models[0].ContextWindow)
	assert.False(t, models[0].SupportsTools)
	// Missing context length falls back to a safe default.
	assert.Equal(t, 4096, models[1].ContextWindow)
}

func TestIsAvailableProbe(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	p := New(ts.URL)
	assert.True(t, p.IsAvailable())

	ts.Close()
	assert.False(t, p.IsAvailable())
}
