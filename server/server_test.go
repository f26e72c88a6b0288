package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/chat"
	"github.com/parleyhq/parley/config"
	"github.com/parleyhq/parley/orchestrator"
	"github.com/parleyhq/parley/provider"
	"github.com/parleyhq/parley/store"
	"github.com/parleyhq/parley/tool"
	"github.com/parleyhq/parley/workflow"
)

func newTestServer(t *testing.T, mock *provider.Mock) (*httptest.Server, store.Store) {
	t.Helper()

	providers := provider.NewRegistry()
	providers.Add(mock)
	st := store.NewMemory()
	svc := orchestrator.NewService(providers, tool.NewRegistry(), st, nil)
	engine := workflow.NewEngine(st, providers, nil, workflow.WithModel("mock/mock-1"))
	settings := &config.Settings{DefaultModel: "mock/mock-1", DefaultTemperature: 0.7}

	ts := httptest.NewServer(New(svc, providers, engine, settings, nil).Handler())
	t.Cleanup(ts.Close)
	return ts, st
}

func dial(t *testing.T, ts *httptest.Server, conversationID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/chat/" + conversationID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readUntilDone(t *testing.T, conn *websocket.Conn) []orchestrator.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var events []orchestrator.Event
	for {
		var ev orchestrator.Event
		require.NoError(t, conn.ReadJSON(&ev))
		events = append(events, ev)
		if ev.Type == orchestrator.EventDone || ev.Type == orchestrator.EventError {
			return events
		}
	}
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, provider.NewMock("mock"))

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestModels(t *testing.T) {
	ts, _ := newTestServer(t, provider.NewMock("mock"))

	resp, err := http.Get(ts.URL + "/api/models")
	require.NoError(t, err)
	defer resp.Body.Close()

	var models []chat.ModelInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&models))
	require.Len(t, models, 1)
	assert.Equal(t, "mock-1", models[0].ID)
}

func TestChatSocketStreamsEvents(t *testing.T) {
	ts, _ := newTestServer(t, provider.NewMock("mock", chat.AssistantMessage("hello there")))
	conn := dial(t, ts, "conv-1")

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "message", "content": "hi"}))
	events := readUntilDone(t, conn)

	require.GreaterOrEqual(t, len(events), 3)
	assert.Equal(t, orchestrator.EventAgentTurnStart, events[0].Type)

	var sawChunk bool
	for _, ev := range events {
		if ev.Type == orchestrator.EventChunk {
			sawChunk = true
			assert.Equal(t, "hello there", ev.Delta)
		}
	}
	assert.True(t, sawChunk)

	done := events[len(events)-1]
	assert.Equal(t, orchestrator.EventDone, done.Type)
	assert.NotEmpty(t, done.ConversationID)
	assert.NotEmpty(t, done.MessageID)
}

func TestChatSocketIgnoresUnknownFrames(t *testing.T) {
	ts, _ := newTestServer(t, provider.NewMock("mock", chat.AssistantMessage("after ping")))
	conn := dial(t, ts, "conv-1")

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ping"}))
	require.NoError(t, conn.WriteJSON(map[string]any{"content": "untyped counts as message"}))

	events := readUntilDone(t, conn)
	assert.Equal(t, orchestrator.EventDone, events[len(events)-1].Type)
}

func TestChatSocketGroupWithoutAgents(t *testing.T) {
	ts, _ := newTestServer(t, provider.NewMock("mock"))
	conn := dial(t, ts, "conv-1")

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "message", "content": "hi", "is_group": true}))

	events := readUntilDone(t, conn)
	require.Len(t, events, 1)
	assert.Equal(t, orchestrator.EventError, events[0].Type)
	assert.Equal(t, "No active agents found for group chat.", events[0].Error)
}

func TestWorkflowExecuteEndpoint(t *testing.T) {
	ts, st := newTestServer(t, provider.NewMock("mock", chat.AssistantMessage("a summary")))

	wf := &store.Workflow{
		Name:     "digest",
		IsActive: true,
		Nodes: []store.WorkflowNode{
			{ID: "n1", Type: workflow.NodeTrigger},
			{ID: "n2", Type: workflow.NodeAction, SubType: workflow.ActionSummarize},
		},
		Edges: []store.WorkflowEdge{{ID: "e1", SourceNodeID: "n1", TargetNodeID: "n2"}},
	}
	require.NoError(t, st.CreateWorkflow(context.Background(), wf))

	resp, err := http.Post(ts.URL+"/api/workflows/"+wf.ID+"/execute", "application/json",
		strings.NewReader(`{"data":"long text"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result workflow.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, "a summary", result.FinalPayload["summary"])
}

func TestChatSocketBadModel(t *testing.T) {
	ts, _ := newTestServer(t, provider.NewMock("mock"))
	conn := dial(t, ts, "conv-1")

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "message", "content": "hi", "model": "ghost/x"}))

	events := readUntilDone(t, conn)
	require.Len(t, events, 1)
	assert.Equal(t, orchestrator.EventError, events[0].Type)
	assert.Contains(t, events[0].Error, "not found")
}
