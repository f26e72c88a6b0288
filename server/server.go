// Package server exposes the chat service over HTTP: a WebSocket endpoint
// streaming orchestrator events, plus small JSON endpoints for health and
// the model catalogue.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/parleyhq/parley/config"
	"github.com/parleyhq/parley/logging"
	"github.com/parleyhq/parley/orchestrator"
	"github.com/parleyhq/parley/provider"
	"github.com/parleyhq/parley/workflow"
)

// Server wires HTTP routes to the orchestrator.
type Server struct {
	chat      *orchestrator.Service
	providers *provider.Registry
	workflows *workflow.Engine
	settings  *config.Settings
	logger    logging.Logger
	upgrader  websocket.Upgrader
}

// New creates a server. The workflow engine may be nil when workflows are
// disabled; a nil logger disables logging.
func New(chat *orchestrator.Service, providers *provider.Registry, workflows *workflow.Engine, settings *config.Settings, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Server{
		chat:      chat,
		providers: providers,
		workflows: workflows,
		settings:  settings,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The browser client is served from a different origin in dev.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/models", s.handleModels)
	if s.workflows != nil {
		mux.HandleFunc("POST /api/workflows/{workflow_id}/execute", s.handleWorkflowExecute)
	}
	mux.HandleFunc("/ws/chat/{conversation_id}", s.handleChatSocket)
	return mux
}

// handleWorkflowExecute runs a workflow against the posted trigger payload.
// Execution failures are reported inside the result body, not as HTTP errors.
func (s *Server) handleWorkflowExecute(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && err != io.EOF {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON payload"})
		return
	}

	result, err := s.workflows.Execute(r.Context(), r.PathValue("workflow_id"), payload)
	if err != nil {
		s.logger.Error("workflow execution failed", "workflow", r.PathValue("workflow_id"), "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.providers.AllModels(r.Context()))
}

// inboundMessage is one client frame. Type defaults to "message"; frames of
// any other type are ignored.
type inboundMessage struct {
	Type         string   `json:"type"`
	Content      string   `json:"content"`
	Model        string   `json:"model"`
	Temperature  *float64 `json:"temperature"`
	SystemPrompt string   `json:"system_prompt"`
	IsGroup      bool     `json:"is_group"`
}

func (s *Server) handleChatSocket(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("conversation_id")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	for {
		var in inboundMessage
		if err := conn.ReadJSON(&in); err != nil {
			// Disconnect or malformed frame ends the session.
			return
		}
		if in.Type != "" && in.Type != "message" {
			continue
		}

		req := orchestrator.ChatRequest{
			ConversationID: conversationID,
			Content:        in.Content,
			Model:          in.Model,
			SystemPrompt:   in.SystemPrompt,
			Temperature:    s.settings.DefaultTemperature,
		}
		if req.Model == "" {
			req.Model = s.settings.DefaultModel
		}
		if in.Temperature != nil {
			req.Temperature = *in.Temperature
		}

		var events <-chan orchestrator.Event
		if in.IsGroup {
			events = s.chat.StreamGroupChat(ctx, req)
		} else {
			events = s.chat.StreamChat(ctx, req)
		}

		if !s.forward(cancel, conn, events) {
			return
		}
	}
}

// forward writes every event to the socket. A write failure means the client
// is gone: the stream context is cancelled and the remaining events drained
// so the producer goroutine can exit.
func (s *Server) forward(cancel context.CancelFunc, conn *websocket.Conn, events <-chan orchestrator.Event) bool {
	for ev := range events {
		if err := conn.WriteJSON(ev); err != nil {
			cancel()
			for range events {
			}
			return false
		}
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
