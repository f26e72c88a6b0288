// Package workflow executes stored node graphs. Execution is a linear walk:
// start at the trigger node and follow the first out-edge until no edge
// remains or a node fails. Node outputs merge into a shared payload that
// downstream nodes read from.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/parleyhq/parley/chat"
	"github.com/parleyhq/parley/logging"
	"github.com/parleyhq/parley/provider"
	"github.com/parleyhq/parley/store"
)

// DefaultModel is used by provider-backed action nodes unless overridden.
const DefaultModel = "gemini/gemini-2.5-flash"

// Node kinds and action subtypes.
const (
	NodeTrigger = "trigger"
	NodeAction  = "action"

	ActionSummarize  = "summarize"
	ActionEmailDraft = "email_draft"
	ActionNotify     = "notify"
)

// NodeResult records one node's outcome in the execution log.
type NodeResult struct {
	NodeID string         `json:"node_id"`
	Type   string         `json:"type"`
	Status string         `json:"status"`
	Output map[string]any `json:"output,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// Result is the outcome of one workflow run.
type Result struct {
	Status       string         `json:"status"`
	Message      string         `json:"message,omitempty"`
	FinalPayload map[string]any `json:"final_payload,omitempty"`
	Log          []NodeResult   `json:"execution_log,omitempty"`
}

// Engine walks workflow graphs, delegating LLM-backed actions to the
// provider registry.
type Engine struct {
	store     store.WorkflowStore
	providers *provider.Registry
	logger    logging.Logger
	model     string
}

// Option configures an Engine.
type Option func(*Engine)

// WithModel overrides the model string used by LLM-backed action nodes.
func WithModel(model string) Option {
	return func(e *Engine) { e.model = model }
}

// NewEngine creates a workflow engine.
func NewEngine(st store.WorkflowStore, providers *provider.Registry, logger logging.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	e := &Engine{store: st, providers: providers, logger: logger, model: DefaultModel}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one workflow against a trigger payload. Node failures stop
// the walk; the partial log is returned with an error status rather than an
// error value so callers can surface it as data.
func (e *Engine) Execute(ctx context.Context, workflowID string, trigger map[string]any) (*Result, error) {
	wf, err := e.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &Result{Status: "error", Message: "Workflow not found or inactive."}, nil
		}
		return nil, err
	}
	if !wf.IsActive {
		return &Result{Status: "error", Message: "Workflow not found or inactive."}, nil
	}

	nodesByID := make(map[string]*store.WorkflowNode, len(wf.Nodes))
	for i := range wf.Nodes {
		nodesByID[wf.Nodes[i].ID] = &wf.Nodes[i]
	}

	var start *store.WorkflowNode
	for i := range wf.Nodes {
		if wf.Nodes[i].Type == NodeTrigger {
			start = &wf.Nodes[i]
			break
		}
	}
	if start == nil {
		return &Result{Status: "error", Message: "No trigger node found."}, nil
	}

	// First out-edge wins; branching graphs degrade to their first path.
	next := make(map[string]string, len(wf.Edges))
	for _, edge := range wf.Edges {
		if _, seen := next[edge.SourceNodeID]; !seen {
			next[edge.SourceNodeID] = edge.TargetNodeID
		}
	}

	payload := make(map[string]any, len(trigger))
	for k, v := range trigger {
		payload[k] = v
	}

	var log []NodeResult
	currentID := start.ID
	for currentID != "" {
		node, ok := nodesByID[currentID]
		if !ok {
			log = append(log, NodeResult{NodeID: currentID, Status: "error", Error: "edge points to unknown node"})
			return &Result{Status: "error", Log: log}, nil
		}

		output, err := e.executeNode(ctx, node, payload)
		if err != nil {
			e.logger.Warn("workflow node failed", "workflow", wf.ID, "node", node.ID, "error", err)
			log = append(log, NodeResult{NodeID: node.ID, Type: node.SubType, Status: "error", Error: err.Error()})
			return &Result{Status: "error", Log: log}, nil
		}
		for k, v := range output {
			payload[k] = v
		}
		log = append(log, NodeResult{NodeID: node.ID, Type: node.SubType, Status: "success", Output: output})

		currentID = next[currentID]
	}

	return &Result{Status: "success", FinalPayload: payload, Log: log}, nil
}

func (e *Engine) executeNode(ctx context.Context, node *store.WorkflowNode, payload map[string]any) (map[string]any, error) {
	switch node.Type {
	case NodeTrigger:
		out := make(map[string]any, len(payload))
		for k, v := range payload {
			out[k] = v
		}
		return out, nil

	case NodeAction:
		switch node.SubType {
		case ActionSummarize:
			text := stringField(payload, "data")
			if text == "" {
				text = stringField(payload, "text")
			}
			response, err := e.callLLM(ctx, "Summarize the following text:\n\n"+text)
			if err != nil {
				return nil, err
			}
			return map[string]any{"summary": response}, nil

		case ActionEmailDraft:
			context := stringField(payload, "summary")
			if context == "" {
				context = stringField(payload, "text")
			}
			response, err := e.callLLM(ctx, "Draft a professional email based on this context:\n\n"+context)
			if err != nil {
				return nil, err
			}
			return map[string]any{"email_draft": response}, nil

		case ActionNotify:
			e.logger.Info("notification sent", "payload", payloadJSON(payload))
			return map[string]any{"notified": true}, nil
		}
		return nil, fmt.Errorf("unknown action subtype %q", node.SubType)

	default:
		return nil, fmt.Errorf("unknown node type %q", node.Type)
	}
}

// callLLM issues one single-turn prompt and returns the full response text.
func (e *Engine) callLLM(ctx context.Context, prompt string) (string, error) {
	providerName, modelID := chat.ParseModelString(e.model)
	prov, err := e.providers.Get(providerName)
	if err != nil {
		return "", err
	}
	result, err := prov.Complete(ctx, []chat.ChatMessage{chat.UserMessage(prompt)}, modelID, nil, 0.7)
	if err != nil {
		return "", err
	}
	return result.Content, nil
}

func stringField(payload map[string]any, key string) string {
	s, _ := payload[key].(string)
	return s
}

func payloadJSON(payload map[string]any) string {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "{}"
	}
	return string(raw)
}
