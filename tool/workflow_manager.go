package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/parleyhq/parley/internal/util"
	"github.com/parleyhq/parley/store"
)

// WorkflowManager lets agents build and maintain node-based workflow graphs.
type WorkflowManager struct {
	workflows store.WorkflowStore
}

// NewWorkflowManager creates the workflow_manager built-in.
func NewWorkflowManager(workflows store.WorkflowStore) *WorkflowManager {
	return &WorkflowManager{workflows: workflows}
}

// Name implements Tool.
func (t *WorkflowManager) Name() string { return "workflow_manager" }

// Description implements Tool.
func (t *WorkflowManager) Description() string {
	return "Creates, lists, deletes, and customizes automation Workflows. " +
		"Use this tool to build node-based workflow graphs that agents can execute. " +
		"Actions: 'create' (new workflow), 'list' (all workflows), " +
		"'get' (full graph of a workflow), 'delete' (remove a workflow), " +
		"'add_node' (add a trigger or action node), 'remove_node' (remove a node), " +
		"'connect' (add an edge between two nodes)."
}

// Parameters implements Tool.
func (t *WorkflowManager) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type":        "string",
				"description": "What to do: 'create', 'list', 'get', 'delete', 'add_node', 'remove_node', 'connect'",
				"enum":        []string{"create", "list", "get", "delete", "add_node", "remove_node", "connect"},
			},
			"workflow_id": map[string]any{
				"type":        "string",
				"description": "ID of the workflow (required for get, delete, add_node, remove_node, connect)",
			},
			"name":        map[string]any{"type": "string", "description": "Name of the workflow (for create)"},
			"description": map[string]any{"type": "string", "description": "Description of the workflow (for create)"},
			"agent_id":    map[string]any{"type": "string", "description": "Optional agent ID to assign the workflow to (for create)"},
			"node_type": map[string]any{
				"type":        "string",
				"description": "Node type: 'trigger' or 'action' (for add_node)",
				"enum":        []string{"trigger", "action"},
			},
			"node_sub_type": map[string]any{
				"type":        "string",
				"description": "Sub-type of the node: 'webhook', 'schedule', 'summarize', 'email_draft', 'notify' (for add_node)",
			},
			"node_id": map[string]any{
				"type":        "string",
				"description": "ID of the node to remove (for remove_node)",
			},
			"source_node_id": map[string]any{
				"type":        "string",
				"description": "Source node ID for edge connection (for connect)",
			},
			"target_node_id": map[string]any{
				"type":        "string",
				"description": "Target node ID for edge connection (for connect)",
			},
			"config": map[string]any{
				"type":        "object",
				"description": "Optional configuration for the node (for add_node)",
			},
		},
		"required": []string{"action"},
	}
}

// Execute implements Tool.
func (t *WorkflowManager) Execute(ctx context.Context, args map[string]any) (string, error) {
	action, _ := args["action"].(string)

	switch action {
	case "list":
		all, err := t.workflows.ListWorkflows(ctx)
		if err != nil {
			return "Error: " + err.Error(), nil
		}
		if len(all) == 0 {
			return "No workflows exist yet. Use action='create' to make one.", nil
		}
		var lines []string
		for _, w := range all {
			status := "active"
			if !w.IsActive {
				status = "inactive"
			}
			lines = append(lines, fmt.Sprintf("- %s (%s, id: %s): %d nodes, %d edges", w.Name, status, w.ID, len(w.Nodes), len(w.Edges)))
		}
		return "Workflows:\n" + strings.Join(lines, "\n"), nil

	case "create":
		name, _ := args["name"].(string)
		if name == "" {
			name = "New Workflow"
		}
		description, _ := args["description"].(string)
		agentID, _ := args["agent_id"].(string)
		w := &store.Workflow{
			Name:        name,
			Description: description,
			AgentID:     agentID,
			IsActive:    true,
			Nodes:       []store.WorkflowNode{},
			Edges:       []store.WorkflowEdge{},
		}
		if err := t.workflows.CreateWorkflow(ctx, w); err != nil {
			return "Error: " + err.Error(), nil
		}
		return fmt.Sprintf("Workflow '%s' created with ID: %s", w.Name, w.ID), nil
	}

	workflowID, _ := args["workflow_id"].(string)
	if workflowID == "" {
		return "Error: workflow_id is required for this action.", nil
	}
	w, err := t.workflows.GetWorkflow(ctx, workflowID)
	if err != nil {
		return fmt.Sprintf("Error: Workflow with ID %s not found.", workflowID), nil
	}

	switch action {
	case "get":
		raw, err := json.MarshalIndent(w, "", "  ")
		if err != nil {
			return "Error: " + err.Error(), nil
		}
		return string(raw), nil

	case "delete":
		if err := t.workflows.DeleteWorkflow(ctx, workflowID); err != nil {
			return "Error: " + err.Error(), nil
		}
		return fmt.Sprintf("Workflow '%s' deleted.", w.Name), nil

	case "add_node":
		nodeType, _ := args["node_type"].(string)
		if nodeType != "trigger" && nodeType != "action" {
			return "Error: node_type must be 'trigger' or 'action'.", nil
		}
		subType, _ := args["node_sub_type"].(string)
		configJSON := ""
		if cfg, ok := args["config"].(map[string]any); ok {
			if raw, err := json.Marshal(cfg); err == nil {
				configJSON = string(raw)
			}
		}
		node := store.WorkflowNode{
			ID:         util.NewID(),
			Type:       nodeType,
			SubType:    subType,
			ConfigJSON: configJSON,
		}
		w.Nodes = append(w.Nodes, node)
		if err := t.workflows.UpdateWorkflow(ctx, w); err != nil {
			return "Error: " + err.Error(), nil
		}
		return fmt.Sprintf("Node '%s' (%s/%s) added to workflow '%s'.", node.ID, nodeType, subType, w.Name), nil

	case "remove_node":
		nodeID, _ := args["node_id"].(string)
		if nodeID == "" {
			return "Error: node_id is required for remove_node.", nil
		}
		found := false
		kept := w.Nodes[:0]
		for _, n := range w.Nodes {
			if n.ID == nodeID {
				found = true
				continue
			}
			kept = append(kept, n)
		}
		if !found {
			return fmt.Sprintf("Error: Node %s not found in workflow '%s'.", nodeID, w.Name), nil
		}
		w.Nodes = kept
		// Drop edges touching the removed node.
		edges := w.Edges[:0]
		for _, e := range w.Edges {
			if e.SourceNodeID == nodeID || e.TargetNodeID == nodeID {
				continue
			}
			edges = append(edges, e)
		}
		w.Edges = edges
		if err := t.workflows.UpdateWorkflow(ctx, w); err != nil {
			return "Error: " + err.Error(), nil
		}
		return fmt.Sprintf("Node '%s' removed from workflow '%s'.", nodeID, w.Name), nil

	case "connect":
		sourceID, _ := args["source_node_id"].(string)
		targetID, _ := args["target_node_id"].(string)
		if sourceID == "" || targetID == "" {
			return "Error: source_node_id and target_node_id are required for connect.", nil
		}
		nodes := map[string]bool{}
		for _, n := range w.Nodes {
			nodes[n.ID] = true
		}
		if !nodes[sourceID] || !nodes[targetID] {
			return "Error: Both source and target nodes must exist in the workflow.", nil
		}
		w.Edges = append(w.Edges, store.WorkflowEdge{
			ID:           util.NewID(),
			SourceNodeID: sourceID,
			TargetNodeID: targetID,
		})
		if err := t.workflows.UpdateWorkflow(ctx, w); err != nil {
			return "Error: " + err.Error(), nil
		}
		return fmt.Sprintf("Connected %s -> %s in workflow '%s'.", sourceID, targetID, w.Name), nil

	default:
		return fmt.Sprintf("Error: Unknown action '%s'.", action), nil
	}
}
