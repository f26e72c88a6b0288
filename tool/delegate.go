package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/parleyhq/parley/store"
)

// Delegator runs a task as another agent and reports the agent's answer plus
// the conversation the work was persisted in. The conversation id is
// returned explicitly by the delegation call itself, never inferred from
// recency.
type Delegator interface {
	Delegate(ctx context.Context, agentID, task, delegatedBy string) (response, conversationID string, err error)
}

// DelegateAgent lets one agent hand a task to another and returns the
// target's response. The delegated work is persisted in the target agent's
// own conversation.
type DelegateAgent struct {
	agents    store.AgentStore
	delegator Delegator
}

// NewDelegateAgent creates the delegate_agent built-in.
func NewDelegateAgent(agents store.AgentStore, delegator Delegator) *DelegateAgent {
	return &DelegateAgent{agents: agents, delegator: delegator}
}

// Name implements Tool.
func (t *DelegateAgent) Name() string { return "delegate_agent" }

// Description implements Tool.
func (t *DelegateAgent) Description() string {
	return "Delegates a task to another specialized agent and returns their response. " +
		"The task is sent to the agent's own chat, so the user can view the full " +
		"work history by opening that agent's conversation. " +
		"You can specify the agent by name (case-insensitive) or by ID. " +
		"Use this tool when the user asks you to send work to another agent " +
		"(e.g. 'ask Marketing to create a campaign plan')."
}

// Parameters implements Tool.
func (t *DelegateAgent) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"agent_name": map[string]any{
				"type": "string",
				"description": "The name of the target agent (case-insensitive). " +
					"E.g. 'Marketing', 'Coder', 'Analyst'. Either agent_name or agent_id must be provided.",
			},
			"agent_id": map[string]any{
				"type":        "string",
				"description": "The UUID of the target agent. Use agent_name instead if you know the name.",
			},
			"task": map[string]any{
				"type": "string",
				"description": "A clear, detailed description of the task to delegate. " +
					"Be specific about what output is expected. This will be sent as-is to the target agent.",
			},
		},
		"required": []string{"task"},
	}
}

// Execute implements Tool.
func (t *DelegateAgent) Execute(ctx context.Context, args map[string]any) (string, error) {
	task, _ := args["task"].(string)
	agentName, _ := args["agent_name"].(string)
	agentID, _ := args["agent_id"].(string)

	if task == "" {
		return "Error: 'task' parameter is required.", nil
	}
	if agentName == "" && agentID == "" {
		return "Error: Either 'agent_name' or 'agent_id' must be provided.", nil
	}

	var target *store.Agent
	var err error
	if agentID != "" {
		target, err = t.agents.GetAgent(ctx, agentID)
	} else {
		target, err = t.agents.GetAgentByName(ctx, agentName)
	}
	if err != nil {
		identifier := agentName
		if identifier == "" {
			identifier = agentID
		}
		all, listErr := t.agents.ListAgents(ctx)
		if listErr != nil {
			return "Error: " + listErr.Error(), nil
		}
		available := make([]map[string]string, 0, len(all))
		for _, a := range all {
			available = append(available, map[string]string{"id": a.ID, "name": a.Name, "description": a.Description})
		}
		raw, _ := json.MarshalIndent(available, "", "  ")
		return fmt.Sprintf("Error: No agent found matching '%s'.\nAvailable agents:\n%s", identifier, raw), nil
	}

	if target.IsSystem {
		return "Error: Cannot delegate tasks to the system orchestrator (yourself).", nil
	}

	response, convID, err := t.delegator.Delegate(ctx, target.ID, task, "Main Agent")
	if err != nil {
		return "Error during delegation: " + err.Error(), nil
	}

	return fmt.Sprintf("Task completed by %s.\n\n**Response:**\n%s\n\n(Work history saved in %s's conversation: %s)",
		target.Name, response, target.Name, convID), nil
}
