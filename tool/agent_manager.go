package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/parleyhq/parley/store"
)

// AgentManager lets a model create, update, delete, and list agents.
type AgentManager struct {
	agents store.AgentStore
}

// NewAgentManager creates the agent_manager built-in.
func NewAgentManager(agents store.AgentStore) *AgentManager {
	return &AgentManager{agents: agents}
}

// Name implements Tool.
func (t *AgentManager) Name() string { return "agent_manager" }

// Description implements Tool.
func (t *AgentManager) Description() string {
	return "Creates, reads, updates, or deletes AI Agents in the system. " +
		"Use this tool when the user asks you to create a new specialized agent, " +
		"update an existing one's personality/tools, or delete an agent."
}

// Parameters implements Tool.
func (t *AgentManager) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type":        "string",
				"description": "What to do: 'create', 'update', 'delete', or 'list'",
				"enum":        []string{"create", "update", "delete", "list"},
			},
			"agent_id":      map[string]any{"type": "string", "description": "The ID of the agent (required for update and delete)"},
			"name":          map[string]any{"type": "string", "description": "Name of the agent"},
			"description":   map[string]any{"type": "string", "description": "Short description of the agent"},
			"system_prompt": map[string]any{"type": "string", "description": "The system prompt defining the agent's behavior"},
			"model":         map[string]any{"type": "string", "description": "The model to use (e.g. 'gemini/gemini-2.5-flash')"},
			"provider":      map[string]any{"type": "string", "description": "The provider (e.g. 'gemini', 'openai', 'anthropic')"},
			"personality_tone": map[string]any{
				"type": "string", "description": "e.g. professional, friendly, sarcastic",
			},
			"personality_traits": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "List of traits, e.g. ['helpful', 'creative']",
			},
			"communication_style": map[string]any{"type": "string", "description": "e.g. formal, casual, concise"},
			"reasoning_style":     map[string]any{"type": "string", "description": "e.g. analytical, creative, step-by-step"},
			"memory_context":      map[string]any{"type": "string", "description": "Persistent background knowledge for the agent"},
			"memory_instructions": map[string]any{"type": "string", "description": "Standing rules the agent must always follow"},
			"enabled_tools": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "List of tool names the agent can use (e.g. ['web_search', 'file_manager'])",
			},
		},
		"required": []string{"action"},
	}
}

func stringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, true
}

func stringSliceArg(args map[string]any, key string) ([]string, bool) {
	v, ok := args[key]
	if !ok {
		return nil, false
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}

// Execute implements Tool.
func (t *AgentManager) Execute(ctx context.Context, args map[string]any) (string, error) {
	action, _ := args["action"].(string)

	switch action {
	case "list":
		agents, err := t.agents.ListAgents(ctx)
		if err != nil {
			return "Error: " + err.Error(), nil
		}
		summaries := make([]map[string]string, 0, len(agents))
		for _, a := range agents {
			summaries = append(summaries, map[string]string{"id": a.ID, "name": a.Name, "description": a.Description})
		}
		raw, err := json.MarshalIndent(summaries, "", "  ")
		if err != nil {
			return "Error: " + err.Error(), nil
		}
		return string(raw), nil

	case "create":
		a := &store.Agent{
			Name:         "New Agent",
			SystemPrompt: "You are a helpful assistant.",
			Model:        "gemini-2.5-flash",
			Provider:     "gemini",
			IsActive:     true,
		}
		if v, ok := stringArg(args, "name"); ok {
			a.Name = v
		}
		if v, ok := stringArg(args, "description"); ok {
			a.Description = v
		}
		if v, ok := stringArg(args, "system_prompt"); ok {
			a.SystemPrompt = v
		}
		if v, ok := stringArg(args, "model"); ok {
			a.Model = v
		}
		if v, ok := stringArg(args, "provider"); ok {
			a.Provider = v
		}
		if v, ok := stringArg(args, "personality_tone"); ok {
			a.PersonalityTone = v
		}
		if v, ok := stringSliceArg(args, "personality_traits"); ok {
			a.PersonalityTraits = v
		}
		if v, ok := stringArg(args, "communication_style"); ok {
			a.CommunicationStyle = v
		}
		if v, ok := stringArg(args, "reasoning_style"); ok {
			a.ReasoningStyle = v
		}
		if v, ok := stringArg(args, "memory_context"); ok {
			a.MemoryContext = v
		}
		if v, ok := stringArg(args, "memory_instructions"); ok {
			a.MemoryInstructions = v
		}
		if v, ok := stringSliceArg(args, "enabled_tools"); ok {
			a.EnabledTools = v
		}
		if err := t.agents.CreateAgent(ctx, a); err != nil {
			return "Error: " + err.Error(), nil
		}
		return fmt.Sprintf("Agent '%s' created successfully with ID: %s", a.Name, a.ID), nil
	}

	agentID, _ := args["agent_id"].(string)
	if agentID == "" {
		return "Error: agent_id is required for update or delete actions.", nil
	}
	a, err := t.agents.GetAgent(ctx, agentID)
	if err != nil {
		return fmt.Sprintf("Error: Agent with ID %s not found.", agentID), nil
	}

	switch action {
	case "delete":
		if err := t.agents.DeleteAgent(ctx, agentID); err != nil {
			if errors.Is(err, store.ErrProtected) {
				return fmt.Sprintf("Error: Cannot delete %s because it is a system agent.", a.Name), nil
			}
			return "Error: " + err.Error(), nil
		}
		return fmt.Sprintf("Agent '%s' deleted successfully.", a.Name), nil

	case "update":
		if v, ok := stringArg(args, "name"); ok {
			a.Name = v
		}
		if v, ok := stringArg(args, "description"); ok {
			a.Description = v
		}
		if v, ok := stringArg(args, "system_prompt"); ok {
			a.SystemPrompt = v
		}
		if v, ok := stringArg(args, "model"); ok {
			a.Model = v
		}
		if v, ok := stringArg(args, "provider"); ok {
			a.Provider = v
		}
		if v, ok := stringArg(args, "personality_tone"); ok {
			a.PersonalityTone = v
		}
		if v, ok := stringSliceArg(args, "personality_traits"); ok {
			a.PersonalityTraits = v
		}
		if v, ok := stringArg(args, "communication_style"); ok {
			a.CommunicationStyle = v
		}
		if v, ok := stringArg(args, "reasoning_style"); ok {
			a.ReasoningStyle = v
		}
		if v, ok := stringArg(args, "memory_context"); ok {
			a.MemoryContext = v
		}
		if v, ok := stringArg(args, "memory_instructions"); ok {
			a.MemoryInstructions = v
		}
		if v, ok := stringSliceArg(args, "enabled_tools"); ok {
			a.EnabledTools = v
		}
		if err := t.agents.UpdateAgent(ctx, a); err != nil {
			return "Error: " + err.Error(), nil
		}
		return fmt.Sprintf("Agent '%s' updated successfully.", a.Name), nil

	default:
		return fmt.Sprintf("Error: Unknown action '%s'. Use create, update, delete, or list.", action), nil
	}
}
