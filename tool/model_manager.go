package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/parleyhq/parley/store"
)

// ModelManager lets agents maintain the catalogue of configured base models.
type ModelManager struct {
	models store.ModelConfigStore
}

// NewModelManager creates the model_manager built-in.
func NewModelManager(models store.ModelConfigStore) *ModelManager {
	return &ModelManager{models: models}
}

// Name implements Tool.
func (t *ModelManager) Name() string { return "model_manager" }

// Description implements Tool.
func (t *ModelManager) Description() string {
	return "Creates, reads, updates, or deletes AI Model configurations in the system. " +
		"Use this to configure what base models (e.g. gemini-2.5-flash, gpt-4o) are available to agents."
}

// Parameters implements Tool.
func (t *ModelManager) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type":        "string",
				"description": "What to do: 'list', 'create', 'update', or 'delete'",
				"enum":        []string{"list", "create", "update", "delete"},
			},
			"id": map[string]any{
				"type":        "string",
				"description": "The exact model ID string (e.g. 'gemini-2.5-flash'). Required for all actions except 'list'.",
			},
			"provider":       map[string]any{"type": "string", "description": "Provider name: 'gemini', 'openai', 'anthropic', 'ollama'"},
			"name":           map[string]any{"type": "string", "description": "Human-readable name (e.g. 'Gemini 2.5 Flash')"},
			"context_window": map[string]any{"type": "integer", "description": "Maximum context window (e.g. 1048576)"},
			"is_vision":      map[string]any{"type": "boolean", "description": "True if the model supports images"},
		},
		"required": []string{"action"},
	}
}

func intArg(args map[string]any, key string) (int, bool) {
	v, ok := args[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64: // JSON numbers decode as float64
		return int(n), true
	case int:
		return n, true
	}
	return 0, false
}

func boolArg(args map[string]any, key string) (bool, bool) {
	v, ok := args[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// Execute implements Tool.
func (t *ModelManager) Execute(ctx context.Context, args map[string]any) (string, error) {
	action, _ := args["action"].(string)

	if action == "list" {
		all, err := t.models.ListModelConfigs(ctx)
		if err != nil {
			return "Error: " + err.Error(), nil
		}
		summaries := make([]map[string]any, 0, len(all))
		for _, m := range all {
			summaries = append(summaries, map[string]any{
				"id":             m.ID,
				"provider":       m.Provider,
				"name":           m.Name,
				"context_window": m.ContextWindow,
				"is_vision":      m.IsVision,
			})
		}
		raw, err := json.MarshalIndent(summaries, "", "  ")
		if err != nil {
			return "Error: " + err.Error(), nil
		}
		return string(raw), nil
	}

	modelID, _ := args["id"].(string)
	if modelID == "" {
		return "Error: 'id' is required for create, update, or delete.", nil
	}

	existing, getErr := t.models.GetModelConfig(ctx, modelID)

	switch action {
	case "create":
		if getErr == nil {
			return fmt.Sprintf("Error: Model with ID '%s' already exists.", modelID), nil
		}
		m := &store.ModelConfig{
			ID:            modelID,
			Provider:      "openai",
			Name:          modelID,
			ContextWindow: 8192,
			IsActive:      true,
		}
		if v, ok := stringArg(args, "provider"); ok {
			m.Provider = v
		}
		if v, ok := stringArg(args, "name"); ok {
			m.Name = v
		}
		if v, ok := intArg(args, "context_window"); ok {
			m.ContextWindow = v
		}
		if v, ok := boolArg(args, "is_vision"); ok {
			m.IsVision = v
		}
		if err := t.models.CreateModelConfig(ctx, m); err != nil {
			return "Error: " + err.Error(), nil
		}
		return fmt.Sprintf("Model '%s' created successfully.", modelID), nil
	}

	if getErr != nil {
		return fmt.Sprintf("Error: Model with ID '%s' not found.", modelID), nil
	}

	switch action {
	case "delete":
		if err := t.models.DeleteModelConfig(ctx, modelID); err != nil {
			return "Error: " + err.Error(), nil
		}
		return fmt.Sprintf("Model '%s' deleted successfully.", modelID), nil

	case "update":
		if v, ok := stringArg(args, "provider"); ok {
			existing.Provider = v
		}
		if v, ok := stringArg(args, "name"); ok {
			existing.Name = v
		}
		if v, ok := intArg(args, "context_window"); ok {
			existing.ContextWindow = v
		}
		if v, ok := boolArg(args, "is_vision"); ok {
			existing.IsVision = v
		}
		if err := t.models.UpdateModelConfig(ctx, existing); err != nil {
			return "Error: " + err.Error(), nil
		}
		return fmt.Sprintf("Model '%s' updated successfully.", modelID), nil

	default:
		return "Error: Unknown action.", nil
	}
}
