package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/parleyhq/parley/store"
)

const defaultSchema = `{"type":"object","properties":{},"required":[]}`

// ToolCreator lets agents create, update, list, and delete custom tools.
// After store mutations the live registry is updated so new tools are
// immediately callable.
type ToolCreator struct {
	tools    store.CustomToolStore
	registry *Registry
	sandbox  *Sandbox
}

// NewToolCreator creates the tool_creator built-in.
func NewToolCreator(tools store.CustomToolStore, registry *Registry, sandbox *Sandbox) *ToolCreator {
	return &ToolCreator{tools: tools, registry: registry, sandbox: sandbox}
}

// Name implements Tool.
func (t *ToolCreator) Name() string { return "tool_creator" }

// Description implements Tool.
func (t *ToolCreator) Description() string {
	return "Create, update, or list custom tools that agents can use. " +
		"Custom tools are Python scripts that receive a `params` dict and print output to stdout. " +
		"Use action='create' to make a new tool, 'update' to modify one, 'list' to see all, or 'delete' to remove one. " +
		"Created tools are immediately available for use by all agents."
}

// Parameters implements Tool.
func (t *ToolCreator) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type":        "string",
				"enum":        []string{"create", "update", "list", "delete"},
				"description": "The action to perform.",
			},
			"name": map[string]any{
				"type":        "string",
				"description": "Name of the tool (snake_case). Required for create/update/delete.",
			},
			"description": map[string]any{
				"type":        "string",
				"description": "Human-readable description of what the tool does. Required for create.",
			},
			"parameters_schema": map[string]any{
				"type":        "string",
				"description": `JSON Schema string describing the tool's parameters. Example: '{"type":"object","properties":{"query":{"type":"string","description":"Search query"}},"required":["query"]}'`,
			},
			"code": map[string]any{
				"type":        "string",
				"description": "Python code for the tool. It receives a `params` dict and should print output. Required for create.",
			},
		},
		"required": []string{"action"},
	}
}

// Execute implements Tool.
func (t *ToolCreator) Execute(ctx context.Context, args map[string]any) (string, error) {
	action, _ := args["action"].(string)
	name, _ := args["name"].(string)
	description, _ := args["description"].(string)
	schema, _ := args["parameters_schema"].(string)
	code, _ := args["code"].(string)

	switch action {
	case "list":
		all, err := t.tools.ListCustomTools(ctx)
		if err != nil {
			return "Error: " + err.Error(), nil
		}
		if len(all) == 0 {
			return "No custom tools exist yet. Use action='create' to make one.", nil
		}
		var lines []string
		for _, ct := range all {
			status := "active"
			if !ct.IsActive {
				status = "inactive"
			}
			lines = append(lines, fmt.Sprintf("- %s (%s): %s", ct.Name, status, ct.Description))
		}
		return "Custom tools:\n" + strings.Join(lines, "\n"), nil

	case "create":
		if name == "" || description == "" || code == "" {
			return "Error: 'name', 'description', and 'code' are required for create.", nil
		}
		if schema == "" {
			schema = defaultSchema
		}
		if err := validateSchemaJSON(schema); err != nil {
			return "Error: parameters_schema is not valid JSON: " + err.Error(), nil
		}
		ct := &store.CustomTool{
			Name:             name,
			Description:      description,
			ParametersSchema: schema,
			Code:             code,
			IsActive:         true,
		}
		if err := t.tools.CreateCustomTool(ctx, ct); err != nil {
			return "Error: " + err.Error(), nil
		}
		t.registry.Register(NewDynamic(ct, t.sandbox))
		return fmt.Sprintf("Tool '%s' created and registered successfully (id: %s). It is now active and available to all agents.", ct.Name, ct.ID), nil

	case "update":
		if name == "" {
			return "Error: 'name' is required for update.", nil
		}
		ct, err := t.tools.GetCustomToolByName(ctx, name)
		if err != nil {
			return fmt.Sprintf("Error: Tool '%s' not found.", name), nil
		}
		changed := false
		if description != "" {
			ct.Description = description
			changed = true
		}
		if schema != "" {
			if err := validateSchemaJSON(schema); err != nil {
				return "Error: parameters_schema is not valid JSON: " + err.Error(), nil
			}
			ct.ParametersSchema = schema
			changed = true
		}
		if code != "" {
			ct.Code = code
			changed = true
		}
		if !changed {
			return "Error: Provide at least one field to update (description, parameters_schema, code).", nil
		}
		if err := t.tools.UpdateCustomTool(ctx, ct); err != nil {
			return "Error: " + err.Error(), nil
		}
		t.registry.Unregister(name)
		t.registry.Register(NewDynamic(ct, t.sandbox))
		return fmt.Sprintf("Tool '%s' updated and re-registered successfully.", name), nil

	case "delete":
		if name == "" {
			return "Error: 'name' is required for delete.", nil
		}
		ct, err := t.tools.GetCustomToolByName(ctx, name)
		if err != nil {
			return fmt.Sprintf("Error: Tool '%s' not found.", name), nil
		}
		if err := t.tools.DeleteCustomTool(ctx, ct.ID); err != nil {
			return "Error: " + err.Error(), nil
		}
		t.registry.Unregister(name)
		return fmt.Sprintf("Tool '%s' deleted and unregistered.", name), nil

	default:
		return fmt.Sprintf("Error: Unknown action '%s'. Use create, update, list, or delete.", action), nil
	}
}

func validateSchemaJSON(schema string) error {
	var parsed map[string]any
	return json.Unmarshal([]byte(schema), &parsed)
}
