package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/parleyhq/parley/store"
)

// SkillCreator lets agents create, update, list, import, and delete skills.
// Active skills are injected into every agent's composed system prompt.
type SkillCreator struct {
	skills store.SkillStore
}

// NewSkillCreator creates the skill_creator built-in.
func NewSkillCreator(skills store.SkillStore) *SkillCreator {
	return &SkillCreator{skills: skills}
}

// Name implements Tool.
func (t *SkillCreator) Name() string { return "skill_creator" }

// Description implements Tool.
func (t *SkillCreator) Description() string {
	return "Create, update, list, or delete skills. Skills are instruction sets " +
		"that guide agent behavior. Active skills are automatically injected into all agent system prompts. " +
		"Use action='create' to make a new skill, 'update' to modify, 'list' to see all, 'import' to import " +
		"from SKILL.md content, or 'delete' to remove one."
}

// Parameters implements Tool.
func (t *SkillCreator) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type":        "string",
				"enum":        []string{"create", "update", "list", "delete", "import"},
				"description": "The action to perform.",
			},
			"name": map[string]any{
				"type":        "string",
				"description": "Name of the skill. Required for create/update/delete.",
			},
			"description": map[string]any{
				"type":        "string",
				"description": "Brief description of the skill. Required for create.",
			},
			"instructions": map[string]any{
				"type":        "string",
				"description": "Detailed markdown instructions for the skill. Required for create.",
			},
			"is_active": map[string]any{
				"type":        "boolean",
				"description": "Whether the skill is active (defaults to true).",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "Raw SKILL.md content for the 'import' action.",
			},
		},
		"required": []string{"action"},
	}
}

// Execute implements Tool.
func (t *SkillCreator) Execute(ctx context.Context, args map[string]any) (string, error) {
	action, _ := args["action"].(string)
	name, _ := args["name"].(string)
	description, _ := args["description"].(string)
	instructions, _ := args["instructions"].(string)
	isActive := true
	if v, ok := args["is_active"].(bool); ok {
		isActive = v
	}

	switch action {
	case "list":
		all, err := t.skills.ListSkills(ctx)
		if err != nil {
			return "Error: " + err.Error(), nil
		}
		if len(all) == 0 {
			return "No skills exist yet. Use action='create' to make one.", nil
		}
		var lines []string
		for _, sk := range all {
			status := "active"
			if !sk.IsActive {
				status = "inactive"
			}
			lines = append(lines, fmt.Sprintf("- %s (%s): %s", sk.Name, status, sk.Description))
		}
		return "Skills:\n" + strings.Join(lines, "\n"), nil

	case "create":
		if name == "" || instructions == "" {
			return "Error: 'name' and 'instructions' are required for create.", nil
		}
		sk := &store.Skill{
			Name:          name,
			Description:   description,
			Instructions:  instructions,
			IsActive:      isActive,
			UserInvocable: true,
		}
		if err := t.skills.CreateSkill(ctx, sk); err != nil {
			return "Error: " + err.Error(), nil
		}
		return fmt.Sprintf("Skill '%s' created successfully (id: %s).", sk.Name, sk.ID), nil

	case "import":
		content, _ := args["content"].(string)
		if content == "" {
			return "Error: 'content' is required for import.", nil
		}
		importedName, body := parseSkillMarkdown(content)
		if name != "" {
			importedName = name
		}
		if importedName == "" {
			return "Error: Could not determine a skill name; provide 'name' or a leading '# Heading' in content.", nil
		}
		sk := &store.Skill{
			Name:          importedName,
			Description:   description,
			Instructions:  body,
			IsActive:      isActive,
			UserInvocable: true,
		}
		if err := t.skills.CreateSkill(ctx, sk); err != nil {
			return "Error: " + err.Error(), nil
		}
		return fmt.Sprintf("Skill '%s' imported successfully (id: %s).", sk.Name, sk.ID), nil

	case "update":
		if name == "" {
			return "Error: 'name' is required for update.", nil
		}
		sk, err := t.skills.GetSkillByName(ctx, name)
		if err != nil {
			return fmt.Sprintf("Error: Skill '%s' not found.", name), nil
		}
		if description != "" {
			sk.Description = description
		}
		if instructions != "" {
			sk.Instructions = instructions
		}
		if _, ok := args["is_active"].(bool); ok {
			sk.IsActive = isActive
		}
		if err := t.skills.UpdateSkill(ctx, sk); err != nil {
			return "Error: " + err.Error(), nil
		}
		return fmt.Sprintf("Skill '%s' updated successfully.", name), nil

	case "delete":
		if name == "" {
			return "Error: 'name' is required for delete.", nil
		}
		sk, err := t.skills.GetSkillByName(ctx, name)
		if err != nil {
			return fmt.Sprintf("Error: Skill '%s' not found.", name), nil
		}
		if err := t.skills.DeleteSkill(ctx, sk.ID); err != nil {
			return "Error: " + err.Error(), nil
		}
		return fmt.Sprintf("Skill '%s' deleted.", name), nil

	default:
		return fmt.Sprintf("Error: Unknown action '%s'. Use create, update, list, delete, or import.", action), nil
	}
}

// parseSkillMarkdown treats the first H1 heading as the skill name and the
// remainder as instructions.
func parseSkillMarkdown(content string) (name, body string) {
	lines := strings.Split(strings.TrimSpace(content), "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			name = strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
			body = strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
			return name, body
		}
	}
	return "", strings.TrimSpace(content)
}
