package orchestrator

import (
	"fmt"
	"strings"

	"github.com/parleyhq/parley/store"
)

// buildAgentPrompt composes a system prompt from an agent's personality
// configuration. An agent with no personality at all gets a helpful
// baseline so it never runs promptless.
func buildAgentPrompt(agent *store.Agent, skills []*store.Skill) string {
	var parts []string
	if agent.SystemPrompt != "" {
		parts = append(parts, agent.SystemPrompt)
	}

	var soul []string
	if agent.PersonalityTone != "" {
		soul = append(soul, fmt.Sprintf("Your tone is %s.", agent.PersonalityTone))
	}
	if len(agent.PersonalityTraits) > 0 {
		soul = append(soul, fmt.Sprintf("Your personality traits are: %s.", strings.Join(agent.PersonalityTraits, ", ")))
	}
	if agent.CommunicationStyle != "" {
		soul = append(soul, fmt.Sprintf("Communicate in a %s style.", agent.CommunicationStyle))
	}
	if len(soul) > 0 {
		parts = append(parts, "## Personality\n"+strings.Join(soul, " "))
	}

	if agent.ReasoningStyle != "" {
		parts = append(parts, fmt.Sprintf("## Reasoning\nApproach problems with a %s reasoning style.", agent.ReasoningStyle))
	}
	if agent.MemoryContext != "" {
		parts = append(parts, "## Memory\n"+agent.MemoryContext)
	}
	if agent.MemoryInstructions != "" {
		parts = append(parts, "## Standing Instructions\n"+agent.MemoryInstructions)
	}

	if len(parts) == 0 {
		desc := agent.Description
		if desc == "" {
			desc = "a capable AI assistant"
		}
		parts = append(parts, fmt.Sprintf(
			"You are %s, %s. Be helpful, clear, and professional. Use tools when they would improve your response.",
			agent.Name, desc))
	}

	for _, sk := range skills {
		if sk.IsActive {
			parts = append(parts, fmt.Sprintf("## Skill: %s\n%s", sk.Name, sk.Instructions))
		}
	}

	return strings.Join(parts, "\n\n")
}

// groupInstruction is appended to every agent's prompt during a group round
// so a model never narrates for others or prefixes its own name.
func groupInstruction(agentName string) string {
	return fmt.Sprintf(
		"\n\nIMPORTANT: You are in a multi-agent chat room. Your name is %s. "+
			"Respond ONLY as yourself. Do NOT simulate conversations. "+
			"Do NOT prefix your response with your name like 'Name: '. Just output your response directly.",
		agentName)
}
