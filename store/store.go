// Package store is the persistence layer for agents, conversations, custom
// tools, skills, workflows and settings. The orchestration core only appends
// to conversation histories; it never owns their storage.
//
// Two implementations are provided: Memory (volatile, for tests and demos)
// and SQLite (durable, modernc.org/sqlite).
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrProtected is returned when a mutation targets a system-flagged entity.
var ErrProtected = errors.New("protected system entity")

// Agent is the behavioral configuration of one persona.
type Agent struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Description        string    `json:"description,omitempty"`
	Provider           string    `json:"provider"`
	Model              string    `json:"model"`
	SystemPrompt       string    `json:"system_prompt,omitempty"`
	IsActive           bool      `json:"is_active"`
	PersonalityTone    string    `json:"personality_tone,omitempty"`
	PersonalityTraits  []string  `json:"personality_traits,omitempty"`
	CommunicationStyle string    `json:"communication_style,omitempty"`
	EnabledTools       []string  `json:"enabled_tools,omitempty"`
	ReasoningStyle     string    `json:"reasoning_style,omitempty"`
	MemoryContext      string    `json:"memory_context,omitempty"`
	MemoryInstructions string    `json:"memory_instructions,omitempty"`
	APIKey             string    `json:"api_key,omitempty"`
	IsSystem           bool      `json:"is_system"`
	Created            time.Time `json:"created_at"`
	Updated            time.Time `json:"updated_at"`
}

// Conversation is an ordered message log container.
type Conversation struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Model        string    `json:"model,omitempty"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	IsGroup      bool      `json:"is_group"`
	AgentID      string    `json:"agent_id,omitempty"`
	Created      time.Time `json:"created_at"`
	Updated      time.Time `json:"updated_at"`
}

// Message is one persisted conversation entry. ToolCallsJSON holds the raw
// tool-call payload of an assistant message for replay; ToolCallID tags a
// tool-role result with the call it answers.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	AgentName      string    `json:"agent_name,omitempty"`
	ToolCallsJSON  string    `json:"tool_calls_json,omitempty"`
	ToolCallID     string    `json:"tool_call_id,omitempty"`
	Created        time.Time `json:"created_at"`
}

// CustomTool is a user-defined tool backed by a script snippet.
type CustomTool struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	ParametersSchema string    `json:"parameters_schema"` // JSON Schema string
	Code             string    `json:"code"`
	IsActive         bool      `json:"is_active"`
	Created          time.Time `json:"created_at"`
	Updated          time.Time `json:"updated_at"`
}

// Skill is a reusable instruction snippet an agent can be given.
type Skill struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	Instructions   string    `json:"instructions"`
	IsActive       bool      `json:"is_active"`
	UserInvocable  bool      `json:"user_invocable"`
	TriggerPattern string    `json:"trigger_pattern,omitempty"`
	Created        time.Time `json:"created_at"`
	Updated        time.Time `json:"updated_at"`
}

// WorkflowNode is one step in a workflow graph.
type WorkflowNode struct {
	ID         string `json:"id"`
	Type       string `json:"type"`     // trigger, action
	SubType    string `json:"sub_type"` // webhook, summarize, email_draft, notify
	ConfigJSON string `json:"config_json,omitempty"`
}

// WorkflowEdge connects two workflow nodes.
type WorkflowEdge struct {
	ID           string `json:"id"`
	SourceNodeID string `json:"source_node_id"`
	TargetNodeID string `json:"target_node_id"`
}

// Workflow is a trigger-to-action graph walked linearly by the engine.
type Workflow struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	IsActive    bool           `json:"is_active"`
	AgentID     string         `json:"agent_id,omitempty"`
	Nodes       []WorkflowNode `json:"nodes"`
	Edges       []WorkflowEdge `json:"edges"`
	Created     time.Time      `json:"created_at"`
	Updated     time.Time      `json:"updated_at"`
}

// ModelConfig describes one base model agents can be pointed at. The ID is
// the bare model id within its provider (e.g. "gemini-2.5-flash").
type ModelConfig struct {
	ID            string    `json:"id"`
	Provider      string    `json:"provider"`
	Name          string    `json:"name"`
	ContextWindow int       `json:"context_window"`
	IsVision      bool      `json:"is_vision"`
	IsActive      bool      `json:"is_active"`
	Created       time.Time `json:"created_at"`
	Updated       time.Time `json:"updated_at"`
}

// AgentStore persists agent configurations.
type AgentStore interface {
	CreateAgent(ctx context.Context, a *Agent) error
	GetAgent(ctx context.Context, id string) (*Agent, error)
	// GetAgentByName resolves an agent by case-insensitive name.
	GetAgentByName(ctx context.Context, name string) (*Agent, error)
	ListAgents(ctx context.Context) ([]*Agent, error)
	// ListActiveAgents returns active agents ordered by id ascending; this
	// ordering is the group-round snapshot order.
	ListActiveAgents(ctx context.Context) ([]*Agent, error)
	UpdateAgent(ctx context.Context, a *Agent) error
	// DeleteAgent removes an agent; system-flagged agents return ErrProtected
	// and are left unchanged.
	DeleteAgent(ctx context.Context, id string) error
}

// ConversationStore persists conversations and their ordered message logs.
type ConversationStore interface {
	CreateConversation(ctx context.Context, c *Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	ListConversations(ctx context.Context, limit, offset int, agentID string) ([]*Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
	// AppendMessage assigns the message an id and timestamp and appends it in
	// arrival order.
	AppendMessage(ctx context.Context, m *Message) error
	// Messages returns the full log in append order.
	Messages(ctx context.Context, conversationID string) ([]*Message, error)
}

// CustomToolStore persists user-defined tools.
type CustomToolStore interface {
	CreateCustomTool(ctx context.Context, t *CustomTool) error
	GetCustomTool(ctx context.Context, id string) (*CustomTool, error)
	GetCustomToolByName(ctx context.Context, name string) (*CustomTool, error)
	ListCustomTools(ctx context.Context) ([]*CustomTool, error)
	UpdateCustomTool(ctx context.Context, t *CustomTool) error
	DeleteCustomTool(ctx context.Context, id string) error
}

// SkillStore persists skills.
type SkillStore interface {
	CreateSkill(ctx context.Context, s *Skill) error
	GetSkillByName(ctx context.Context, name string) (*Skill, error)
	ListSkills(ctx context.Context) ([]*Skill, error)
	UpdateSkill(ctx context.Context, s *Skill) error
	DeleteSkill(ctx context.Context, id string) error
}

// WorkflowStore persists workflow graphs.
type WorkflowStore interface {
	CreateWorkflow(ctx context.Context, w *Workflow) error
	GetWorkflow(ctx context.Context, id string) (*Workflow, error)
	ListWorkflows(ctx context.Context) ([]*Workflow, error)
	UpdateWorkflow(ctx context.Context, w *Workflow) error
	DeleteWorkflow(ctx context.Context, id string) error
}

// ModelConfigStore persists the catalogue of configured base models.
type ModelConfigStore interface {
	CreateModelConfig(ctx context.Context, m *ModelConfig) error
	GetModelConfig(ctx context.Context, id string) (*ModelConfig, error)
	ListModelConfigs(ctx context.Context) ([]*ModelConfig, error)
	UpdateModelConfig(ctx context.Context, m *ModelConfig) error
	DeleteModelConfig(ctx context.Context, id string) error
}

// SettingStore persists simple key/value settings.
type SettingStore interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Store is the full persistence surface.
type Store interface {
	AgentStore
	ConversationStore
	CustomToolStore
	SkillStore
	WorkflowStore
	ModelConfigStore
	SettingStore
}
