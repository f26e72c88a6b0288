package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/parleyhq/parley/internal/util"
)

const schema = `
CREATE TABLE IF NOT EXISTS agents (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT,
	provider TEXT NOT NULL,
	model TEXT NOT NULL,
	system_prompt TEXT,
	is_active INTEGER NOT NULL DEFAULT 1,
	personality_tone TEXT,
	personality_traits TEXT, -- JSON array
	communication_style TEXT,
	enabled_tools TEXT, -- JSON array
	reasoning_style TEXT,
	memory_context TEXT,
	memory_instructions TEXT,
	api_key TEXT,
	is_system INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	model TEXT,
	system_prompt TEXT,
	is_group INTEGER NOT NULL DEFAULT 0,
	agent_id TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	conversation_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	agent_name TEXT,
	tool_calls_json TEXT,
	tool_call_id TEXT,
	created_at DATETIME NOT NULL,
	FOREIGN KEY(conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq);

CREATE TABLE IF NOT EXISTS custom_tools (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE COLLATE NOCASE,
	description TEXT NOT NULL,
	parameters_schema TEXT NOT NULL,
	code TEXT NOT NULL,
	is_active INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS skills (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE COLLATE NOCASE,
	description TEXT,
	instructions TEXT NOT NULL,
	is_active INTEGER NOT NULL DEFAULT 1,
	user_invocable INTEGER NOT NULL DEFAULT 1,
	trigger_pattern TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS workflows (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT,
	is_active INTEGER NOT NULL DEFAULT 1,
	agent_id TEXT,
	nodes TEXT NOT NULL, -- JSON array
	edges TEXT NOT NULL, -- JSON array
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS model_configs (
	id TEXT PRIMARY KEY,
	provider TEXT NOT NULL,
	name TEXT NOT NULL,
	context_window INTEGER NOT NULL DEFAULT 8192,
	is_vision INTEGER NOT NULL DEFAULT 0,
	is_active INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// SQLite is a durable Store backed by a single database file. Schema is
// owned by the app and applied on open; no external migration tool.
type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens (creating if missing) the database at path and applies
// the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	// Migration for databases created before the api_key column existed.
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pragma_table_info('agents') WHERE name='api_key'").Scan(&count); err == nil && count == 0 {
		if _, err := db.ExecContext(ctx, "ALTER TABLE agents ADD COLUMN api_key TEXT"); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating schema (agents.api_key): %w", err)
		}
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error { return s.db.Close() }

func encodeList(v []string) string {
	if len(v) == 0 {
		return "[]"
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(raw)
}

func decodeList(raw sql.NullString) []string {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw.String), &out); err != nil {
		return nil
	}
	return out
}

const agentColumns = `id, name, description, provider, model, system_prompt, is_active,
	personality_tone, personality_traits, communication_style, enabled_tools,
	reasoning_style, memory_context, memory_instructions, api_key, is_system,
	created_at, updated_at`

func scanAgent(row interface{ Scan(...any) error }) (*Agent, error) {
	var a Agent
	var desc, sysPrompt, tone, traits, style, enabled, reasoning, memCtx, memInstr, apiKey sql.NullString
	err := row.Scan(&a.ID, &a.Name, &desc, &a.Provider, &a.Model, &sysPrompt, &a.IsActive,
		&tone, &traits, &style, &enabled,
		&reasoning, &memCtx, &memInstr, &apiKey, &a.IsSystem,
		&a.Created, &a.Updated)
	if err != nil {
		return nil, err
	}
	a.Description = desc.String
	a.SystemPrompt = sysPrompt.String
	a.PersonalityTone = tone.String
	a.PersonalityTraits = decodeList(traits)
	a.CommunicationStyle = style.String
	a.EnabledTools = decodeList(enabled)
	a.ReasoningStyle = reasoning.String
	a.MemoryContext = memCtx.String
	a.MemoryInstructions = memInstr.String
	a.APIKey = apiKey.String
	return &a, nil
}

// CreateAgent implements AgentStore.
func (s *SQLite) CreateAgent(ctx context.Context, a *Agent) error {
	if a.ID == "" {
		a.ID = util.NewID()
	}
	now := time.Now().UTC()
	a.Created, a.Updated = now, now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agents (`+agentColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.Name, a.Description, a.Provider, a.Model, a.SystemPrompt, a.IsActive,
		a.PersonalityTone, encodeList(a.PersonalityTraits), a.CommunicationStyle, encodeList(a.EnabledTools),
		a.ReasoningStyle, a.MemoryContext, a.MemoryInstructions, a.APIKey, a.IsSystem,
		a.Created, a.Updated)
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}
	return nil
}

// GetAgent implements AgentStore.
func (s *SQLite) GetAgent(ctx context.Context, id string) (*Agent, error) {
	a, err := scanAgent(s.db.QueryRowContext(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("agent %s: %w", id, ErrNotFound)
	}
	return a, err
}

// GetAgentByName implements AgentStore.
func (s *SQLite) GetAgentByName(ctx context.Context, name string) (*Agent, error) {
	a, err := scanAgent(s.db.QueryRowContext(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE name = ? COLLATE NOCASE`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("agent %q: %w", name, ErrNotFound)
	}
	return a, err
}

func (s *SQLite) queryAgents(ctx context.Context, query string, args ...any) ([]*Agent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListAgents implements AgentStore.
func (s *SQLite) ListAgents(ctx context.Context) ([]*Agent, error) {
	return s.queryAgents(ctx, `SELECT `+agentColumns+` FROM agents ORDER BY id ASC`)
}

// ListActiveAgents implements AgentStore.
func (s *SQLite) ListActiveAgents(ctx context.Context) ([]*Agent, error) {
	return s.queryAgents(ctx, `SELECT `+agentColumns+` FROM agents WHERE is_active = 1 ORDER BY id ASC`)
}

// UpdateAgent implements AgentStore. The is_system flag is never writable.
func (s *SQLite) UpdateAgent(ctx context.Context, a *Agent) error {
	a.Updated = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE agents SET name=?, description=?, provider=?, model=?, system_prompt=?, is_active=?,
			personality_tone=?, personality_traits=?, communication_style=?, enabled_tools=?,
			reasoning_style=?, memory_context=?, memory_instructions=?, api_key=?, updated_at=?
		 WHERE id=?`,
		a.Name, a.Description, a.Provider, a.Model, a.SystemPrompt, a.IsActive,
		a.PersonalityTone, encodeList(a.PersonalityTraits), a.CommunicationStyle, encodeList(a.EnabledTools),
		a.ReasoningStyle, a.MemoryContext, a.MemoryInstructions, a.APIKey, a.Updated,
		a.ID)
	if err != nil {
		return fmt.Errorf("update agent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("agent %s: %w", a.ID, ErrNotFound)
	}
	return nil
}

// DeleteAgent implements AgentStore.
func (s *SQLite) DeleteAgent(ctx context.Context, id string) error {
	a, err := s.GetAgent(ctx, id)
	if err != nil {
		return err
	}
	if a.IsSystem {
		return fmt.Errorf("agent %q: %w", a.Name, ErrProtected)
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM agents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete agent: %w", err)
	}
	return nil
}

// CreateConversation implements ConversationStore.
func (s *SQLite) CreateConversation(ctx context.Context, c *Conversation) error {
	if c.ID == "" {
		c.ID = util.NewID()
	}
	now := time.Now().UTC()
	c.Created, c.Updated = now, now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, title, model, system_prompt, is_group, agent_id, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?)`,
		c.ID, c.Title, c.Model, c.SystemPrompt, c.IsGroup, c.AgentID, c.Created, c.Updated)
	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

func scanConversation(row interface{ Scan(...any) error }) (*Conversation, error) {
	var c Conversation
	var model, sysPrompt, agentID sql.NullString
	err := row.Scan(&c.ID, &c.Title, &model, &sysPrompt, &c.IsGroup, &agentID, &c.Created, &c.Updated)
	if err != nil {
		return nil, err
	}
	c.Model = model.String
	c.SystemPrompt = sysPrompt.String
	c.AgentID = agentID.String
	return &c, nil
}

// GetConversation implements ConversationStore.
func (s *SQLite) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	c, err := scanConversation(s.db.QueryRowContext(ctx,
		`SELECT id, title, model, system_prompt, is_group, agent_id, created_at, updated_at
		 FROM conversations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	return c, err
}

// ListConversations implements ConversationStore, most recently updated first.
func (s *SQLite) ListConversations(ctx context.Context, limit, offset int, agentID string) ([]*Conversation, error) {
	query := `SELECT id, title, model, system_prompt, is_group, agent_id, created_at, updated_at
		 FROM conversations`
	var args []any
	if agentID != "" {
		query += ` WHERE agent_id = ?`
		args = append(args, agentID)
	}
	query += ` ORDER BY updated_at DESC`
	if limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	} else if offset > 0 {
		query += ` LIMIT -1 OFFSET ?`
		args = append(args, offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteConversation implements ConversationStore; messages cascade.
func (s *SQLite) DeleteConversation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	return nil
}

// AppendMessage implements ConversationStore.
func (s *SQLite) AppendMessage(ctx context.Context, m *Message) error {
	if _, err := s.GetConversation(ctx, m.ConversationID); err != nil {
		return err
	}
	if m.ID == "" {
		m.ID = util.NewID()
	}
	m.Created = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, agent_name, tool_calls_json, tool_call_id, created_at)
		 VALUES (?,?,?,?,?,?,?,?)`,
		m.ID, m.ConversationID, m.Role, m.Content, m.AgentName, m.ToolCallsJSON, m.ToolCallID, m.Created)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`, m.Created, m.ConversationID)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// Messages implements ConversationStore, ordered by insertion.
func (s *SQLite) Messages(ctx context.Context, conversationID string) ([]*Message, error) {
	if _, err := s.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, agent_name, tool_calls_json, tool_call_id, created_at
		 FROM messages WHERE conversation_id = ? ORDER BY seq ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		var m Message
		var agentName, toolCalls, toolCallID sql.NullString
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &agentName, &toolCalls, &toolCallID, &m.Created); err != nil {
			return nil, err
		}
		m.AgentName = agentName.String
		m.ToolCallsJSON = toolCalls.String
		m.ToolCallID = toolCallID.String
		out = append(out, &m)
	}
	return out, rows.Err()
}

// CreateCustomTool implements CustomToolStore.
func (s *SQLite) CreateCustomTool(ctx context.Context, t *CustomTool) error {
	if t.ID == "" {
		t.ID = util.NewID()
	}
	now := time.Now().UTC()
	t.Created, t.Updated = now, now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO custom_tools (id, name, description, parameters_schema, code, is_active, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?)`,
		t.ID, t.Name, t.Description, t.ParametersSchema, t.Code, t.IsActive, t.Created, t.Updated)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return fmt.Errorf("custom tool %q already exists", t.Name)
		}
		return fmt.Errorf("create custom tool: %w", err)
	}
	return nil
}

func scanCustomTool(row interface{ Scan(...any) error }) (*CustomTool, error) {
	var t CustomTool
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.ParametersSchema, &t.Code, &t.IsActive, &t.Created, &t.Updated)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetCustomTool implements CustomToolStore.
func (s *SQLite) GetCustomTool(ctx context.Context, id string) (*CustomTool, error) {
	t, err := scanCustomTool(s.db.QueryRowContext(ctx,
		`SELECT id, name, description, parameters_schema, code, is_active, created_at, updated_at
		 FROM custom_tools WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("custom tool %s: %w", id, ErrNotFound)
	}
	return t, err
}

// GetCustomToolByName implements CustomToolStore.
func (s *SQLite) GetCustomToolByName(ctx context.Context, name string) (*CustomTool, error) {
	t, err := scanCustomTool(s.db.QueryRowContext(ctx,
		`SELECT id, name, description, parameters_schema, code, is_active, created_at, updated_at
		 FROM custom_tools WHERE name = ? COLLATE NOCASE`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("custom tool %q: %w", name, ErrNotFound)
	}
	return t, err
}

// ListCustomTools implements CustomToolStore.
func (s *SQLite) ListCustomTools(ctx context.Context) ([]*CustomTool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, parameters_schema, code, is_active, created_at, updated_at
		 FROM custom_tools ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*CustomTool
	for rows.Next() {
		t, err := scanCustomTool(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateCustomTool implements CustomToolStore.
func (s *SQLite) UpdateCustomTool(ctx context.Context, t *CustomTool) error {
	t.Updated = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE custom_tools SET name=?, description=?, parameters_schema=?, code=?, is_active=?, updated_at=? WHERE id=?`,
		t.Name, t.Description, t.ParametersSchema, t.Code, t.IsActive, t.Updated, t.ID)
	if err != nil {
		return fmt.Errorf("update custom tool: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("custom tool %s: %w", t.ID, ErrNotFound)
	}
	return nil
}

// DeleteCustomTool implements CustomToolStore.
func (s *SQLite) DeleteCustomTool(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM custom_tools WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete custom tool: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("custom tool %s: %w", id, ErrNotFound)
	}
	return nil
}

// CreateSkill implements SkillStore.
func (s *SQLite) CreateSkill(ctx context.Context, sk *Skill) error {
	if sk.ID == "" {
		sk.ID = util.NewID()
	}
	now := time.Now().UTC()
	sk.Created, sk.Updated = now, now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO skills (id, name, description, instructions, is_active, user_invocable, trigger_pattern, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		sk.ID, sk.Name, sk.Description, sk.Instructions, sk.IsActive, sk.UserInvocable, sk.TriggerPattern, sk.Created, sk.Updated)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return fmt.Errorf("skill %q already exists", sk.Name)
		}
		return fmt.Errorf("create skill: %w", err)
	}
	return nil
}

func scanSkill(row interface{ Scan(...any) error }) (*Skill, error) {
	var sk Skill
	var desc, trigger sql.NullString
	err := row.Scan(&sk.ID, &sk.Name, &desc, &sk.Instructions, &sk.IsActive, &sk.UserInvocable, &trigger, &sk.Created, &sk.Updated)
	if err != nil {
		return nil, err
	}
	sk.Description = desc.String
	sk.TriggerPattern = trigger.String
	return &sk, nil
}

// GetSkillByName implements SkillStore.
func (s *SQLite) GetSkillByName(ctx context.Context, name string) (*Skill, error) {
	sk, err := scanSkill(s.db.QueryRowContext(ctx,
		`SELECT id, name, description, instructions, is_active, user_invocable, trigger_pattern, created_at, updated_at
		 FROM skills WHERE name = ? COLLATE NOCASE`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("skill %q: %w", name, ErrNotFound)
	}
	return sk, err
}

// ListSkills implements SkillStore.
func (s *SQLite) ListSkills(ctx context.Context) ([]*Skill, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, instructions, is_active, user_invocable, trigger_pattern, created_at, updated_at
		 FROM skills ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Skill
	for rows.Next() {
		sk, err := scanSkill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sk)
	}
	return out, rows.Err()
}

// UpdateSkill implements SkillStore.
func (s *SQLite) UpdateSkill(ctx context.Context, sk *Skill) error {
	sk.Updated = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE skills SET name=?, description=?, instructions=?, is_active=?, user_invocable=?, trigger_pattern=?, updated_at=? WHERE id=?`,
		sk.Name, sk.Description, sk.Instructions, sk.IsActive, sk.UserInvocable, sk.TriggerPattern, sk.Updated, sk.ID)
	if err != nil {
		return fmt.Errorf("update skill: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("skill %s: %w", sk.ID, ErrNotFound)
	}
	return nil
}

// DeleteSkill implements SkillStore.
func (s *SQLite) DeleteSkill(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM skills WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete skill: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("skill %s: %w", id, ErrNotFound)
	}
	return nil
}

func encodeGraph(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(raw)
}

// CreateWorkflow implements WorkflowStore.
func (s *SQLite) CreateWorkflow(ctx context.Context, w *Workflow) error {
	if w.ID == "" {
		w.ID = util.NewID()
	}
	now := time.Now().UTC()
	w.Created, w.Updated = now, now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO workflows (id, name, description, is_active, agent_id, nodes, edges, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		w.ID, w.Name, w.Description, w.IsActive, w.AgentID, encodeGraph(w.Nodes), encodeGraph(w.Edges), w.Created, w.Updated)
	if err != nil {
		return fmt.Errorf("create workflow: %w", err)
	}
	return nil
}

func scanWorkflow(row interface{ Scan(...any) error }) (*Workflow, error) {
	var w Workflow
	var desc, agentID sql.NullString
	var nodes, edges string
	err := row.Scan(&w.ID, &w.Name, &desc, &w.IsActive, &agentID, &nodes, &edges, &w.Created, &w.Updated)
	if err != nil {
		return nil, err
	}
	w.Description = desc.String
	w.AgentID = agentID.String
	_ = json.Unmarshal([]byte(nodes), &w.Nodes)
	_ = json.Unmarshal([]byte(edges), &w.Edges)
	return &w, nil
}

// GetWorkflow implements WorkflowStore.
func (s *SQLite) GetWorkflow(ctx context.Context, id string) (*Workflow, error) {
	w, err := scanWorkflow(s.db.QueryRowContext(ctx,
		`SELECT id, name, description, is_active, agent_id, nodes, edges, created_at, updated_at
		 FROM workflows WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("workflow %s: %w", id, ErrNotFound)
	}
	return w, err
}

// ListWorkflows implements WorkflowStore.
func (s *SQLite) ListWorkflows(ctx context.Context) ([]*Workflow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, is_active, agent_id, nodes, edges, created_at, updated_at
		 FROM workflows ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Workflow
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// UpdateWorkflow implements WorkflowStore.
func (s *SQLite) UpdateWorkflow(ctx context.Context, w *Workflow) error {
	w.Updated = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE workflows SET name=?, description=?, is_active=?, agent_id=?, nodes=?, edges=?, updated_at=? WHERE id=?`,
		w.Name, w.Description, w.IsActive, w.AgentID, encodeGraph(w.Nodes), encodeGraph(w.Edges), w.Updated, w.ID)
	if err != nil {
		return fmt.Errorf("update workflow: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("workflow %s: %w", w.ID, ErrNotFound)
	}
	return nil
}

// DeleteWorkflow implements WorkflowStore.
func (s *SQLite) DeleteWorkflow(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete workflow: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("workflow %s: %w", id, ErrNotFound)
	}
	return nil
}

// CreateModelConfig implements ModelConfigStore.
func (s *SQLite) CreateModelConfig(ctx context.Context, m *ModelConfig) error {
	if m.ID == "" {
		return fmt.Errorf("model config: id is required")
	}
	now := time.Now().UTC()
	m.Created, m.Updated = now, now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO model_configs (id, provider, name, context_window, is_vision, is_active, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?)`,
		m.ID, m.Provider, m.Name, m.ContextWindow, m.IsVision, m.IsActive, m.Created, m.Updated)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return fmt.Errorf("model config %q already exists", m.ID)
		}
		return fmt.Errorf("create model config: %w", err)
	}
	return nil
}

func scanModelConfig(row interface{ Scan(...any) error }) (*ModelConfig, error) {
	var m ModelConfig
	err := row.Scan(&m.ID, &m.Provider, &m.Name, &m.ContextWindow, &m.IsVision, &m.IsActive, &m.Created, &m.Updated)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetModelConfig implements ModelConfigStore.
func (s *SQLite) GetModelConfig(ctx context.Context, id string) (*ModelConfig, error) {
	m, err := scanModelConfig(s.db.QueryRowContext(ctx,
		`SELECT id, provider, name, context_window, is_vision, is_active, created_at, updated_at
		 FROM model_configs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("model config %s: %w", id, ErrNotFound)
	}
	return m, err
}

// ListModelConfigs implements ModelConfigStore.
func (s *SQLite) ListModelConfigs(ctx context.Context) ([]*ModelConfig, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, provider, name, context_window, is_vision, is_active, created_at, updated_at
		 FROM model_configs ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ModelConfig
	for rows.Next() {
		m, err := scanModelConfig(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpdateModelConfig implements ModelConfigStore.
func (s *SQLite) UpdateModelConfig(ctx context.Context, m *ModelConfig) error {
	m.Updated = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE model_configs SET provider=?, name=?, context_window=?, is_vision=?, is_active=?, updated_at=? WHERE id=?`,
		m.Provider, m.Name, m.ContextWindow, m.IsVision, m.IsActive, m.Updated, m.ID)
	if err != nil {
		return fmt.Errorf("update model config: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("model config %s: %w", m.ID, ErrNotFound)
	}
	return nil
}

// DeleteModelConfig implements ModelConfigStore.
func (s *SQLite) DeleteModelConfig(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM model_configs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete model config: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("model config %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetSetting implements SettingStore.
func (s *SQLite) GetSetting(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("setting %q: %w", key, ErrNotFound)
	}
	return v, err
}

// SetSetting implements SettingStore.
func (s *SQLite) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}
