package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/parleyhq/parley/internal/util"
)

// Memory is a thread-safe in-memory Store. All reads return clones so
// callers can never mutate shared state.
type Memory struct {
	mu            sync.RWMutex
	agents        map[string]*Agent
	conversations map[string]*Conversation
	messages      map[string][]*Message // conversation id -> append-ordered log
	customTools   map[string]*CustomTool
	skills        map[string]*Skill
	workflows     map[string]*Workflow
	models        map[string]*ModelConfig
	settings      map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		agents:        make(map[string]*Agent),
		conversations: make(map[string]*Conversation),
		messages:      make(map[string][]*Message),
		customTools:   make(map[string]*CustomTool),
		skills:        make(map[string]*Skill),
		workflows:     make(map[string]*Workflow),
		models:        make(map[string]*ModelConfig),
		settings:      make(map[string]string),
	}
}

var _ Store = (*Memory)(nil)

func cloneAgent(a *Agent) *Agent {
	c := *a
	c.PersonalityTraits = append([]string(nil), a.PersonalityTraits...)
	c.EnabledTools = append([]string(nil), a.EnabledTools...)
	return &c
}

func cloneWorkflow(w *Workflow) *Workflow {
	c := *w
	c.Nodes = append([]WorkflowNode(nil), w.Nodes...)
	c.Edges = append([]WorkflowEdge(nil), w.Edges...)
	return &c
}

// CreateAgent implements AgentStore.
func (s *Memory) CreateAgent(_ context.Context, a *Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		a.ID = util.NewID()
	}
	now := time.Now().UTC()
	a.Created, a.Updated = now, now
	s.agents[a.ID] = cloneAgent(a)
	return nil
}

// GetAgent implements AgentStore.
func (s *Memory) GetAgent(_ context.Context, id string) (*Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.agents[id]
	if !ok {
		return nil, fmt.Errorf("agent %s: %w", id, ErrNotFound)
	}
	return cloneAgent(a), nil
}

// GetAgentByName implements AgentStore.
func (s *Memory) GetAgentByName(_ context.Context, name string) (*Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.agents {
		if strings.EqualFold(a.Name, name) {
			return cloneAgent(a), nil
		}
	}
	return nil, fmt.Errorf("agent %q: %w", name, ErrNotFound)
}

// ListAgents implements AgentStore.
func (s *Memory) ListAgents(_ context.Context) ([]*Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Agent, 0, len(s.agents))
	for _, a := range s.agents {
		out = append(out, cloneAgent(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListActiveAgents implements AgentStore.
func (s *Memory) ListActiveAgents(ctx context.Context) ([]*Agent, error) {
	all, err := s.ListAgents(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, a := range all {
		if a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

// UpdateAgent implements AgentStore.
func (s *Memory) UpdateAgent(_ context.Context, a *Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.agents[a.ID]
	if !ok {
		return fmt.Errorf("agent %s: %w", a.ID, ErrNotFound)
	}
	a.Created = existing.Created
	a.IsSystem = existing.IsSystem
	a.Updated = time.Now().UTC()
	s.agents[a.ID] = cloneAgent(a)
	return nil
}

// DeleteAgent implements AgentStore.
func (s *Memory) DeleteAgent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.agents[id]
	if !ok {
		return fmt.Errorf("agent %s: %w", id, ErrNotFound)
	}
	if a.IsSystem {
		return fmt.Errorf("agent %q: %w", a.Name, ErrProtected)
	}
	delete(s.agents, id)
	return nil
}

// CreateConversation implements ConversationStore.
func (s *Memory) CreateConversation(_ context.Context, c *Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = util.NewID()
	}
	now := time.Now().UTC()
	c.Created, c.Updated = now, now
	clone := *c
	s.conversations[c.ID] = &clone
	return nil
}

// GetConversation implements ConversationStore.
func (s *Memory) GetConversation(_ context.Context, id string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[id]
	if !ok {
		return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	clone := *c
	return &clone, nil
}

// ListConversations implements ConversationStore. Results are ordered by
// most recently updated first.
func (s *Memory) ListConversations(_ context.Context, limit, offset int, agentID string) ([]*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		if agentID != "" && c.AgentID != agentID {
			continue
		}
		clone := *c
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Updated.After(out[j].Updated) })

	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// DeleteConversation implements ConversationStore and drops the message log.
func (s *Memory) DeleteConversation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[id]; !ok {
		return fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	delete(s.conversations, id)
	delete(s.messages, id)
	return nil
}

// AppendMessage implements ConversationStore.
func (s *Memory) AppendMessage(_ context.Context, m *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[m.ConversationID]
	if !ok {
		return fmt.Errorf("conversation %s: %w", m.ConversationID, ErrNotFound)
	}
	if m.ID == "" {
		m.ID = util.NewID()
	}
	m.Created = time.Now().UTC()
	c.Updated = m.Created

	clone := *m
	s.messages[m.ConversationID] = append(s.messages[m.ConversationID], &clone)
	return nil
}

// Messages implements ConversationStore.
func (s *Memory) Messages(_ context.Context, conversationID string) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.conversations[conversationID]; !ok {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
	}
	log := s.messages[conversationID]
	out := make([]*Message, len(log))
	for i, m := range log {
		clone := *m
		out[i] = &clone
	}
	return out, nil
}

// CreateCustomTool implements CustomToolStore.
func (s *Memory) CreateCustomTool(_ context.Context, t *CustomTool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.customTools {
		if strings.EqualFold(existing.Name, t.Name) {
			return fmt.Errorf("custom tool %q already exists", t.Name)
		}
	}
	if t.ID == "" {
		t.ID = util.NewID()
	}
	now := time.Now().UTC()
	t.Created, t.Updated = now, now
	clone := *t
	s.customTools[t.ID] = &clone
	return nil
}

// GetCustomTool implements CustomToolStore.
func (s *Memory) GetCustomTool(_ context.Context, id string) (*CustomTool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.customTools[id]
	if !ok {
		return nil, fmt.Errorf("custom tool %s: %w", id, ErrNotFound)
	}
	clone := *t
	return &clone, nil
}

// GetCustomToolByName implements CustomToolStore.
func (s *Memory) GetCustomToolByName(_ context.Context, name string) (*CustomTool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.customTools {
		if strings.EqualFold(t.Name, name) {
			clone := *t
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("custom tool %q: %w", name, ErrNotFound)
}

// ListCustomTools implements CustomToolStore.
func (s *Memory) ListCustomTools(_ context.Context) ([]*CustomTool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*CustomTool, 0, len(s.customTools))
	for _, t := range s.customTools {
		clone := *t
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// UpdateCustomTool implements CustomToolStore.
func (s *Memory) UpdateCustomTool(_ context.Context, t *CustomTool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.customTools[t.ID]
	if !ok {
		return fmt.Errorf("custom tool %s: %w", t.ID, ErrNotFound)
	}
	t.Created = existing.Created
	t.Updated = time.Now().UTC()
	clone := *t
	s.customTools[t.ID] = &clone
	return nil
}

// DeleteCustomTool implements CustomToolStore.
func (s *Memory) DeleteCustomTool(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customTools[id]; !ok {
		return fmt.Errorf("custom tool %s: %w", id, ErrNotFound)
	}
	delete(s.customTools, id)
	return nil
}

// CreateSkill implements SkillStore.
func (s *Memory) CreateSkill(_ context.Context, sk *Skill) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.skills {
		if strings.EqualFold(existing.Name, sk.Name) {
			return fmt.Errorf("skill %q already exists", sk.Name)
		}
	}
	if sk.ID == "" {
		sk.ID = util.NewID()
	}
	now := time.Now().UTC()
	sk.Created, sk.Updated = now, now
	clone := *sk
	s.skills[sk.ID] = &clone
	return nil
}

// GetSkillByName implements SkillStore.
func (s *Memory) GetSkillByName(_ context.Context, name string) (*Skill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sk := range s.skills {
		if strings.EqualFold(sk.Name, name) {
			clone := *sk
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("skill %q: %w", name, ErrNotFound)
}

// ListSkills implements SkillStore.
func (s *Memory) ListSkills(_ context.Context) ([]*Skill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Skill, 0, len(s.skills))
	for _, sk := range s.skills {
		clone := *sk
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// UpdateSkill implements SkillStore.
func (s *Memory) UpdateSkill(_ context.Context, sk *Skill) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.skills[sk.ID]
	if !ok {
		return fmt.Errorf("skill %s: %w", sk.ID, ErrNotFound)
	}
	sk.Created = existing.Created
	sk.Updated = time.Now().UTC()
	clone := *sk
	s.skills[sk.ID] = &clone
	return nil
}

// DeleteSkill implements SkillStore.
func (s *Memory) DeleteSkill(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.skills[id]; !ok {
		return fmt.Errorf("skill %s: %w", id, ErrNotFound)
	}
	delete(s.skills, id)
	return nil
}

// CreateWorkflow implements WorkflowStore.
func (s *Memory) CreateWorkflow(_ context.Context, w *Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w.ID == "" {
		w.ID = util.NewID()
	}
	now := time.Now().UTC()
	w.Created, w.Updated = now, now
	s.workflows[w.ID] = cloneWorkflow(w)
	return nil
}

// GetWorkflow implements WorkflowStore.
func (s *Memory) GetWorkflow(_ context.Context, id string) (*Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.workflows[id]
	if !ok {
		return nil, fmt.Errorf("workflow %s: %w", id, ErrNotFound)
	}
	return cloneWorkflow(w), nil
}

// ListWorkflows implements WorkflowStore.
func (s *Memory) ListWorkflows(_ context.Context) ([]*Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Workflow, 0, len(s.workflows))
	for _, w := range s.workflows {
		out = append(out, cloneWorkflow(w))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// UpdateWorkflow implements WorkflowStore.
func (s *Memory) UpdateWorkflow(_ context.Context, w *Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.workflows[w.ID]
	if !ok {
		return fmt.Errorf("workflow %s: %w", w.ID, ErrNotFound)
	}
	w.Created = existing.Created
	w.Updated = time.Now().UTC()
	s.workflows[w.ID] = cloneWorkflow(w)
	return nil
}

// DeleteWorkflow implements WorkflowStore.
func (s *Memory) DeleteWorkflow(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workflows[id]; !ok {
		return fmt.Errorf("workflow %s: %w", id, ErrNotFound)
	}
	delete(s.workflows, id)
	return nil
}

// CreateModelConfig implements ModelConfigStore. The ID is the model id
// string itself and must be supplied by the caller.
func (s *Memory) CreateModelConfig(_ context.Context, m *ModelConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == "" {
		return fmt.Errorf("model config: id is required")
	}
	if _, ok := s.models[m.ID]; ok {
		return fmt.Errorf("model config %q already exists", m.ID)
	}
	now := time.Now().UTC()
	m.Created, m.Updated = now, now
	c := *m
	s.models[m.ID] = &c
	return nil
}

// GetModelConfig implements ModelConfigStore.
func (s *Memory) GetModelConfig(_ context.Context, id string) (*ModelConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.models[id]
	if !ok {
		return nil, fmt.Errorf("model config %s: %w", id, ErrNotFound)
	}
	c := *m
	return &c, nil
}

// ListModelConfigs implements ModelConfigStore.
func (s *Memory) ListModelConfigs(_ context.Context) ([]*ModelConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*ModelConfig, 0, len(s.models))
	for _, m := range s.models {
		c := *m
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateModelConfig implements ModelConfigStore.
func (s *Memory) UpdateModelConfig(_ context.Context, m *ModelConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.models[m.ID]
	if !ok {
		return fmt.Errorf("model config %s: %w", m.ID, ErrNotFound)
	}
	m.Created = existing.Created
	m.Updated = time.Now().UTC()
	c := *m
	s.models[m.ID] = &c
	return nil
}

// DeleteModelConfig implements ModelConfigStore.
func (s *Memory) DeleteModelConfig(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.models[id]; !ok {
		return fmt.Errorf("model config %s: %w", id, ErrNotFound)
	}
	delete(s.models, id)
	return nil
}

// GetSetting implements SettingStore.
func (s *Memory) GetSetting(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.settings[key]
	if !ok {
		return "", fmt.Errorf("setting %q: %w", key, ErrNotFound)
	}
	return v, nil
}

// SetSetting implements SettingStore.
func (s *Memory) SetSetting(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings[key] = value
	return nil
}
