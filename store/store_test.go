package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// forEachStore runs the same assertions against both implementations.
func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemory())
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "parley.db"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		fn(t, s)
	})
}

func TestAgentCRUD(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		a := &Agent{
			Name:              "Ada",
			Provider:          "openai",
			Model:             "gpt-4o-mini",
			IsActive:          true,
			PersonalityTraits: []string{"curious", "precise"},
			EnabledTools:      []string{"code_executor"},
		}
		require.NoError(t, s.CreateAgent(ctx, a))
		require.NotEmpty(t, a.ID)

		got, err := s.GetAgent(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "Ada", got.Name)
		assert.Equal(t, []string{"curious", "precise"}, got.PersonalityTraits)

		byName, err := s.GetAgentByName(ctx, "ada")
		require.NoError(t, err)
		assert.Equal(t, a.ID, byName.ID)

		got.Model = "gpt-4o"
		require.NoError(t, s.UpdateAgent(ctx, got))
		updated, err := s.GetAgent(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o", updated.Model)

		require.NoError(t, s.DeleteAgent(ctx, a.ID))
		_, err = s.GetAgent(ctx, a.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestDeleteSystemAgentProtected(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		a := &Agent{Name: "Coordinator", Provider: "gemini", Model: "gemini-2.5-flash", IsActive: true, IsSystem: true}
		require.NoError(t, s.CreateAgent(ctx, a))

		err := s.DeleteAgent(ctx, a.ID)
		assert.ErrorIs(t, err, ErrProtected)

		// Still present.
		_, err = s.GetAgent(ctx, a.ID)
		assert.NoError(t, err)
	})
}

func TestListActiveAgentsOrderedByID(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		require.NoError(t, s.CreateAgent(ctx, &Agent{ID: "b-agent", Name: "Bee", Provider: "openai", Model: "gpt-4o", IsActive: true}))
		require.NoError(t, s.CreateAgent(ctx, &Agent{ID: "a-agent", Name: "Aye", Provider: "openai", Model: "gpt-4o", IsActive: true}))
		require.NoError(t, s.CreateAgent(ctx, &Agent{ID: "c-agent", Name: "Sea", Provider: "openai", Model: "gpt-4o", IsActive: false}))

		active, err := s.ListActiveAgents(ctx)
		require.NoError(t, err)
		require.Len(t, active, 2)
		assert.Equal(t, "a-agent", active[0].ID)
		assert.Equal(t, "b-agent", active[1].ID)
	})
}

func TestMessagesAppendOrder(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		c := &Conversation{Title: "test"}
		require.NoError(t, s.CreateConversation(ctx, c))

		for _, content := range []string{"first", "second", "third"} {
			require.NoError(t, s.AppendMessage(ctx, &Message{
				ConversationID: c.ID,
				Role:           "user",
				Content:        content,
			}))
		}

		log, err := s.Messages(ctx, c.ID)
		require.NoError(t, err)
		require.Len(t, log, 3)
		assert.Equal(t, "first", log[0].Content)
		assert.Equal(t, "second", log[1].Content)
		assert.Equal(t, "third", log[2].Content)
	})
}

func TestAppendMessageUnknownConversation(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		err := s.AppendMessage(context.Background(), &Message{ConversationID: "missing", Role: "user", Content: "hi"})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestDeleteConversationDropsMessages(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		c := &Conversation{Title: "doomed"}
		require.NoError(t, s.CreateConversation(ctx, c))
		require.NoError(t, s.AppendMessage(ctx, &Message{ConversationID: c.ID, Role: "user", Content: "hi"}))

		require.NoError(t, s.DeleteConversation(ctx, c.ID))
		_, err := s.Messages(ctx, c.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestListConversationsFilterAndPaging(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			require.NoError(t, s.CreateConversation(ctx, &Conversation{Title: "solo", AgentID: "agent-1"}))
		}
		require.NoError(t, s.CreateConversation(ctx, &Conversation{Title: "other", AgentID: "agent-2"}))

		byAgent, err := s.ListConversations(ctx, 0, 0, "agent-1")
		require.NoError(t, err)
		assert.Len(t, byAgent, 3)

		page, err := s.ListConversations(ctx, 2, 0, "")
		require.NoError(t, err)
		assert.Len(t, page, 2)
	})
}

func TestCustomToolUniqueName(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		tool := &CustomTool{Name: "weather", Description: "d", ParametersSchema: "{}", Code: "result = 1", IsActive: true}
		require.NoError(t, s.CreateCustomTool(ctx, tool))

		dup := &CustomTool{Name: "Weather", Description: "d", ParametersSchema: "{}", Code: "result = 2", IsActive: true}
		err := s.CreateCustomTool(ctx, dup)
		assert.ErrorContains(t, err, "already exists")

		got, err := s.GetCustomToolByName(ctx, "WEATHER")
		require.NoError(t, err)
		assert.Equal(t, tool.ID, got.ID)
	})
}

func TestSkillCRUD(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		sk := &Skill{Name: "summarize", Instructions: "Summarize in three bullets.", IsActive: true, UserInvocable: true}
		require.NoError(t, s.CreateSkill(ctx, sk))

		got, err := s.GetSkillByName(ctx, "Summarize")
		require.NoError(t, err)
		assert.Equal(t, sk.ID, got.ID)

		got.Instructions = "Summarize in one line."
		require.NoError(t, s.UpdateSkill(ctx, got))

		all, err := s.ListSkills(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, "Summarize in one line.", all[0].Instructions)

		require.NoError(t, s.DeleteSkill(ctx, sk.ID))
		_, err = s.GetSkillByName(ctx, "summarize")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestWorkflowGraphRoundTrip(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		w := &Workflow{
			Name:     "digest",
			IsActive: true,
			Nodes: []WorkflowNode{
				{ID: "n1", Type: "trigger", SubType: "webhook"},
				{ID: "n2", Type: "action", SubType: "summarize"},
			},
			Edges: []WorkflowEdge{{ID: "e1", SourceNodeID: "n1", TargetNodeID: "n2"}},
		}
		require.NoError(t, s.CreateWorkflow(ctx, w))

		got, err := s.GetWorkflow(ctx, w.ID)
		require.NoError(t, err)
		require.Len(t, got.Nodes, 2)
		require.Len(t, got.Edges, 1)
		assert.Equal(t, "summarize", got.Nodes[1].SubType)
		assert.Equal(t, "n2", got.Edges[0].TargetNodeID)
	})
}

func TestModelConfigCRUD(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		m := &ModelConfig{ID: "gpt-4o", Provider: "openai", Name: "GPT-4o", ContextWindow: 128000, IsVision: true, IsActive: true}
		require.NoError(t, s.CreateModelConfig(ctx, m))

		err := s.CreateModelConfig(ctx, &ModelConfig{ID: "gpt-4o", Provider: "openai", Name: "dup"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already exists")

		got, err := s.GetModelConfig(ctx, "gpt-4o")
		require.NoError(t, err)
		assert.Equal(t, 128000, got.ContextWindow)
		assert.True(t, got.IsVision)

		got.ContextWindow = 200000
		require.NoError(t, s.UpdateModelConfig(ctx, got))

		require.NoError(t, s.CreateModelConfig(ctx, &ModelConfig{ID: "claude-3-5-sonnet-20241022", Provider: "anthropic", Name: "Claude 3.5 Sonnet"}))
		all, err := s.ListModelConfigs(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "claude-3-5-sonnet-20241022", all[0].ID)
		assert.Equal(t, 200000, all[1].ContextWindow)

		require.NoError(t, s.DeleteModelConfig(ctx, "gpt-4o"))
		_, err = s.GetModelConfig(ctx, "gpt-4o")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestModelConfigRequiresID(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		err := s.CreateModelConfig(context.Background(), &ModelConfig{Provider: "openai", Name: "unnamed"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "id is required")
	})
}

func TestSettings(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, err := s.GetSetting(ctx, "theme")
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, s.SetSetting(ctx, "theme", "dark"))
		require.NoError(t, s.SetSetting(ctx, "theme", "light"))

		v, err := s.GetSetting(ctx, "theme")
		require.NoError(t, err)
		assert.Equal(t, "light", v)
	})
}
