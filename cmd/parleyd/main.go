// parleyd is the chat service daemon. It wires the store, provider
// registry, tool registry, and workflow engine together and serves the
// WebSocket and JSON endpoints.
package main

import (
	"context"
	"net/http"
	"os"
	"path/filepath"

	"github.com/parleyhq/parley/config"
	"github.com/parleyhq/parley/knowledge"
	"github.com/parleyhq/parley/logging"
	"github.com/parleyhq/parley/orchestrator"
	"github.com/parleyhq/parley/provider"
	"github.com/parleyhq/parley/provider/anthropic"
	"github.com/parleyhq/parley/provider/gemini"
	"github.com/parleyhq/parley/provider/ollama"
	"github.com/parleyhq/parley/provider/openai"
	"github.com/parleyhq/parley/server"
	"github.com/parleyhq/parley/store"
	"github.com/parleyhq/parley/tool"
	"github.com/parleyhq/parley/workflow"
)

func main() {
	settings := config.New()
	logger := logging.NewDefaultLogger()
	ctx := context.Background()

	for _, dir := range []string{filepath.Dir(settings.DBPath), settings.WorkspaceDir, settings.UploadDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error("creating data directory", "dir", dir, "error", err)
			os.Exit(1)
		}
	}

	st, err := store.OpenSQLite(ctx, settings.DBPath)
	if err != nil {
		logger.Error("opening database", "path", settings.DBPath, "error", err)
		os.Exit(1)
	}
	if err := seedMainAgent(ctx, st, settings); err != nil {
		logger.Error("seeding system agent", "error", err)
		os.Exit(1)
	}
	if err := seedModelConfigs(ctx, st); err != nil {
		logger.Error("seeding model configs", "error", err)
		os.Exit(1)
	}

	providers := buildProviders(settings, logger)

	kb := knowledge.NewBase(logger)
	tools := tool.NewRegistry()
	chat := orchestrator.NewService(providers, tools, st, logger)

	if err := tool.RegisterDefaults(ctx, tools, tool.NewSandbox(), settings.WorkspaceDir, kb, st, chat); err != nil {
		logger.Error("registering tools", "error", err)
		os.Exit(1)
	}

	workflows := workflow.NewEngine(st, providers, logger, workflow.WithModel(settings.DefaultModel))
	srv := server.New(chat, providers, workflows, settings, logger)

	logger.Info("parleyd listening", "addr", settings.Addr(), "providers", providers.Available())
	if err := http.ListenAndServe(settings.Addr(), srv.Handler()); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// buildProviders registers every backend with a usable credential. Ollama
// needs no key and is always registered.
func buildProviders(settings *config.Settings, logger logging.Logger) *provider.Registry {
	providers := provider.NewRegistry()

	if settings.OpenAIAPIKey != "" {
		providers.Add(openai.New(settings.OpenAIAPIKey))
	}
	if settings.AnthropicAPIKey != "" {
		providers.Add(anthropic.New(settings.AnthropicAPIKey))
	}
	if settings.GeminiAPIKey != "" {
		p, err := gemini.New(settings.GeminiAPIKey)
		if err != nil {
			logger.Warn("gemini unavailable", "error", err)
		} else {
			providers.Add(p)
		}
	}
	providers.Add(ollama.New(settings.OllamaBaseURL))

	return providers
}

// seedMainAgent creates the system orchestrator agent on first boot.
func seedMainAgent(ctx context.Context, st store.Store, settings *config.Settings) error {
	agents, err := st.ListAgents(ctx)
	if err != nil {
		return err
	}
	for _, a := range agents {
		if a.IsSystem {
			return nil
		}
	}

	return st.CreateAgent(ctx, &store.Agent{
		Name:        "Main Agent",
		Description: "System Orchestrator. Can manage other agents and delegate tasks.",
		Provider:    "gemini",
		Model:       settings.DefaultModel,
		SystemPrompt: "You are the Main Agent orchestrator. You manage the system, " +
			"configure models, create specialized agents, and delegate tasks to them " +
			"using your tools. Do not hesitate to use your tools to accomplish the user's goals.",
		IsActive:           true,
		IsSystem:           true,
		PersonalityTone:    "professional",
		PersonalityTraits:  []string{"helpful", "big-picture", "detail-oriented"},
		CommunicationStyle: "concise",
		EnabledTools: []string{
			"agent_manager", "delegate_agent", "model_manager", "tool_creator", "skill_creator", "workflow_manager",
		},
	})
}

// seedModelConfigs fills an empty model catalogue with the stock entries.
func seedModelConfigs(ctx context.Context, st store.Store) error {
	existing, err := st.ListModelConfigs(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	defaults := []store.ModelConfig{
		{ID: "gemini-2.5-flash", Provider: "gemini", Name: "Gemini 2.5 Flash", ContextWindow: 1048576, IsVision: true},
		{ID: "gemini-2.5-flash-lite-preview-06-17", Provider: "gemini", Name: "Gemini Flash Lite", ContextWindow: 1048576, IsVision: true},
		{ID: "gemini-2.5-pro", Provider: "gemini", Name: "Gemini 2.5 Pro", ContextWindow: 2097152, IsVision: true},
		{ID: "claude-3-5-sonnet-20241022", Provider: "anthropic", Name: "Claude 3.5 Sonnet", ContextWindow: 200000, IsVision: true},
		{ID: "gpt-4o", Provider: "openai", Name: "GPT-4o", ContextWindow: 128000, IsVision: true},
	}
	for i := range defaults {
		defaults[i].IsActive = true
		if err := st.CreateModelConfig(ctx, &defaults[i]); err != nil {
			return err
		}
	}
	return nil
}
