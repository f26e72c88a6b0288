// Package config reads runtime settings from the environment. Parley-specific
// knobs use the PARLEY_ prefix; provider credentials fall back to the
// conventional vendor variables so existing shells keep working.
package config

import (
	"os"
	"path/filepath"
	"strconv"
)

// Settings holds the runtime configuration for the service.
type Settings struct {
	Host string
	Port int

	// DBPath is the sqlite database file. Empty selects the in-memory store.
	DBPath string

	// Provider credentials. A provider with no key is not registered.
	OpenAIAPIKey    string
	AnthropicAPIKey string
	GeminiAPIKey    string
	OllamaBaseURL   string

	// WorkspaceDir jails the file tool; UploadDir receives knowledge files.
	WorkspaceDir string
	UploadDir    string

	DefaultModel       string
	DefaultTemperature float64
	DefaultSystemPrompt string
}

// New builds settings from the environment, applying defaults for anything
// unset.
func New() *Settings {
	dataDir := envOr("PARLEY_DATA_DIR", "data")
	s := &Settings{
		Host:            envOr("PARLEY_HOST", "127.0.0.1"),
		Port:            envInt("PARLEY_PORT", 8321),
		DBPath:          envOr("PARLEY_DB_PATH", filepath.Join(dataDir, "parley.db")),
		OpenAIAPIKey:    envOr("PARLEY_OPENAI_API_KEY", os.Getenv("OPENAI_API_KEY")),
		AnthropicAPIKey: envOr("PARLEY_ANTHROPIC_API_KEY", os.Getenv("ANTHROPIC_API_KEY")),
		GeminiAPIKey:    envOr("PARLEY_GEMINI_API_KEY", os.Getenv("GEMINI_API_KEY")),
		OllamaBaseURL:   envOr("PARLEY_OLLAMA_BASE_URL", "http://localhost:11434"),
		WorkspaceDir:    envOr("PARLEY_WORKSPACE_DIR", filepath.Join(dataDir, "workspace")),
		UploadDir:       envOr("PARLEY_UPLOAD_DIR", filepath.Join(dataDir, "uploads")),

		DefaultModel:        envOr("PARLEY_DEFAULT_MODEL", "gemini/gemini-2.5-flash"),
		DefaultTemperature:  envFloat("PARLEY_DEFAULT_TEMPERATURE", 0.7),
		DefaultSystemPrompt: envOr("PARLEY_DEFAULT_SYSTEM_PROMPT", "You are a helpful AI assistant."),
	}
	return s
}

// Addr returns the host:port listen address.
func (s *Settings) Addr() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
