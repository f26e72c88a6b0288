package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	s := New()

	assert.Equal(t, "127.0.0.1", s.Host)
	assert.Equal(t, 8321, s.Port)
	assert.Equal(t, "127.0.0.1:8321", s.Addr())
	assert.Equal(t, "gemini/gemini-2.5-flash", s.DefaultModel)
	assert.InDelta(t, 0.7, s.DefaultTemperature, 1e-9)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PARLEY_HOST", "0.0.0.0")
	t.Setenv("PARLEY_PORT", "9000")
	t.Setenv("PARLEY_DEFAULT_TEMPERATURE", "0.2")
	t.Setenv("PARLEY_DB_PATH", "/tmp/parley-test.db")

	s := New()
	assert.Equal(t, "0.0.0.0:9000", s.Addr())
	assert.InDelta(t, 0.2, s.DefaultTemperature, 1e-9)
	assert.Equal(t, "/tmp/parley-test.db", s.DBPath)
}

func TestProviderKeyFallback(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-vendor")
	t.Setenv("PARLEY_OPENAI_API_KEY", "")
	assert.Equal(t, "sk-vendor", New().OpenAIAPIKey)

	t.Setenv("PARLEY_OPENAI_API_KEY", "sk-parley")
	assert.Equal(t, "sk-parley", New().OpenAIAPIKey)
}

func TestMalformedNumbersKeepDefaults(t *testing.T) {
	t.Setenv("PARLEY_PORT", "not-a-port")
	t.Setenv("PARLEY_DEFAULT_TEMPERATURE", "warm")

	s := New()
	assert.Equal(t, 8321, s.Port)
	assert.InDelta(t, 0.7, s.DefaultTemperature, 1e-9)
}
