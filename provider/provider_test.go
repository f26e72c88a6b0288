package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/chat"
)

func TestRegistryGet(t *testing.T) {
	r := NewRegistry()
	r.Add(NewMock("mock"))

	p, err := r.Get("mock")
	require.NoError(t, err)
	assert.Equal(t, "mock", p.Name())
}

func TestRegistryGetUnknownEnumeratesNames(t *testing.T) {
	r := NewRegistry()
	r.Add(NewMock("alpha"))
	r.Add(NewMock("beta"))

	_, err := r.Get("gamma")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `provider "gamma" not found`)
	assert.Contains(t, err.Error(), "alpha")
	assert.Contains(t, err.Error(), "beta")
}

func TestRegistryAddReplaces(t *testing.T) {
	r := NewRegistry()
	first := NewMock("mock", chat.AssistantMessage("one"))
	second := NewMock("mock", chat.AssistantMessage("two"))
	r.Add(first)
	r.Add(second)

	p, err := r.Get("mock")
	require.NoError(t, err)

	msg, err := p.Complete(context.Background(), nil, "mock-1", nil, 0)
	require.NoError(t, err)
	assert.Equal(t, "two", msg.Content)
}

func TestRegistryAvailableSorted(t *testing.T) {
	r := NewRegistry()
	r.Add(NewMock("zeta"))
	r.Add(NewMock("alpha"))

	assert.Equal(t, []string{"alpha", "zeta"}, r.Available())
}

func TestRegistryAllModels(t *testing.T) {
	r := NewRegistry()
	r.Add(NewMock("alpha"))
	r.Add(NewMock("beta"))

	models := r.AllModels(context.Background())
	require.Len(t, models, 2)
	providers := []string{models[0].Provider, models[1].Provider}
	assert.Contains(t, providers, "alpha")
	assert.Contains(t, providers, "beta")
}
