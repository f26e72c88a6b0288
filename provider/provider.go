// Package provider defines the capability interface implemented by every
// model backend and a registry resolving provider names to configured
// adapters. Callers hold only the Provider interface, so backends are
// substitutable and mockable in tests.
package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/parleyhq/parley/chat"
)

// Provider is the uniform abstraction over one streaming-completion backend.
//
// Stream returns a lazy, non-restartable sequence: chunks are produced as
// they arrive and the sequence terminates with a chunk whose FinishReason is
// set. Cancellation is the caller ceasing to consume under a cancelled
// context; there is no explicit cancel call.
type Provider interface {
	// Name returns the provider identifier, e.g. "openai".
	Name() string

	// Complete performs a blocking completion, returning the full assistant
	// message including any tool calls.
	Complete(ctx context.Context, msgs []chat.ChatMessage, model string, tools []chat.ToolSchema, temperature float64) (chat.ChatMessage, error)

	// Stream performs a streaming completion. The response channel is closed
	// after the terminal chunk; at most one error is sent on the error channel.
	Stream(ctx context.Context, msgs []chat.ChatMessage, model string, tools []chat.ToolSchema, temperature float64) (<-chan chat.StreamChunk, <-chan error)

	// ListModels returns the models this provider offers.
	ListModels(ctx context.Context) ([]chat.ModelInfo, error)

	// IsAvailable reports whether the backend is configured and usable.
	IsAvailable() bool
}

// Registry maps provider names to adapters. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Add registers (or replaces) a provider under its own name.
func (r *Registry) Add(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get resolves a provider by name. The error enumerates registered names so
// a caller (or model) can self-correct; a missing provider is never silently
// substituted.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not found, available: %v", name, r.namesLocked())
	}
	return p, nil
}

// Available returns the names of providers whose backend is usable.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for name, p := range r.providers {
		if p.IsAvailable() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// AllModels aggregates model catalogues across available providers. A
// provider that fails to list is skipped rather than failing the whole call.
func (r *Registry) AllModels(ctx context.Context) []chat.ModelInfo {
	r.mu.RLock()
	providers := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		providers = append(providers, p)
	}
	r.mu.RUnlock()

	var models []chat.ModelInfo
	for _, p := range providers {
		if !p.IsAvailable() {
			continue
		}
		pm, err := p.ListModels(ctx)
		if err != nil {
			continue
		}
		models = append(models, pm...)
	}
	sort.Slice(models, func(i, j int) bool {
		if models[i].Provider != models[j].Provider {
			return models[i].Provider < models[j].Provider
		}
		return models[i].ID < models[j].ID
	})
	return models
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
