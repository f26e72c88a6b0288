// Package tool implements the tool-calling subsystem: a concurrent registry
// of named, schema-described capabilities, the subprocess sandbox that runs
// user-authored script tools, and the built-in tool set registered at
// startup.
//
// The contract with the model is textual: every execution returns a single
// string, and failures are represented as text (conventionally prefixed
// "Error: ...") so the model can read them and self-correct.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/parleyhq/parley/chat"
	"github.com/parleyhq/parley/internal/util"
)

// Tool defines a named capability invokable by a model.
type Tool interface {
	// Name returns the unique identifier for this tool (snake_case).
	Name() string

	// Description is provided to the LLM to help it decide when to call.
	Description() string

	// Parameters returns a JSON schema describing the expected arguments.
	Parameters() map[string]any

	// Execute runs the tool. The result is always a single string.
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// Descriptor is the catalogue form of a registered tool.
type Descriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
	IsBuiltin   bool           `json:"is_builtin"`
}

// Registry holds the process-wide tool set. Registration and lookup are safe
// to call concurrently. Built-in tools are protected from unregistration.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Tool
	builtins map[string]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:    make(map[string]Tool),
		builtins: make(map[string]bool),
	}
}

// Register inserts or replaces a tool by name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// RegisterBuiltin registers a tool and marks it protected.
func (r *Registry) RegisterBuiltin(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
	r.builtins[t.Name()] = true
}

// Unregister removes a tool by name. Built-in and absent names are no-ops.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.builtins[name] {
		return
	}
	delete(r.tools, name)
}

// Get returns the tool with the given name. The error enumerates the
// currently registered names so a model can self-correct.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("tool %q not found, available: %v", name, r.namesLocked())
	}
	return t, nil
}

// namesLocked returns sorted tool names; callers must hold at least a read lock.
func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List enumerates all registered tools sorted by name.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.tools))
	for _, name := range r.namesLocked() {
		t := r.tools[name]
		out = append(out, Descriptor{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
			IsBuiltin:   r.builtins[name],
		})
	}
	return out
}

// AsProviderFormat returns the schema-only view the provider adapters need.
// An allow-list filters the catalogue; nil or empty means every tool.
func (r *Registry) AsProviderFormat(enabled []string) []chat.ToolSchema {
	allow := map[string]bool{}
	for _, name := range enabled {
		allow[name] = true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]chat.ToolSchema, 0, len(r.tools))
	for _, name := range r.namesLocked() {
		if len(allow) > 0 && !allow[name] {
			continue
		}
		t := r.tools[name]
		out = append(out, chat.ToolSchema{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return out
}

// Execute looks up and runs a tool with raw JSON arguments. Malformed
// argument JSON degrades to an empty object; schema validation failures are
// returned as result text so the model sees them.
func (r *Registry) Execute(ctx context.Context, name, argsJSON string) (string, error) {
	t, err := r.Get(name)
	if err != nil {
		return "", err
	}

	args := map[string]any{}
	if argsJSON != "" {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			args = map[string]any{}
		}
	}

	if schema := t.Parameters(); schema != nil {
		if err := util.ValidateParameters(args, schema); err != nil {
			return "Error: " + err.Error(), nil
		}
	}
	return t.Execute(ctx, args)
}
