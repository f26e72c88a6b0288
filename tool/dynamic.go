package tool

import (
	"context"
	"encoding/json"

	"github.com/parleyhq/parley/store"
)

// Dynamic wraps a user-defined custom tool from the store. Its code runs in
// the same sandbox as code_executor, with the call arguments injected as a
// `params` dict.
type Dynamic struct {
	name        string
	description string
	schema      map[string]any
	code        string
	sandbox     *Sandbox
}

// NewDynamic builds a Dynamic tool from a stored custom tool definition.
func NewDynamic(ct *store.CustomTool, sandbox *Sandbox) *Dynamic {
	schema := map[string]any{}
	if ct.ParametersSchema != "" {
		// A schema that fails to parse behaves as schemaless.
		_ = json.Unmarshal([]byte(ct.ParametersSchema), &schema)
	}
	return &Dynamic{
		name:        ct.Name,
		description: ct.Description,
		schema:      schema,
		code:        ct.Code,
		sandbox:     sandbox,
	}
}

// Name implements Tool.
func (t *Dynamic) Name() string { return t.name }

// Description implements Tool.
func (t *Dynamic) Description() string { return t.description }

// Parameters implements Tool.
func (t *Dynamic) Parameters() map[string]any { return t.schema }

// Execute implements Tool.
func (t *Dynamic) Execute(ctx context.Context, args map[string]any) (string, error) {
	if args == nil {
		args = map[string]any{}
	}
	return t.sandbox.Run(ctx, t.code, args), nil
}
