package tool

import "context"

// CodeExecutor runs ad hoc Python snippets through the sandbox.
type CodeExecutor struct {
	sandbox *Sandbox
}

// NewCodeExecutor creates the code_executor built-in.
func NewCodeExecutor(sandbox *Sandbox) *CodeExecutor {
	return &CodeExecutor{sandbox: sandbox}
}

// Name implements Tool.
func (t *CodeExecutor) Name() string { return "code_executor" }

// Description implements Tool.
func (t *CodeExecutor) Description() string {
	return "Execute Python code in a sandboxed subprocess. Use for calculations, data processing, or quick scripts. Returns stdout and stderr."
}

// Parameters implements Tool.
func (t *CodeExecutor) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"code": map[string]any{
				"type":        "string",
				"description": "Python code to execute",
			},
		},
		"required": []string{"code"},
	}
}

// Execute implements Tool.
func (t *CodeExecutor) Execute(ctx context.Context, args map[string]any) (string, error) {
	code, _ := args["code"].(string)
	if code == "" {
		return "Error: 'code' is required.", nil
	}
	return t.sandbox.Run(ctx, code, nil), nil
}
