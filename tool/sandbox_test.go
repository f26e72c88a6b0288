package tool

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/store"
)

func requirePython(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
}

func TestSandboxCapturesStdout(t *testing.T) {
	requirePython(t)

	out := NewSandbox().Run(context.Background(), "print(2+2)", nil)
	assert.Equal(t, "4", out)
}

func TestSandboxInjectsParams(t *testing.T) {
	requirePython(t)

	out := NewSandbox().Run(context.Background(), `print(params["name"].upper())`, map[string]any{"name": "ada"})
	assert.Equal(t, "ADA", out)
}

func TestSandboxStderrAndExitCode(t *testing.T) {
	requirePython(t)

	out := NewSandbox().Run(context.Background(), "import sys\nsys.stderr.write('boom')\nsys.exit(3)", nil)
	assert.Contains(t, out, "[stderr]")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "[exit code: 3]")
}

func TestSandboxNoOutput(t *testing.T) {
	requirePython(t)

	out := NewSandbox().Run(context.Background(), "x = 1", nil)
	assert.Equal(t, "(no output)", out)
}

func TestSandboxTimeout(t *testing.T) {
	requirePython(t)

	start := time.Now()
	out := NewSandbox().WithTimeout(1 * time.Second).Run(context.Background(), "import time\ntime.sleep(30)", nil)
	elapsed := time.Since(start)

	assert.Equal(t, "Error: Code execution timed out (1s limit).", out)
	assert.Less(t, elapsed, 5*time.Second)
}

func TestDynamicToolRunsCode(t *testing.T) {
	requirePython(t)

	r := NewRegistry()
	creator := NewToolCreator(store.NewMemory(), r, NewSandbox())

	out, err := creator.Execute(context.Background(), map[string]any{
		"action":            "create",
		"name":              "shout",
		"description":       "upper-cases text",
		"parameters_schema": `{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`,
		"code":              `print(params["text"].upper())`,
	})
	require.NoError(t, err)
	assert.Contains(t, out, "created and registered")

	result, err := r.Execute(context.Background(), "shout", `{"text":"quiet"}`)
	require.NoError(t, err)
	assert.Equal(t, "QUIET", result)
}
