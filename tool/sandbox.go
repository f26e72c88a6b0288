package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// DefaultScriptTimeout is the wall-clock budget for one sandboxed script run.
const DefaultScriptTimeout = 30 * time.Second

// Sandbox runs user-authored Python snippets in an isolated child process.
// Code never runs in-process; the subprocess boundary is the single trust
// boundary for arbitrary code.
type Sandbox struct {
	interpreter string
	timeout     time.Duration
}

// NewSandbox creates a sandbox using the python3 interpreter on PATH.
func NewSandbox() *Sandbox {
	return &Sandbox{interpreter: "python3", timeout: DefaultScriptTimeout}
}

// WithTimeout overrides the wall-clock timeout. Used by tests.
func (s *Sandbox) WithTimeout(d time.Duration) *Sandbox {
	s.timeout = d
	return s
}

func (s *Sandbox) timeoutMessage() string {
	return fmt.Sprintf("Error: Code execution timed out (%ds limit).", int(s.timeout.Seconds()))
}

// Run executes the snippet with params injected as a `params` dict and
// returns captured output. stdout comes first, stderr follows under a
// labeled section, and a non-zero exit appends an exit-code marker. The
// result is always text; failures are never returned as errors.
func (s *Sandbox) Run(ctx context.Context, code string, params map[string]any) string {
	script := code
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return "Error: " + err.Error()
		}
		// Double encoding yields a safe Python string literal for loads().
		literal, err := json.Marshal(string(raw))
		if err != nil {
			return "Error: " + err.Error()
		}
		script = "import json, sys\nparams = json.loads(" + string(literal) + ")\n" + code + "\n"
	}

	tmp, err := os.CreateTemp("", "parley-*.py")
	if err != nil {
		return "Error: " + err.Error()
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(script); err != nil {
		tmp.Close()
		return "Error: " + err.Error()
	}
	tmp.Close()

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, s.interpreter, tmp.Name())
	cmd.Dir = os.TempDir()
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return s.timeoutMessage()
	}

	var output strings.Builder
	output.WriteString(stdout.String())
	if stderr.Len() > 0 {
		output.WriteString("\n[stderr]\n" + stderr.String())
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			output.WriteString(fmt.Sprintf("\n[exit code: %d]", exitErr.ExitCode()))
		} else {
			return "Error: " + err.Error()
		}
	}

	result := strings.TrimSpace(output.String())
	if result == "" {
		return "(no output)"
	}
	return result
}
