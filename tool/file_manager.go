package tool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileManager reads, writes, and lists files confined to a jailed workspace
// directory. Paths that escape the jail are rejected.
type FileManager struct {
	root string
}

// NewFileManager creates the file_manager built-in rooted at dir.
func NewFileManager(dir string) *FileManager {
	return &FileManager{root: dir}
}

// Name implements Tool.
func (t *FileManager) Name() string { return "file_manager" }

// Description implements Tool.
func (t *FileManager) Description() string {
	return "Read, write, or list files in the workspace directory. Useful for saving notes, creating files, or reading file contents."
}

// Parameters implements Tool.
func (t *FileManager) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type":        "string",
				"enum":        []string{"read", "write", "list"},
				"description": "The file operation to perform",
			},
			"path": map[string]any{
				"type":        "string",
				"description": "Relative path within the workspace (for read/write)",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "Content to write (for write action)",
			},
		},
		"required": []string{"action"},
	}
}

// safePath resolves a relative path inside the jail, rejecting traversal.
func (t *FileManager) safePath(rel string) (string, error) {
	if err := os.MkdirAll(t.root, 0o755); err != nil {
		return "", err
	}
	root, err := filepath.Abs(t.root)
	if err != nil {
		return "", err
	}
	full := filepath.Clean(filepath.Join(root, rel))
	if full != root && !strings.HasPrefix(full, root+string(os.PathSeparator)) {
		return "", errors.New("path traversal not allowed")
	}
	return full, nil
}

// Execute implements Tool.
func (t *FileManager) Execute(_ context.Context, args map[string]any) (string, error) {
	action, _ := args["action"].(string)
	path, _ := args["path"].(string)
	content, _ := args["content"].(string)

	switch action {
	case "list":
		target, err := t.safePath(path)
		if err != nil {
			return "Error: " + err.Error(), nil
		}
		entries, err := os.ReadDir(target)
		if err != nil {
			return fmt.Sprintf("Directory not found: %s", path), nil
		}
		if len(entries) == 0 {
			return "Directory is empty.", nil
		}
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		return strings.Join(names, "\n"), nil

	case "read":
		if path == "" {
			return "Error: 'path' is required for read action.", nil
		}
		full, err := t.safePath(path)
		if err != nil {
			return "Error: " + err.Error(), nil
		}
		data, err := os.ReadFile(full)
		if err != nil {
			return fmt.Sprintf("File not found: %s", path), nil
		}
		return string(data), nil

	case "write":
		if path == "" {
			return "Error: 'path' is required for write action.", nil
		}
		full, err := t.safePath(path)
		if err != nil {
			return "Error: " + err.Error(), nil
		}
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return "Error: " + err.Error(), nil
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			return "Error: " + err.Error(), nil
		}
		return fmt.Sprintf("Successfully wrote to %s", path), nil

	default:
		return fmt.Sprintf("Unknown action: %s", action), nil
	}
}
