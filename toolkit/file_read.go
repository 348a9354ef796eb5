package toolkit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/deepnoodle-ai/helm"
)

// DefaultFileReadMaxSize caps how much file content is returned.
const DefaultFileReadMaxSize = 1024 * 200 // 200KB

// FileReadTool reads the contents of a file. Read-only.
type FileReadTool struct {
	maxSize       int
	rootDirectory string
}

// FileReadToolOptions configures a FileReadTool.
type FileReadToolOptions struct {
	// MaxSize caps returned content. Defaults to DefaultFileReadMaxSize.
	MaxSize int

	// RootDirectory confines reads to a directory tree when set.
	RootDirectory string
}

// NewFileReadTool creates a new tool for reading file contents.
func NewFileReadTool(options FileReadToolOptions) *FileReadTool {
	if options.MaxSize <= 0 {
		options.MaxSize = DefaultFileReadMaxSize
	}
	return &FileReadTool{
		maxSize:       options.MaxSize,
		rootDirectory: options.RootDirectory,
	}
}

func (t *FileReadTool) Name() string {
	return "file_read"
}

func (t *FileReadTool) Description() string {
	return "Reads the content of a file. Provide a 'path' parameter with the path to the file you want to read."
}

// InputSchema advertises the tool's input shape to the model.
func (t *FileReadTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Path to the file to be read.",
			},
		},
		"required": []string{"path"},
	}
}

// resolvePath applies the root directory if configured and rejects paths
// that escape it.
func (t *FileReadTool) resolvePath(path string) (string, error) {
	if t.rootDirectory == "" {
		return path, nil
	}
	resolved := filepath.Join(t.rootDirectory, path)
	root, err := filepath.Abs(t.rootDirectory)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return "", err
	}
	if abs != root && !strings.HasPrefix(abs, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes the root directory: %q", path)
	}
	return resolved, nil
}

func (t *FileReadTool) Call(ctx context.Context, input json.RawMessage) (*helm.ToolOutput, error) {
	var params struct {
		Path string `json:"path"`
	}
	if len(input) > 0 {
		if err := json.Unmarshal(input, &params); err != nil {
			return helm.NewToolOutputError("invalid file_read input: expected a JSON object with a path field"), nil
		}
	}
	if params.Path == "" {
		return helm.NewToolOutputError("file_read requires a path"), nil
	}
	path, err := t.resolvePath(params.Path)
	if err != nil {
		return helm.NewToolOutputError(err.Error()), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return helm.NewToolOutputError(fmt.Sprintf("failed to read file: %v", err)), nil
	}
	if len(data) > t.maxSize {
		data = data[:t.maxSize]
		return helm.NewToolOutputText(fmt.Sprintf("%s\n\n[truncated at %d bytes]", data, t.maxSize)), nil
	}
	return helm.NewToolOutputText(string(data)), nil
}
