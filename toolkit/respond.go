// Package toolkit provides built-in tools. Concrete sandboxed capabilities
// (shell, browser, search) live outside this module; these tools exist so a
// catalog is never empty and so the terminal result tool has a standard
// implementation.
package toolkit

import (
	"context"
	"encoding/json"

	"github.com/deepnoodle-ai/helm"
)

// RespondTool is the designated terminal tool: the model calls it to deliver
// the final result to the user, which completes the run.
type RespondTool struct{}

// NewRespondTool creates a RespondTool.
func NewRespondTool() *RespondTool {
	return &RespondTool{}
}

func (t *RespondTool) Name() string {
	return "respond"
}

func (t *RespondTool) Description() string {
	return "Deliver your final answer to the user. Calling this tool ends the run; use it once the task is complete."
}

// InputSchema advertises the tool's input shape to the model.
func (t *RespondTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type":        "string",
				"description": "The final answer to deliver to the user.",
			},
		},
		"required": []string{"message"},
	}
}

func (t *RespondTool) Call(ctx context.Context, input json.RawMessage) (*helm.ToolOutput, error) {
	var params struct {
		Message string `json:"message"`
	}
	if len(input) > 0 {
		if err := json.Unmarshal(input, &params); err != nil {
			return helm.NewToolOutputError("invalid respond input: expected a JSON object with a message field"), nil
		}
	}
	if params.Message == "" {
		return helm.NewToolOutputError("respond requires a non-empty message"), nil
	}
	return helm.NewToolOutputText("Result delivered to the user."), nil
}
