package helm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/deepnoodle-ai/helm/llm"
)

// ErrToolNotFound is returned by a ToolCatalog when no tool has the
// requested name. The controller logs the failure and drops the call from
// the batch; it is never fatal to the run.
var ErrToolNotFound = errors.New("tool not found")

// Tool is one executable capability the model may invoke.
type Tool interface {
	// Name returns the tool's unique name.
	Name() string

	// Description explains to the model what the tool does.
	Description() string

	// Call executes the tool with the given JSON input.
	Call(ctx context.Context, input json.RawMessage) (*ToolOutput, error)
}

// ToolOutput is the raw output of one tool invocation, before normalization
// into the canonical tool-result shape.
type ToolOutput struct {
	Parts   []*llm.ToolResultPart `json:"parts"`
	IsError bool                  `json:"is_error,omitempty"`
}

// NewToolOutputText returns a tool output with a single text part.
func NewToolOutputText(text string) *ToolOutput {
	return &ToolOutput{
		Parts: []*llm.ToolResultPart{{Type: llm.ToolResultPartTypeText, Text: text}},
	}
}

// NewToolOutputError returns an error tool output with the given message.
func NewToolOutputError(text string) *ToolOutput {
	output := NewToolOutputText(text)
	output.IsError = true
	return output
}

// ToolCallRequest is the wire shape of one tool invocation submitted to a
// ToolExecutor.
type ToolCallRequest struct {
	CallID string          `json:"call_id"`
	Name   string          `json:"name"`
	Input  json.RawMessage `json:"input,omitempty"`
}

// ToolCallResult is the wire shape of one tool invocation outcome. Results
// correspond 1:1 and in order with the submitted batch.
type ToolCallResult struct {
	CallID  string                `json:"call_id"`
	Name    string                `json:"name,omitempty"`
	Parts   []*llm.ToolResultPart `json:"parts"`
	IsError bool                  `json:"is_error,omitempty"`
}

// Content normalizes the result into the canonical tool-result content
// block: a single text part collapses to plain text, multi-part results stay
// as an ordered list of typed parts.
func (r *ToolCallResult) Content() *llm.ToolResultContent {
	return llm.NormalizeToolResultParts(r.CallID, r.Parts, r.IsError)
}

// ToolCatalog resolves tool names to executable tools.
type ToolCatalog interface {
	// Resolve returns the tool with the given name, or ErrToolNotFound.
	Resolve(name string) (Tool, error)

	// Tools returns all registered tools.
	Tools() []Tool
}

// ToolExecutor executes a batch of tool calls. Given an ordered list of N
// requests it returns exactly N results in the same order. Individual call
// failures are represented as results with IsError set; an error return
// means the batch itself could not run and fails the run.
type ToolExecutor interface {
	RunBatch(ctx context.Context, requests []*ToolCallRequest) ([]*ToolCallResult, error)
}

// MemoryCatalog is an in-memory ToolCatalog.
type MemoryCatalog struct {
	toolsByName map[string]Tool
}

// NewMemoryCatalog creates a catalog containing the given tools.
func NewMemoryCatalog(tools ...Tool) *MemoryCatalog {
	catalog := &MemoryCatalog{toolsByName: make(map[string]Tool, len(tools))}
	for _, tool := range tools {
		catalog.toolsByName[tool.Name()] = tool
	}
	return catalog
}

// Register adds a tool to the catalog, replacing any tool of the same name.
func (c *MemoryCatalog) Register(tool Tool) {
	c.toolsByName[tool.Name()] = tool
}

func (c *MemoryCatalog) Resolve(name string) (Tool, error) {
	tool, ok := c.toolsByName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrToolNotFound, name)
	}
	return tool, nil
}

func (c *MemoryCatalog) Tools() []Tool {
	names := make([]string, 0, len(c.toolsByName))
	for name := range c.toolsByName {
		names = append(names, name)
	}
	sort.Strings(names)
	tools := make([]Tool, len(names))
	for i, name := range names {
		tools[i] = c.toolsByName[name]
	}
	return tools
}

// TypedTool is a convenience for defining tools from a function. The input
// type is decoded from the call's JSON input.
type TypedTool[T any] struct {
	ToolName        string
	ToolDescription string
	Func            func(ctx context.Context, input T) (*ToolOutput, error)
}

func (t *TypedTool[T]) Name() string        { return t.ToolName }
func (t *TypedTool[T]) Description() string { return t.ToolDescription }

func (t *TypedTool[T]) Call(ctx context.Context, input json.RawMessage) (*ToolOutput, error) {
	var decoded T
	if len(input) > 0 {
		if err := json.Unmarshal(input, &decoded); err != nil {
			return NewToolOutputError(fmt.Sprintf("invalid tool input: %v", err)), nil
		}
	}
	return t.Func(ctx, decoded)
}
