package helm

import (
	"context"
)

// Decision is the outcome of confirming one tool call before execution.
type Decision struct {
	// Approved permits the call to run.
	Approved bool

	// Reason explains a denial. It becomes the text of the synthesized
	// denial result sent back to the model.
	Reason string

	// AlternativeInstructions optionally suggests what the model should do
	// instead. When set on a denial, the controller folds the text back into
	// the history as a new user turn after the batch results.
	AlternativeInstructions string
}

// Confirmer decides whether a tool call may execute. Denied calls never
// reach the executor; they receive a synthesized denial result instead.
type Confirmer interface {
	Confirm(ctx context.Context, request *ToolCallRequest, tool Tool) (*Decision, error)
}

// ConfirmerFunc adapts a function to the Confirmer interface.
type ConfirmerFunc func(ctx context.Context, request *ToolCallRequest, tool Tool) (*Decision, error)

func (f ConfirmerFunc) Confirm(ctx context.Context, request *ToolCallRequest, tool Tool) (*Decision, error) {
	return f(ctx, request, tool)
}

// AutoApproveConfirmer approves every tool call.
type AutoApproveConfirmer struct{}

func (AutoApproveConfirmer) Confirm(ctx context.Context, request *ToolCallRequest, tool Tool) (*Decision, error) {
	return &Decision{Approved: true}, nil
}

// DenyAllConfirmer denies every tool call.
type DenyAllConfirmer struct{}

func (DenyAllConfirmer) Confirm(ctx context.Context, request *ToolCallRequest, tool Tool) (*Decision, error) {
	return &Decision{Reason: "Tool execution denied"}, nil
}
