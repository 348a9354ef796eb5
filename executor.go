package helm

import (
	"context"
	"fmt"

	"github.com/deepnoodle-ai/helm/slogger"
)

// BatchExecutor is the standard ToolExecutor. It resolves each request
// against a catalog and runs the calls sequentially, in order. It is safe
// for concurrent use by multiple controllers as long as the underlying tools
// are.
type BatchExecutor struct {
	catalog ToolCatalog
	logger  slogger.Logger
}

// BatchExecutorOptions configures a BatchExecutor.
type BatchExecutorOptions struct {
	Catalog ToolCatalog
	Logger  slogger.Logger
}

// NewBatchExecutor creates a BatchExecutor for the given catalog.
func NewBatchExecutor(opts BatchExecutorOptions) *BatchExecutor {
	logger := opts.Logger
	if logger == nil {
		logger = slogger.DefaultLogger
	}
	return &BatchExecutor{catalog: opts.Catalog, logger: logger}
}

// RunBatch executes the requests one at a time. The result list has exactly
// the same length and order as the request list. A tool returning an error
// produces a result with IsError set rather than failing the batch.
func (e *BatchExecutor) RunBatch(ctx context.Context, requests []*ToolCallRequest) ([]*ToolCallResult, error) {
	results := make([]*ToolCallResult, len(requests))
	for i, request := range requests {
		tool, err := e.catalog.Resolve(request.Name)
		if err != nil {
			results[i] = &ToolCallResult{
				CallID:  request.CallID,
				Name:    request.Name,
				Parts:   NewToolOutputError(fmt.Sprintf("Unknown tool: %q", request.Name)).Parts,
				IsError: true,
			}
			continue
		}
		e.logger.Debug("executing tool call",
			"call_id", request.CallID,
			"tool_name", request.Name,
			"tool_input", string(request.Input))
		output, err := tool.Call(ctx, request.Input)
		if err != nil {
			output = NewToolOutputError(fmt.Sprintf("Tool execution error: %v", err))
		}
		results[i] = &ToolCallResult{
			CallID:  request.CallID,
			Name:    request.Name,
			Parts:   output.Parts,
			IsError: output.IsError,
		}
	}
	return results, nil
}
