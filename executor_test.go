package helm

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchExecutorRunBatch(t *testing.T) {
	executor := NewBatchExecutor(BatchExecutorOptions{
		Catalog: NewMemoryCatalog(echoTool(), failingTool()),
	})
	ctx := context.Background()

	t.Run("empty batch", func(t *testing.T) {
		results, err := executor.RunBatch(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("results correspond one to one and in order", func(t *testing.T) {
		requests := []*ToolCallRequest{
			{CallID: "call-1", Name: "echo", Input: json.RawMessage(`{"text":"one"}`)},
			{CallID: "call-2", Name: "explode"},
			{CallID: "call-3", Name: "echo", Input: json.RawMessage(`{"text":"three"}`)},
		}
		results, err := executor.RunBatch(ctx, requests)
		require.NoError(t, err)
		require.Len(t, results, 3)

		assert.Equal(t, "call-1", results[0].CallID)
		assert.False(t, results[0].IsError)
		assert.Equal(t, "one", results[0].Content().FlatText())

		// The failing tool yields an error result, not a batch failure.
		assert.Equal(t, "call-2", results[1].CallID)
		assert.True(t, results[1].IsError)
		assert.Contains(t, results[1].Content().FlatText(), "boom")

		assert.Equal(t, "call-3", results[2].CallID)
		assert.Equal(t, "three", results[2].Content().FlatText())
	})

	t.Run("unknown tool yields an error result", func(t *testing.T) {
		results, err := executor.RunBatch(ctx, []*ToolCallRequest{
			{CallID: "call-1", Name: "ghost"},
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.True(t, results[0].IsError)
		assert.Contains(t, results[0].Content().FlatText(), "Unknown tool")
	})
}
