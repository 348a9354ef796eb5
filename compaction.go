package helm

import (
	"context"

	"github.com/deepnoodle-ai/helm/llm"
)

// Compactor may rewrite the history's turn list so the conversation fits the
// model's context window. The controller invokes it once per loop iteration,
// before the model call.
//
// Contract: the returned list is never longer than the input. A changed
// length signals that compaction occurred; the controller then replaces the
// history's turns with the returned list wholesale and emits a model_compact
// event carrying the new head turn as the summary.
type Compactor interface {
	ApplyTruncationIfNeeded(ctx context.Context, turns []*llm.Message) ([]*llm.Message, error)
}

// NullCompactor never compacts.
type NullCompactor struct{}

func (NullCompactor) ApplyTruncationIfNeeded(ctx context.Context, turns []*llm.Message) ([]*llm.Message, error) {
	return turns, nil
}
