package helm

import (
	"context"

	"github.com/deepnoodle-ai/helm/llm"
)

// ModelOutput is one model response: the content blocks of the new assistant
// turn plus optional usage metrics. Usage is nil when the provider reported
// no metrics.
type ModelOutput struct {
	Blocks []llm.Content `json:"blocks"`
	Usage  *llm.Usage    `json:"usage,omitempty"`
}

// Model is the reasoning model behind the loop. Step is called with the
// complete (possibly compacted) history and blocks until a full response is
// available; streaming happens below this layer if at all.
type Model interface {
	Step(ctx context.Context, turns []*llm.Message) (*ModelOutput, error)
}
