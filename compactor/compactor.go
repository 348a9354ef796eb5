// Package compactor provides the standard context Compactor: when the
// estimated token footprint of a conversation crosses a threshold, a prefix
// of turns is replaced with a single summary turn. The returned turn list is
// never longer than the input; a changed length is how the controller
// detects that compaction occurred.
package compactor

import (
	"context"
	"fmt"

	"github.com/deepnoodle-ai/helm"
	"github.com/deepnoodle-ai/helm/llm"
	"github.com/deepnoodle-ai/helm/slogger"
)

// DefaultTokenThreshold is the token count that triggers compaction.
const DefaultTokenThreshold = 100_000

// DefaultKeepRecentTurns is the number of trailing turns preserved verbatim.
const DefaultKeepRecentTurns = 10

// DefaultMaxToolResultChars caps how much of an old tool result survives
// compaction. Results in the preserved suffix are trimmed to this size.
const DefaultMaxToolResultChars = 4000

// truncationMarker is appended to a trimmed tool result.
const truncationMarker = "\n[tool result truncated during compaction]"

// summaryHeader prefixes the synthetic summary turn so the model can tell it
// apart from a real user message.
const summaryHeader = "[Conversation summary — earlier turns were compacted]"

// Compactor implements helm.Compactor with a token threshold strategy.
type Compactor struct {
	tokenThreshold     int
	keepRecentTurns    int
	maxToolResultChars int
	estimator          TokenEstimator
	summarizer         Summarizer
	logger             slogger.Logger
}

// Options configures a Compactor. Zero values select defaults.
type Options struct {
	// TokenThreshold triggers compaction when the estimate crosses it.
	TokenThreshold int

	// KeepRecentTurns is how many trailing turns survive compaction.
	KeepRecentTurns int

	// MaxToolResultChars trims oversized tool results in the preserved
	// suffix. Zero selects the default; negative disables trimming.
	MaxToolResultChars int

	// Estimator estimates the token footprint. Defaults to the tiktoken
	// estimator with a heuristic fallback.
	Estimator TokenEstimator

	// Summarizer produces the replacement summary. Defaults to
	// DigestSummarizer.
	Summarizer Summarizer

	Logger slogger.Logger
}

// New creates a Compactor.
func New(opts Options) *Compactor {
	if opts.TokenThreshold <= 0 {
		opts.TokenThreshold = DefaultTokenThreshold
	}
	if opts.KeepRecentTurns <= 0 {
		opts.KeepRecentTurns = DefaultKeepRecentTurns
	}
	if opts.MaxToolResultChars == 0 {
		opts.MaxToolResultChars = DefaultMaxToolResultChars
	}
	if opts.Estimator == nil {
		opts.Estimator = NewTiktokenEstimator()
	}
	if opts.Summarizer == nil {
		opts.Summarizer = &DigestSummarizer{}
	}
	if opts.Logger == nil {
		opts.Logger = slogger.DefaultLogger
	}
	return &Compactor{
		tokenThreshold:     opts.TokenThreshold,
		keepRecentTurns:    opts.KeepRecentTurns,
		maxToolResultChars: opts.MaxToolResultChars,
		estimator:          opts.Estimator,
		summarizer:         opts.Summarizer,
		logger:             opts.Logger,
	}
}

var _ helm.Compactor = (*Compactor)(nil)

// ApplyTruncationIfNeeded replaces a prefix of turns with one summary turn
// when the token estimate exceeds the threshold. The result is never longer
// than the input.
func (c *Compactor) ApplyTruncationIfNeeded(ctx context.Context, turns []*llm.Message) ([]*llm.Message, error) {
	if len(turns) <= c.keepRecentTurns+1 {
		return turns, nil
	}
	tokens := c.estimator.EstimateTokens(turns)
	if tokens < c.tokenThreshold {
		return turns, nil
	}

	cut := c.cutIndex(turns)
	if cut < 2 {
		// Nothing worth replacing; a one-turn prefix would not shrink the
		// list.
		return turns, nil
	}

	summary, err := c.summarizer.Summarize(ctx, turns[:cut])
	if err != nil {
		return nil, err
	}

	head := llm.NewUserTextMessage(fmt.Sprintf("%s\n\n%s", summaryHeader, summary))
	compacted := make([]*llm.Message, 0, 1+len(turns)-cut)
	compacted = append(compacted, head)
	compacted = append(compacted, c.trimToolResults(turns[cut:])...)

	c.logger.Info("compacted conversation",
		"estimated_tokens", tokens,
		"turns_before", len(turns),
		"turns_after", len(compacted))
	return compacted, nil
}

// cutIndex picks where the preserved suffix begins. The suffix must not
// start with a tool-result turn whose matching calls were compacted away, so
// the cut moves forward past any dangling result turns.
func (c *Compactor) cutIndex(turns []*llm.Message) int {
	cut := len(turns) - c.keepRecentTurns
	for cut < len(turns) && startsWithDanglingResults(turns, cut) {
		cut++
	}
	return cut
}

// trimToolResults caps the size of tool result text in the preserved suffix.
// Turns are copied before mutation; the originals stay untouched.
func (c *Compactor) trimToolResults(turns []*llm.Message) []*llm.Message {
	if c.maxToolResultChars <= 0 {
		return turns
	}
	trimmed := make([]*llm.Message, len(turns))
	for i, turn := range turns {
		trimmed[i] = turn
		for j, block := range turn.Content {
			result, ok := block.(*llm.ToolResultContent)
			if !ok {
				continue
			}
			cut := c.trimResult(result)
			if cut == nil {
				continue
			}
			if trimmed[i] == turn {
				trimmed[i] = turn.Copy()
			}
			trimmed[i].Content[j] = cut
		}
	}
	return trimmed
}

// trimResult returns a capped copy of an oversized tool result, or nil when
// the result already fits. The cap applies to the result as a whole: for
// multi-part results the text budget is spent across parts in order, and
// parts past the point of exhaustion are dropped.
func (c *Compactor) trimResult(result *llm.ToolResultContent) *llm.ToolResultContent {
	if len(result.Parts) == 0 {
		if len(result.Text) <= c.maxToolResultChars {
			return nil
		}
		cut := *result
		cut.Text = result.Text[:c.maxToolResultChars] + truncationMarker
		return &cut
	}

	total := 0
	for _, part := range result.Parts {
		if part.Type == llm.ToolResultPartTypeText {
			total += len(part.Text)
		}
	}
	if total <= c.maxToolResultChars {
		return nil
	}

	cut := *result
	cut.Parts = make([]*llm.ToolResultPart, 0, len(result.Parts))
	remaining := c.maxToolResultChars
	for _, part := range result.Parts {
		if remaining <= 0 {
			break
		}
		if part.Type != llm.ToolResultPartTypeText {
			cut.Parts = append(cut.Parts, part)
			continue
		}
		if len(part.Text) <= remaining {
			cut.Parts = append(cut.Parts, part)
			remaining -= len(part.Text)
			continue
		}
		capped := *part
		capped.Text = part.Text[:remaining] + truncationMarker
		cut.Parts = append(cut.Parts, &capped)
		remaining = 0
	}
	return &cut
}

// startsWithDanglingResults reports whether the turn at index i contains
// tool results whose calls live before the cut.
func startsWithDanglingResults(turns []*llm.Message, i int) bool {
	results := turns[i].ToolResults()
	if len(results) == 0 {
		return false
	}
	// The matching calls are in the immediately preceding assistant turn.
	// If that turn is being compacted away, the results would dangle.
	return i > 0 && len(turns[i-1].ToolCalls()) > 0
}
