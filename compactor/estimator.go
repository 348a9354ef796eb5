package compactor

import (
	"sync"

	"github.com/deepnoodle-ai/helm/llm"
	"github.com/pkoukk/tiktoken-go"
)

// perBlockOverhead approximates the framing tokens each content block adds
// beyond its text.
const perBlockOverhead = 6

// charsPerTokenEstimate is the fallback ratio when no tokenizer is
// available.
const charsPerTokenEstimate = 4

// TokenEstimator estimates how many tokens a turn list will occupy in the
// model's context window. Estimates only need to be good enough to drive the
// compaction threshold.
type TokenEstimator interface {
	EstimateTokens(turns []*llm.Message) int
}

// HeuristicEstimator estimates tokens as characters divided by four.
type HeuristicEstimator struct{}

func (HeuristicEstimator) EstimateTokens(turns []*llm.Message) int {
	var chars, blocks int
	for _, turn := range turns {
		for _, block := range turn.Content {
			blocks++
			chars += len(blockText(block))
		}
	}
	return chars/charsPerTokenEstimate + blocks*perBlockOverhead
}

// TiktokenEstimator estimates tokens with a BPE encoding. Falls back to the
// heuristic if the encoding cannot be loaded.
type TiktokenEstimator struct {
	once     sync.Once
	encoding *tiktoken.Tiktoken
	fallback HeuristicEstimator
}

// NewTiktokenEstimator creates an estimator using the cl100k_base encoding.
// The encoding is loaded lazily on first use.
func NewTiktokenEstimator() *TiktokenEstimator {
	return &TiktokenEstimator{}
}

func (e *TiktokenEstimator) EstimateTokens(turns []*llm.Message) int {
	e.once.Do(func() {
		encoding, err := tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
		if err == nil {
			e.encoding = encoding
		}
	})
	if e.encoding == nil {
		return e.fallback.EstimateTokens(turns)
	}
	var tokens int
	for _, turn := range turns {
		for _, block := range turn.Content {
			tokens += perBlockOverhead
			if text := blockText(block); text != "" {
				tokens += len(e.encoding.Encode(text, nil, nil))
			}
		}
	}
	return tokens
}

// blockText returns the token-relevant text of a content block.
func blockText(block llm.Content) string {
	switch b := block.(type) {
	case *llm.TextContent:
		return b.Text
	case *llm.ThinkingContent:
		return b.Thinking
	case *llm.ToolUseContent:
		return b.Name + string(b.Input)
	case *llm.ToolResultContent:
		return b.FlatText()
	default:
		return ""
	}
}
