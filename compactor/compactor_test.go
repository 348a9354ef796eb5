package compactor

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/deepnoodle-ai/helm"
	"github.com/deepnoodle-ai/helm/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedEstimator returns a constant token estimate.
type fixedEstimator struct {
	tokens int
}

func (e fixedEstimator) EstimateTokens(turns []*llm.Message) int {
	return e.tokens
}

func conversation(turns int) []*llm.Message {
	messages := make([]*llm.Message, 0, turns)
	messages = append(messages, llm.NewUserTextMessage("Please analyze the repository."))
	for len(messages) < turns {
		if len(messages)%2 == 1 {
			messages = append(messages, llm.NewAssistantTextMessage(
				fmt.Sprintf("Working on step %d.", len(messages))))
		} else {
			messages = append(messages, llm.NewUserTextMessage("Continue."))
		}
	}
	return messages
}

func TestCompactorBelowThresholdIsUnchanged(t *testing.T) {
	c := New(Options{
		TokenThreshold:  1000,
		KeepRecentTurns: 4,
		Estimator:       fixedEstimator{tokens: 999},
	})
	turns := conversation(20)
	result, err := c.ApplyTruncationIfNeeded(context.Background(), turns)
	require.NoError(t, err)
	assert.Len(t, result, len(turns))
}

func TestCompactorShortHistoryIsUnchanged(t *testing.T) {
	c := New(Options{
		TokenThreshold:  1,
		KeepRecentTurns: 10,
		Estimator:       fixedEstimator{tokens: 1 << 30},
	})
	turns := conversation(11)
	result, err := c.ApplyTruncationIfNeeded(context.Background(), turns)
	require.NoError(t, err)
	assert.Len(t, result, len(turns))
}

func TestCompactorReplacesPrefixWithSummary(t *testing.T) {
	c := New(Options{
		TokenThreshold:  100,
		KeepRecentTurns: 4,
		Estimator:       fixedEstimator{tokens: 500},
	})
	turns := conversation(20)
	result, err := c.ApplyTruncationIfNeeded(context.Background(), turns)
	require.NoError(t, err)

	// keep-recent suffix plus one summary head
	require.Len(t, result, 5)
	assert.Less(t, len(result), len(turns), "compaction must never grow the history")

	head := result[0]
	assert.Equal(t, llm.User, head.Role)
	assert.Contains(t, head.Text(), summaryHeader)
	assert.Contains(t, head.Text(), "Please analyze the repository.")

	// The preserved suffix is verbatim.
	assert.Equal(t, turns[len(turns)-4:], result[1:])
}

func TestCompactorSkipsDanglingToolResults(t *testing.T) {
	// Build a history where the keep boundary would land on a tool-result
	// turn whose call lives in the turn being compacted away.
	turns := []*llm.Message{
		llm.NewUserTextMessage("go"),
		llm.NewAssistantTextMessage("step one"),
		llm.NewUserTextMessage("continue"),
		{Role: llm.Assistant, Content: []llm.Content{
			&llm.ToolUseContent{ID: "call-1", Name: "echo"},
		}},
		llm.NewToolResultMessage(&llm.ToolResultContent{ToolUseID: "call-1", Text: "ok"}),
		llm.NewAssistantTextMessage("step two"),
		llm.NewUserTextMessage("continue"),
		llm.NewAssistantTextMessage("step three"),
	}

	c := New(Options{
		TokenThreshold: 100,
		// A cut at len-4 would start the suffix at the tool-result turn.
		KeepRecentTurns: 4,
		Estimator:       fixedEstimator{tokens: 500},
	})
	result, err := c.ApplyTruncationIfNeeded(context.Background(), turns)
	require.NoError(t, err)

	// The cut moved past the dangling result turn.
	require.NotEmpty(t, result)
	for _, turn := range result[1:] {
		for _, r := range turn.ToolResults() {
			assert.NotEqual(t, "call-1", r.ToolUseID,
				"a preserved tool result must not dangle")
		}
	}
	assert.Less(t, len(result), len(turns))
}

func TestCompactorDefaults(t *testing.T) {
	c := New(Options{})
	assert.Equal(t, DefaultTokenThreshold, c.tokenThreshold)
	assert.Equal(t, DefaultKeepRecentTurns, c.keepRecentTurns)
	assert.Equal(t, DefaultMaxToolResultChars, c.maxToolResultChars)
	assert.NotNil(t, c.estimator)
	assert.NotNil(t, c.summarizer)
}

func TestCompactorTrimsOversizedToolResults(t *testing.T) {
	big := strings.Repeat("x", 500)
	preserved := llm.NewToolResultMessage(
		&llm.ToolResultContent{ToolUseID: "call-9", Text: big},
	)
	turns := conversation(8)
	turns = append(turns, &llm.Message{Role: llm.Assistant, Content: []llm.Content{
		&llm.ToolUseContent{ID: "call-9", Name: "file_read"},
	}}, preserved)

	c := New(Options{
		TokenThreshold:     100,
		KeepRecentTurns:    2,
		MaxToolResultChars: 100,
		Estimator:          fixedEstimator{tokens: 500},
	})
	result, err := c.ApplyTruncationIfNeeded(context.Background(), turns)
	require.NoError(t, err)

	last := result[len(result)-1]
	require.Len(t, last.ToolResults(), 1)
	trimmed := last.ToolResults()[0].Text
	assert.Less(t, len(trimmed), len(big))
	assert.Contains(t, trimmed, "truncated during compaction")

	// The original turn is untouched.
	assert.Equal(t, big, preserved.ToolResults()[0].Text)
}

func TestCompactorTrimsMultiPartToolResults(t *testing.T) {
	big := strings.Repeat("y", 500)
	preserved := llm.NewToolResultMessage(
		&llm.ToolResultContent{ToolUseID: "call-9", Parts: []*llm.ToolResultPart{
			{Type: llm.ToolResultPartTypeText, Text: "listing:"},
			{Type: llm.ToolResultPartTypeText, Text: big},
			{Type: llm.ToolResultPartTypeImage, Data: "aW1n", MediaType: "image/png"},
		}},
	)
	turns := conversation(8)
	turns = append(turns, &llm.Message{Role: llm.Assistant, Content: []llm.Content{
		&llm.ToolUseContent{ID: "call-9", Name: "file_read"},
	}}, preserved)

	c := New(Options{
		TokenThreshold:     100,
		KeepRecentTurns:    2,
		MaxToolResultChars: 100,
		Estimator:          fixedEstimator{tokens: 500},
	})
	result, err := c.ApplyTruncationIfNeeded(context.Background(), turns)
	require.NoError(t, err)

	last := result[len(result)-1]
	require.Len(t, last.ToolResults(), 1)
	parts := last.ToolResults()[0].Parts

	// The budget was spent across the text parts in order; the image part
	// past the cap was dropped.
	require.Len(t, parts, 2)
	assert.Equal(t, "listing:", parts[0].Text)
	assert.Less(t, len(parts[1].Text), len(big))
	assert.Contains(t, parts[1].Text, "truncated during compaction")

	// The original parts are untouched.
	original := preserved.ToolResults()[0].Parts
	require.Len(t, original, 3)
	assert.Equal(t, big, original[1].Text)
}

func TestHeuristicEstimator(t *testing.T) {
	turns := []*llm.Message{
		llm.NewUserTextMessage(strings.Repeat("a", 400)),
	}
	tokens := HeuristicEstimator{}.EstimateTokens(turns)
	assert.Equal(t, 400/charsPerTokenEstimate+perBlockOverhead, tokens)
}

func TestHeuristicEstimatorCountsAllBlockKinds(t *testing.T) {
	turns := []*llm.Message{
		{Role: llm.Assistant, Content: []llm.Content{
			&llm.TextContent{Text: "tell me"},
			&llm.ThinkingContent{Thinking: "thinking about it"},
			&llm.ToolUseContent{ID: "c1", Name: "echo", Input: []byte(`{"a":1}`)},
			&llm.ToolResultContent{ToolUseID: "c1", Text: "result"},
		}},
	}
	tokens := HeuristicEstimator{}.EstimateTokens(turns)
	assert.Greater(t, tokens, 4*perBlockOverhead)
}

func TestDigestSummarizer(t *testing.T) {
	turns := []*llm.Message{
		llm.NewUserTextMessage("Find all TODO comments."),
		{Role: llm.Assistant, Content: []llm.Content{
			&llm.TextContent{Text: "Searching now."},
			&llm.ToolUseContent{ID: "c1", Name: "grep"},
			&llm.ToolUseContent{ID: "c2", Name: "file_read"},
		}},
		llm.NewToolResultMessage(&llm.ToolResultContent{ToolUseID: "c1", Text: "3 matches"}),
		llm.NewAssistantTextMessage("Found three TODOs in two files."),
	}

	summary, err := (&DigestSummarizer{}).Summarize(context.Background(), turns)
	require.NoError(t, err)
	assert.Contains(t, summary, "Find all TODO comments.")
	assert.Contains(t, summary, "grep, file_read")
	assert.Contains(t, summary, "Found three TODOs in two files.")
}

func TestDigestSummarizerTruncates(t *testing.T) {
	turns := []*llm.Message{
		llm.NewUserTextMessage(strings.Repeat("long request ", 100)),
	}
	summary, err := (&DigestSummarizer{MaxChars: 50}).Summarize(context.Background(), turns)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(summary), 50+len("…"))
}

// cannedModel returns a fixed summary for ModelSummarizer tests.
type cannedModel struct {
	lastTurns []*llm.Message
	text      string
}

func (m *cannedModel) Step(ctx context.Context, turns []*llm.Message) (*helm.ModelOutput, error) {
	m.lastTurns = turns
	return &helm.ModelOutput{Blocks: []llm.Content{&llm.TextContent{Text: m.text}}}, nil
}

func TestModelSummarizer(t *testing.T) {
	model := &cannedModel{text: "continuation summary"}
	summarizer := &ModelSummarizer{Model: model}

	turns := conversation(6)
	summary, err := summarizer.Summarize(context.Background(), turns)
	require.NoError(t, err)
	assert.Equal(t, "continuation summary", summary)

	// The summary prompt is appended after the compacted turns.
	require.Len(t, model.lastTurns, len(turns)+1)
	last := model.lastTurns[len(model.lastTurns)-1]
	assert.Equal(t, llm.User, last.Role)
	assert.Equal(t, DefaultSummaryPrompt, last.Text())
}
