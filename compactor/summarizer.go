package compactor

import (
	"context"
	"fmt"
	"strings"

	"github.com/deepnoodle-ai/helm"
	"github.com/deepnoodle-ai/helm/llm"
)

// DefaultSummaryPrompt instructs a model to produce a continuation summary
// for the turns being compacted away.
const DefaultSummaryPrompt = `You have been working on the task described above but the conversation is being truncated to fit the context window. Write a continuation summary that will allow you to resume work efficiently. Include: the user's core request and success criteria, what has been completed so far, important discoveries and decisions, and the specific next steps remaining. Be concise but complete.`

// Summarizer produces the summary text that replaces a compacted prefix of
// turns.
type Summarizer interface {
	Summarize(ctx context.Context, turns []*llm.Message) (string, error)
}

// DigestSummarizer builds a deterministic summary without calling a model:
// the original instruction, the tools invoked, and the most recent assistant
// text. It is the default because it never fails and costs nothing.
type DigestSummarizer struct {
	// MaxChars truncates the digest. Zero means 2000.
	MaxChars int
}

func (s *DigestSummarizer) Summarize(ctx context.Context, turns []*llm.Message) (string, error) {
	maxChars := s.MaxChars
	if maxChars <= 0 {
		maxChars = 2000
	}
	var sb strings.Builder
	if len(turns) > 0 && turns[0].Role == llm.User {
		fmt.Fprintf(&sb, "Original request: %s\n", turns[0].CompleteText())
	}
	var toolNames []string
	seen := make(map[string]bool)
	for _, turn := range turns {
		for _, call := range turn.ToolCalls() {
			if !seen[call.Name] {
				seen[call.Name] = true
				toolNames = append(toolNames, call.Name)
			}
		}
	}
	if len(toolNames) > 0 {
		fmt.Fprintf(&sb, "Tools used so far: %s\n", strings.Join(toolNames, ", "))
	}
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == llm.Assistant {
			if text := turns[i].Text(); text != "" {
				fmt.Fprintf(&sb, "Most recent progress: %s\n", text)
			}
			break
		}
	}
	digest := sb.String()
	if len(digest) > maxChars {
		digest = digest[:maxChars] + "…"
	}
	return digest, nil
}

// ModelSummarizer asks a model to write the continuation summary.
type ModelSummarizer struct {
	Model helm.Model

	// Prompt overrides DefaultSummaryPrompt.
	Prompt string
}

func (s *ModelSummarizer) Summarize(ctx context.Context, turns []*llm.Message) (string, error) {
	prompt := s.Prompt
	if prompt == "" {
		prompt = DefaultSummaryPrompt
	}
	request := make([]*llm.Message, 0, len(turns)+1)
	request = append(request, turns...)
	request = append(request, llm.NewUserTextMessage(prompt))
	output, err := s.Model.Step(ctx, request)
	if err != nil {
		return "", fmt.Errorf("summary generation failed: %w", err)
	}
	summary := llm.NewMessage(llm.Assistant, output.Blocks).CompleteText()
	if summary == "" {
		return "", fmt.Errorf("summary generation returned no text")
	}
	return summary, nil
}
