package helm

import (
	"errors"
	"fmt"

	"github.com/deepnoodle-ai/helm/llm"
)

var (
	// ErrEmptyTurn indicates an attempt to append a turn with no content.
	ErrEmptyTurn = errors.New("turn must contain at least one content block")

	// ErrHistoryCorrupt indicates that a history invariant no longer holds.
	ErrHistoryCorrupt = errors.New("conversation history corrupt")
)

// Attachment is supplemental text included alongside a user prompt, such as
// the contents of a file the user referenced.
type Attachment struct {
	Name string `json:"name,omitempty"`
	Text string `json:"text"`
}

// History is the ordered, mutable record of turns for one conversation.
//
// A History has exactly one writer: the controller that owns it. It must
// never be mutated from two code paths concurrently. Invariants: the first
// turn, if present, is a user turn; only the trailing turns may contain
// tool calls that do not yet have matching results.
type History struct {
	turns []*llm.Message
}

// NewHistory creates an empty conversation history.
func NewHistory() *History {
	return &History{}
}

// Len returns the number of turns.
func (h *History) Len() int {
	return len(h.turns)
}

// Turns returns the turn list. The returned slice is a copy; the messages
// themselves are shared and must be treated as immutable.
func (h *History) Turns() []*llm.Message {
	turns := make([]*llm.Message, len(h.turns))
	copy(turns, h.turns)
	return turns
}

// AddUserPrompt appends a user turn with the given instruction text and any
// attachments as additional text blocks.
func (h *History) AddUserPrompt(text string, attachments ...Attachment) {
	content := []llm.Content{&llm.TextContent{Text: text}}
	for _, attachment := range attachments {
		attachmentText := attachment.Text
		if attachment.Name != "" {
			attachmentText = fmt.Sprintf("Attachment %q:\n%s", attachment.Name, attachment.Text)
		}
		content = append(content, &llm.TextContent{Text: attachmentText})
	}
	h.turns = append(h.turns, llm.NewMessage(llm.User, content))
}

// AddAssistantTurn appends one assistant turn containing the given blocks.
func (h *History) AddAssistantTurn(blocks []llm.Content) error {
	if len(blocks) == 0 {
		return ErrEmptyTurn
	}
	h.turns = append(h.turns, llm.NewMessage(llm.Assistant, blocks))
	return nil
}

// PendingToolCalls returns the tool calls of the last turn that do not yet
// have a matching result. Only the last turn is scanned: an unmatched tool
// call in any earlier turn is a corruption bug, not a pending call. An empty
// return is the primary completion signal for the controller.
func (h *History) PendingToolCalls() []*llm.ToolUseContent {
	if len(h.turns) == 0 {
		return nil
	}
	last := h.turns[len(h.turns)-1]
	return last.ToolCalls()
}

// AddToolResult appends a tool result, merging it into the pending
// tool-result turn if one is already accumulating, or starting a new one.
func (h *History) AddToolResult(result *llm.ToolResultContent) {
	if len(h.turns) > 0 {
		last := h.turns[len(h.turns)-1]
		if last.Role == llm.User && isToolResultTurn(last) {
			last.Content = append(last.Content, result)
			return
		}
	}
	h.turns = append(h.turns, llm.NewToolResultMessage(result))
}

// LastAssistantText returns the text of the most recent assistant turn, or
// "" if no assistant turn has any text.
func (h *History) LastAssistantText() string {
	for i := len(h.turns) - 1; i >= 0; i-- {
		if h.turns[i].Role != llm.Assistant {
			continue
		}
		if text := h.turns[i].Text(); text != "" {
			return text
		}
	}
	return ""
}

// DropLastTurn removes the most recent turn. Used by the controller's retry
// path to discard an assistant turn that asked to be regenerated.
func (h *History) DropLastTurn() {
	if len(h.turns) > 0 {
		h.turns = h.turns[:len(h.turns)-1]
	}
}

// Clear removes all turns. Called when a fresh (non-resumed) run starts on
// the same session.
func (h *History) Clear() {
	h.turns = nil
}

// ReplacePrefix installs the compactor's rewritten turn list wholesale. The
// compactor replaces a prefix of turns with a summary head; the controller
// does not merge, it adopts the new list directly.
func (h *History) ReplacePrefix(turns []*llm.Message) {
	replaced := make([]*llm.Message, len(turns))
	copy(replaced, turns)
	h.turns = replaced
}

// Validate checks the history invariants: every turn is non-empty, the first
// turn is a user turn, and only the trailing turns (the last assistant turn
// and a still-accumulating tool-result turn after it) may contain tool calls
// without matching results.
func (h *History) Validate() error {
	if len(h.turns) == 0 {
		return nil
	}
	if h.turns[0].Role != llm.User {
		return fmt.Errorf("%w: first turn has role %q", ErrHistoryCorrupt, h.turns[0].Role)
	}
	results := make(map[string]bool)
	for _, turn := range h.turns {
		if len(turn.Content) == 0 {
			return fmt.Errorf("%w: empty turn", ErrHistoryCorrupt)
		}
		for _, result := range turn.ToolResults() {
			results[result.ToolUseID] = true
		}
	}
	for i, turn := range h.turns {
		if i >= len(h.turns)-2 {
			// Unmatched calls are permitted in the tail while a batch is in
			// flight or results are being appended.
			continue
		}
		for _, call := range turn.ToolCalls() {
			if !results[call.ID] {
				return fmt.Errorf("%w: turn %d has unmatched tool call %q", ErrHistoryCorrupt, i, call.ID)
			}
		}
	}
	return nil
}

// isToolResultTurn reports whether every block in the turn is a tool result.
func isToolResultTurn(turn *llm.Message) bool {
	if len(turn.Content) == 0 {
		return false
	}
	for _, content := range turn.Content {
		if _, ok := content.(*llm.ToolResultContent); !ok {
			return false
		}
	}
	return true
}
