package llm

import (
	"encoding/json"
	"strings"
)

// Role indicates the actor that produced a message. Either "user" or
// "assistant". System prompts are passed to models out-of-band and never
// appear in conversation history.
type Role string

const (
	User      Role = "user"
	Assistant Role = "assistant"
)

func (r Role) String() string {
	return string(r)
}

// Message is one turn in a conversation: an ordered list of content blocks
// produced by a single actor. Messages are immutable once appended to a
// history, with the sole exception of the compaction rewrite path, which
// replaces a prefix of turns wholesale.
type Message struct {
	Role    Role      `json:"role"`
	Content []Content `json:"content"`
}

// NewMessage creates a new message with the given role and content blocks.
func NewMessage(role Role, content []Content) *Message {
	return &Message{Role: role, Content: content}
}

// NewUserTextMessage creates a new user message with a single text content
// block.
func NewUserTextMessage(text string) *Message {
	return &Message{
		Role:    User,
		Content: []Content{&TextContent{Text: text}},
	}
}

// NewAssistantTextMessage creates a new assistant message with a single text
// content block.
func NewAssistantTextMessage(text string) *Message {
	return &Message{
		Role:    Assistant,
		Content: []Content{&TextContent{Text: text}},
	}
}

// NewToolResultMessage creates a new user message carrying tool results back
// to the model.
func NewToolResultMessage(results ...*ToolResultContent) *Message {
	content := make([]Content, len(results))
	for i, result := range results {
		content[i] = result
	}
	return &Message{Role: User, Content: content}
}

// Text returns the last text content in the message, or "" if there is none.
// To retrieve concatenated text from all blocks, use CompleteText.
func (m *Message) Text() string {
	for i := len(m.Content) - 1; i >= 0; i-- {
		if text, ok := m.Content[i].(*TextContent); ok {
			return text.Text
		}
	}
	return ""
}

// CompleteText returns the concatenated text of all text blocks in the
// message, separated by two newlines.
func (m *Message) CompleteText() string {
	var sb strings.Builder
	for _, content := range m.Content {
		if text, ok := content.(*TextContent); ok {
			if sb.Len() > 0 {
				sb.WriteString("\n\n")
			}
			sb.WriteString(text.Text)
		}
	}
	return sb.String()
}

// ToolCalls returns the tool use blocks in the message, in order.
func (m *Message) ToolCalls() []*ToolUseContent {
	var calls []*ToolUseContent
	for _, content := range m.Content {
		if call, ok := content.(*ToolUseContent); ok {
			calls = append(calls, call)
		}
	}
	return calls
}

// ToolResults returns the tool result blocks in the message, in order.
func (m *Message) ToolResults() []*ToolResultContent {
	var results []*ToolResultContent
	for _, content := range m.Content {
		if result, ok := content.(*ToolResultContent); ok {
			results = append(results, result)
		}
	}
	return results
}

// Copy returns a shallow copy of the message with its own content slice.
// Content blocks themselves are treated as immutable and shared.
func (m *Message) Copy() *Message {
	content := make([]Content, len(m.Content))
	copy(content, m.Content)
	return &Message{Role: m.Role, Content: content}
}

// UnmarshalJSON decodes a message, resolving each content block to its
// concrete type.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role    Role              `json:"role"`
		Content []json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Role = raw.Role
	m.Content = make([]Content, len(raw.Content))
	for i, block := range raw.Content {
		content, err := UnmarshalContent(block)
		if err != nil {
			return err
		}
		m.Content[i] = content
	}
	return nil
}
