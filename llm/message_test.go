package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageText(t *testing.T) {
	t.Run("single text content", func(t *testing.T) {
		msg := NewAssistantTextMessage("hello world")
		assert.Equal(t, "hello world", msg.Text())
	})

	t.Run("returns the last text block", func(t *testing.T) {
		msg := &Message{Role: Assistant, Content: []Content{
			&TextContent{Text: "first"},
			&TextContent{Text: "last"},
		}}
		assert.Equal(t, "last", msg.Text())
	})

	t.Run("skips non-text content", func(t *testing.T) {
		msg := &Message{Role: Assistant, Content: []Content{
			&TextContent{Text: "answer"},
			&ThinkingContent{Thinking: "hmm"},
		}}
		assert.Equal(t, "answer", msg.Text())
	})

	t.Run("empty message", func(t *testing.T) {
		msg := &Message{Role: Assistant}
		assert.Equal(t, "", msg.Text())
	})
}

func TestMessageCompleteText(t *testing.T) {
	msg := &Message{Role: Assistant, Content: []Content{
		&TextContent{Text: "first"},
		&ThinkingContent{Thinking: "hmm"},
		&TextContent{Text: "second"},
	}}
	assert.Equal(t, "first\n\nsecond", msg.CompleteText())
}

func TestMessageToolCallsAndResults(t *testing.T) {
	msg := &Message{Role: Assistant, Content: []Content{
		&TextContent{Text: "on it"},
		&ToolUseContent{ID: "call-1", Name: "echo"},
		&ToolUseContent{ID: "call-2", Name: "echo"},
	}}
	calls := msg.ToolCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "call-1", calls[0].ID)
	assert.Equal(t, "call-2", calls[1].ID)
	assert.Empty(t, msg.ToolResults())

	results := NewToolResultMessage(
		&ToolResultContent{ToolUseID: "call-1", Text: "a"},
		&ToolResultContent{ToolUseID: "call-2", Text: "b"},
	)
	assert.Equal(t, User, results.Role)
	require.Len(t, results.ToolResults(), 2)
	assert.Empty(t, results.ToolCalls())
}

func TestMessageCopy(t *testing.T) {
	original := &Message{Role: User, Content: []Content{&TextContent{Text: "hi"}}}
	copied := original.Copy()
	copied.Content = append(copied.Content, &TextContent{Text: "extra"})
	assert.Len(t, original.Content, 1)
	assert.Len(t, copied.Content, 2)
}

func TestMessageUnmarshalJSON(t *testing.T) {
	data := []byte(`{
		"role": "assistant",
		"content": [
			{"type": "thinking", "thinking": "let me check"},
			{"type": "text", "text": "checking now"},
			{"type": "tool_use", "id": "call-1", "name": "list_files", "input": {"path": "."}}
		]
	}`)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, Assistant, msg.Role)
	require.Len(t, msg.Content, 3)
	assert.IsType(t, &ThinkingContent{}, msg.Content[0])
	assert.IsType(t, &TextContent{}, msg.Content[1])
	require.Len(t, msg.ToolCalls(), 1)
	assert.Equal(t, "list_files", msg.ToolCalls()[0].Name)
}

func TestMessageJSONRoundTrip(t *testing.T) {
	original := &Message{Role: User, Content: []Content{
		&TextContent{Text: "run the tool"},
		&ToolResultContent{ToolUseID: "call-1", Text: "done", IsError: false},
	}}
	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Message
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original, &decoded)
}

func TestMessageUnmarshalRejectsUnknownContent(t *testing.T) {
	data := []byte(`{"role":"user","content":[{"type":"mystery"}]}`)
	var msg Message
	assert.Error(t, json.Unmarshal(data, &msg))
}
