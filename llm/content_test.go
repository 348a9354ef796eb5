package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalContent(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		content, err := UnmarshalContent([]byte(`{"type":"text","text":"hello"}`))
		require.NoError(t, err)
		text, ok := content.(*TextContent)
		require.True(t, ok)
		assert.Equal(t, "hello", text.Text)
	})

	t.Run("thinking", func(t *testing.T) {
		content, err := UnmarshalContent([]byte(`{"type":"thinking","thinking":"hmm","signature":"sig-1"}`))
		require.NoError(t, err)
		thinking, ok := content.(*ThinkingContent)
		require.True(t, ok)
		assert.Equal(t, "hmm", thinking.Thinking)
		assert.Equal(t, "sig-1", thinking.Signature)
	})

	t.Run("tool use", func(t *testing.T) {
		content, err := UnmarshalContent([]byte(`{"type":"tool_use","id":"call-1","name":"echo","input":{"text":"hi"}}`))
		require.NoError(t, err)
		call, ok := content.(*ToolUseContent)
		require.True(t, ok)
		assert.Equal(t, "call-1", call.ID)
		assert.Equal(t, "echo", call.Name)
		assert.JSONEq(t, `{"text":"hi"}`, string(call.Input))
	})

	t.Run("tool result", func(t *testing.T) {
		content, err := UnmarshalContent([]byte(`{"type":"tool_result","tool_use_id":"call-1","text":"done","is_error":true}`))
		require.NoError(t, err)
		result, ok := content.(*ToolResultContent)
		require.True(t, ok)
		assert.Equal(t, "call-1", result.ToolUseID)
		assert.Equal(t, "done", result.Text)
		assert.True(t, result.IsError)
	})

	t.Run("unknown type is an error", func(t *testing.T) {
		_, err := UnmarshalContent([]byte(`{"type":"hologram","data":"x"}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "hologram")
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := UnmarshalContent([]byte(`{`))
		assert.Error(t, err)
	})
}

func TestContentMarshalRoundTrip(t *testing.T) {
	blocks := []Content{
		&TextContent{Text: "hello"},
		&ThinkingContent{Thinking: "hmm", Signature: "sig"},
		&ToolUseContent{ID: "call-1", Name: "echo", Input: json.RawMessage(`{"a":1}`)},
		&ToolResultContent{ToolUseID: "call-1", Text: "done"},
	}
	for _, block := range blocks {
		data, err := json.Marshal(block)
		require.NoError(t, err)

		// Every marshaled block carries its type discriminator.
		var probe struct {
			Type ContentType `json:"type"`
		}
		require.NoError(t, json.Unmarshal(data, &probe))
		assert.Equal(t, block.Type(), probe.Type)

		decoded, err := UnmarshalContent(data)
		require.NoError(t, err)
		assert.Equal(t, block, decoded)
	}
}

func TestNormalizeToolResultParts(t *testing.T) {
	t.Run("single text part collapses", func(t *testing.T) {
		result := NormalizeToolResultParts("call-1", []*ToolResultPart{
			{Type: ToolResultPartTypeText, Text: "15 degrees"},
		}, false)
		assert.Equal(t, "15 degrees", result.Text)
		assert.Nil(t, result.Parts)
		assert.False(t, result.IsError)
	})

	t.Run("multiple parts stay typed", func(t *testing.T) {
		parts := []*ToolResultPart{
			{Type: ToolResultPartTypeText, Text: "screenshot:"},
			{Type: ToolResultPartTypeImage, Data: "aW1n", MediaType: "image/png"},
		}
		result := NormalizeToolResultParts("call-1", parts, false)
		assert.Empty(t, result.Text)
		assert.Equal(t, parts, result.Parts)
	})

	t.Run("single image part stays typed", func(t *testing.T) {
		parts := []*ToolResultPart{
			{Type: ToolResultPartTypeImage, Data: "aW1n", MediaType: "image/png"},
		}
		result := NormalizeToolResultParts("call-1", parts, false)
		assert.Empty(t, result.Text)
		require.Len(t, result.Parts, 1)
	})

	t.Run("error flag preserved", func(t *testing.T) {
		result := NormalizeToolResultParts("call-1", []*ToolResultPart{
			{Type: ToolResultPartTypeText, Text: "nope"},
		}, true)
		assert.True(t, result.IsError)
	})
}

func TestToolResultContentFlatText(t *testing.T) {
	t.Run("plain text", func(t *testing.T) {
		result := &ToolResultContent{Text: "plain"}
		assert.Equal(t, "plain", result.FlatText())
	})

	t.Run("concatenates text parts", func(t *testing.T) {
		result := &ToolResultContent{Parts: []*ToolResultPart{
			{Type: ToolResultPartTypeText, Text: "one"},
			{Type: ToolResultPartTypeImage, Data: "aW1n"},
			{Type: ToolResultPartTypeText, Text: "two"},
		}}
		assert.Equal(t, "one\ntwo", result.FlatText())
	})

	t.Run("empty result", func(t *testing.T) {
		assert.Equal(t, "", (&ToolResultContent{}).FlatText())
	})
}
