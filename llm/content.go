package llm

import (
	"encoding/json"
	"fmt"
)

// ContentType indicates the type of a content block in a message.
type ContentType string

const (
	ContentTypeText       ContentType = "text"
	ContentTypeThinking   ContentType = "thinking"
	ContentTypeToolUse    ContentType = "tool_use"
	ContentTypeToolResult ContentType = "tool_result"
)

func (t ContentType) String() string {
	return string(t)
}

// Content is a single block of content in a message. A message may contain
// multiple content blocks of varying types. The set of implementations is
// closed: TextContent, ThinkingContent, ToolUseContent, and
// ToolResultContent.
type Content interface {
	Type() ContentType
}

//// TextContent ///////////////////////////////////////////////////////////////

/* Example:
{
  "type": "text",
  "text": "The grass is green and the sky is blue."
}
*/

type TextContent struct {
	Text string `json:"text"`
}

func (c *TextContent) Type() ContentType {
	return ContentTypeText
}

func (c *TextContent) MarshalJSON() ([]byte, error) {
	type alias TextContent
	return marshalWithType(c.Type(), (*alias)(c))
}

//// ThinkingContent ///////////////////////////////////////////////////////////

/* Example:
{
  "type": "thinking",
  "thinking": "The user wants me to list files first...",
  "signature": "EuYBCkQYAiJ..."
}
*/

// ThinkingContent carries the model's internal reasoning. The optional
// signature is provider metadata that must round-trip unchanged.
type ThinkingContent struct {
	Thinking  string `json:"thinking"`
	Signature string `json:"signature,omitempty"`
}

func (c *ThinkingContent) Type() ContentType {
	return ContentTypeThinking
}

func (c *ThinkingContent) MarshalJSON() ([]byte, error) {
	type alias ThinkingContent
	return marshalWithType(c.Type(), (*alias)(c))
}

//// ToolUseContent ////////////////////////////////////////////////////////////

/* Example:
{
  "type": "tool_use",
  "id": "toolu_01A09q90qw90lq917835lq9",
  "name": "list_files",
  "input": {"path": "."}
}
*/

type ToolUseContent struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input,omitempty"`
}

func (c *ToolUseContent) Type() ContentType {
	return ContentTypeToolUse
}

func (c *ToolUseContent) MarshalJSON() ([]byte, error) {
	type alias ToolUseContent
	return marshalWithType(c.Type(), (*alias)(c))
}

//// ToolResultContent /////////////////////////////////////////////////////////

/* Examples:
{
  "type": "tool_result",
  "tool_use_id": "toolu_01A09q90qw90lq917835lq9",
  "content": "15 degrees"
}

{
  "type": "tool_result",
  "tool_use_id": "toolu_01A09q90qw90lq917835lq9",
  "content": [
    {"type": "text", "text": "Here is the screenshot:"},
    {"type": "image", "data": "/9j/4AAQSkZJRg...", "media_type": "image/jpeg"}
  ],
  "is_error": false
}
*/

// ToolResultContent carries the result of one tool call back to the model.
// Content is either plain text (Text set, Parts nil) or an ordered list of
// typed parts (Parts set, Text empty). Use NormalizeToolResultParts to build
// the canonical form.
type ToolResultContent struct {
	ToolUseID string            `json:"tool_use_id"`
	Text      string            `json:"text,omitempty"`
	Parts     []*ToolResultPart `json:"parts,omitempty"`
	IsError   bool              `json:"is_error,omitempty"`
}

func (c *ToolResultContent) Type() ContentType {
	return ContentTypeToolResult
}

func (c *ToolResultContent) MarshalJSON() ([]byte, error) {
	type alias ToolResultContent
	return marshalWithType(c.Type(), (*alias)(c))
}

// FlatText returns the text of the result: the Text field for plain results,
// or the concatenated text parts for multi-part results.
func (c *ToolResultContent) FlatText() string {
	if c.Text != "" || len(c.Parts) == 0 {
		return c.Text
	}
	var out string
	for _, part := range c.Parts {
		if part.Type == ToolResultPartTypeText {
			if out != "" {
				out += "\n"
			}
			out += part.Text
		}
	}
	return out
}

// ToolResultPartType identifies the kind of a multi-part tool result entry.
type ToolResultPartType string

const (
	ToolResultPartTypeText  ToolResultPartType = "text"
	ToolResultPartTypeImage ToolResultPartType = "image"
)

// ToolResultPart is one entry of a multi-part tool result.
type ToolResultPart struct {
	Type      ToolResultPartType `json:"type"`
	Text      string             `json:"text,omitempty"`
	Data      string             `json:"data,omitempty"` // base64 image bytes
	MediaType string             `json:"media_type,omitempty"`
}

// NormalizeToolResultParts reduces a list of result parts to the canonical
// tool-result shape: a single text part collapses to plain text, anything
// else stays as an ordered list of typed parts. This is the one shape that
// downstream history storage has to handle.
func NormalizeToolResultParts(toolUseID string, parts []*ToolResultPart, isError bool) *ToolResultContent {
	result := &ToolResultContent{ToolUseID: toolUseID, IsError: isError}
	if len(parts) == 1 && parts[0].Type == ToolResultPartTypeText {
		result.Text = parts[0].Text
		return result
	}
	result.Parts = parts
	return result
}

//// JSON codec ////////////////////////////////////////////////////////////////

func marshalWithType(contentType ContentType, value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	// Splice the type discriminator into the object.
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	m["type"] = json.RawMessage(fmt.Sprintf("%q", contentType))
	return json.Marshal(m)
}

// UnmarshalContent decodes one content block from its JSON representation.
// An unrecognized type is an error: the union is closed and a new block kind
// must be handled everywhere content is branched on.
func UnmarshalContent(data []byte) (Content, error) {
	var probe struct {
		Type ContentType `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}
	switch probe.Type {
	case ContentTypeText:
		var c TextContent
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return &c, nil
	case ContentTypeThinking:
		var c ThinkingContent
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return &c, nil
	case ContentTypeToolUse:
		var c ToolUseContent
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return &c, nil
	case ContentTypeToolResult:
		var c ToolResultContent
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return &c, nil
	default:
		return nil, fmt.Errorf("unrecognized content type: %q", probe.Type)
	}
}
