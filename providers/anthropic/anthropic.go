// Package anthropic implements helm.Model on the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/deepnoodle-ai/helm"
	"github.com/deepnoodle-ai/helm/llm"
	"github.com/deepnoodle-ai/helm/retry"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "claude-sonnet-4-5"

// DefaultMaxTokens bounds the response length when not configured.
const DefaultMaxTokens = 8192

// SchemaProvider is an optional interface a helm.Tool can implement to
// advertise a JSON schema for its input. Tools without it are advertised
// with an unconstrained object schema.
type SchemaProvider interface {
	InputSchema() map[string]any
}

// Model is a helm.Model backed by the Anthropic Messages API.
type Model struct {
	client       sdk.Client
	model        string
	maxTokens    int64
	systemPrompt string
	tools        []helm.Tool
}

// Options configures a Model.
type Options struct {
	// APIKey authenticates with the API. Falls back to the ANTHROPIC_API_KEY
	// environment variable when empty.
	APIKey string

	// ModelName selects the model. Defaults to DefaultModel.
	ModelName string

	// MaxTokens bounds the response length. Defaults to DefaultMaxTokens.
	MaxTokens int64

	// SystemPrompt is passed out-of-band with every request.
	SystemPrompt string

	// Tools are advertised to the model. Execution stays with the caller's
	// ToolExecutor; the model only sees names, descriptions, and schemas.
	Tools []helm.Tool
}

// New creates a Model.
func New(opts Options) *Model {
	var requestOpts []option.RequestOption
	if opts.APIKey != "" {
		requestOpts = append(requestOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.ModelName == "" {
		opts.ModelName = DefaultModel
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	return &Model{
		client:       sdk.NewClient(requestOpts...),
		model:        opts.ModelName,
		maxTokens:    opts.MaxTokens,
		systemPrompt: opts.SystemPrompt,
		tools:        opts.Tools,
	}
}

var _ helm.Model = (*Model)(nil)

// Step sends the full history and returns the assistant's next turn.
// Retryable HTTP statuses are retried with backoff.
func (m *Model) Step(ctx context.Context, turns []*llm.Message) (*helm.ModelOutput, error) {
	params, err := m.buildParams(turns)
	if err != nil {
		return nil, err
	}

	var message *sdk.Message
	err = retry.WithRetry(ctx, func() error {
		var stepErr error
		message, stepErr = m.client.Messages.New(ctx, params)
		if stepErr != nil {
			return wrapAPIError(stepErr)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic request failed: %w", err)
	}

	blocks, err := convertResponseContent(message.Content)
	if err != nil {
		return nil, err
	}
	return &helm.ModelOutput{
		Blocks: blocks,
		Usage: &llm.Usage{
			InputTokens:              int(message.Usage.InputTokens),
			OutputTokens:             int(message.Usage.OutputTokens),
			CacheCreationInputTokens: int(message.Usage.CacheCreationInputTokens),
			CacheReadInputTokens:     int(message.Usage.CacheReadInputTokens),
		},
	}, nil
}

func (m *Model) buildParams(turns []*llm.Message) (sdk.MessageNewParams, error) {
	messages := make([]sdk.MessageParam, 0, len(turns))
	for _, turn := range turns {
		message, err := convertTurn(turn)
		if err != nil {
			return sdk.MessageNewParams{}, err
		}
		messages = append(messages, message)
	}
	params := sdk.MessageNewParams{
		Model:     sdk.Model(m.model),
		MaxTokens: m.maxTokens,
		Messages:  messages,
	}
	if m.systemPrompt != "" {
		params.System = []sdk.TextBlockParam{{Text: m.systemPrompt}}
	}
	for _, tool := range m.tools {
		params.Tools = append(params.Tools, toolParam(tool))
	}
	return params, nil
}

// convertTurn maps one history turn onto the wire message shape.
func convertTurn(turn *llm.Message) (sdk.MessageParam, error) {
	content := make([]sdk.ContentBlockParamUnion, 0, len(turn.Content))
	for _, block := range turn.Content {
		switch b := block.(type) {
		case *llm.TextContent:
			content = append(content, sdk.NewTextBlock(b.Text))
		case *llm.ThinkingContent:
			content = append(content, sdk.NewThinkingBlock(b.Signature, b.Thinking))
		case *llm.ToolUseContent:
			var input any = map[string]any{}
			if len(b.Input) > 0 {
				input = json.RawMessage(b.Input)
			}
			content = append(content, sdk.NewToolUseBlock(b.ID, input, b.Name))
		case *llm.ToolResultContent:
			content = append(content, toolResultParam(b))
		default:
			return sdk.MessageParam{}, fmt.Errorf("unrecognized content block type %T", block)
		}
	}
	switch turn.Role {
	case llm.User:
		return sdk.NewUserMessage(content...), nil
	case llm.Assistant:
		return sdk.NewAssistantMessage(content...), nil
	default:
		return sdk.MessageParam{}, fmt.Errorf("unrecognized message role %q", turn.Role)
	}
}

// toolResultParam maps a normalized tool result onto the wire shape,
// expanding multi-part results into typed text and image parts.
func toolResultParam(result *llm.ToolResultContent) sdk.ContentBlockParamUnion {
	if len(result.Parts) == 0 {
		return sdk.NewToolResultBlock(result.ToolUseID, result.Text, result.IsError)
	}
	var parts []sdk.ToolResultBlockParamContentUnion
	for _, part := range result.Parts {
		switch part.Type {
		case llm.ToolResultPartTypeText:
			parts = append(parts, sdk.ToolResultBlockParamContentUnion{
				OfText: &sdk.TextBlockParam{Text: part.Text},
			})
		case llm.ToolResultPartTypeImage:
			parts = append(parts, sdk.ToolResultBlockParamContentUnion{
				OfImage: &sdk.ImageBlockParam{
					Source: sdk.ImageBlockParamSourceUnion{
						OfBase64: &sdk.Base64ImageSourceParam{
							Data:      part.Data,
							MediaType: sdk.Base64ImageSourceMediaType(part.MediaType),
						},
					},
				},
			})
		}
	}
	block := sdk.ToolResultBlockParam{
		ToolUseID: result.ToolUseID,
		Content:   parts,
	}
	if result.IsError {
		block.IsError = sdk.Bool(true)
	}
	return sdk.ContentBlockParamUnion{OfToolResult: &block}
}

// convertResponseContent maps the response blocks back into the content
// model. An unknown block type is an error rather than silently dropped.
func convertResponseContent(content []sdk.ContentBlockUnion) ([]llm.Content, error) {
	blocks := make([]llm.Content, 0, len(content))
	for _, block := range content {
		switch block.Type {
		case "text":
			blocks = append(blocks, &llm.TextContent{Text: block.Text})
		case "thinking":
			blocks = append(blocks, &llm.ThinkingContent{
				Thinking:  block.Thinking,
				Signature: block.Signature,
			})
		case "redacted_thinking":
			blocks = append(blocks, &llm.ThinkingContent{Signature: block.Data})
		case "tool_use":
			blocks = append(blocks, &llm.ToolUseContent{
				ID:    block.ID,
				Name:  block.Name,
				Input: json.RawMessage(block.Input),
			})
		default:
			return nil, fmt.Errorf("unrecognized response block type %q", block.Type)
		}
	}
	return blocks, nil
}

func toolParam(tool helm.Tool) sdk.ToolUnionParam {
	schema := map[string]any{}
	if provider, ok := tool.(SchemaProvider); ok {
		schema = provider.InputSchema()
	}
	properties := schema["properties"]
	param := sdk.ToolParam{
		Name:        tool.Name(),
		Description: sdk.String(tool.Description()),
		InputSchema: sdk.ToolInputSchemaParam{Properties: properties},
	}
	if required, ok := schema["required"].([]string); ok {
		param.InputSchema.Required = required
	}
	return sdk.ToolUnionParam{OfTool: &param}
}

// apiError adapts SDK errors to the retry package's status-code interface.
type apiError struct {
	err        error
	statusCode int
}

func (e *apiError) Error() string   { return e.err.Error() }
func (e *apiError) Unwrap() error   { return e.err }
func (e *apiError) StatusCode() int { return e.statusCode }

func wrapAPIError(err error) error {
	var sdkErr *sdk.Error
	if errors.As(err, &sdkErr) {
		return &apiError{err: err, statusCode: sdkErr.StatusCode}
	}
	return err
}
