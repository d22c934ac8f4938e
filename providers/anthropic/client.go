// Package anthropic adapts the canonical conversational contract onto the
// Anthropic Claude Messages API via github.com/anthropics/anthropic-sdk-go.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/cortexflow/llmkit/llmerr"
	"github.com/cortexflow/llmkit/message"
	"github.com/cortexflow/llmkit/provider"
	"github.com/cortexflow/llmkit/tools"
)

// MessagesClient captures the subset of the Anthropic SDK client the adapter
// uses, so tests can substitute a fake in place of *sdk.MessageService.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
	NewStreaming(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion]
}

// Client implements provider.LanguageModel on top of Anthropic Messages.
type Client struct {
	msg MessagesClient
	// MaxOutputTokens is used when a Request does not set MaxOutputTokens;
	// Anthropic requires max_tokens on every call.
	MaxOutputTokens int
}

// New builds an adapter around an existing Anthropic Messages client.
func New(msg MessagesClient, maxOutputTokens int) (*Client, error) {
	if msg == nil {
		return nil, llmerr.New(llmerr.MissingField, "anthropic messages client is required")
	}
	return &Client{msg: msg, MaxOutputTokens: maxOutputTokens}, nil
}

// NewFromAPIKey constructs a client using the default Anthropic HTTP
// transport, reading ANTHROPIC_API_KEY when apiKey is empty.
func NewFromAPIKey(apiKey string, maxOutputTokens int) (*Client, error) {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	sc := sdk.NewClient(opts...)
	return New(&sc.Messages, maxOutputTokens)
}

// Generate issues a non-streaming Messages.New call.
func (c *Client) Generate(ctx context.Context, req provider.Request) (*provider.Response, error) {
	params, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	msg, err := c.msg.New(ctx, *params)
	if err != nil {
		return nil, translateTransportError(err)
	}
	return translateResponse(msg)
}

// Stream issues a streaming Messages.NewStreaming call and returns an
// adapter that reassembles SSE events into canonical content.
func (c *Client) Stream(ctx context.Context, req provider.Request) (provider.Streamer, error) {
	params, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	s := c.msg.NewStreaming(ctx, *params)
	if err := s.Err(); err != nil {
		return nil, translateTransportError(err)
	}
	return newStreamer(ctx, s), nil
}

func (c *Client) prepareRequest(req provider.Request) (*sdk.MessageNewParams, error) {
	if req.Model == "" {
		return nil, llmerr.New(llmerr.MissingField, "anthropic: model identifier is required")
	}
	if len(req.Messages) == 0 {
		return nil, llmerr.New(llmerr.MissingField, "anthropic: at least one message is required")
	}

	msgs, system, err := encodeMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, llmerr.New(llmerr.InvalidInput, "anthropic: at least one user/assistant message is required")
	}

	maxTokens := req.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = c.MaxOutputTokens
	}
	if maxTokens <= 0 {
		return nil, llmerr.New(llmerr.MissingField, "anthropic: max_output_tokens must be positive")
	}

	params := sdk.MessageNewParams{
		MaxTokens: int64(maxTokens),
		Messages:  msgs,
		Model:     sdk.Model(req.Model),
	}
	if len(system) > 0 {
		params.System = system
	}
	if req.Temperature > 0 {
		params.Temperature = sdk.Float(float64(req.Temperature) / 100)
	}
	if req.TopP > 0 {
		params.TopP = sdk.Float(float64(req.TopP) / 100)
	}
	if req.TopK > 0 {
		params.TopK = sdk.Int(int64(req.TopK))
	}
	if len(req.StopSequences) > 0 {
		params.StopSequences = req.StopSequences
	}

	toolList, err := encodeTools(req.Tools)
	if err != nil {
		return nil, err
	}
	if len(toolList) > 0 {
		params.Tools = toolList
	}

	if req.Reasoning != "" {
		budget := reasoningBudget(req.Reasoning, maxTokens)
		if budget >= maxTokens {
			budget = maxTokens - 1
		}
		if budget < 1024 {
			return nil, llmerr.New(llmerr.InvalidInput, "anthropic: thinking budget must be >= 1024 tokens")
		}
		params.Thinking = sdk.ThinkingConfigParamOfEnabled(int64(budget))
	}

	if req.ToolChoice != nil {
		tc, err := encodeToolChoice(*req.ToolChoice, req.Tools)
		if err != nil {
			return nil, err
		}
		params.ToolChoice = tc
	}

	return &params, nil
}

// reasoningBudget maps the three coarse effort levels onto a fraction of the
// step's max_tokens ceiling, per this adapter's documented scale.
func reasoningBudget(effort provider.ReasoningEffort, maxTokens int) int {
	switch effort {
	case provider.ReasoningEffortLow:
		return maxTokens / 4
	case provider.ReasoningEffortHigh:
		return maxTokens * 3 / 4
	default:
		return maxTokens / 2
	}
}

func encodeMessages(msgs []message.Message) ([]sdk.MessageParam, []sdk.TextBlockParam, error) {
	conversation := make([]sdk.MessageParam, 0, len(msgs))
	system := make([]sdk.TextBlockParam, 0, len(msgs))

	for _, m := range msgs {
		switch m.Role {
		case message.RoleSystem, message.RoleDeveloper:
			if m.Text != "" {
				system = append(system, sdk.TextBlockParam{Text: m.Text})
			}
		case message.RoleUser:
			blocks, err := encodeUserBlocks(m)
			if err != nil {
				return nil, nil, err
			}
			if len(blocks) > 0 {
				conversation = append(conversation, sdk.NewUserMessage(blocks...))
			}
		case message.RoleAssistant:
			block, err := encodeAssistantContent(m.Content)
			if err != nil {
				return nil, nil, err
			}
			if block != nil {
				conversation = append(conversation, sdk.NewAssistantMessage(*block))
			}
		case message.RoleTool:
			// Anthropic threads tool results back as a user-role message
			// carrying a tool_result block, not as a standalone role.
			conversation = append(conversation, sdk.NewUserMessage(encodeToolResultBlock(m.Tool, m.Output)))
		}
	}
	return conversation, system, nil
}

func encodeUserBlocks(m message.Message) ([]sdk.ContentBlockParamUnion, error) {
	var blocks []sdk.ContentBlockParamUnion
	if m.Text != "" {
		blocks = append(blocks, sdk.NewTextBlock(m.Text))
	}
	for _, b := range m.Blocks {
		switch v := b.(type) {
		case message.ImageRef:
			blocks = append(blocks, sdk.NewImageBlockBase64(v.Format, base64Encode(v.Bytes)))
		case message.FileRef:
			// Anthropic has no generic file block; surface document bytes as a
			// base64 image block only when the format looks image-like, else
			// degrade to a text note so the turn is not silently dropped.
			if isImageFormat(v.Format) {
				blocks = append(blocks, sdk.NewImageBlockBase64(v.Format, base64Encode(v.Bytes)))
			} else {
				blocks = append(blocks, sdk.NewTextBlock(fmt.Sprintf("[attached file %q omitted: unsupported format]", v.Name)))
			}
		case message.ToolResultBlock:
			blocks = append(blocks, encodeToolResultBlock(v.Tool, v.Output))
		}
	}
	return blocks, nil
}

func encodeToolResultBlock(ref message.ToolRef, out message.ToolOutput) sdk.ContentBlockParamUnion {
	content := string(out.Value)
	isErr := out.IsError()
	if isErr {
		content = out.Err
	}
	return sdk.NewToolResultBlock(ref.ID, content, isErr)
}

func encodeAssistantContent(c message.Content) (*sdk.ContentBlockParamUnion, error) {
	switch v := c.(type) {
	case message.Text:
		if v.Value == "" {
			return nil, nil
		}
		b := sdk.NewTextBlock(v.Value)
		return &b, nil
	case message.ToolCall:
		var input any = map[string]any{}
		if len(v.Input) > 0 {
			if err := json.Unmarshal(v.Input, &input); err != nil {
				return nil, llmerr.Wrap(llmerr.InvalidInput, "anthropic: tool call input is not valid JSON", err)
			}
		}
		b := sdk.NewToolUseBlock(v.ID, input, v.Name)
		return &b, nil
	case message.Reasoning:
		sig, _ := v.Extensions.Get(ExtThinkingSignature)
		sigStr, _ := sig.(string)
		b := sdk.NewThinkingBlock(sigStr, v.Content)
		return &b, nil
	case message.NotSupported:
		return nil, nil
	default:
		return nil, nil
	}
}

func encodeTools(defs []tools.Tool) ([]sdk.ToolUnionParam, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	out := make([]sdk.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		schema, err := provider.NormalizeSchema(def.InputSchema)
		if err != nil {
			return nil, llmerr.Wrap(llmerr.InvalidInput, fmt.Sprintf("anthropic: tool %q schema", def.Name), err)
		}
		provider.StripSchemaKeyword(schema)
		u := sdk.ToolUnionParamOfTool(sdk.ToolInputSchemaParam{ExtraFields: schema}, def.Name)
		if u.OfTool != nil {
			u.OfTool.Description = sdk.String(def.Description)
		}
		out = append(out, u)
	}
	return out, nil
}

func encodeToolChoice(tc provider.ToolChoice, defs []tools.Tool) (sdk.ToolChoiceUnionParam, error) {
	switch tc.Mode {
	case "", provider.ToolChoiceAuto:
		return sdk.ToolChoiceUnionParam{}, nil
	case provider.ToolChoiceNone:
		none := sdk.NewToolChoiceNoneParam()
		return sdk.ToolChoiceUnionParam{OfNone: &none}, nil
	case provider.ToolChoiceAny:
		return sdk.ToolChoiceUnionParam{OfAny: &sdk.ToolChoiceAnyParam{}}, nil
	case provider.ToolChoiceTool:
		if !hasTool(defs, tc.Name) {
			return sdk.ToolChoiceUnionParam{}, llmerr.Newf(llmerr.InvalidInput, "anthropic: tool choice %q does not match any tool", tc.Name)
		}
		return sdk.ToolChoiceParamOfTool(tc.Name), nil
	default:
		return sdk.ToolChoiceUnionParam{}, llmerr.Newf(llmerr.InvalidInput, "anthropic: unsupported tool choice mode %q", tc.Mode)
	}
}

func hasTool(defs []tools.Tool, name string) bool {
	for _, d := range defs {
		if d.Name == name {
			return true
		}
	}
	return false
}

func translateResponse(msg *sdk.Message) (*provider.Response, error) {
	if msg == nil {
		return nil, llmerr.New(llmerr.ProviderError, "anthropic: response message is nil")
	}
	resp := &provider.Response{StopReason: string(msg.StopReason)}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			if block.Text == "" {
				continue
			}
			resp.Contents = append(resp.Contents, message.Text{Value: block.Text})
		case "thinking":
			resp.Contents = append(resp.Contents, message.Reasoning{
				Content:    block.Thinking,
				Extensions: message.Extensions{}.With(ExtThinkingSignature, block.Signature),
			})
		case "tool_use":
			resp.Contents = append(resp.Contents, message.ToolCall{
				ID:    block.ID,
				Name:  block.Name,
				Input: json.RawMessage(block.Input),
			})
		}
	}
	u := msg.Usage
	if u.InputTokens != 0 || u.OutputTokens != 0 || u.CacheReadInputTokens != 0 {
		resp.HasUsage = true
		resp.Usage = message.Usage{
			InputTokens:  int(u.InputTokens),
			OutputTokens: int(u.OutputTokens),
			CachedTokens: int(u.CacheReadInputTokens),
		}
	}
	return resp, nil
}

func translateTransportError(err error) error {
	if err == nil {
		return nil
	}
	return llmerr.Wrap(llmerr.ApiError, "anthropic messages call failed", err)
}
