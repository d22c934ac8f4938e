// Package openairesponses adapts the canonical conversational contract onto
// OpenAI's Responses API (github.com/openai/openai-go/responses), the
// typed-"items" dialect that superseded Chat Completions for reasoning
// models and structured tool use.
package openairesponses

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"

	"github.com/cortexflow/llmkit/llmerr"
	"github.com/cortexflow/llmkit/message"
	"github.com/cortexflow/llmkit/provider"
	"github.com/cortexflow/llmkit/tools"
)

// ResponsesClient captures the subset of the SDK the adapter uses, so tests
// can substitute a fake in place of *openai.Client's Responses service.
type ResponsesClient interface {
	New(ctx context.Context, body responses.ResponseNewParams, opts ...option.RequestOption) (*responses.Response, error)
	NewStreaming(ctx context.Context, body responses.ResponseNewParams, opts ...option.RequestOption) *responseStream
}

// Client implements provider.LanguageModel against the Responses API.
type Client struct {
	resp ResponsesClient
}

// New builds an adapter around an existing Responses-shaped client.
func New(resp ResponsesClient) (*Client, error) {
	if resp == nil {
		return nil, llmerr.New(llmerr.MissingField, "openairesponses: responses client is required")
	}
	return &Client{resp: resp}, nil
}

// NewFromAPIKey constructs a client using the default OpenAI HTTP transport,
// reading OPENAI_API_KEY when apiKey is empty.
func NewFromAPIKey(apiKey string) (*Client, error) {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	sc := openai.NewClient(opts...)
	return New(responsesClientAdapter{&sc.Responses})
}

// Generate issues a non-streaming Responses call.
func (c *Client) Generate(ctx context.Context, req provider.Request) (*provider.Response, error) {
	params, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	resp, err := c.resp.New(ctx, *params)
	if err != nil {
		return nil, translateTransportError(err)
	}
	return translateResponse(resp)
}

// Stream issues a streaming Responses call.
func (c *Client) Stream(ctx context.Context, req provider.Request) (provider.Streamer, error) {
	params, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	raw := c.resp.NewStreaming(ctx, *params)
	return newStreamer(ctx, raw), nil
}

func (c *Client) prepareRequest(req provider.Request) (*responses.ResponseNewParams, error) {
	if req.Model == "" {
		return nil, llmerr.New(llmerr.MissingField, "openairesponses: model identifier is required")
	}
	if len(req.Messages) == 0 {
		return nil, llmerr.New(llmerr.MissingField, "openairesponses: at least one message is required")
	}

	items, instructions, err := encodeItems(req.Messages)
	if err != nil {
		return nil, err
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(req.Model),
		Input: responses.ResponseNewParamsInputUnion{OfInputItemList: items},
	}
	if instructions != "" {
		params.Instructions = param.NewOpt(instructions)
	}
	if req.MaxOutputTokens > 0 {
		params.MaxOutputTokens = param.NewOpt(int64(req.MaxOutputTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = param.NewOpt(float64(req.Temperature) / 100)
	}
	if req.TopP > 0 {
		params.TopP = param.NewOpt(float64(req.TopP) / 100)
	}
	if len(req.StopSequences) > 0 {
		// The Responses API has no direct stop-sequence parameter; degrade by
		// dropping it rather than failing the request, since no field exists
		// to carry it faithfully.
		_ = req.StopSequences
	}
	if req.Reasoning != "" {
		params.Reasoning = shared.ReasoningParam{Effort: shared.ReasoningEffort(req.Reasoning)}
	}

	toolList, err := encodeTools(req.Tools)
	if err != nil {
		return nil, err
	}
	if len(toolList) > 0 {
		params.Tools = toolList
	}
	if req.ToolChoice != nil {
		tc, err := encodeToolChoice(*req.ToolChoice)
		if err != nil {
			return nil, err
		}
		params.ToolChoice = tc
	}

	return &params, nil
}

// encodeItems maps canonical messages onto the Responses API's typed input
// item list. A single leading System message is pulled out as the top-level
// Instructions field rather than an input item, matching the API's own
// convention; any later System/Developer message is inlined as a developer
// message item since Instructions accepts only one value.
func encodeItems(msgs []message.Message) ([]responses.ResponseInputItemUnionParam, string, error) {
	var instructions string
	var items []responses.ResponseInputItemUnionParam
	usedInstructions := false

	for _, m := range msgs {
		switch m.Role {
		case message.RoleSystem:
			if !usedInstructions {
				instructions = m.Text
				usedInstructions = true
				continue
			}
			items = append(items, responses.ResponseInputItemParamOfMessage(m.Text, responses.EasyInputMessageRoleDeveloper))
		case message.RoleDeveloper:
			items = append(items, responses.ResponseInputItemParamOfMessage(m.Text, responses.EasyInputMessageRoleDeveloper))
		case message.RoleUser:
			items = append(items, encodeUserItem(m))
		case message.RoleAssistant:
			item, err := encodeAssistantItem(m.Content)
			if err != nil {
				return nil, "", err
			}
			items = append(items, item)
		case message.RoleTool:
			output := string(m.Output.Value)
			if m.Output.IsError() {
				output = m.Output.Err
			}
			items = append(items, responses.ResponseInputItemParamOfFunctionCallOutput(m.Tool.ID, output))
		}
	}
	return items, instructions, nil
}

func encodeUserItem(m message.Message) responses.ResponseInputItemUnionParam {
	if len(m.Blocks) == 0 {
		return responses.ResponseInputItemParamOfMessage(m.Text, responses.EasyInputMessageRoleUser)
	}
	var parts responses.ResponseInputMessageContentListParam
	if m.Text != "" {
		parts = append(parts, responses.ResponseInputContentParamOfInputText(m.Text))
	}
	for _, b := range m.Blocks {
		switch v := b.(type) {
		case message.ImageRef:
			url := fmt.Sprintf("data:%s;base64,%s", v.Format, base64EncodeBytes(v.Bytes))
			parts = append(parts, responses.ResponseInputContentUnionParam{
				OfInputImage: &responses.ResponseInputImageParam{ImageURL: param.NewOpt(url)},
			})
		case message.FileRef:
			parts = append(parts, responses.ResponseInputContentParamOfInputText(
				fmt.Sprintf("[attached file %q omitted: no generic file content part]", v.Name)))
		case message.ToolResultBlock:
			content := string(v.Output.Value)
			if v.Output.IsError() {
				content = v.Output.Err
			}
			parts = append(parts, responses.ResponseInputContentParamOfInputText(
				fmt.Sprintf("[tool %s result: %s]", v.Tool.Name, content)))
		}
	}
	return responses.ResponseInputItemUnionParam{
		OfMessage: &responses.EasyInputMessageParam{
			Role: responses.EasyInputMessageRoleUser,
			Content: responses.EasyInputMessageContentUnionParam{
				OfInputItemContentList: parts,
			},
		},
	}
}

func encodeAssistantItem(c message.Content) (responses.ResponseInputItemUnionParam, error) {
	switch v := c.(type) {
	case message.Text:
		return responses.ResponseInputItemParamOfMessage(v.Value, responses.EasyInputMessageRoleAssistant), nil
	case message.Reasoning:
		return responses.ResponseInputItemUnionParam{
			OfReasoning: &responses.ResponseReasoningItemParam{
				Summary: []responses.ResponseReasoningItemSummaryParam{{Text: v.Content}},
			},
		}, nil
	case message.ToolCall:
		args := "{}"
		if len(v.Input) > 0 {
			args = string(v.Input)
		}
		return responses.ResponseInputItemUnionParam{
			OfFunctionCall: &responses.ResponseFunctionToolCallParam{
				CallID:    v.ID,
				Name:      v.Name,
				Arguments: args,
			},
		}, nil
	case message.NotSupported:
		return responses.ResponseInputItemParamOfMessage("", responses.EasyInputMessageRoleAssistant), nil
	default:
		return responses.ResponseInputItemParamOfMessage("", responses.EasyInputMessageRoleAssistant), nil
	}
}

func encodeTools(defs []tools.Tool) ([]responses.ToolUnionParam, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	out := make([]responses.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		schema, err := provider.NormalizeSchema(def.InputSchema)
		if err != nil {
			return nil, llmerr.Wrap(llmerr.InvalidInput, fmt.Sprintf("openairesponses: tool %q schema", def.Name), err)
		}
		provider.RequireObjectShape(schema)
		out = append(out, responses.ToolParamOfFunction(def.Name, schema, false))
	}
	return out, nil
}

func encodeToolChoice(tc provider.ToolChoice) (responses.ResponseNewParamsToolChoiceUnion, error) {
	switch tc.Mode {
	case "", provider.ToolChoiceAuto:
		return responses.ResponseNewParamsToolChoiceUnion{OfToolChoiceMode: param.NewOpt(responses.ToolChoiceOptionsAuto)}, nil
	case provider.ToolChoiceNone:
		return responses.ResponseNewParamsToolChoiceUnion{OfToolChoiceMode: param.NewOpt(responses.ToolChoiceOptionsNone)}, nil
	case provider.ToolChoiceAny:
		return responses.ResponseNewParamsToolChoiceUnion{OfToolChoiceMode: param.NewOpt(responses.ToolChoiceOptionsRequired)}, nil
	case provider.ToolChoiceTool:
		return responses.ResponseNewParamsToolChoiceUnion{
			OfFunctionTool: &responses.ToolChoiceFunctionParam{Name: tc.Name},
		}, nil
	default:
		return responses.ResponseNewParamsToolChoiceUnion{}, llmerr.Newf(llmerr.InvalidInput, "openairesponses: unsupported tool choice mode %q", tc.Mode)
	}
}

func translateResponse(resp *responses.Response) (*provider.Response, error) {
	if resp == nil {
		return nil, llmerr.New(llmerr.ProviderError, "openairesponses: nil response")
	}
	out := &provider.Response{StopReason: string(resp.Status)}

	for _, item := range resp.Output {
		switch v := item.AsAny().(type) {
		case responses.ResponseOutputMessage:
			for _, c := range v.Content {
				if t := c.OfOutputText; t != nil {
					out.Contents = append(out.Contents, message.Text{Value: t.Text})
				}
			}
		case responses.ResponseFunctionToolCall:
			out.Contents = append(out.Contents, message.ToolCall{
				ID:    v.CallID,
				Name:  v.Name,
				Input: json.RawMessage(v.Arguments),
			})
		case responses.ResponseReasoningItem:
			var text string
			if len(v.Summary) > 0 {
				text = v.Summary[0].Text
			}
			out.Contents = append(out.Contents, message.Reasoning{Content: text})
		}
	}

	if resp.Usage.TotalTokens != 0 {
		out.HasUsage = true
		out.Usage = message.Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
			CachedTokens: int(resp.Usage.InputTokensDetails.CachedTokens),
		}
	}
	return out, nil
}

func translateTransportError(err error) error {
	if err == nil {
		return nil
	}
	return llmerr.Wrap(llmerr.ApiError, "openai responses call failed", err)
}

// responsesClientAdapter narrows *openai.ResponseService down to
// ResponsesClient.
type responsesClientAdapter struct {
	svc *responses.ResponseService
}

func (a responsesClientAdapter) New(ctx context.Context, body responses.ResponseNewParams, opts ...option.RequestOption) (*responses.Response, error) {
	return a.svc.New(ctx, body, opts...)
}

func (a responsesClientAdapter) NewStreaming(ctx context.Context, body responses.ResponseNewParams, opts ...option.RequestOption) *responseStream {
	return &responseStream{raw: a.svc.NewStreaming(ctx, body, opts...)}
}
