// Package openaichat adapts the canonical conversational contract onto the
// OpenAI Chat Completions API via github.com/openai/openai-go, the lowest
// common denominator dialect shared, unchanged, by dozens of
// "OpenAI-compatible" back-ends (see CompatibleProviders).
package openaichat

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"

	"github.com/cortexflow/llmkit/llmerr"
	"github.com/cortexflow/llmkit/message"
	"github.com/cortexflow/llmkit/provider"
	"github.com/cortexflow/llmkit/tools"
)

// ChatClient captures the subset of the OpenAI SDK client the adapter uses,
// so tests can substitute a fake in place of *openai.Client's
// Chat.Completions service.
type ChatClient interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
	NewStreaming(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) *ssestream.Stream[openai.ChatCompletionChunk]
}

// EmbeddingsClient captures the subset of the SDK used for the embedding
// sibling (component H).
type EmbeddingsClient interface {
	New(ctx context.Context, body openai.EmbeddingNewParams, opts ...option.RequestOption) (*openai.CreateEmbeddingResponse, error)
}

// Client implements provider.LanguageModel and provider.EmbeddingModel on top
// of OpenAI Chat Completions. Constructing it with a base URL and API key
// (NewWithBaseURL, or NewCompatible for a CompatibleProviders entry) lets
// the same adapter drive any of the dozens of OpenAI-compatible
// back-ends that differ only by base URL and API-key environment variable.
type Client struct {
	chat   ChatClient
	embed  EmbeddingsClient

	// IncludeUsageDuringStreaming opts in to sending stream_options with
	// include_usage on streaming calls. It defaults to false because some
	// OpenAI-compatible back-ends reject the unknown field; see DESIGN.md
	// for this adapter's streaming usage tradeoff.
	IncludeUsageDuringStreaming bool
}

// New builds an adapter around an existing OpenAI-shaped client.
func New(chat ChatClient, embed EmbeddingsClient) (*Client, error) {
	if chat == nil {
		return nil, llmerr.New(llmerr.MissingField, "openaichat: chat completions client is required")
	}
	return &Client{chat: chat, embed: embed}, nil
}

// NewFromAPIKey constructs a client using the default OpenAI HTTP transport,
// reading OPENAI_API_KEY when apiKey is empty and talking to api.openai.com.
func NewFromAPIKey(apiKey string) (*Client, error) {
	return NewWithBaseURL(apiKey, "")
}

// NewWithBaseURL constructs a client against a custom base URL, the shape
// every OpenAI-compatible back-end (Groq, DeepSeek, Together, OpenRouter,
// Vercel AI Gateway, xAI, Fireworks, ...) needs; see CompatibleProviders for
// a static registry of well-known ones.
func NewWithBaseURL(apiKey, baseURL string) (*Client, error) {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	sc := openai.NewClient(opts...)
	return New(chatClientAdapter{&sc.Chat.Completions}, &sc.Embeddings)
}

// NewCompatible constructs a Client targeting one of the well-known
// OpenAI-compatible back-ends in CompatibleProviders by name, reading the
// API key from that provider's conventional environment variable when
// apiKey is empty.
func NewCompatible(providerName, apiKey string) (*Client, error) {
	entry, ok := CompatibleProviders[providerName]
	if !ok {
		return nil, llmerr.Newf(llmerr.InvalidInput, "openaichat: unknown compatible provider %q", providerName)
	}
	if apiKey == "" && entry.APIKeyEnv != "" {
		apiKey = os.Getenv(entry.APIKeyEnv)
	}
	return NewWithBaseURL(apiKey, entry.BaseURL)
}

// Generate issues a non-streaming Chat Completions call.
func (c *Client) Generate(ctx context.Context, req provider.Request) (*provider.Response, error) {
	params, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	resp, err := c.chat.New(ctx, *params)
	if err != nil {
		return nil, translateTransportError(err)
	}
	return translateResponse(resp)
}

// Stream issues a streaming Chat Completions call and returns an adapter
// that reassembles per-tool-call-index delta fragments into
// canonical content.
func (c *Client) Stream(ctx context.Context, req provider.Request) (provider.Streamer, error) {
	params, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	if c.IncludeUsageDuringStreaming {
		params.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}
	}
	raw := c.chat.NewStreaming(ctx, *params)
	return newStreamer(ctx, raw), nil
}

func (c *Client) prepareRequest(req provider.Request) (*openai.ChatCompletionNewParams, error) {
	if req.Model == "" {
		return nil, llmerr.New(llmerr.MissingField, "openaichat: model identifier is required")
	}
	if len(req.Messages) == 0 {
		return nil, llmerr.New(llmerr.MissingField, "openaichat: at least one message is required")
	}

	msgs, err := encodeMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: msgs,
	}
	if req.MaxOutputTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxOutputTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(float64(req.Temperature) / 100)
	}
	if req.TopP > 0 {
		params.TopP = openai.Float(float64(req.TopP) / 100)
	}
	if len(req.StopSequences) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: req.StopSequences}
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

func encodeMessages(msgs []message.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case message.RoleSystem:
			out = append(out, openai.SystemMessage(m.Text))
		case message.RoleDeveloper:
			// Chat Completions has no developer role distinct from system;
			// inline it as the spec's fallback rule requires.
			out = append(out, openai.SystemMessage(m.Text))
		case message.RoleUser:
			out = append(out, encodeUserMessage(m))
		case message.RoleAssistant:
			msg, err := encodeAssistantMessage(m.Content)
			if err != nil {
				return nil, err
			}
			out = append(out, msg)
		case message.RoleTool:
			content := string(m.Output.Value)
			if m.Output.IsError() {
				content = m.Output.Err
			}
			out = append(out, openai.ToolMessage(content, m.Tool.ID))
		}
	}
	return out, nil
}

func encodeUserMessage(m message.Message) openai.ChatCompletionMessageParamUnion {
	if len(m.Blocks) == 0 {
		return openai.UserMessage(m.Text)
	}
	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(m.Blocks)+1)
	if m.Text != "" {
		parts = append(parts, openai.TextContentPart(m.Text))
	}
	for _, b := range m.Blocks {
		switch v := b.(type) {
		case message.ImageRef:
			url := fmt.Sprintf("data:%s;base64,%s", v.Format, base64Encode(v.Bytes))
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: url}))
		case message.FileRef:
			parts = append(parts, openai.TextContentPart(fmt.Sprintf("[attached file %q omitted: Chat Completions has no generic file part]", v.Name)))
		case message.ToolResultBlock:
			// Chat Completions threads tool results as standalone Tool
			// messages, never inlined into a user message; the loop never
			// produces this combination for this adapter, but degrade
			// gracefully rather than drop silently.
			content := string(v.Output.Value)
			if v.Output.IsError() {
				content = v.Output.Err
			}
			parts = append(parts, openai.TextContentPart(fmt.Sprintf("[tool %s result: %s]", v.Tool.Name, content)))
		}
	}
	return openai.UserMessage(parts)
}

func encodeAssistantMessage(c message.Content) (openai.ChatCompletionMessageParamUnion, error) {
	switch v := c.(type) {
	case message.Text:
		return openai.AssistantMessage(v.Value), nil
	case message.Reasoning:
		// Chat Completions has no reasoning block; some compatible back-ends
		// (DeepSeek-R1 style) echo it back as plain assistant text instead.
		return openai.AssistantMessage(v.Content), nil
	case message.ToolCall:
		var args string
		if len(v.Input) == 0 {
			args = "{}"
		} else {
			args = string(v.Input)
		}
		return openai.ChatCompletionMessageParamUnion{
			OfAssistant: &openai.ChatCompletionAssistantMessageParam{
				ToolCalls: []openai.ChatCompletionMessageToolCallParam{{
					ID: v.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      v.Name,
						Arguments: args,
					},
				}},
			},
		}, nil
	case message.NotSupported:
		return openai.AssistantMessage(""), nil
	default:
		return openai.AssistantMessage(""), nil
	}
}

func encodeTools(defs []tools.Tool) ([]openai.ChatCompletionToolUnionParam, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(defs))
	for _, def := range defs {
		schema, err := provider.NormalizeSchema(def.InputSchema)
		if err != nil {
			return nil, llmerr.Wrap(llmerr.InvalidInput, fmt.Sprintf("openaichat: tool %q schema", def.Name), err)
		}
		provider.RequireObjectShape(schema)
		out = append(out, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        def.Name,
			Description: openai.String(def.Description),
			Parameters:  schema,
		}))
	}
	return out, nil
}

func encodeToolChoice(tc provider.ToolChoice) (openai.ChatCompletionToolChoiceOptionUnionParam, error) {
	switch tc.Mode {
	case "", provider.ToolChoiceAuto:
		return openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("auto")}, nil
	case provider.ToolChoiceNone:
		return openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("none")}, nil
	case provider.ToolChoiceAny:
		return openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("required")}, nil
	case provider.ToolChoiceTool:
		return openai.ChatCompletionToolChoiceOptionUnionParam{
			OfChatCompletionNamedToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
				Function: openai.ChatCompletionNamedToolChoiceFunctionParam{Name: tc.Name},
			},
		}, nil
	default:
		return openai.ChatCompletionToolChoiceOptionUnionParam{}, llmerr.Newf(llmerr.InvalidInput, "openaichat: unsupported tool choice mode %q", tc.Mode)
	}
}

func translateResponse(resp *openai.ChatCompletion) (*provider.Response, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, llmerr.New(llmerr.ProviderError, "openaichat: response has no choices")
	}
	choice := resp.Choices[0]
	out := &provider.Response{StopReason: string(choice.FinishReason)}

	if choice.Message.Content != "" {
		out.Contents = append(out.Contents, message.Text{Value: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		out.Contents = append(out.Contents, message.ToolCall{
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: json.RawMessage(tc.Function.Arguments),
		})
	}

	if resp.Usage.TotalTokens != 0 {
		out.HasUsage = true
		out.Usage = message.Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
			CachedTokens: int(resp.Usage.PromptTokensDetails.CachedTokens),
		}
	}
	return out, nil
}

func translateTransportError(err error) error {
	if err == nil {
		return nil
	}
	return llmerr.Wrap(llmerr.ApiError, "openai chat completions call failed", err)
}

// chatClientAdapter narrows *openai.ChatCompletionService down to ChatClient,
// wrapping NewStreaming's *ssestream.Stream return value behind this
// package's own adapter type so tests can substitute a fake without
// depending on the SDK's concrete stream type.
type chatClientAdapter struct {
	svc *openai.ChatCompletionService
}

func (a chatClientAdapter) New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	return a.svc.New(ctx, body, opts...)
}

func (a chatClientAdapter) NewStreaming(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) *ssestream.Stream[openai.ChatCompletionChunk] {
	return a.svc.NewStreaming(ctx, body, opts...)
}
