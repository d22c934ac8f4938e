// Package bedrock adapts the canonical conversational contract onto the AWS
// Bedrock Converse API. Bedrock Converse shares Anthropic's block-indexed
// tool_use/reasoningContent streaming shape, so this adapter mirrors
// providers/anthropic's structure closely while speaking AWS's own
// strongly-typed Converse request/response shape instead of SSE JSON.
package bedrock

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/cortexflow/llmkit/llmerr"
	"github.com/cortexflow/llmkit/message"
	"github.com/cortexflow/llmkit/provider"
	"github.com/cortexflow/llmkit/tools"
)

// ExtReasoningSignature is the Extensions key a Converse reasoningContent
// signature round-trips under. It is distinct from providers/anthropic's
// ExtThinkingSignature, so this adapter never replays a signature written by
// another adapter.
const ExtReasoningSignature = "bedrock.signature"

// RuntimeClient captures the subset of the AWS Bedrock runtime client the
// adapter uses, matching *bedrockruntime.Client so callers can pass either
// the real client or a fake in tests.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

// Client implements provider.LanguageModel against AWS Bedrock Converse.
type Client struct {
	runtime RuntimeClient
}

// New builds an adapter around an existing Bedrock-shaped runtime client.
func New(runtime RuntimeClient) (*Client, error) {
	if runtime == nil {
		return nil, llmerr.New(llmerr.MissingField, "bedrock: runtime client is required")
	}
	return &Client{runtime: runtime}, nil
}

// NewFromRuntime builds an adapter around a concrete *bedrockruntime.Client,
// the common case once the caller already has an AWS config loaded.
func NewFromRuntime(c *bedrockruntime.Client) (*Client, error) {
	return New(c)
}

type requestParts struct {
	messages   []brtypes.Message
	system     []brtypes.SystemContentBlock
	toolConfig *brtypes.ToolConfiguration
	sanToCanon map[string]string
}

// Generate issues a non-streaming Converse call.
func (c *Client) Generate(ctx context.Context, req provider.Request) (*provider.Response, error) {
	parts, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	output, err := c.runtime.Converse(ctx, c.buildConverseInput(parts, req))
	if err != nil {
		return nil, translateTransportError(err)
	}
	return translateResponse(output, parts.sanToCanon)
}

// Stream issues a streaming Converse call.
func (c *Client) Stream(ctx context.Context, req provider.Request) (provider.Streamer, error) {
	parts, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	out, err := c.runtime.ConverseStream(ctx, c.buildConverseStreamInput(parts, req))
	if err != nil {
		return nil, translateTransportError(err)
	}
	es := out.GetStream()
	if es == nil {
		return nil, llmerr.New(llmerr.ProviderError, "bedrock: stream output missing event stream")
	}
	return newStreamer(ctx, es, parts.sanToCanon), nil
}

func (c *Client) prepareRequest(req provider.Request) (*requestParts, error) {
	if req.Model == "" {
		return nil, llmerr.New(llmerr.MissingField, "bedrock: model identifier is required")
	}
	if len(req.Messages) == 0 {
		return nil, llmerr.New(llmerr.MissingField, "bedrock: at least one message is required")
	}

	toolConfig, canonToSan, sanToCanon, err := encodeTools(req.Tools, req.ToolChoice)
	if err != nil {
		return nil, err
	}

	messages, system, err := encodeMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, llmerr.New(llmerr.MissingField, "bedrock: at least one user/assistant message is required")
	}

	return &requestParts{
		messages:   messages,
		system:     system,
		toolConfig: toolConfig,
		sanToCanon: sanToCanon,
	}, nil
}

func (c *Client) buildConverseInput(parts *requestParts, req provider.Request) *bedrockruntime.ConverseInput {
	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(req.Model),
		Messages: parts.messages,
	}
	if len(parts.system) > 0 {
		input.System = parts.system
	}
	if parts.toolConfig != nil {
		input.ToolConfig = parts.toolConfig
	}
	if req.Reasoning != "" && !isNovaModel(req.Model) {
		input.AdditionalModelRequestFields = reasoningDocument(req.Reasoning, req.MaxOutputTokens)
	}
	if cfg := inferenceConfig(req); cfg != nil {
		input.InferenceConfig = cfg
	}
	return input
}

func (c *Client) buildConverseStreamInput(parts *requestParts, req provider.Request) *bedrockruntime.ConverseStreamInput {
	input := &bedrockruntime.ConverseStreamInput{
		ModelId:  aws.String(req.Model),
		Messages: parts.messages,
	}
	if len(parts.system) > 0 {
		input.System = parts.system
	}
	if parts.toolConfig != nil {
		input.ToolConfig = parts.toolConfig
	}
	// Nova's reasoning control uses a different request shape than the
	// Anthropic-family thinking block modeled here, so reasoning is left
	// unset for Nova models rather than sending a field they would reject.
	if req.Reasoning != "" && !isNovaModel(req.Model) {
		input.AdditionalModelRequestFields = reasoningDocument(req.Reasoning, req.MaxOutputTokens)
	}
	if cfg := inferenceConfig(req); cfg != nil {
		input.InferenceConfig = cfg
	}
	return input
}

// reasoningDocument maps ReasoningEffort onto Bedrock's
// additionalModelRequestFields.thinking.budget_tokens, the same field the
// teacher's adapter populates for Anthropic-family Bedrock models, using
// the same 25/50/75%-of-MaxOutputTokens split providers/anthropic applies
// directly against the Messages API.
func reasoningDocument(effort provider.ReasoningEffort, maxTokens int) document.Interface {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	var frac float64
	switch effort {
	case provider.ReasoningEffortLow:
		frac = 0.25
	case provider.ReasoningEffortHigh:
		frac = 0.75
	default:
		frac = 0.5
	}
	budget := int(float64(maxTokens) * frac)
	if budget < 1024 {
		budget = 1024
	}
	fields := map[string]any{
		"thinking": map[string]any{
			"type":          "enabled",
			"budget_tokens": budget,
		},
	}
	return toDocument(fields)
}

func inferenceConfig(req provider.Request) *brtypes.InferenceConfiguration {
	var cfg brtypes.InferenceConfiguration
	if req.MaxOutputTokens > 0 {
		cfg.MaxTokens = aws.Int32(int32(req.MaxOutputTokens))
	}
	if req.Temperature > 0 {
		cfg.Temperature = aws.Float32(float32(req.Temperature) / 100)
	}
	if req.TopP > 0 {
		cfg.TopP = aws.Float32(float32(req.TopP) / 100)
	}
	if len(req.StopSequences) > 0 {
		cfg.StopSequences = req.StopSequences
	}
	if cfg.MaxTokens == nil && cfg.Temperature == nil && cfg.TopP == nil && len(cfg.StopSequences) == 0 {
		return nil
	}
	return &cfg
}

func encodeMessages(msgs []message.Message) ([]brtypes.Message, []brtypes.SystemContentBlock, error) {
	var conversation []brtypes.Message
	var system []brtypes.SystemContentBlock

	for _, m := range msgs {
		switch m.Role {
		case message.RoleSystem, message.RoleDeveloper:
			if m.Text != "" {
				system = append(system, &brtypes.SystemContentBlockMemberText{Value: m.Text})
			}
		case message.RoleUser:
			conversation = append(conversation, brtypes.Message{
				Role:    brtypes.ConversationRoleUser,
				Content: encodeUserBlocks(m),
			})
		case message.RoleAssistant:
			block, err := encodeAssistantBlock(m.Content)
			if err != nil {
				return nil, nil, err
			}
			if block == nil {
				continue
			}
			conversation = append(conversation, brtypes.Message{
				Role:    brtypes.ConversationRoleAssistant,
				Content: []brtypes.ContentBlock{block},
			})
		case message.RoleTool:
			conversation = append(conversation, brtypes.Message{
				Role:    brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{encodeToolResult(m.Tool, m.Output)},
			})
		}
	}
	return conversation, system, nil
}

func encodeUserBlocks(m message.Message) []brtypes.ContentBlock {
	var blocks []brtypes.ContentBlock
	if m.Text != "" {
		blocks = append(blocks, &brtypes.ContentBlockMemberText{Value: m.Text})
	}
	for _, b := range m.Blocks {
		switch v := b.(type) {
		case message.ImageRef:
			blocks = append(blocks, &brtypes.ContentBlockMemberImage{Value: brtypes.ImageBlock{
				Format: brtypes.ImageFormat(imageFormatSuffix(v.Format)),
				Source: &brtypes.ImageSourceMemberBytes{Value: v.Bytes},
			}})
		case message.FileRef:
			blocks = append(blocks, &brtypes.ContentBlockMemberDocument{Value: brtypes.DocumentBlock{
				Name:   aws.String(v.Name),
				Format: brtypes.DocumentFormat(documentFormatSuffix(v.Format)),
				Source: &brtypes.DocumentSourceMemberBytes{Value: v.Bytes},
			}})
		case message.ToolResultBlock:
			blocks = append(blocks, encodeToolResult(v.Tool, v.Output))
		}
	}
	if len(blocks) == 0 {
		blocks = append(blocks, &brtypes.ContentBlockMemberText{Value: ""})
	}
	return blocks
}

func encodeToolResult(ref message.ToolRef, out message.ToolOutput) brtypes.ContentBlock {
	tr := brtypes.ToolResultBlock{ToolUseId: aws.String(ref.ID)}
	if out.IsError() {
		tr.Content = []brtypes.ToolResultContentBlock{&brtypes.ToolResultContentBlockMemberText{Value: out.Err}}
		tr.Status = brtypes.ToolResultStatusError
	} else {
		tr.Content = []brtypes.ToolResultContentBlock{&brtypes.ToolResultContentBlockMemberJson{Value: toolInputToDocument(out.Value)}}
	}
	return &brtypes.ContentBlockMemberToolResult{Value: tr}
}

func encodeAssistantBlock(c message.Content) (brtypes.ContentBlock, error) {
	switch v := c.(type) {
	case message.Text:
		if v.Value == "" {
			return nil, nil
		}
		return &brtypes.ContentBlockMemberText{Value: v.Value}, nil
	case message.Reasoning:
		sig, _ := v.Extensions.Get(ExtReasoningSignature)
		sigStr, _ := sig.(string)
		if v.Content == "" || sigStr == "" {
			return nil, nil
		}
		return &brtypes.ContentBlockMemberReasoningContent{
			Value: &brtypes.ReasoningContentBlockMemberReasoningText{
				Value: brtypes.ReasoningTextBlock{
					Text:      aws.String(v.Content),
					Signature: aws.String(sigStr),
				},
			},
		}, nil
	case message.ToolCall:
		// Re-sanitizing here (rather than looking up canonToSan) keeps this
		// function pure; it produces the identical sanitized form encodeTools
		// already computed for the same canonical name.
		tb := brtypes.ToolUseBlock{
			ToolUseId: aws.String(v.ID),
			Name:      aws.String(sanitizeToolName(v.Name)),
			Input:     toolInputToDocument(v.Input),
		}
		return &brtypes.ContentBlockMemberToolUse{Value: tb}, nil
	case message.NotSupported:
		return nil, nil
	default:
		return nil, nil
	}
}

func encodeTools(defs []tools.Tool, choice *provider.ToolChoice) (*brtypes.ToolConfiguration, map[string]string, map[string]string, error) {
	if len(defs) == 0 {
		if choice == nil || choice.Mode == provider.ToolChoiceNone {
			return nil, nil, nil, nil
		}
		return nil, nil, nil, llmerr.New(llmerr.InvalidInput, "bedrock: tool choice is set but no tools are defined")
	}

	toolList := make([]brtypes.Tool, 0, len(defs))
	canonToSan := make(map[string]string, len(defs))
	sanToCanon := make(map[string]string, len(defs))
	for _, def := range defs {
		sanitized := sanitizeToolName(def.Name)
		if prev, ok := sanToCanon[sanitized]; ok && prev != def.Name {
			return nil, nil, nil, llmerr.Newf(llmerr.InvalidInput, "bedrock: tool name %q sanitizes to %q which collides with %q", def.Name, sanitized, prev)
		}
		sanToCanon[sanitized] = def.Name
		canonToSan[def.Name] = sanitized

		schema, err := provider.NormalizeSchema(def.InputSchema)
		if err != nil {
			return nil, nil, nil, llmerr.Wrap(llmerr.InvalidInput, fmt.Sprintf("bedrock: tool %q schema", def.Name), err)
		}
		toolList = append(toolList, &brtypes.ToolMemberToolSpec{Value: brtypes.ToolSpecification{
			Name:        aws.String(sanitized),
			Description: aws.String(def.Description),
			InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: toDocument(schema)},
		}})
	}

	cfg := &brtypes.ToolConfiguration{Tools: toolList}
	if choice == nil {
		return cfg, canonToSan, sanToCanon, nil
	}
	switch choice.Mode {
	case "", provider.ToolChoiceAuto, provider.ToolChoiceNone:
	case provider.ToolChoiceAny:
		cfg.ToolChoice = &brtypes.ToolChoiceMemberAny{Value: brtypes.AnyToolChoice{}}
	case provider.ToolChoiceTool:
		sanitized, ok := canonToSan[choice.Name]
		if !ok {
			return nil, nil, nil, llmerr.Newf(llmerr.InvalidInput, "bedrock: tool choice name %q does not match any tool", choice.Name)
		}
		cfg.ToolChoice = &brtypes.ToolChoiceMemberTool{Value: brtypes.SpecificToolChoice{Name: aws.String(sanitized)}}
	default:
		return nil, nil, nil, llmerr.Newf(llmerr.InvalidInput, "bedrock: unsupported tool choice mode %q", choice.Mode)
	}
	return cfg, canonToSan, sanToCanon, nil
}

func translateResponse(output *bedrockruntime.ConverseOutput, nameMap map[string]string) (*provider.Response, error) {
	if output == nil {
		return nil, llmerr.New(llmerr.ProviderError, "bedrock: response is nil")
	}
	resp := &provider.Response{StopReason: string(output.StopReason)}

	if msg, ok := output.Output.(*brtypes.ConverseOutputMemberMessage); ok {
		for _, block := range msg.Value.Content {
			switch v := block.(type) {
			case *brtypes.ContentBlockMemberText:
				if v.Value != "" {
					resp.Contents = append(resp.Contents, message.Text{Value: v.Value})
				}
			case *brtypes.ContentBlockMemberReasoningContent:
				if rt, ok := v.Value.(*brtypes.ReasoningContentBlockMemberReasoningText); ok {
					ext := message.Extensions{}
					if rt.Value.Signature != nil {
						ext = ext.With(ExtReasoningSignature, *rt.Value.Signature)
					}
					text := ""
					if rt.Value.Text != nil {
						text = *rt.Value.Text
					}
					resp.Contents = append(resp.Contents, message.Reasoning{Content: text, Extensions: ext})
				}
			case *brtypes.ContentBlockMemberToolUse:
				name := ""
				if v.Value.Name != nil {
					if canonical, ok := nameMap[*v.Value.Name]; ok {
						name = canonical
					} else {
						name = *v.Value.Name
					}
				}
				var id string
				if v.Value.ToolUseId != nil {
					id = *v.Value.ToolUseId
				}
				resp.Contents = append(resp.Contents, message.ToolCall{
					ID:    id,
					Name:  name,
					Input: decodeDocument(v.Value.Input),
				})
			}
		}
	}

	if u := output.Usage; u != nil {
		resp.HasUsage = true
		resp.Usage = message.Usage{
			InputTokens:  int(ptrInt32(u.InputTokens)),
			OutputTokens: int(ptrInt32(u.OutputTokens)),
			CachedTokens: int(ptrInt32(u.CacheReadInputTokens)),
		}
	}
	return resp, nil
}

func ptrInt32(p *int32) int32 {
	if p == nil {
		return 0
	}
	return *p
}

func imageFormatSuffix(mime string) string {
	switch mime {
	case "image/jpeg":
		return "jpeg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	default:
		return "png"
	}
}

func documentFormatSuffix(mime string) string {
	switch mime {
	case "application/pdf":
		return "pdf"
	case "text/csv":
		return "csv"
	case "text/plain":
		return "txt"
	default:
		return "txt"
	}
}
