// Package gemini adapts the canonical conversational contract onto Google's
// GenerateContent API via google.golang.org/genai.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"os"

	"google.golang.org/genai"

	"github.com/cortexflow/llmkit/llmerr"
	"github.com/cortexflow/llmkit/message"
	"github.com/cortexflow/llmkit/provider"
	"github.com/cortexflow/llmkit/tools"
)

// ExtThoughtSignature is the Extensions key a Gemini 3 thought signature
// round-trips under, mirroring providers/anthropic.ExtThinkingSignature.
const ExtThoughtSignature = "thought_signature"

// ModelsClient captures the subset of the genai SDK the adapter calls,
// letting tests substitute a fake.
type ModelsClient interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Client implements provider.LanguageModel and provider.EmbeddingModel
// against Gemini's GenerateContent dialect.
type Client struct {
	models ModelsClient
}

// New builds an adapter around an existing genai-shaped client.
func New(models ModelsClient) (*Client, error) {
	if models == nil {
		return nil, llmerr.New(llmerr.MissingField, "gemini: models client is required")
	}
	return &Client{models: models}, nil
}

// NewFromAPIKey constructs a client against the public Gemini API, reading
// GOOGLE_API_KEY (or GEMINI_API_KEY) when apiKey is empty.
func NewFromAPIKey(ctx context.Context, apiKey string) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, llmerr.Wrap(llmerr.ApiError, "gemini: client construction failed", err)
	}
	return New(c.Models)
}

// Generate issues a non-streaming GenerateContent call.
func (c *Client) Generate(ctx context.Context, req provider.Request) (*provider.Response, error) {
	contents, cfg, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	resp, err := c.models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return nil, translateTransportError(err)
	}
	return translateResponse(resp)
}

// Stream issues a streaming GenerateContent call. The streamer treats the
// parts of each streamed chunk as new fragments and appends them to the
// stream.Reassembler block at the same part position; it does not diff a
// chunk against the chunks before it.
func (c *Client) Stream(ctx context.Context, req provider.Request) (provider.Streamer, error) {
	contents, cfg, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	seq := c.models.GenerateContentStream(ctx, req.Model, contents, cfg)
	return newStreamer(ctx, seq), nil
}

func (c *Client) prepareRequest(req provider.Request) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	if req.Model == "" {
		return nil, nil, llmerr.New(llmerr.MissingField, "gemini: model identifier is required")
	}
	if len(req.Messages) == 0 {
		return nil, nil, llmerr.New(llmerr.MissingField, "gemini: at least one message is required")
	}

	cfg := &genai.GenerateContentConfig{}
	var contents []*genai.Content
	var systemParts []*genai.Part

	for _, m := range req.Messages {
		switch m.Role {
		case message.RoleSystem, message.RoleDeveloper:
			systemParts = append(systemParts, genai.NewPartFromText(m.Text))
		case message.RoleUser:
			contents = append(contents, encodeUserContent(m))
		case message.RoleAssistant:
			c, err := encodeAssistantContent(m.Content)
			if err != nil {
				return nil, nil, err
			}
			contents = append(contents, c)
		case message.RoleTool:
			contents = append(contents, encodeToolContent(m))
		}
	}
	if len(systemParts) > 0 {
		cfg.SystemInstruction = &genai.Content{Parts: systemParts}
	}

	if req.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxOutputTokens)
	}
	if req.Temperature > 0 {
		t := float32(req.Temperature) / 100
		cfg.Temperature = &t
	}
	if req.TopP > 0 {
		p := float32(req.TopP) / 100
		cfg.TopP = &p
	}
	if req.TopK > 0 {
		k := float32(req.TopK)
		cfg.TopK = &k
	}
	if len(req.StopSequences) > 0 {
		cfg.StopSequences = req.StopSequences
	}
	if req.Reasoning != "" {
		cfg.ThinkingConfig = thinkingConfig(req.Reasoning, req.MaxOutputTokens)
	}

	toolDecls, err := encodeTools(req.Tools)
	if err != nil {
		return nil, nil, err
	}
	if len(toolDecls) > 0 {
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: toolDecls}}
	}
	if req.ToolChoice != nil {
		tc, err := encodeToolChoice(*req.ToolChoice)
		if err != nil {
			return nil, nil, err
		}
		cfg.ToolConfig = tc
	}

	return contents, cfg, nil
}

// thinkingConfig maps the coarse ReasoningEffort scale onto a thinking
// budget proportional to MaxOutputTokens, the same 25/50/75% split
// providers/anthropic uses, since Gemini's budget is likewise expressed in
// output tokens.
func thinkingConfig(effort provider.ReasoningEffort, maxTokens int) *genai.ThinkingConfig {
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
	budget := int32(float64(maxTokens) * frac)
	return &genai.ThinkingConfig{IncludeThoughts: true, ThinkingBudget: &budget}
}

func encodeUserContent(m message.Message) *genai.Content {
	var parts []*genai.Part
	if m.Text != "" {
		parts = append(parts, genai.NewPartFromText(m.Text))
	}
	for _, b := range m.Blocks {
		switch v := b.(type) {
		case message.ImageRef:
			parts = append(parts, genai.NewPartFromBytes(v.Bytes, v.Format))
		case message.FileRef:
			parts = append(parts, &genai.Part{FileData: &genai.FileData{MIMEType: v.Format, FileURI: v.Name}})
		case message.ToolResultBlock:
			parts = append(parts, encodeFunctionResponse(v.Tool, v.Output))
		}
	}
	if len(parts) == 0 {
		parts = append(parts, genai.NewPartFromText(""))
	}
	return &genai.Content{Role: "user", Parts: parts}
}

func encodeToolContent(m message.Message) *genai.Content {
	return &genai.Content{Role: "user", Parts: []*genai.Part{encodeFunctionResponse(m.Tool, m.Output)}}
}

func encodeFunctionResponse(ref message.ToolRef, out message.ToolOutput) *genai.Part {
	var payload map[string]any
	if out.IsError() {
		payload = map[string]any{"error": out.Err}
	} else {
		payload = map[string]any{"result": json.RawMessage(out.Value)}
	}
	return &genai.Part{FunctionResponse: &genai.FunctionResponse{ID: ref.ID, Name: ref.Name, Response: payload}}
}

func encodeAssistantContent(c message.Content) (*genai.Content, error) {
	switch v := c.(type) {
	case message.Text:
		return &genai.Content{Role: "model", Parts: []*genai.Part{genai.NewPartFromText(v.Value)}}, nil
	case message.Reasoning:
		part := genai.NewPartFromText(v.Content)
		part.Thought = true
		if sig, ok := v.Extensions.Get(ExtThoughtSignature); ok {
			if b, ok := sig.([]byte); ok {
				part.ThoughtSignature = b
			}
		}
		return &genai.Content{Role: "model", Parts: []*genai.Part{part}}, nil
	case message.ToolCall:
		var args map[string]any
		if len(v.Input) > 0 {
			if err := json.Unmarshal(v.Input, &args); err != nil {
				return nil, llmerr.Wrap(llmerr.InvalidInput, "gemini: tool call arguments are not a JSON object", err)
			}
		}
		part := &genai.Part{FunctionCall: &genai.FunctionCall{ID: v.ID, Name: v.Name, Args: args}}
		if sig, ok := v.Extensions.Get(ExtThoughtSignature); ok {
			if b, ok := sig.([]byte); ok {
				part.ThoughtSignature = b
			}
		}
		return &genai.Content{Role: "model", Parts: []*genai.Part{part}}, nil
	case message.NotSupported:
		return &genai.Content{Role: "model", Parts: []*genai.Part{genai.NewPartFromText("")}}, nil
	default:
		return &genai.Content{Role: "model", Parts: []*genai.Part{genai.NewPartFromText("")}}, nil
	}
}

func encodeTools(defs []tools.Tool) ([]*genai.FunctionDeclaration, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	out := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, def := range defs {
		schema, err := provider.NormalizeSchema(def.InputSchema)
		if err != nil {
			return nil, llmerr.Wrap(llmerr.InvalidInput, fmt.Sprintf("gemini: tool %q schema", def.Name), err)
		}
		provider.StripSchemaKeyword(schema)
		gs, err := jsonSchemaToGenai(schema)
		if err != nil {
			return nil, llmerr.Wrap(llmerr.InvalidInput, fmt.Sprintf("gemini: tool %q schema conversion", def.Name), err)
		}
		out = append(out, &genai.FunctionDeclaration{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  gs,
		})
	}
	return out, nil
}

func encodeToolChoice(tc provider.ToolChoice) (*genai.ToolConfig, error) {
	switch tc.Mode {
	case "", provider.ToolChoiceAuto:
		return &genai.ToolConfig{FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeAuto}}, nil
	case provider.ToolChoiceNone:
		return &genai.ToolConfig{FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeNone}}, nil
	case provider.ToolChoiceAny:
		return &genai.ToolConfig{FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeAny}}, nil
	case provider.ToolChoiceTool:
		return &genai.ToolConfig{FunctionCallingConfig: &genai.FunctionCallingConfig{
			Mode:                 genai.FunctionCallingConfigModeAny,
			AllowedFunctionNames: []string{tc.Name},
		}}, nil
	default:
		return nil, llmerr.Newf(llmerr.InvalidInput, "gemini: unsupported tool choice mode %q", tc.Mode)
	}
}

func translateResponse(resp *genai.GenerateContentResponse) (*provider.Response, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, llmerr.New(llmerr.ProviderError, "gemini: response has no candidates")
	}
	cand := resp.Candidates[0]
	out := &provider.Response{StopReason: string(cand.FinishReason)}
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			out.Contents = append(out.Contents, translatePart(part))
		}
	}
	if resp.UsageMetadata != nil {
		out.HasUsage = true
		out.Usage = message.Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			CachedTokens: int(resp.UsageMetadata.CachedContentTokenCount),
		}
	}
	return out, nil
}

func translatePart(part *genai.Part) message.Content {
	switch {
	case part.FunctionCall != nil:
		args, _ := json.Marshal(part.FunctionCall.Args)
		var ext message.Extensions
		if len(part.ThoughtSignature) > 0 {
			ext = message.Extensions{ExtThoughtSignature: part.ThoughtSignature}
		}
		return message.ToolCall{ID: part.FunctionCall.ID, Name: part.FunctionCall.Name, Input: args, Extensions: ext}
	case part.Thought:
		ext := message.Extensions{}
		if len(part.ThoughtSignature) > 0 {
			ext = ext.With(ExtThoughtSignature, part.ThoughtSignature)
		}
		return message.Reasoning{Content: part.Text, Extensions: ext}
	case part.Text != "":
		return message.Text{Value: part.Text}
	default:
		return message.NotSupported{Raw: "gemini: unrecognized part shape"}
	}
}

func translateTransportError(err error) error {
	if err == nil {
		return nil
	}
	return llmerr.Wrap(llmerr.ApiError, "gemini generate content call failed", err)
}
