// Package provider defines the adapter contract every wire-dialect package
// (providers/anthropic, providers/openairesponses, providers/openaichat,
// providers/gemini, providers/bedrock) implements, plus the canonical
// Request/Response types adapters translate to and from their own dialect.
package provider

import (
	"context"

	"github.com/cortexflow/llmkit/message"
	"github.com/cortexflow/llmkit/stream"
	"github.com/cortexflow/llmkit/tools"
)

// ReasoningEffort selects a coarse thinking budget understood by adapters
// that support extended reasoning. Adapters map the three levels onto their
// own provider-specific scale (Anthropic: 25/50/75% of MaxTokens).
type ReasoningEffort string

const (
	ReasoningEffortLow    ReasoningEffort = "low"
	ReasoningEffortMedium ReasoningEffort = "medium"
	ReasoningEffortHigh   ReasoningEffort = "high"
)

// ToolChoiceMode controls how the model is steered toward using tools.
type ToolChoiceMode string

const (
	ToolChoiceAuto ToolChoiceMode = "auto"
	ToolChoiceNone ToolChoiceMode = "none"
	ToolChoiceAny  ToolChoiceMode = "any"
	ToolChoiceTool ToolChoiceMode = "tool"
)

// ToolChoice configures optional tool-use steering for a Request. A nil
// ToolChoice on Request lets the provider apply its own default (normally
// auto).
type ToolChoice struct {
	Mode ToolChoiceMode
	// Name selects the tool to force when Mode is ToolChoiceTool; it must
	// match the Name of one of Request.Tools.
	Name string
}

// Request captures every input to one adapter round-trip, staged into shape
// by the request package's builder before being handed to an adapter.
type Request struct {
	Model string

	// Messages is the full transcript-so-far handed to the adapter for this
	// turn, in canonical form.
	Messages []message.Message

	Tools      []tools.Tool
	ToolChoice *ToolChoice

	MaxOutputTokens int

	// Temperature, TopP, TopK use a caller-facing 0-100 integer scale;
	// adapters rescale to their own provider range (for example Gemini and
	// OpenAI Responses use 0.0-1.0 floats).
	Temperature int
	TopP        int
	TopK        int

	Reasoning     ReasoningEffort
	StopSequences []string
}

// Response is the result of one non-streaming adapter round-trip.
type Response struct {
	// Contents is the ordered content produced by the model this turn. Per
	// the canonical model's atomicity rule, the caller fans each entry out
	// into its own Assistant message sharing one step id.
	Contents []message.Content
	Usage    message.Usage
	// Usage is absent (the zero Usage) when the provider did not report any
	// counters, which must be treated as "unknown", not "zero".
	HasUsage bool

	StopReason string
}

// Streamer delivers incremental events from one streaming adapter call.
// Callers drain Recv until it returns (Event{}, io.EOF) or another terminal
// error, then call Close exactly once.
type Streamer interface {
	Recv() (stream.Event, error)
	Close() error
}

// ContentProvider is implemented by streamers that materialize finished
// message.Content values internally (typically via a stream.Reassembler) as
// Recv delivers deltas. Callers call Contents once Recv has returned io.EOF,
// in the same order the underlying blocks closed.
type ContentProvider interface {
	Contents() []message.Content
}

// LanguageModel is the capability interface every conversational adapter
// implements: one round-trip (Generate) and one streaming round-trip
// (Stream). Implementations live under providers/<dialect>.
type LanguageModel interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	Stream(ctx context.Context, req Request) (Streamer, error)
}

// EmbeddingRequest captures the inputs to one embedding round-trip.
type EmbeddingRequest struct {
	Model      string
	Inputs     []string
	Dimensions int
}

// EmbeddingResponse carries one float vector per input, in input order.
type EmbeddingResponse struct {
	Vectors [][]float32
}

// EmbeddingModel is the capability interface for the embedding sibling of
// LanguageModel: one call, no loop.
type EmbeddingModel interface {
	Embed(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error)
}
