// Package catalogue implements the capability catalogue (spec §4.I): a
// compile-time-known map from (provider, model identifier) to a set of
// capability tags. It exists purely to gate typed constructors with a
// helpful, fast, local error before a request ever reaches a provider; a
// caller that wants to bypass it for an unlisted model uses the
// DynamicModel escape hatch and accepts whatever the provider itself
// returns.
//
// Grounded on the original implementation's per-provider `capabilities.rs`
// model tables (google, openai, deepseek), translated from Rust macro-
// generated trait impls into a plain Go map literal plus a lookup
// function, since Go has no declarative-macro equivalent and idiomatic Go
// favors an explicit data table over code generation for a static list
// this size.
package catalogue

// Capability is one tag from the fixed vocabulary spec §4.I defines.
type Capability string

const (
	TextIn           Capability = "text-in"
	TextOut          Capability = "text-out"
	ImageIn          Capability = "image-in"
	ImageOut         Capability = "image-out"
	AudioIn          Capability = "audio-in"
	AudioOut         Capability = "audio-out"
	VideoIn          Capability = "video-in"
	Reasoning        Capability = "reasoning"
	StructuredOutput Capability = "structured-output"
	ToolCall         Capability = "tool-call"
)

// Provider names the adapter family a model entry belongs to.
type Provider string

const (
	OpenAI    Provider = "openai"
	Anthropic Provider = "anthropic"
	Gemini    Provider = "gemini"
	Bedrock   Provider = "bedrock"
	DeepSeek  Provider = "deepseek"
)

// Set is an unordered collection of capability tags.
type Set map[Capability]struct{}

// Has reports whether the set contains cap.
func (s Set) Has(cap Capability) bool {
	_, ok := s[cap]
	return ok
}

// HasAll reports whether the set contains every capability in caps.
func (s Set) HasAll(caps ...Capability) bool {
	for _, c := range caps {
		if !s.Has(c) {
			return false
		}
	}
	return true
}

func newSet(caps ...Capability) Set {
	s := make(Set, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

// key identifies one catalogue entry.
type key struct {
	provider Provider
	model    string
}

// catalog is the static (provider, model) -> capability-set table.
// Model coverage and capability tags for openai/gemini/deepseek are
// transcribed directly from the original implementation's capabilities.rs
// tables; anthropic and the Bedrock-supplemented models are transcribed
// from this module's own provider adapter defaults and AWS Bedrock model
// documentation, since no Rust capabilities.rs exists for those families
// in the retrieved source tree.
var catalog = map[key]Set{
	// --- OpenAI (Chat Completions + Responses), from openai/capabilities.rs ---
	{OpenAI, "gpt-3.5-turbo"}:   newSet(TextIn, TextOut),
	{OpenAI, "gpt-4"}:           newSet(ImageIn, TextIn, TextOut, ToolCall),
	{OpenAI, "gpt-4-turbo"}:     newSet(ImageIn, TextIn, TextOut, ToolCall),
	{OpenAI, "gpt-4.1"}:         newSet(ImageIn, StructuredOutput, TextIn, TextOut, ToolCall),
	{OpenAI, "gpt-4.1-mini"}:    newSet(ImageIn, StructuredOutput, TextIn, TextOut, ToolCall),
	{OpenAI, "gpt-4.1-nano"}:    newSet(ImageIn, StructuredOutput, TextIn, TextOut, ToolCall),
	{OpenAI, "gpt-4o"}:          newSet(ImageIn, StructuredOutput, TextIn, TextOut, ToolCall),
	{OpenAI, "gpt-4o-mini"}:     newSet(ImageIn, StructuredOutput, TextIn, TextOut, ToolCall),
	{OpenAI, "gpt-5"}:           newSet(ImageIn, Reasoning, StructuredOutput, TextIn, TextOut, ToolCall),
	{OpenAI, "gpt-5-mini"}:      newSet(ImageIn, Reasoning, StructuredOutput, TextIn, TextOut, ToolCall),
	{OpenAI, "gpt-5-nano"}:      newSet(ImageIn, Reasoning, StructuredOutput, TextIn, TextOut, ToolCall),
	{OpenAI, "gpt-5-pro"}:       newSet(ImageIn, Reasoning, StructuredOutput, TextIn, TextOut, ToolCall),
	{OpenAI, "gpt-5-codex"}:     newSet(ImageIn, Reasoning, StructuredOutput, TextIn, TextOut, ToolCall),
	{OpenAI, "gpt-5.1"}:         newSet(ImageIn, Reasoning, TextIn, TextOut, ToolCall),
	{OpenAI, "gpt-5.1-chat"}:    newSet(ImageIn, Reasoning, StructuredOutput, TextIn, TextOut, ToolCall),
	{OpenAI, "gpt-5.1-codex"}:   newSet(ImageIn, Reasoning, StructuredOutput, TextIn, TextOut, ToolCall),
	{OpenAI, "codex-mini"}:      newSet(ImageIn, Reasoning, TextIn, TextOut, ToolCall),
	{OpenAI, "o1"}:              newSet(ImageIn, Reasoning, StructuredOutput, TextIn, TextOut, ToolCall),
	{OpenAI, "o1-mini"}:         newSet(Reasoning, StructuredOutput, TextIn, TextOut),
	{OpenAI, "o1-preview"}:      newSet(Reasoning, TextIn, TextOut),
	{OpenAI, "o1-pro"}:          newSet(ImageIn, Reasoning, StructuredOutput, TextIn, TextOut, ToolCall),
	{OpenAI, "o3"}:              newSet(ImageIn, Reasoning, StructuredOutput, TextIn, TextOut, ToolCall),
	{OpenAI, "o3-mini"}:         newSet(Reasoning, StructuredOutput, TextIn, TextOut, ToolCall),
	{OpenAI, "o3-pro"}:          newSet(ImageIn, Reasoning, StructuredOutput, TextIn, TextOut, ToolCall),
	{OpenAI, "o4-mini"}:         newSet(ImageIn, Reasoning, StructuredOutput, TextIn, TextOut, ToolCall),
	{OpenAI, "text-embedding-3-large"}: newSet(TextIn, TextOut),
	{OpenAI, "text-embedding-3-small"}: newSet(TextIn, TextOut),
	{OpenAI, "text-embedding-ada-002"}: newSet(TextIn, TextOut),

	// --- Anthropic Messages, from this module's provider adapter defaults ---
	{Anthropic, "claude-opus-4-1"}:   newSet(ImageIn, Reasoning, TextIn, TextOut, ToolCall),
	{Anthropic, "claude-opus-4-5"}:   newSet(ImageIn, Reasoning, TextIn, TextOut, ToolCall),
	{Anthropic, "claude-sonnet-4-5"}: newSet(ImageIn, Reasoning, TextIn, TextOut, ToolCall),
	{Anthropic, "claude-haiku-4-5"}:  newSet(ImageIn, Reasoning, TextIn, TextOut, ToolCall),
	{Anthropic, "claude-3-5-haiku-latest"}: newSet(ImageIn, TextIn, TextOut, ToolCall),

	// --- Gemini GenerateContent, from google/capabilities.rs ---
	{Gemini, "gemini-1.5-flash"}:   newSet(AudioIn, ImageIn, TextIn, TextOut, ToolCall, VideoIn),
	{Gemini, "gemini-1.5-pro"}:     newSet(AudioIn, ImageIn, TextIn, TextOut, ToolCall, VideoIn),
	{Gemini, "gemini-2.0-flash"}:   newSet(AudioIn, ImageIn, StructuredOutput, TextIn, TextOut, ToolCall, VideoIn),
	{Gemini, "gemini-2.5-flash"}:   newSet(AudioIn, ImageIn, Reasoning, StructuredOutput, TextIn, TextOut, ToolCall, VideoIn),
	{Gemini, "gemini-2.5-flash-lite"}: newSet(AudioIn, ImageIn, Reasoning, StructuredOutput, TextIn, TextOut, ToolCall, VideoIn),
	{Gemini, "gemini-2.5-flash-image"}: newSet(ImageIn, ImageOut, Reasoning, TextIn, TextOut),
	{Gemini, "gemini-2.5-pro"}:     newSet(AudioIn, ImageIn, Reasoning, StructuredOutput, TextIn, TextOut, ToolCall, VideoIn),
	{Gemini, "gemini-flash-latest"}: newSet(AudioIn, ImageIn, Reasoning, StructuredOutput, TextIn, TextOut, ToolCall, VideoIn),
	{Gemini, "gemini-embedding-001"}: newSet(TextIn, TextOut),

	// --- Bedrock Converse, supplemented per SPEC_FULL.md's domain-stack wiring ---
	{Bedrock, "anthropic.claude-3-5-sonnet-20241022-v2:0"}: newSet(ImageIn, Reasoning, TextIn, TextOut, ToolCall),
	{Bedrock, "anthropic.claude-3-5-haiku-20241022-v1:0"}:  newSet(ImageIn, TextIn, TextOut, ToolCall),
	{Bedrock, "anthropic.claude-3-opus-20240229-v1:0"}:     newSet(ImageIn, TextIn, TextOut, ToolCall),
	{Bedrock, "amazon.nova-pro-v1:0"}:                      newSet(ImageIn, TextIn, TextOut, ToolCall, VideoIn),
	{Bedrock, "amazon.nova-lite-v1:0"}:                     newSet(ImageIn, TextIn, TextOut, ToolCall, VideoIn),
	{Bedrock, "amazon.nova-micro-v1:0"}:                    newSet(TextIn, TextOut, ToolCall),

	// --- DeepSeek, one of the OpenAI-compatible registry's well-known
	// back-ends (providers/openaichat.CompatibleProviders["deepseek"]),
	// from deepseek/capabilities.rs ---
	{DeepSeek, "deepseek-chat"}:     newSet(ImageIn, TextIn, TextOut, ToolCall),
	{DeepSeek, "deepseek-reasoner"}: newSet(ImageIn, Reasoning, TextIn, TextOut, ToolCall),
}

// Lookup returns the capability set for (provider, model) and whether an
// entry exists. An absent entry is not an error: callers fall back to the
// DynamicModel escape hatch, per spec §4.I, rather than failing closed.
func Lookup(provider Provider, model string) (Set, bool) {
	s, ok := catalog[key{provider, model}]
	return s, ok
}

// Supports reports whether (provider, model) is known to the catalogue and
// has every capability in caps. An unknown model reports false — callers
// that want to bypass the gate for an unlisted model must do so
// explicitly via the DynamicModel escape hatch rather than relying on
// Supports' default.
func Supports(provider Provider, model string, caps ...Capability) bool {
	s, ok := Lookup(provider, model)
	return ok && s.HasAll(caps...)
}

// Models returns the model identifiers known for provider, for diagnostic
// or UI listing purposes. Order is unspecified.
func Models(provider Provider) []string {
	var out []string
	for k := range catalog {
		if k.provider == provider {
			out = append(out, k.model)
		}
	}
	return out
}
