// Package request implements the staged builder that forces a model
// identifier, then a system/conversation, then options, before a request can
// be issued to a provider.LanguageModel.
package request

import (
	"github.com/cortexflow/llmkit/llmerr"
	"github.com/cortexflow/llmkit/message"
	"github.com/cortexflow/llmkit/provider"
	"github.com/cortexflow/llmkit/tools"
)

// ModelStage is the entry point: a request cannot progress until a model
// identifier is supplied.
type ModelStage struct{}

// NewBuilder starts a new staged request at ModelStage.
func NewBuilder() ModelStage { return ModelStage{} }

// Model selects the provider model identifier and advances to SystemStage.
func (ModelStage) Model(id string) SystemStage {
	return SystemStage{model: id}
}

// SystemStage accepts an optional system prompt before the conversation is
// supplied. System may be skipped by calling Prompt or Messages directly.
type SystemStage struct {
	model  string
	system string
}

// System sets the system prompt.
func (s SystemStage) System(text string) SystemStage {
	s.system = text
	return s
}

// Prompt supplies a single raw user prompt and advances to
// ConversationStage, synthesizing the initial message list.
func (s SystemStage) Prompt(text string) ConversationStage {
	return ConversationStage{model: s.model, system: s.system, prompt: text, hasConv: true}
}

// Messages supplies a full initial message list and advances to
// ConversationStage.
func (s SystemStage) Messages(msgs ...message.Message) ConversationStage {
	return ConversationStage{model: s.model, system: s.system, messages: msgs, hasConv: true}
}

// Options skips straight to OptionsStage without supplying a conversation.
// Build then fails with llmerr.MissingField, since ConversationStage was
// never given a Prompt or Messages call.
func (s SystemStage) Options() OptionsStage {
	return OptionsStage{conv: ConversationStage{model: s.model, system: s.system}}
}

// ConversationStage holds the caller's chosen conversation shape. Setting
// both a raw prompt and a message list is resolved last-writer-wins: calling
// Prompt after Messages (or vice versa) replaces the prior choice entirely
// rather than combining them.
type ConversationStage struct {
	model    string
	system   string
	prompt   string
	messages []message.Message
	hasConv  bool
}

// Prompt replaces any previously set conversation with a single raw prompt.
func (c ConversationStage) Prompt(text string) ConversationStage {
	c.prompt = text
	c.messages = nil
	c.hasConv = true
	return c
}

// Messages replaces any previously set conversation with a full message
// list.
func (c ConversationStage) Messages(msgs ...message.Message) ConversationStage {
	c.messages = msgs
	c.prompt = ""
	c.hasConv = true
	return c
}

// Options advances to OptionsStage, the final stage before Build.
func (c ConversationStage) Options() OptionsStage {
	return OptionsStage{conv: c}
}

// OptionsStage configures optional request parameters. All setters return a
// new OptionsStage so the stage can be configured fluently.
type OptionsStage struct {
	conv ConversationStage

	tools           []tools.Tool
	toolChoice      *provider.ToolChoice
	maxOutputTokens int
	temperature     int
	topP            int
	topK            int
	reasoning       provider.ReasoningEffort
	stopSequences   []string
}

// Tools attaches the tool definitions available to the model.
func (o OptionsStage) Tools(ts ...tools.Tool) OptionsStage {
	o.tools = ts
	return o
}

// ToolChoice constrains how the model uses tools.
func (o OptionsStage) ToolChoice(tc provider.ToolChoice) OptionsStage {
	o.toolChoice = &tc
	return o
}

// MaxOutputTokens caps the number of output tokens when supported.
func (o OptionsStage) MaxOutputTokens(n int) OptionsStage {
	o.maxOutputTokens = n
	return o
}

// Temperature sets sampling temperature on the caller-facing 0-100 scale.
func (o OptionsStage) Temperature(t int) OptionsStage {
	o.temperature = t
	return o
}

// TopP sets nucleus sampling on the caller-facing 0-100 scale.
func (o OptionsStage) TopP(p int) OptionsStage {
	o.topP = p
	return o
}

// TopK sets top-k sampling.
func (o OptionsStage) TopK(k int) OptionsStage {
	o.topK = k
	return o
}

// Reasoning requests a thinking effort level when supported.
func (o OptionsStage) Reasoning(e provider.ReasoningEffort) OptionsStage {
	o.reasoning = e
	return o
}

// StopSequences sets provider-side stop sequences.
func (o OptionsStage) StopSequences(seqs ...string) OptionsStage {
	o.stopSequences = seqs
	return o
}

// Build validates the staged request and produces a provider.Request. Build
// fails with llmerr.MissingField when the model is empty, or when neither a
// prompt nor an initial message list was ever supplied.
func (o OptionsStage) Build() (provider.Request, error) {
	if o.conv.model == "" {
		return provider.Request{}, llmerr.New(llmerr.MissingField, "model identifier is required")
	}
	if !o.conv.hasConv {
		return provider.Request{}, llmerr.New(llmerr.MissingField, "either a prompt or an initial message list is required")
	}

	msgs := initialMessages(o.conv)

	return provider.Request{
		Model:           o.conv.model,
		Messages:        msgs,
		Tools:           o.tools,
		ToolChoice:      o.toolChoice,
		MaxOutputTokens: o.maxOutputTokens,
		Temperature:     o.temperature,
		TopP:            o.topP,
		TopK:            o.topK,
		Reasoning:       o.reasoning,
		StopSequences:   o.stopSequences,
	}, nil
}

// initialMessages synthesizes the step-0 messages (System + User) when the
// caller supplied a raw prompt, or returns the caller's message list
// unchanged, prefixing a System message built from ConversationStage.system
// when the caller's list does not already start with one.
func initialMessages(c ConversationStage) []message.Message {
	if len(c.messages) > 0 {
		if c.system == "" || hasLeadingSystem(c.messages) {
			return c.messages
		}
		out := make([]message.Message, 0, len(c.messages)+1)
		out = append(out, message.System(c.system))
		out = append(out, c.messages...)
		return out
	}
	var out []message.Message
	if c.system != "" {
		out = append(out, message.System(c.system))
	}
	out = append(out, message.User(c.prompt))
	return out
}

func hasLeadingSystem(msgs []message.Message) bool {
	return len(msgs) > 0 && msgs[0].Role == message.RoleSystem
}
