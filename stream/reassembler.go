package stream

import (
	"encoding/json"
	"strings"

	"github.com/cortexflow/llmkit/message"
)

// BlockKind identifies which accumulator a block index belongs to.
type BlockKind int

const (
	// BlockText accumulates plain assistant text.
	BlockText BlockKind = iota
	// BlockReasoning accumulates thinking/reasoning text plus an optional
	// signature that must round-trip on the next turn.
	BlockReasoning
	// BlockToolCall accumulates a tool call's JSON argument fragments.
	BlockToolCall
	// BlockRedacted accumulates an opaque redacted-reasoning payload.
	BlockRedacted
)

type blockAcc struct {
	kind BlockKind

	text strings.Builder

	// extKey/extValue carry one provider-defined Extensions entry through to
	// the materialized Content — a reasoning signature (Anthropic's
	// "signature", Bedrock's "bedrock.signature", Gemini's
	// "thought_signature") or a tool call's thought
	// signature (Gemini). Each adapter owns its own key/type; the
	// reassembler never interprets them.
	extKey   string
	extValue any

	redacted []byte

	id        string
	name      string
	fragments []string
}

// Reassembler is the per-request state machine described by the streaming
// reassembler: it is keyed by provider block index (Anthropic, Bedrock, and
// OpenAI Chat Completions tool-call deltas all address blocks this way) and
// materializes finished blocks into assistant Messages on Stop. The Gemini
// adapter, whose chunks carry no block index, uses each part's position in
// the candidate's part list as the block index.
//
// Reassembler is not safe for concurrent use; each streaming call owns
// exactly one instance, matching the one-background-task-per-request
// concurrency model.
type Reassembler struct {
	emit    func(Event)
	blocks  map[int]*blockAcc
	done    []message.Message
	usage   message.Usage
	hasUse  bool
}

// NewReassembler constructs a Reassembler that invokes emit for every
// Delta-kind Event as blocks are fed. Terminal events (End/Failed/Incomplete)
// are the caller's responsibility once the underlying provider stream ends.
func NewReassembler(emit func(Event)) *Reassembler {
	return &Reassembler{emit: emit, blocks: make(map[int]*blockAcc)}
}

// StartBlock opens a new accumulator at index. id and name are used only by
// BlockToolCall; other kinds may pass them empty.
func (r *Reassembler) StartBlock(index int, kind BlockKind, id, name string) {
	r.blocks[index] = &blockAcc{kind: kind, id: id, name: name}
}

// AppendText appends a text delta at index and emits a TextDelta event.
func (r *Reassembler) AppendText(index int, delta string) {
	if delta == "" {
		return
	}
	b := r.blocks[index]
	if b == nil {
		b = &blockAcc{kind: BlockText}
		r.blocks[index] = b
	}
	b.text.WriteString(delta)
	r.emitEvent(Event{Kind: TextDelta, Text: delta})
}

// AppendReasoning appends a reasoning/thinking delta at index and emits a
// ReasoningDelta event.
func (r *Reassembler) AppendReasoning(index int, delta string) {
	if delta == "" {
		return
	}
	b := r.blocks[index]
	if b == nil {
		b = &blockAcc{kind: BlockReasoning}
		r.blocks[index] = b
	}
	b.text.WriteString(delta)
	r.emitEvent(Event{Kind: ReasoningDelta, Reasoning: delta})
}

// SetReasoningSignature records the provider-issued signature for the
// reasoning block at index, under the Extensions key that provider's
// adapter replays it under (e.g. providers/anthropic.ExtThinkingSignature,
// providers/gemini.ExtThoughtSignature). Signatures typically arrive as
// their own delta event, separate from the reasoning text deltas, and their
// wire type varies by provider (a string for Anthropic/Bedrock, raw bytes
// for Gemini), so value is carried opaquely.
func (r *Reassembler) SetReasoningSignature(index int, key string, value any) {
	b := r.blocks[index]
	if b == nil {
		b = &blockAcc{kind: BlockReasoning}
		r.blocks[index] = b
	}
	b.extKey, b.extValue = key, value
}

// SetToolCallExtension records one provider-defined Extensions entry for
// the tool call block at index (e.g. Gemini's thought signature on a
// function call). Mirrors SetReasoningSignature for the BlockToolCall kind,
// since StartBlock alone has no slot for it.
func (r *Reassembler) SetToolCallExtension(index int, key string, value any) {
	b := r.blocks[index]
	if b == nil {
		b = &blockAcc{kind: BlockToolCall}
		r.blocks[index] = b
	}
	b.extKey, b.extValue = key, value
}

// SetRedacted records an opaque redacted-reasoning payload at index.
func (r *Reassembler) SetRedacted(index int, payload []byte) {
	r.blocks[index] = &blockAcc{kind: BlockRedacted, redacted: append([]byte(nil), payload...)}
}

// AppendToolCallFragment appends a raw JSON argument fragment to the tool
// call block at index and emits a ToolCallDelta event. id/name are recorded
// on first use for blocks opened without StartBlock (the OpenAI Chat
// Completions dialect streams tool-call fragments indexed by position but
// only sends name/id once, in the first fragment).
func (r *Reassembler) AppendToolCallFragment(index int, id, name, delta string) {
	b := r.blocks[index]
	if b == nil {
		b = &blockAcc{kind: BlockToolCall}
		r.blocks[index] = b
	}
	if id != "" {
		b.id = id
	}
	if name != "" {
		b.name = name
	}
	if delta != "" {
		b.fragments = append(b.fragments, delta)
	}
	r.emitEvent(Event{
		Kind:             ToolCallDelta,
		ToolCallID:       b.id,
		ToolCallName:     b.name,
		ToolCallFragment: delta,
	})
}

// StopBlock materializes the accumulator at index into a finished assistant
// Message and removes it. Unparseable tool-call JSON degrades to a
// NotSupported content value rather than failing the whole stream, per the
// reassembler's never-drop-bytes-silently contract.
func (r *Reassembler) StopBlock(index int) {
	b := r.blocks[index]
	if b == nil {
		return
	}
	delete(r.blocks, index)

	switch b.kind {
	case BlockText:
		if s := b.text.String(); s != "" {
			r.done = append(r.done, message.AssistantText(s))
		}
	case BlockReasoning:
		s := b.text.String()
		if s == "" {
			return
		}
		var ext message.Extensions
		if b.extKey != "" {
			ext = message.Extensions{}.With(b.extKey, b.extValue)
		}
		r.done = append(r.done, message.Message{
			Role: message.RoleAssistant,
			Content: message.Reasoning{
				Content:    s,
				Extensions: ext,
			},
		})
	case BlockRedacted:
		if len(b.redacted) == 0 {
			return
		}
		r.done = append(r.done, message.Message{
			Role: message.RoleAssistant,
			Content: message.Reasoning{
				Extensions: message.Extensions{"redacted": b.redacted},
			},
		})
	case BlockToolCall:
		raw := strings.Join(b.fragments, "")
		if strings.TrimSpace(raw) == "" {
			raw = "{}"
		}
		if !json.Valid([]byte(raw)) {
			r.done = append(r.done, message.Message{
				Role:    message.RoleAssistant,
				Content: message.NotSupported{Raw: "invalid tool json: " + raw},
			})
			return
		}
		var ext message.Extensions
		if b.extKey != "" {
			ext = message.Extensions{}.With(b.extKey, b.extValue)
		}
		r.done = append(r.done, message.AssistantToolCall(message.ToolCall{
			ID:         b.id,
			Name:       b.name,
			Input:      json.RawMessage(raw),
			Extensions: ext,
		}))
	}
}

// RecordUsage stores the final usage counters observed for this call,
// returned by Usage.
func (r *Reassembler) RecordUsage(u message.Usage) {
	r.usage = u
	r.hasUse = true
}

// NotSupported emits a NotSupported event for an event the caller could not
// classify, without terminating the stream.
func (r *Reassembler) NotSupported(raw json.RawMessage, reason string) {
	r.emitEvent(Event{Kind: NotSupported, Raw: raw, Reason: reason})
}

// Messages returns every finished assistant Message materialized so far, in
// StopBlock order.
func (r *Reassembler) Messages() []message.Message {
	out := make([]message.Message, len(r.done))
	copy(out, r.done)
	return out
}

// Usage returns the last usage recorded via RecordUsage and whether any was
// recorded at all.
func (r *Reassembler) Usage() (message.Usage, bool) {
	return r.usage, r.hasUse
}

func (r *Reassembler) emitEvent(ev Event) {
	if r.emit != nil {
		r.emit(ev)
	}
}
