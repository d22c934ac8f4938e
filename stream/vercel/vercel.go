// Package vercel implements the Vercel-UI SSE bridge (spec §6.4): an
// external adapter that re-encodes the uniform stream.Event sequence into
// the Vercel AI-SDK UI data-stream chunk family so a browser-side
// useChat-style client can consume it directly.
//
// Grounded on this module's own stream.Event contract as the source side,
// and on the teacher's hooks/events.go tagged-event convention
// (`Type() EventType` / a `"type"` discriminator carried in the JSON
// payload) for the target side's chunk shape, since no retrieved repo
// implements the Vercel AI-SDK protocol itself. Message-id generation
// follows runtime/run_id.go's uuid.NewString() idiom.
package vercel

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/cortexflow/llmkit/stream"
)

// ChunkType is the Vercel AI-SDK UI chunk discriminator.
type ChunkType string

const (
	TextStart      ChunkType = "text-start"
	TextDelta      ChunkType = "text-delta"
	TextEnd        ChunkType = "text-end"
	ReasoningStart ChunkType = "reasoning-start"
	ReasoningDelta ChunkType = "reasoning-delta"
	ReasoningEnd   ChunkType = "reasoning-end"
	ToolCallStart  ChunkType = "tool-call-start"
	ToolCallDelta  ChunkType = "tool-call-delta"
	ToolCallEnd    ChunkType = "tool-call-end"
	ErrorChunk     ChunkType = "error"
	StartChunk     ChunkType = "start"
	FinishChunk    ChunkType = "finish"
)

// Chunk is one element of the Vercel AI-SDK UI data stream. Fields are
// omitted from the JSON encoding when not meaningful for Type, matching the
// protocol's per-chunk-type payload shape.
type Chunk struct {
	Type ChunkType `json:"type"`

	// ID correlates start/delta/end chunks of the same text, reasoning, or
	// tool-call block to one another.
	ID string `json:"id,omitempty"`

	// MessageID identifies the assistant message this chunk belongs to; set
	// on every chunk of a request.
	MessageID string `json:"messageId,omitempty"`

	Delta string `json:"delta,omitempty"`

	ToolCallID    string `json:"toolCallId,omitempty"`
	ToolName      string `json:"toolName,omitempty"`
	ArgsTextDelta string `json:"argsTextDelta,omitempty"`

	ErrorText string `json:"errorText,omitempty"`

	FinishReason string `json:"finishReason,omitempty"`
}

// IDFunc generates a new unique identifier. The default is uuid.NewString;
// callers override it for deterministic tests or to embed request context.
type IDFunc func() string

// Options configures Bridge's opt-in chunk suppression and ID generation,
// per spec §6.4's send_reasoning/send_start/send_finish flags.
type Options struct {
	// SendReasoning enables reasoning-start/delta/end chunks. Default false:
	// most UI clients never render a model's internal reasoning.
	SendReasoning bool

	// SendStart enables the initial "start" chunk carrying MessageID.
	// Default false, matching the Vercel AI-SDK's own default.
	SendStart bool

	// SendFinish enables the terminal "finish" chunk. Default false.
	SendFinish bool

	// NewID generates a message/block id. Defaults to uuid.NewString.
	NewID IDFunc
}

func (o Options) resolve() Options {
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

// Bridge re-encodes one request's stream.Event sequence into Vercel AI-SDK
// UI chunks. It is stateful across a single request: construct one per
// streamed response, feed events via Translate, discard afterward.
type Bridge struct {
	opts      Options
	messageID string

	textOpen      bool
	textID        string
	reasoningOpen bool
	reasoningID   string
	toolOpen      map[string]string // tool-call id -> name, for end-chunk emission
}

// New constructs a Bridge for one request.
func New(opts Options) *Bridge {
	opts = opts.resolve()
	return &Bridge{
		opts:      opts,
		messageID: opts.NewID(),
		toolOpen:  make(map[string]string),
	}
}

// MessageID returns the id generated (or supplied) for this request's
// chunks.
func (b *Bridge) MessageID() string { return b.messageID }

// Translate converts one stream.Event into zero or more Vercel UI chunks.
// Disabled chunk kinds (per Options) are suppressed rather than translated.
func (b *Bridge) Translate(ev stream.Event) []Chunk {
	switch ev.Kind {
	case stream.Start:
		if !b.opts.SendStart {
			return nil
		}
		return []Chunk{{Type: StartChunk, MessageID: b.messageID}}

	case stream.TextDelta:
		var chunks []Chunk
		if !b.textOpen {
			b.textOpen = true
			b.textID = b.opts.NewID()
			chunks = append(chunks, Chunk{Type: TextStart, ID: b.textID, MessageID: b.messageID})
		}
		chunks = append(chunks, Chunk{Type: TextDelta, ID: b.textID, MessageID: b.messageID, Delta: ev.Text})
		return chunks

	case stream.ReasoningDelta:
		if !b.opts.SendReasoning {
			return nil
		}
		var chunks []Chunk
		if !b.reasoningOpen {
			b.reasoningOpen = true
			b.reasoningID = b.opts.NewID()
			chunks = append(chunks, Chunk{Type: ReasoningStart, ID: b.reasoningID, MessageID: b.messageID})
		}
		chunks = append(chunks, Chunk{Type: ReasoningDelta, ID: b.reasoningID, MessageID: b.messageID, Delta: ev.Reasoning})
		return chunks

	case stream.ToolCallDelta:
		var chunks []Chunk
		id := ev.ToolCallID
		if _, open := b.toolOpen[id]; !open {
			b.toolOpen[id] = ev.ToolCallName
			chunks = append(chunks, Chunk{Type: ToolCallStart, ID: id, MessageID: b.messageID, ToolCallID: id, ToolName: ev.ToolCallName})
		}
		chunks = append(chunks, Chunk{Type: ToolCallDelta, ID: id, MessageID: b.messageID, ToolCallID: id, ArgsTextDelta: ev.ToolCallFragment})
		return chunks

	case stream.End:
		chunks := b.closeOpenBlocks()
		if b.opts.SendFinish {
			chunks = append(chunks, Chunk{Type: FinishChunk, MessageID: b.messageID, FinishReason: "stop"})
		}
		return chunks

	case stream.Incomplete:
		chunks := b.closeOpenBlocks()
		if b.opts.SendFinish {
			chunks = append(chunks, Chunk{Type: FinishChunk, MessageID: b.messageID, FinishReason: "length"})
		}
		return chunks

	case stream.Failed:
		chunks := b.closeOpenBlocks()
		chunks = append(chunks, Chunk{Type: ErrorChunk, MessageID: b.messageID, ErrorText: ev.Reason})
		return chunks

	case stream.NotSupported:
		// No Vercel UI chunk models an unrecognized provider payload; drop
		// it rather than inventing a chunk type the protocol doesn't define.
		return nil
	}
	return nil
}

func (b *Bridge) closeOpenBlocks() []Chunk {
	var chunks []Chunk
	if b.textOpen {
		chunks = append(chunks, Chunk{Type: TextEnd, ID: b.textID, MessageID: b.messageID})
		b.textOpen = false
	}
	if b.reasoningOpen {
		chunks = append(chunks, Chunk{Type: ReasoningEnd, ID: b.reasoningID, MessageID: b.messageID})
		b.reasoningOpen = false
	}
	for id, name := range b.toolOpen {
		chunks = append(chunks, Chunk{Type: ToolCallEnd, ID: id, MessageID: b.messageID, ToolCallID: id, ToolName: name})
		delete(b.toolOpen, id)
	}
	return chunks
}

// Encode marshals a Chunk to the "data: <json>\n\n" SSE wire framing the
// Vercel AI-SDK data stream protocol uses.
func Encode(c Chunk) ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(data)+8)
	out = append(out, "data: "...)
	out = append(out, data...)
	out = append(out, '\n', '\n')
	return out, nil
}
