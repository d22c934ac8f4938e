// Package stream defines the uniform downstream event stream produced by
// every provider adapter's streaming reassembler, plus the shared per-index
// accumulators adapters use to build it from provider-specific SSE frames.
package stream

import (
	"encoding/json"

	"github.com/cortexflow/llmkit/message"
)

// Kind classifies one Event in the uniform outgoing stream.
type Kind string

const (
	// Start is emitted exactly once per request, before any other event.
	Start Kind = "start"

	// TextDelta carries an incremental text fragment.
	TextDelta Kind = "text"

	// ReasoningDelta carries an incremental reasoning/thinking fragment.
	ReasoningDelta Kind = "reasoning"

	// ToolCallDelta carries a raw, possibly incomplete JSON argument
	// fragment for an in-progress tool call. It is a best-effort UX signal;
	// the canonical payload arrives later on the assistant message appended
	// to the transcript once the block closes.
	ToolCallDelta Kind = "tool_call_delta"

	// End is the terminal event on success; it carries final usage and
	// terminates the stream exactly once.
	End Kind = "end"

	// Failed is the terminal event on a transport or explicit provider error
	// event; it terminates the stream exactly once.
	Failed Kind = "failed"

	// Incomplete reports a provider-signaled incomplete completion (for
	// example OpenAI Responses' response.incomplete) without being a hard
	// failure.
	Incomplete Kind = "incomplete"

	// NotSupported wraps an unparseable or unrecognized provider event. The
	// reassembler never drops bytes silently: anything it cannot classify
	// becomes NotSupported rather than being discarded or failing the
	// stream.
	NotSupported Kind = "not_supported"
)

// Event is one element of the uniform outgoing stream re-emitted by every
// adapter's reassembler.
type Event struct {
	Kind Kind

	// Text carries the fragment for TextDelta.
	Text string

	// Reasoning carries the fragment for ReasoningDelta.
	Reasoning string

	// ToolCallID / ToolCallName / ToolCallFragment carry the in-progress
	// tool-call delta for ToolCallDelta.
	ToolCallID       string
	ToolCallName     string
	ToolCallFragment string

	// Usage carries final token counts for End.
	Usage message.Usage

	// Reason carries the failure/incomplete explanation for Failed and
	// Incomplete, or the raw unparsed payload for NotSupported.
	Reason string

	// Raw carries the raw provider payload for NotSupported, preserved for
	// diagnostics.
	Raw json.RawMessage
}
