package stream

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cortexflow/llmkit/message"
)

func TestReassemblerToolCallFragmentsConcatenateInOrder(t *testing.T) {
	var events []Event
	r := NewReassembler(func(e Event) { events = append(events, e) })

	r.StartBlock(0, BlockToolCall, "call-1", "echo")
	r.AppendToolCallFragment(0, "", "", `{"x":`)
	r.AppendToolCallFragment(0, "", "", `1,"y":`)
	r.AppendToolCallFragment(0, "", "", `2}`)
	r.StopBlock(0)

	require.Len(t, events, 3)
	for _, e := range events {
		require.Equal(t, ToolCallDelta, e.Kind)
	}

	msgs := r.Messages()
	require.Len(t, msgs, 1)
	call, ok := msgs[0].Content.(message.ToolCall)
	require.True(t, ok)
	require.Equal(t, "call-1", call.ID)
	require.JSONEq(t, `{"x":1,"y":2}`, string(call.Input))
}

func TestReassemblerInvalidToolJSONBecomesNotSupported(t *testing.T) {
	r := NewReassembler(func(Event) {})
	r.StartBlock(0, BlockToolCall, "call-1", "echo")
	r.AppendToolCallFragment(0, "", "", `{not json`)
	r.StopBlock(0)

	msgs := r.Messages()
	require.Len(t, msgs, 1)
	ns, ok := msgs[0].Content.(message.NotSupported)
	require.True(t, ok)
	require.Contains(t, ns.Raw, "invalid tool json")
}

func TestReassemblerReasoningPreservesSignature(t *testing.T) {
	r := NewReassembler(func(Event) {})
	r.StartBlock(0, BlockReasoning, "", "")
	r.AppendReasoning(0, "let me think")
	r.SetReasoningSignature(0, "signature", "sig-abc")
	r.StopBlock(0)

	msgs := r.Messages()
	require.Len(t, msgs, 1)
	reasoning, ok := msgs[0].Content.(message.Reasoning)
	require.True(t, ok)
	require.Equal(t, "let me think", reasoning.Content)
	sig, ok := reasoning.Extensions.Get("signature")
	require.True(t, ok)
	require.Equal(t, "sig-abc", sig)
}

func TestReassemblerToolCallCarriesExtension(t *testing.T) {
	r := NewReassembler(func(Event) {})
	r.StartBlock(0, BlockToolCall, "call-1", "lookup")
	r.SetToolCallExtension(0, "thought_signature", []byte("sig"))
	r.AppendToolCallFragment(0, "", "", `{}`)
	r.StopBlock(0)

	msgs := r.Messages()
	require.Len(t, msgs, 1)
	call, ok := msgs[0].Content.(message.ToolCall)
	require.True(t, ok)
	sig, ok := call.Extensions.Get("thought_signature")
	require.True(t, ok)
	require.Equal(t, []byte("sig"), sig)
}

func TestReassemblerReasoningWithoutSignatureHasNoExtensions(t *testing.T) {
	r := NewReassembler(func(Event) {})
	r.StartBlock(0, BlockReasoning, "", "")
	r.AppendReasoning(0, "let me think")
	r.StopBlock(0)

	msgs := r.Messages()
	require.Len(t, msgs, 1)
	reasoning, ok := msgs[0].Content.(message.Reasoning)
	require.True(t, ok)
	require.Nil(t, reasoning.Extensions)
}

func TestReassemblerEmptyTextBlockProducesNoMessage(t *testing.T) {
	r := NewReassembler(func(Event) {})
	r.StartBlock(0, BlockText, "", "")
	r.StopBlock(0)
	require.Empty(t, r.Messages())
}
