package anthropic

import (
	"encoding/json"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexflow/llmkit/message"
)

// TestTranslateResponseThinkingBlockCarriesSignature covers spec §8's
// reasoning-fidelity property for Anthropic: the thinking block's signature
// must round-trip through Extensions rather than being dropped, since a
// Reasoning block stripped of its signature is rejected by the API on the
// next turn.
func TestTranslateResponseThinkingBlockCarriesSignature(t *testing.T) {
	msg := &sdk.Message{
		StopReason: "end_turn",
		Content: []sdk.ContentBlockUnion{
			{Type: "thinking", Thinking: "because x implies y", Signature: "sig-abc"},
		},
	}

	resp, err := translateResponse(msg)
	require.NoError(t, err)
	require.Len(t, resp.Contents, 1)

	r, ok := resp.Contents[0].(message.Reasoning)
	require.True(t, ok)
	assert.Equal(t, "because x implies y", r.Content)

	sig, ok := r.Extensions.Get(ExtThinkingSignature)
	require.True(t, ok)
	assert.Equal(t, "sig-abc", sig)
}

// TestEncodeAssistantContentReasoningRoundTripsSignature verifies the
// encode side of the same property: a canonical Reasoning content value
// carrying a signature extension encodes without error, so a later turn
// can replay the thinking block back to Anthropic unmodified.
func TestEncodeAssistantContentReasoningRoundTripsSignature(t *testing.T) {
	reasoning := message.Reasoning{
		Content:    "because x implies y",
		Extensions: message.Extensions{}.With(ExtThinkingSignature, "sig-abc"),
	}

	block, err := encodeAssistantContent(reasoning)
	require.NoError(t, err)
	require.NotNil(t, block)
}

// TestTranslateResponseToolUseBlock covers the tool-call side of spec §8's
// round-trip property: ID/Name/Input survive the decode from the SDK's
// response shape into canonical content.
func TestTranslateResponseToolUseBlock(t *testing.T) {
	msg := &sdk.Message{
		StopReason: "tool_use",
		Content: []sdk.ContentBlockUnion{
			{Type: "tool_use", ID: "call_1", Name: "lookup", Input: json.RawMessage(`{"q":"weather"}`)},
		},
	}

	resp, err := translateResponse(msg)
	require.NoError(t, err)
	require.Len(t, resp.Contents, 1)

	tc, ok := resp.Contents[0].(message.ToolCall)
	require.True(t, ok)
	assert.Equal(t, "call_1", tc.ID)
	assert.Equal(t, "lookup", tc.Name)
	assert.JSONEq(t, `{"q":"weather"}`, string(tc.Input))
}
