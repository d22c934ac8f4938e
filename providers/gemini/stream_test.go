package gemini

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/cortexflow/llmkit/message"
	"github.com/cortexflow/llmkit/stream"
)

func newTestStreamer() *streamer {
	return &streamer{
		ctx:     context.Background(),
		events:  make(chan stream.Event, 32),
		reasm:   stream.NewReassembler(func(stream.Event) {}),
		started: make(map[int]bool),
	}
}

// TestStreamHandleFunctionCallCarriesThoughtSignature covers spec §8's
// reasoning-fidelity property for streaming: a function call's thought
// signature must survive StopBlock, mirroring
// TestTranslatePartFunctionCallCarriesThoughtSignature's non-streaming
// coverage of the same field.
func TestStreamHandleFunctionCallCarriesThoughtSignature(t *testing.T) {
	s := newTestStreamer()
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{
				FunctionCall:     &genai.FunctionCall{ID: "call_1", Name: "lookup", Args: map[string]any{"q": "weather"}},
				ThoughtSignature: []byte("sig"),
			}}},
		}},
	}

	s.handle(resp)

	msgs := s.reasm.Messages()
	require.Len(t, msgs, 1)
	tc, ok := msgs[0].Content.(message.ToolCall)
	require.True(t, ok)
	assert.Equal(t, "lookup", tc.Name)
	sig, ok := tc.Extensions.Get(ExtThoughtSignature)
	require.True(t, ok)
	assert.Equal(t, []byte("sig"), sig)
}

// TestStreamHandleThoughtSignatureRoundTripsAcrossDeltas covers a reasoning
// block whose signature arrives on the same part as its text in one chunk,
// then is stopped by a later chunk's FinishReason.
func TestStreamHandleThoughtSignatureRoundTripsAcrossDeltas(t *testing.T) {
	s := newTestStreamer()
	s.handle(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{
				Text: "thinking...", Thought: true, ThoughtSignature: []byte("sig-2"),
			}}},
		}},
	})
	s.handle(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{FinishReason: genai.FinishReason("STOP")}},
	})

	msgs := s.reasm.Messages()
	require.Len(t, msgs, 1)
	r, ok := msgs[0].Content.(message.Reasoning)
	require.True(t, ok)
	assert.Equal(t, "thinking...", r.Content)
	sig, ok := r.Extensions.Get(ExtThoughtSignature)
	require.True(t, ok)
	assert.Equal(t, []byte("sig-2"), sig)
}
