package vercel

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexflow/llmkit/stream"
)

func idSeq(ids ...string) IDFunc {
	i := 0
	return func() string {
		id := ids[i]
		i++
		return id
	}
}

func TestTranslateEmitsTextStartOnceThenDeltas(t *testing.T) {
	b := New(Options{NewID: idSeq("msg-1", "text-1")})

	chunks := b.Translate(stream.Event{Kind: stream.TextDelta, Text: "Hel"})
	require.Len(t, chunks, 2)
	assert.Equal(t, TextStart, chunks[0].Type)
	assert.Equal(t, TextDelta, chunks[1].Type)
	assert.Equal(t, "Hel", chunks[1].Delta)

	chunks = b.Translate(stream.Event{Kind: stream.TextDelta, Text: "lo"})
	require.Len(t, chunks, 1)
	assert.Equal(t, TextDelta, chunks[0].Type)
}

func TestTranslateSuppressesReasoningByDefault(t *testing.T) {
	b := New(Options{NewID: idSeq("msg-1")})
	chunks := b.Translate(stream.Event{Kind: stream.ReasoningDelta, Reasoning: "thinking"})
	assert.Nil(t, chunks)
}

func TestTranslateEmitsReasoningWhenEnabled(t *testing.T) {
	b := New(Options{SendReasoning: true, NewID: idSeq("msg-1", "r-1")})
	chunks := b.Translate(stream.Event{Kind: stream.ReasoningDelta, Reasoning: "thinking"})
	require.Len(t, chunks, 2)
	assert.Equal(t, ReasoningStart, chunks[0].Type)
	assert.Equal(t, ReasoningDelta, chunks[1].Type)
}

func TestTranslateSuppressesStartAndFinishByDefault(t *testing.T) {
	b := New(Options{NewID: idSeq("msg-1")})
	assert.Nil(t, b.Translate(stream.Event{Kind: stream.Start}))

	chunks := b.Translate(stream.Event{Kind: stream.End})
	assert.Len(t, chunks, 0)
}

func TestTranslateEmitsStartAndFinishWhenEnabled(t *testing.T) {
	b := New(Options{SendStart: true, SendFinish: true, NewID: idSeq("msg-1")})
	chunks := b.Translate(stream.Event{Kind: stream.Start})
	require.Len(t, chunks, 1)
	assert.Equal(t, StartChunk, chunks[0].Type)
	assert.Equal(t, "msg-1", chunks[0].MessageID)

	chunks = b.Translate(stream.Event{Kind: stream.End})
	require.Len(t, chunks, 1)
	assert.Equal(t, FinishChunk, chunks[0].Type)
}

func TestTranslateClosesOpenTextBlockOnEnd(t *testing.T) {
	b := New(Options{NewID: idSeq("msg-1", "text-1")})
	b.Translate(stream.Event{Kind: stream.TextDelta, Text: "hi"})
	chunks := b.Translate(stream.Event{Kind: stream.End})
	require.Len(t, chunks, 1)
	assert.Equal(t, TextEnd, chunks[0].Type)
	assert.Equal(t, "text-1", chunks[0].ID)
}

func TestTranslateToolCallStartOncePerID(t *testing.T) {
	b := New(Options{NewID: idSeq("msg-1")})
	chunks := b.Translate(stream.Event{Kind: stream.ToolCallDelta, ToolCallID: "call-1", ToolCallName: "search", ToolCallFragment: `{"q":`})
	require.Len(t, chunks, 2)
	assert.Equal(t, ToolCallStart, chunks[0].Type)
	assert.Equal(t, "search", chunks[0].ToolName)

	chunks = b.Translate(stream.Event{Kind: stream.ToolCallDelta, ToolCallID: "call-1", ToolCallFragment: `"x"}`})
	require.Len(t, chunks, 1)
	assert.Equal(t, ToolCallDelta, chunks[0].Type)
}

func TestTranslateFailedEmitsErrorChunkAndClosesBlocks(t *testing.T) {
	b := New(Options{NewID: idSeq("msg-1", "text-1")})
	b.Translate(stream.Event{Kind: stream.TextDelta, Text: "partial"})
	chunks := b.Translate(stream.Event{Kind: stream.Failed, Reason: "transport error"})
	require.Len(t, chunks, 2)
	assert.Equal(t, TextEnd, chunks[0].Type)
	assert.Equal(t, ErrorChunk, chunks[1].Type)
	assert.Equal(t, "transport error", chunks[1].ErrorText)
}

func TestTranslateNotSupportedProducesNoChunk(t *testing.T) {
	b := New(Options{NewID: idSeq("msg-1")})
	assert.Nil(t, b.Translate(stream.Event{Kind: stream.NotSupported, Reason: "weird"}))
}

func TestEncodeProducesSSEDataFraming(t *testing.T) {
	raw, err := Encode(Chunk{Type: TextDelta, Delta: "hi"})
	require.NoError(t, err)
	s := string(raw)
	assert.True(t, strings.HasPrefix(s, "data: "))
	assert.True(t, strings.HasSuffix(s, "\n\n"))
	assert.Contains(t, s, `"text-delta"`)
}

func TestNewGeneratesMessageIDByDefault(t *testing.T) {
	b := New(Options{})
	assert.NotEmpty(t, b.MessageID())
}
