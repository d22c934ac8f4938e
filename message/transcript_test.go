package message

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTranscriptStepsGroupsInArrivalOrder(t *testing.T) {
	tr := NewTranscript(System("be helpful"), User("hi"))
	tr.Append(1, AssistantToolCall(ToolCall{ID: "c1", Name: "echo"}))
	tr.Append(1, ToolResult(ToolRef{ID: "c1", Name: "echo"}, nil))
	tr.Append(2, AssistantText("done"))

	steps := tr.Steps()
	require.Len(t, steps, 3)
	require.Len(t, steps[0], 2)
	require.Len(t, steps[1], 2)
	require.Len(t, steps[2], 1)
	require.Equal(t, 2, tr.LastStep())
}

func TestTranscriptFilterByRole(t *testing.T) {
	tr := NewTranscript(System("sys"), User("hi"))
	tr.Append(1, AssistantText("hello"))

	assistants := tr.FilterByRole(RoleAssistant)
	require.Len(t, assistants, 1)
	require.Equal(t, Text{Value: "hello"}, assistants[0].Content)
}

func TestExtensionsWithDoesNotMutateReceiver(t *testing.T) {
	base := Extensions{"anthropic.signature": "sig-a"}
	next := base.With("anthropic.thinking", "chain")

	_, hasNewKey := base.Get("anthropic.thinking")
	require.False(t, hasNewKey)

	v, ok := next.Get("anthropic.signature")
	require.True(t, ok)
	require.Equal(t, "sig-a", v)
}

func TestUsageAddSumsCounters(t *testing.T) {
	a := Usage{InputTokens: 10, OutputTokens: 5}
	b := Usage{InputTokens: 3, CachedTokens: 2}

	require.Equal(t, Usage{InputTokens: 13, OutputTokens: 5, CachedTokens: 2}, a.Add(b))
}
