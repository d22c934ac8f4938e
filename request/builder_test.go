package request

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cortexflow/llmkit/llmerr"
	"github.com/cortexflow/llmkit/message"
)

func TestBuilderSynthesizesStepZeroMessages(t *testing.T) {
	req, err := NewBuilder().
		Model("gpt-5").
		System("be terse").
		Prompt("Say hello.").
		Options().
		Build()
	require.NoError(t, err)
	require.Len(t, req.Messages, 2)
	require.Equal(t, message.RoleSystem, req.Messages[0].Role)
	require.Equal(t, message.RoleUser, req.Messages[1].Role)
}

func TestBuilderMissingModelFails(t *testing.T) {
	_, err := NewBuilder().Model("").System("x").Prompt("hi").Options().Build()
	e, ok := llmerr.As(err, llmerr.MissingField)
	require.True(t, ok)
	require.Equal(t, llmerr.MissingField, e.Kind())
}

func TestBuilderMissingConversationFails(t *testing.T) {
	_, err := NewBuilder().Model("gpt-5").System("x").Options().Build()
	require.Error(t, err)
}

func TestBuilderLastWriterWinsBetweenPromptAndMessages(t *testing.T) {
	req, err := NewBuilder().
		Model("gpt-5").
		Messages(message.User("first")).
		Prompt("second").
		Options().
		Build()
	require.NoError(t, err)
	require.Len(t, req.Messages, 1)
	require.Equal(t, "second", req.Messages[0].Text)
}
