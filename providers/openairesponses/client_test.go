package openairesponses

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexflow/llmkit/message"
	"github.com/cortexflow/llmkit/provider"
)

func TestEncodeItemsPullsLeadingSystemIntoInstructions(t *testing.T) {
	items, instructions, err := encodeItems([]message.Message{
		message.System("be terse"),
		message.User("hi"),
	})
	require.NoError(t, err)
	assert.Equal(t, "be terse", instructions)
	require.Len(t, items, 1)
}

func TestEncodeItemsSecondSystemMessageInlinesAsDeveloperItem(t *testing.T) {
	items, instructions, err := encodeItems([]message.Message{
		message.System("first"),
		message.User("hi"),
		message.System("second"),
	})
	require.NoError(t, err)
	assert.Equal(t, "first", instructions)
	require.Len(t, items, 2)
}

func TestEncodeToolChoiceModes(t *testing.T) {
	tc, err := encodeToolChoice(provider.ToolChoice{Mode: provider.ToolChoiceTool, Name: "lookup"})
	require.NoError(t, err)
	require.NotNil(t, tc.OfFunctionTool)
	assert.Equal(t, "lookup", tc.OfFunctionTool.Name)

	_, err = encodeToolChoice(provider.ToolChoice{Mode: "bogus"})
	assert.Error(t, err)
}
