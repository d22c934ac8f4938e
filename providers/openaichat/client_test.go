package openaichat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexflow/llmkit/message"
	"github.com/cortexflow/llmkit/provider"
	"github.com/cortexflow/llmkit/tools"
)

func TestEncodeMessagesInlinesDeveloperAsSystem(t *testing.T) {
	msgs, err := encodeMessages([]message.Message{
		message.Developer("be terse"),
	})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].OfSystem)
}

func TestEncodeMessagesAssistantToolCallCarriesArguments(t *testing.T) {
	msgs, err := encodeMessages([]message.Message{
		message.AssistantToolCall(message.ToolCall{
			ID:    "call_1",
			Name:  "lookup",
			Input: json.RawMessage(`{"q":"weather"}`),
		}),
	})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].OfAssistant)
	require.Len(t, msgs[0].OfAssistant.ToolCalls, 1)
	assert.Equal(t, "call_1", msgs[0].OfAssistant.ToolCalls[0].ID)
	assert.Equal(t, `{"q":"weather"}`, msgs[0].OfAssistant.ToolCalls[0].Function.Arguments)
}

func TestEncodeMessagesToolResultUsesToolMessage(t *testing.T) {
	ref := message.ToolRef{ID: "call_1", Name: "lookup"}
	msgs, err := encodeMessages([]message.Message{
		message.ToolResult(ref, json.RawMessage(`{"result":"sunny"}`)),
	})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.NotNil(t, msgs[0].OfTool)
	assert.Equal(t, "call_1", msgs[0].OfTool.ToolCallID)
}

func TestEncodeToolsForcesObjectShapeAndNoAdditionalProperties(t *testing.T) {
	defs := []tools.Tool{{
		Name:        "lookup",
		Description: "looks things up",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"q": map[string]any{"type": "string"},
			},
		},
	}}
	out, err := encodeTools(defs)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.NotNil(t, out[0].OfFunction)
	assert.Equal(t, "lookup", out[0].OfFunction.Function.Name)
	params := out[0].OfFunction.Function.Parameters
	assert.Equal(t, "object", params["type"])
	assert.Equal(t, false, params["additionalProperties"])
}

func TestEncodeToolChoiceModes(t *testing.T) {
	tc, err := encodeToolChoice(provider.ToolChoice{Mode: provider.ToolChoiceTool, Name: "lookup"})
	require.NoError(t, err)
	require.NotNil(t, tc.OfChatCompletionNamedToolChoice)
	assert.Equal(t, "lookup", tc.OfChatCompletionNamedToolChoice.Function.Name)

	_, err = encodeToolChoice(provider.ToolChoice{Mode: "bogus"})
	assert.Error(t, err)
}
