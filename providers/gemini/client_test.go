package gemini

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/cortexflow/llmkit/message"
	"github.com/cortexflow/llmkit/provider"
)

func TestJSONSchemaToGenaiConvertsObjectShape(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"q":     map[string]any{"type": "string"},
			"count": map[string]any{"type": "integer"},
		},
		"required": []any{"q"},
	}
	out, err := jsonSchemaToGenai(schema)
	require.NoError(t, err)
	assert.Equal(t, genai.TypeObject, out.Type)
	require.Contains(t, out.Properties, "q")
	assert.Equal(t, genai.TypeString, out.Properties["q"].Type)
	assert.Equal(t, genai.TypeInteger, out.Properties["count"].Type)
	assert.Equal(t, []string{"q"}, out.Required)
}

func TestTranslatePartFunctionCallCarriesThoughtSignature(t *testing.T) {
	part := &genai.Part{
		FunctionCall:     &genai.FunctionCall{ID: "call_1", Name: "lookup", Args: map[string]any{"q": "weather"}},
		ThoughtSignature: []byte("sig"),
	}
	content := translatePart(part)
	tc, ok := content.(message.ToolCall)
	require.True(t, ok)
	assert.Equal(t, "lookup", tc.Name)
	sig, ok := tc.Extensions.Get(ExtThoughtSignature)
	require.True(t, ok)
	assert.Equal(t, []byte("sig"), sig)
}

func TestTranslatePartThoughtBecomesReasoning(t *testing.T) {
	part := &genai.Part{Text: "thinking...", Thought: true}
	content := translatePart(part)
	r, ok := content.(message.Reasoning)
	require.True(t, ok)
	assert.Equal(t, "thinking...", r.Content)
}

func TestEncodeToolChoiceForcesAllowedFunctionNames(t *testing.T) {
	tc, err := encodeToolChoice(provider.ToolChoice{Mode: provider.ToolChoiceTool, Name: "lookup"})
	require.NoError(t, err)
	require.NotNil(t, tc.FunctionCallingConfig)
	assert.Equal(t, []string{"lookup"}, tc.FunctionCallingConfig.AllowedFunctionNames)
}
