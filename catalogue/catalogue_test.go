package catalogue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSupportsTrueWhenModelHasAllRequestedCapabilities(t *testing.T) {
	assert.True(t, Supports(OpenAI, "gpt-4o", TextIn, TextOut, ToolCall))
}

func TestSupportsFalseWhenModelMissesOneCapability(t *testing.T) {
	assert.False(t, Supports(OpenAI, "gpt-3.5-turbo", ToolCall))
}

func TestSupportsFalseForUnknownModelRatherThanPanicking(t *testing.T) {
	assert.False(t, Supports(OpenAI, "gpt-unknown-9000", TextIn))
}

func TestLookupReportsMissingEntryExplicitly(t *testing.T) {
	_, ok := Lookup(Gemini, "not-a-real-model")
	assert.False(t, ok)
}

func TestBedrockNovaModelsOmitReasoningTag(t *testing.T) {
	s, ok := Lookup(Bedrock, "amazon.nova-pro-v1:0")
	assert.True(t, ok)
	assert.False(t, s.Has(Reasoning))
}

func TestDeepSeekReasonerTaggedReasoningUnlikeChat(t *testing.T) {
	chat, _ := Lookup(DeepSeek, "deepseek-chat")
	reasoner, _ := Lookup(DeepSeek, "deepseek-reasoner")
	assert.False(t, chat.Has(Reasoning))
	assert.True(t, reasoner.Has(Reasoning))
}

func TestModelsListsOnlyRequestedProvider(t *testing.T) {
	models := Models(Bedrock)
	assert.NotEmpty(t, models)
	for _, m := range models {
		_, ok := Lookup(Bedrock, m)
		assert.True(t, ok)
	}
	_, ok := Lookup(OpenAI, "amazon.nova-pro-v1:0")
	assert.False(t, ok)
}
