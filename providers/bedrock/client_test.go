package bedrock

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/cortexflow/llmkit/message"
	"github.com/cortexflow/llmkit/provider"
	"github.com/cortexflow/llmkit/tools"
)

func TestSanitizeToolNameReplacesDotsAndTruncatesOverflow(t *testing.T) {
	assert.Equal(t, "atlas_read_get_time_series", sanitizeToolName("atlas.read.get_time_series"))

	long := "atlas.read." + strings.Repeat("x", 80)
	sanitized := sanitizeToolName(long)
	assert.LessOrEqual(t, len(sanitized), 64)
	assert.Contains(t, sanitized, "_")
}

func TestEncodeMessagesSplitsSystemIntoSystemContentBlocks(t *testing.T) {
	_, system, err := encodeMessages([]message.Message{
		message.System("be terse"),
		message.User("hi"),
	})
	require.NoError(t, err)
	require.Len(t, system, 1)
	txt, ok := system[0].(*brtypes.SystemContentBlockMemberText)
	require.True(t, ok)
	assert.Equal(t, "be terse", txt.Value)
}

func TestEncodeMessagesAssistantToolCallUsesSanitizedName(t *testing.T) {
	messages, _, err := encodeMessages([]message.Message{
		message.User("what time is it"),
		message.AssistantToolCall(message.ToolCall{ID: "call_1", Name: "atlas.read.get_time", Input: []byte(`{}`)}),
	})
	require.NoError(t, err)
	require.Len(t, messages, 2)
	content := messages[1].Content
	require.Len(t, content, 1)
	tu, ok := content[0].(*brtypes.ContentBlockMemberToolUse)
	require.True(t, ok)
	assert.Equal(t, "atlas_read_get_time", *tu.Value.Name)
}

func TestEncodeToolsRejectsNameCollisionAfterSanitization(t *testing.T) {
	_, _, _, err := encodeTools([]tools.Tool{
		{Name: "atlas.read.x", InputSchema: map[string]any{"type": "object"}},
		{Name: "atlas_read_x", InputSchema: map[string]any{"type": "object"}},
	}, nil)
	assert.Error(t, err)
}

func TestEncodeToolsForcesToolChoice(t *testing.T) {
	cfg, canonToSan, _, err := encodeTools([]tools.Tool{
		{Name: "lookup", InputSchema: map[string]any{"type": "object"}},
	}, &provider.ToolChoice{Mode: provider.ToolChoiceTool, Name: "lookup"})
	require.NoError(t, err)
	require.NotNil(t, cfg.ToolChoice)
	tc, ok := cfg.ToolChoice.(*brtypes.ToolChoiceMemberTool)
	require.True(t, ok)
	assert.Equal(t, canonToSan["lookup"], *tc.Value.Name)
}

func TestTranslateResponseMapsSanitizedToolNameBackToCanonical(t *testing.T) {
	name := "atlas_read_x"
	id := "call_1"
	output := &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{
			Value: brtypes.Message{
				Role: brtypes.ConversationRoleAssistant,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberToolUse{Value: brtypes.ToolUseBlock{
						ToolUseId: &id,
						Name:      &name,
						Input:     toDocument(map[string]any{}),
					}},
				},
			},
		},
	}
	resp, err := translateResponse(output, map[string]string{"atlas_read_x": "atlas.read.x"})
	require.NoError(t, err)
	require.Len(t, resp.Contents, 1)
	call, ok := resp.Contents[0].(message.ToolCall)
	require.True(t, ok)
	assert.Equal(t, "atlas.read.x", call.Name)
}
