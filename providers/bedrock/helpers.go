package bedrock

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	smithy "github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/cortexflow/llmkit/llmerr"
)

// sanitizeToolName maps a canonical tool name to characters allowed by
// Bedrock's tool name constraint [a-zA-Z0-9_-]+, truncating and appending a
// stable hash suffix when the mapped name would exceed the documented
// 64-character limit.
func sanitizeToolName(in string) string {
	if in == "" {
		return ""
	}
	const maxLen = 64
	const hashLen = 8

	out := make([]rune, 0, len(in))
	changed := false
	for _, r := range in {
		if r == '.' {
			r = '_'
			changed = true
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			out = append(out, r)
		default:
			out = append(out, '_')
			changed = true
		}
	}
	_ = changed
	sanitized := string(out)
	if len(sanitized) <= maxLen {
		return sanitized
	}

	sum := sha256.Sum256([]byte(in))
	suffix := hex.EncodeToString(sum[:])[:hashLen]
	prefixLen := maxLen - (1 + hashLen)
	if prefixLen < 1 {
		prefixLen = 1
	}
	return sanitized[:prefixLen] + "_" + suffix
}

// toDocument renders a normalized JSON Schema map (or any JSON-marshalable
// value) into a Bedrock smithy document, the shape ToolInputSchema and
// ToolUseBlock.Input both require instead of raw JSON bytes.
func toDocument(v any) document.Interface {
	if v == nil {
		v = map[string]any{"type": "object"}
	}
	return document.NewLazyDocument(&v)
}

// decodeDocument renders a smithy document back into raw JSON, the shape
// the canonical ToolCall.Input / ToolOutput.Value fields use.
func decodeDocument(doc document.Interface) json.RawMessage {
	if doc == nil {
		return json.RawMessage("{}")
	}
	data, err := doc.MarshalSmithyDocument()
	if err != nil || len(data) == 0 {
		return json.RawMessage("{}")
	}
	return json.RawMessage(data)
}

// toolInputToDocument parses a ToolCall's raw JSON argument value before
// re-encoding it as a Bedrock document, since ContentBlockMemberToolUse.Input
// is typed, not a raw JSON byte string.
func toolInputToDocument(raw json.RawMessage) document.Interface {
	if len(raw) == 0 {
		return toDocument(map[string]any{})
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return toDocument(map[string]any{})
	}
	return toDocument(decoded)
}

// isRateLimited reports whether err represents a Bedrock throttling
// condition, checked both via the documented error codes and an HTTP 429
// status; translateTransportError turns such an error into a 429
// llmerr.API error that ratelimit.Retry treats as retryable.
func isRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException":
			return true
		}
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == 429 {
		return true
	}
	return false
}

func translateTransportError(err error) error {
	if err == nil {
		return nil
	}
	if isRateLimited(err) {
		return llmerr.API(429, "bedrock converse call was throttled", err)
	}
	return llmerr.Wrap(llmerr.ApiError, "bedrock converse call failed", err)
}

func isNovaModel(modelID string) bool {
	return strings.HasPrefix(modelID, "amazon.nova-")
}
