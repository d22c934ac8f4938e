package anthropic

import "encoding/base64"

// ExtThinkingSignature is the Extensions key under which a thinking-block
// signature round-trips; this adapter passes it to
// stream.Reassembler.SetReasoningSignature when streaming.
const ExtThinkingSignature = "signature"

func base64Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func isImageFormat(format string) bool {
	switch format {
	case "image/png", "image/jpeg", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}
