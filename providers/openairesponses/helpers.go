package openairesponses

import "encoding/base64"

func base64EncodeBytes(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
