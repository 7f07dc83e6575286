package xclient

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// GenerateCT0 generates a random 32-byte hex string for use as a ct0 CSRF token.
func GenerateCT0() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return strings.Repeat("0", 64)
	}
	return hex.EncodeToString(b)
}

// extractCT0FromHeaders parses the ct0 value from a set-cookie response header.
// Multiple cookies may be folded into one value separated by commas.
func extractCT0FromHeaders(headers map[string]string) string {
	cookie := headers["set-cookie"]
	if cookie == "" {
		return ""
	}
	parts := strings.FieldsFunc(cookie, func(r rune) bool { return r == ';' || r == ',' })
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if val, ok := strings.CutPrefix(part, "ct0="); ok && val != "" {
			return val
		}
	}
	return ""
}
