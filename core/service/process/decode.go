package process

import (
	"encoding/base64"
	"strings"

	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/port/out"
)

// decodeMessageText walks the message's MIME part tree, base64url-decodes
// every part with an inline body, and concatenates the result. A part
// that fails to decode is skipped rather than aborting the walk — the
// decoder must tolerate malformed parts (spec.md §4.2 Message decoding).
func decodeMessageText(parts []out.InboxMessagePart) string {
	var sb strings.Builder
	for _, part := range parts {
		decodePart(part, &sb)
	}
	return sb.String()
}

func decodePart(part out.InboxMessagePart, sb *strings.Builder) {
	if part.BodyDataBase64 != "" {
		if decoded, ok := decodeBase64URL(part.BodyDataBase64); ok {
			sb.Write(decoded)
			sb.WriteByte('\n')
		}
	}
	for _, child := range part.Parts {
		decodePart(child, sb)
	}
}

// decodeBase64URL tries both the padded and unpadded URL-safe alphabets,
// since upstream providers are inconsistent about trailing '='.
func decodeBase64URL(s string) ([]byte, bool) {
	if decoded, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return decoded, true
	}
	if decoded, err := base64.URLEncoding.DecodeString(s); err == nil {
		return decoded, true
	}
	return nil, false
}

// truncateSnippet caps a preview to maxLen runes; the pipeline never
// stores the full body (spec.md §1 Non-goals).
func truncateSnippet(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}
