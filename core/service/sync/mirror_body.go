package sync

import (
	"encoding/base64"
	"strings"

	"mirror_server/core/port/out"
)

// =============================================================================
// MIME Body Extraction
// =============================================================================

// ExtractBody walks a message's MIME tree and returns one canonical body
// string. text/html 파트 우선, 없으면 text/plain, 둘 다 없으면 루트
// 데이터. Never fails; malformed input yields an empty string.
func ExtractBody(root *out.MailPart) string {
	if root == nil {
		return ""
	}

	if part := findPartByMimeType(root, "text/html"); part != nil {
		return decodeBase64URL(part.Data)
	}

	if part := findPartByMimeType(root, "text/plain"); part != nil {
		return decodeBase64URL(part.Data)
	}

	if root.Data != "" {
		return decodeBase64URL(root.Data)
	}

	return ""
}

// findPartByMimeType - 깊이 우선 탐색, 데이터가 있는 첫 파트 반환
func findPartByMimeType(part *out.MailPart, mimeType string) *out.MailPart {
	if part == nil {
		return nil
	}
	if part.MimeType == mimeType && part.Data != "" {
		return part
	}
	for _, child := range part.Parts {
		if found := findPartByMimeType(child, mimeType); found != nil {
			return found
		}
	}
	return nil
}

// decodeBase64URL decodes the URL-safe base64 variant used by the
// upstream API ('-'→'+', '_'→'/') into UTF-8 text.
func decodeBase64URL(data string) string {
	if data == "" {
		return ""
	}

	normalized := strings.NewReplacer("-", "+", "_", "/").Replace(data)
	if padding := len(normalized) % 4; padding != 0 {
		normalized += strings.Repeat("=", 4-padding)
	}

	decoded, err := base64.StdEncoding.DecodeString(normalized)
	if err != nil {
		return ""
	}
	return string(decoded)
}
