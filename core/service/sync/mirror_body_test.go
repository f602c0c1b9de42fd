package sync

import (
	"encoding/base64"
	"testing"

	"mirror_server/core/port/out"
)

func b64url(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func TestExtractBody_PreferHTML(t *testing.T) {
	root := &out.MailPart{
		MimeType: "multipart/alternative",
		Parts: []*out.MailPart{
			{MimeType: "text/plain", Data: b64url("plain body")},
			{MimeType: "text/html", Data: b64url("<p>html body</p>")},
		},
	}

	got := ExtractBody(root)
	if got != "<p>html body</p>" {
		t.Errorf("ExtractBody() = %q, want html part", got)
	}
}

func TestExtractBody_FallbackToPlain(t *testing.T) {
	root := &out.MailPart{
		MimeType: "multipart/mixed",
		Parts: []*out.MailPart{
			{MimeType: "application/pdf", Data: b64url("binary")},
			{MimeType: "text/plain", Data: b64url("plain body")},
		},
	}

	got := ExtractBody(root)
	if got != "plain body" {
		t.Errorf("ExtractBody() = %q, want plain part", got)
	}
}

func TestExtractBody_NestedParts(t *testing.T) {
	// text/html 파트가 한 단계 안쪽에 있어도 찾아야 한다
	root := &out.MailPart{
		MimeType: "multipart/mixed",
		Parts: []*out.MailPart{
			{
				MimeType: "multipart/alternative",
				Parts: []*out.MailPart{
					{MimeType: "text/plain", Data: b64url("plain")},
					{MimeType: "text/html", Data: b64url("<b>deep html</b>")},
				},
			},
			{MimeType: "image/png", Data: b64url("img")},
		},
	}

	got := ExtractBody(root)
	if got != "<b>deep html</b>" {
		t.Errorf("ExtractBody() = %q, want nested html part", got)
	}
}

func TestExtractBody_RootData(t *testing.T) {
	root := &out.MailPart{
		MimeType: "text/x-unknown",
		Data:     b64url("root level body"),
	}

	got := ExtractBody(root)
	if got != "root level body" {
		t.Errorf("ExtractBody() = %q, want root data", got)
	}
}

func TestExtractBody_HTMLWithoutData(t *testing.T) {
	// 데이터가 비어 있는 text/html은 매칭되지 않아야 한다
	root := &out.MailPart{
		MimeType: "multipart/alternative",
		Parts: []*out.MailPart{
			{MimeType: "text/html", Data: ""},
			{MimeType: "text/plain", Data: b64url("plain fallback")},
		},
	}

	got := ExtractBody(root)
	if got != "plain fallback" {
		t.Errorf("ExtractBody() = %q, want plain fallback", got)
	}
}

func TestExtractBody_Empty(t *testing.T) {
	tests := []struct {
		name string
		root *out.MailPart
	}{
		{"nil root", nil},
		{"no data anywhere", &out.MailPart{MimeType: "multipart/mixed"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractBody(tt.root); got != "" {
				t.Errorf("ExtractBody() = %q, want empty string", got)
			}
		})
	}
}

func TestDecodeBase64URL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"url-safe alphabet", base64.RawURLEncoding.EncodeToString([]byte{0xfb, 0xff}), string([]byte{0xfb, 0xff})},
		{"standard padding accepted", base64.StdEncoding.EncodeToString([]byte("padded")), "padded"},
		{"missing padding restored", b64url("ab"), "ab"},
		{"empty input", "", ""},
		{"garbage input", "!!not base64!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decodeBase64URL(tt.input); got != tt.want {
				t.Errorf("decodeBase64URL(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
