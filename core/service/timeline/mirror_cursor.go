package timeline

import (
	"encoding/base64"
	"time"

	"github.com/goccy/go-json"

	"mirror_server/core/port/out"
)

// =============================================================================
// Keyset Cursor Codec
// =============================================================================
//
// 커서는 이전 페이지 마지막 항목의 (lastMessageDate, 내부 ID) 쌍을
// base64url로 인코딩한 것. 불투명 문자열로 취급되어야 한다.

type cursorPayload struct {
	LastMessageDate int64  `json:"d"` // unix millis
	ID              string `json:"id"`
}

// EncodeCursor builds the opaque cursor for the item at a keyset position.
func EncodeCursor(key out.ThreadKey) string {
	payload := cursorPayload{
		LastMessageDate: key.LastMessageDate.UnixMilli(),
		ID:              key.ID,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor parses an opaque cursor back into a keyset position.
func DecodeCursor(cursor string) (*out.ThreadKey, error) {
	data, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, err
	}

	var payload cursorPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	if payload.ID == "" {
		return nil, errInvalidCursor
	}

	return &out.ThreadKey{
		LastMessageDate: time.UnixMilli(payload.LastMessageDate).UTC(),
		ID:              payload.ID,
	}, nil
}
