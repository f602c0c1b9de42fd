package domain

import "time"

// =============================================================================
// Account - 메일박스 소유자 + 동기화 커서
// =============================================================================

type Account struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	GoogleID string `json:"google_id,omitempty"`

	// 자격 증명 - 외부 인증 레이어가 기록, 여기서는 읽기 전용
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	TokenExpiry  time.Time `json:"-"`

	// 동기화 커서 - 패스가 완전히 커밋된 후에만 갱신됨
	Cursor       SyncCursor `json:"-"`
	LastSyncedAt time.Time  `json:"last_synced_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasCredential - 사용 가능한 갱신 자격 증명이 있는지 확인
func (a *Account) HasCredential() bool {
	return a.RefreshToken != ""
}

// =============================================================================
// SyncCursor - 재개 상태 머신 (mid-sync / caught-up)
// =============================================================================

// SyncCursor holds the resume position for a mailbox. The zero value is
// the caught-up state. A token can only exist through CursorMidSync, so
// "token present but complete" cannot be constructed.
type SyncCursor struct {
	token string
}

// CursorMidSync - 다음 페이지 토큰이 있는 상태. 빈 토큰이면 caught-up
func CursorMidSync(token string) SyncCursor {
	return SyncCursor{token: token}
}

// CursorCaughtUp - 업스트림을 모두 따라잡은 상태
func CursorCaughtUp() SyncCursor {
	return SyncCursor{}
}

// Token returns the resume token and whether one exists.
func (c SyncCursor) Token() (string, bool) {
	return c.token, c.token != ""
}

// Complete - 마지막 페이지 응답에 연속 토큰이 없었는지
func (c SyncCursor) Complete() bool {
	return c.token == ""
}

// HasMore - 아직 가져올 페이지가 남아 있는지
func (c SyncCursor) HasMore() bool {
	return c.token != ""
}
