package domain

import "time"

// =============================================================================
// SyncPassResult - 한 번의 동기화 패스 결과 (업스트림 한 페이지)
// =============================================================================

type SyncPassResult struct {
	SyncedMessages int    `json:"synced_messages"`
	SyncedThreads  int    `json:"synced_threads"`
	NextPageToken  string `json:"next_page_token,omitempty"`
	HasMore        bool   `json:"has_more"`
}

// =============================================================================
// SyncStatus - 계정의 현재 동기화 상태 조회 결과
// =============================================================================

type SyncStatus struct {
	SyncComplete  bool      `json:"sync_complete"`
	HasMore       bool      `json:"has_more"`
	NextPageToken string    `json:"next_page_token,omitempty"`
	LastSyncedAt  time.Time `json:"last_synced_at,omitempty"`
}

// StatusFromCursor - 커서 상태를 조회용 DTO로 변환
func StatusFromCursor(cursor SyncCursor, lastSyncedAt time.Time) SyncStatus {
	token, _ := cursor.Token()
	return SyncStatus{
		SyncComplete:  cursor.Complete(),
		HasMore:       cursor.HasMore(),
		NextPageToken: token,
		LastSyncedAt:  lastSyncedAt,
	}
}
