package domain

import "time"

// =============================================================================
// Thread - 하나의 대화. (accountId, externalId)가 자연 키
// =============================================================================

type Thread struct {
	ID         string `json:"id"`
	AccountID  string `json:"account_id"`
	ExternalID string `json:"external_id"`
	HistoryID  string `json:"history_id,omitempty"`

	// 메시지들로부터 파생되는 집계 필드 - 재동기화마다 전체 재계산됨
	Subject         string    `json:"subject,omitempty"`
	Snippet         string    `json:"snippet,omitempty"`
	Participants    []string  `json:"participants,omitempty"`
	LastMessageDate time.Time `json:"last_message_date"`
	MessageCount    int       `json:"message_count"`

	// AI 요약 - 외부 협력자가 기록, 여기서는 저장/반환만
	Summary string `json:"summary,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// =============================================================================
// ThreadPage / ThreadDetail - TimelineReader 결과
// =============================================================================

type ThreadPage struct {
	Threads    []*Thread `json:"threads"`
	Total      int64     `json:"total"`
	HasNext    bool      `json:"has_next"`
	HasPrev    bool      `json:"has_prev"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

type ThreadDetail struct {
	Thread   *Thread    `json:"thread"`
	Messages []*Message `json:"messages"`
}
