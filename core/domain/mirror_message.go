package domain

import "time"

// =============================================================================
// Message - 스레드에 속한 메일 한 통
// =============================================================================

type Message struct {
	ID         string `json:"id"`
	AccountID  string `json:"account_id"`
	ExternalID string `json:"external_id"`

	// 소유 스레드 - 내부 ID 참조. 스레드 upsert가 먼저 끝난 뒤에만 채워짐
	ThreadRef        string `json:"thread_ref"`
	ExternalThreadID string `json:"external_thread_id"`

	From    string   `json:"from"`
	To      []string `json:"to,omitempty"`
	Subject string   `json:"subject,omitempty"`

	// 본문 - MIME 트리에서 추출된 정규화된 HTML/텍스트
	Body    string `json:"body,omitempty"`
	Snippet string `json:"snippet,omitempty"`

	Date     time.Time `json:"date"`
	LabelIDs []string  `json:"label_ids,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
