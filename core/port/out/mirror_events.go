package out

import (
	"context"
	"time"
)

// =============================================================================
// Event Publisher Port
// =============================================================================
//
// 동기화가 적재한 스레드를 다운스트림 소비자에게 알린다. 요약 파이프라인이
// 이 이벤트를 구독해 threads.summary를 채운다.

// ThreadSyncedEvent is emitted after a thread and its messages are mirrored.
type ThreadSyncedEvent struct {
	AccountID    string    `json:"account_id"`
	ThreadID     string    `json:"thread_id"`
	ExternalID   string    `json:"external_id"`
	MessageCount int       `json:"message_count"`
	SyncedAt     time.Time `json:"synced_at"`
}

// EventPublisher publishes mirror events to downstream consumers.
type EventPublisher interface {
	PublishThreadSynced(ctx context.Context, event *ThreadSyncedEvent) error
}
