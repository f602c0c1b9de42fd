// Package in defines inbound ports (driving ports) for the application.
package in

import (
	"context"

	"mirror_server/core/domain"
)

// =============================================================================
// Sync Service Port
// =============================================================================

// SyncService runs bounded mailbox sync passes.
type SyncService interface {
	// RunPass processes exactly one upstream page. explicitToken이 비어
	// 있으면 계정에 저장된 커서에서 이어간다.
	RunPass(ctx context.Context, accountID, explicitToken string) (*domain.SyncPassResult, error)

	// GetStatus returns the account's current sync cursor state.
	GetStatus(ctx context.Context, accountID string) (*domain.SyncStatus, error)
}

// =============================================================================
// Timeline Service Port
// =============================================================================

// TimelineService serves the mirrored mailbox, read-only.
type TimelineService interface {
	// ListThreads pages the timeline with a keyset cursor,
	// lastMessageDate desc.
	ListThreads(ctx context.Context, accountID string, limit int, cursor string) (*domain.ThreadPage, error)

	// GetThreadDetail returns one thread with its messages ascending by
	// date. 다른 계정의 스레드는 존재해도 NotFound
	GetThreadDetail(ctx context.Context, accountID, externalThreadID string) (*domain.ThreadDetail, error)
}
