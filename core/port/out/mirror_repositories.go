package out

import (
	"context"
	"time"

	"mirror_server/core/domain"
)

// =============================================================================
// Account Repository Port
// =============================================================================

// AccountRepository persists accounts and their sync cursor.
// 커서는 패스가 완전히 커밋된 뒤에만 갱신된다.
type AccountRepository interface {
	GetByID(ctx context.Context, accountID string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)

	// SaveCursor persists the resume cursor after a fully committed pass.
	SaveCursor(ctx context.Context, accountID string, cursor domain.SyncCursor, syncedAt time.Time) error
}

// =============================================================================
// Thread / Message Repository Ports
// =============================================================================

// ThreadKey is the keyset position of a thread in timeline order.
type ThreadKey struct {
	LastMessageDate time.Time
	ID              string
}

// ThreadQuery holds listing options for the timeline.
// Before가 있으면 해당 키보다 엄격히 뒤(내림차순)의 스레드만 반환
type ThreadQuery struct {
	Limit  int
	Before *ThreadKey
}

// ThreadRepository upserts threads by natural key and serves timeline reads.
type ThreadRepository interface {
	// UpsertByExternalID replaces every derived field and returns the
	// stable internal id. Insert with defaults when absent.
	UpsertByExternalID(ctx context.Context, thread *domain.Thread) (string, error)

	GetByExternalID(ctx context.Context, accountID, externalID string) (*domain.Thread, error)

	// ListByAccount returns threads ordered by lastMessageDate desc,
	// internal id desc.
	ListByAccount(ctx context.Context, accountID string, query ThreadQuery) ([]*domain.Thread, error)

	CountByAccount(ctx context.Context, accountID string) (int64, error)
}

// MessageRepository upserts messages by natural key.
type MessageRepository interface {
	UpsertByExternalID(ctx context.Context, message *domain.Message) (string, error)

	// ListByThread returns a thread's messages ascending by date.
	ListByThread(ctx context.Context, accountID, threadRef string) ([]*domain.Message, error)
}
