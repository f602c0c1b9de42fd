package timeline

import (
	"context"
	"errors"

	"mirror_server/core/domain"
	"mirror_server/core/port/out"
	"mirror_server/pkg/apperr"
)

// =============================================================================
// Service - 미러된 타임라인 읽기 전용 조회
// =============================================================================

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

var errInvalidCursor = errors.New("invalid cursor")

type Service struct {
	threadRepo  out.ThreadRepository
	messageRepo out.MessageRepository
}

func NewService(threadRepo out.ThreadRepository, messageRepo out.MessageRepository) *Service {
	return &Service{
		threadRepo:  threadRepo,
		messageRepo: messageRepo,
	}
}

// =============================================================================
// ListThreads - lastMessageDate 내림차순 keyset 페이지네이션
// =============================================================================
//
// limit+1개를 조회해 hasNext를 판별하고 여분은 잘라낸다. total은
// 페이지 쿼리와 독립적으로 세므로 동시 삽입과 경합할 수 있다.
func (s *Service) ListThreads(ctx context.Context, accountID string, limit int, cursor string) (*domain.ThreadPage, error) {
	if accountID == "" {
		return nil, apperr.MissingField("account_id")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	var before *out.ThreadKey
	if cursor != "" {
		key, err := DecodeCursor(cursor)
		if err != nil {
			return nil, apperr.ValidationFailed("malformed cursor").WithError(err)
		}
		before = key
	}

	threads, err := s.threadRepo.ListByAccount(ctx, accountID, out.ThreadQuery{
		Limit:  limit + 1,
		Before: before,
	})
	if err != nil {
		return nil, apperr.PersistenceError("list threads", err)
	}

	hasNext := len(threads) > limit
	if hasNext {
		threads = threads[:limit]
	}

	total, err := s.threadRepo.CountByAccount(ctx, accountID)
	if err != nil {
		return nil, apperr.PersistenceError("count threads", err)
	}

	page := &domain.ThreadPage{
		Threads: threads,
		Total:   total,
		HasNext: hasNext,
		// 역방향 커서는 지원하지 않음 - 커서가 있었다는 사실만 노출
		HasPrev: cursor != "",
	}

	if hasNext && len(threads) > 0 {
		last := threads[len(threads)-1]
		page.NextCursor = EncodeCursor(out.ThreadKey{
			LastMessageDate: last.LastMessageDate,
			ID:              last.ID,
		})
	}

	return page, nil
}

// =============================================================================
// GetThreadDetail - 스레드 + 메시지 (날짜 오름차순)
// =============================================================================

func (s *Service) GetThreadDetail(ctx context.Context, accountID, externalThreadID string) (*domain.ThreadDetail, error) {
	if accountID == "" {
		return nil, apperr.MissingField("account_id")
	}
	if externalThreadID == "" {
		return nil, apperr.MissingField("thread_id")
	}

	thread, err := s.threadRepo.GetByExternalID(ctx, accountID, externalThreadID)
	if err != nil {
		return nil, apperr.PersistenceError("get thread", err)
	}
	if thread == nil {
		// 다른 계정 소유의 externalId도 여기서 걸러진다
		return nil, apperr.NotFound("thread")
	}

	messages, err := s.messageRepo.ListByThread(ctx, accountID, thread.ID)
	if err != nil {
		return nil, apperr.PersistenceError("list thread messages", err)
	}

	return &domain.ThreadDetail{
		Thread:   thread,
		Messages: messages,
	}, nil
}
