package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mirror_server/core/domain"
	"mirror_server/core/port/out"
	"mirror_server/pkg/apperr"
	"mirror_server/pkg/logger"

	"golang.org/x/oauth2"
)

// =============================================================================
// Service - 메일박스 미러 동기화 엔진
// =============================================================================
//
// 한 번의 RunPass는 업스트림 한 페이지만 처리한다. 페이지네이션은
// 호출자 주도 - 엔진이 다음 페이지를 자동으로 이어가지 않는다.

const (
	DefaultPageSize = 50 // 한 패스에 나열할 스레드 수

	statusCacheKeyPrefix = "sync:status:"
)

type Service struct {
	accountRepo out.AccountRepository
	threadRepo  out.ThreadRepository
	messageRepo out.MessageRepository
	provider    out.MailboxProvider
	cache       out.Cache
	publisher   out.EventPublisher // optional, nil이면 이벤트 발행 생략

	pageSize  int
	statusTTL time.Duration
}

func NewService(
	accountRepo out.AccountRepository,
	threadRepo out.ThreadRepository,
	messageRepo out.MessageRepository,
	provider out.MailboxProvider,
	cache out.Cache,
	publisher out.EventPublisher,
	pageSize int,
	statusTTL time.Duration,
) *Service {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Service{
		accountRepo: accountRepo,
		threadRepo:  threadRepo,
		messageRepo: messageRepo,
		provider:    provider,
		cache:       cache,
		publisher:   publisher,
		pageSize:    pageSize,
		statusTTL:   statusTTL,
	}
}

// =============================================================================
// RunPass - 동기화 패스 한 번 실행
// =============================================================================
//
// 실패 시 커서를 전진시키지 않는다. upsert는 자연 키 기준 전체 교체라
// 같은 토큰으로 재실행해도 안전하다 (멱등).
func (s *Service) RunPass(ctx context.Context, accountID, explicitToken string) (*domain.SyncPassResult, error) {
	if accountID == "" {
		return nil, apperr.MissingField("account_id")
	}

	startTime := time.Now()

	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, apperr.PersistenceError("get account", err)
	}
	if account == nil {
		return nil, apperr.NotFound("account")
	}
	if !account.HasCredential() {
		return nil, apperr.NoCredential(accountID)
	}

	// 유효 토큰 결정: 명시적 인자 > 저장된 커서 > 처음부터
	pageToken := explicitToken
	if pageToken == "" {
		pageToken, _ = account.Cursor.Token()
	}

	oauthToken := &oauth2.Token{
		AccessToken:  account.AccessToken,
		RefreshToken: account.RefreshToken,
		Expiry:       account.TokenExpiry,
	}

	listing, err := s.provider.ListThreads(ctx, oauthToken, &out.ThreadListOptions{
		PageSize:  s.pageSize,
		PageToken: pageToken,
	})
	if err != nil {
		return nil, s.translateProviderError("list threads", err)
	}

	syncedMessages := 0
	syncedThreads := 0

	for _, ref := range listing.Refs {
		// 식별자가 없는 항목은 패스를 깨지 않고 건너뜀
		if ref.ExternalID == "" {
			logger.Warn("[SyncService.RunPass] Skipping listing entry without id for account %s", accountID)
			continue
		}

		providerThread, err := s.provider.GetThread(ctx, oauthToken, ref.ExternalID)
		if err != nil {
			// fail-fast: 스레드/메시지 upsert의 일관성을 위해 패스 전체 중단
			return nil, s.translateProviderError("get thread "+ref.ExternalID, err)
		}

		count, err := s.mirrorThread(ctx, account, providerThread)
		if err != nil {
			return nil, err
		}
		syncedMessages += count
		syncedThreads++
	}

	// 페이지 전체가 커밋된 뒤에만 커서 저장
	cursor := domain.CursorMidSync(listing.NextPageToken)
	if err := s.accountRepo.SaveCursor(ctx, accountID, cursor, time.Now()); err != nil {
		return nil, apperr.PersistenceError("save sync cursor", err)
	}

	// 상태 캐시 무효화
	s.cache.Delete(ctx, statusCacheKeyPrefix+accountID)

	result := &domain.SyncPassResult{
		SyncedMessages: syncedMessages,
		SyncedThreads:  syncedThreads,
		NextPageToken:  listing.NextPageToken,
		HasMore:        listing.NextPageToken != "",
	}

	logger.WithDuration(time.Since(startTime)).
		Info("[SyncService.RunPass] Account %s: %d threads, %d messages, hasMore=%v",
			accountID, syncedThreads, syncedMessages, result.HasMore)

	return result, nil
}

// mirrorThread - 스레드 하나를 파생 레코드로 변환해 upsert
//
// 스레드 upsert가 내부 ID를 반환한 뒤에야 메시지 upsert가 시작된다.
// 메시지의 threadRef가 같은 패스에서 만들어진 스레드를 가리켜야 하기
// 때문에 순서가 엄격하다.
func (s *Service) mirrorThread(ctx context.Context, account *domain.Account, providerThread *out.ProviderThread) (int, error) {
	thread := s.foldThread(account.ID, providerThread)

	threadID, err := s.threadRepo.UpsertByExternalID(ctx, thread)
	if err != nil {
		return 0, apperr.PersistenceError("upsert thread "+thread.ExternalID, err)
	}

	count := 0
	for i := range providerThread.Messages {
		pm := &providerThread.Messages[i]
		if pm.ExternalID == "" {
			continue
		}

		message := &domain.Message{
			AccountID:        account.ID,
			ExternalID:       pm.ExternalID,
			ThreadRef:        threadID,
			ExternalThreadID: providerThread.ExternalID,
			From:             normalizeAddress(pm.From),
			To:               normalizeAddresses(pm.To),
			Subject:          pm.Subject,
			Body:             ExtractBody(pm.Body),
			Snippet:          pm.Snippet,
			Date:             pm.InternalDate,
			LabelIDs:         pm.LabelIDs,
		}

		if _, err := s.messageRepo.UpsertByExternalID(ctx, message); err != nil {
			return 0, apperr.PersistenceError("upsert message "+pm.ExternalID, err)
		}
		count++
	}

	// 다운스트림 알림은 best-effort, 실패해도 패스는 계속
	if s.publisher != nil {
		event := &out.ThreadSyncedEvent{
			AccountID:    account.ID,
			ThreadID:     threadID,
			ExternalID:   providerThread.ExternalID,
			MessageCount: count,
			SyncedAt:     time.Now(),
		}
		if err := s.publisher.PublishThreadSynced(ctx, event); err != nil {
			logger.Warn("[SyncService.mirrorThread] Failed to publish thread synced event for %s: %v",
				providerThread.ExternalID, err)
		}
	}

	return count, nil
}

// foldThread - 메시지들을 업스트림 순서로 접어 집계 필드 파생
//
// 업스트림 상태가 권위이므로 병합이 아니라 전체 재계산이다.
func (s *Service) foldThread(accountID string, providerThread *out.ProviderThread) *domain.Thread {
	thread := &domain.Thread{
		AccountID:  accountID,
		ExternalID: providerThread.ExternalID,
		HistoryID:  providerThread.HistoryID,
		Snippet:    providerThread.Snippet,
	}

	seen := make(map[string]bool)
	for i := range providerThread.Messages {
		pm := &providerThread.Messages[i]

		// ID 없는 메시지는 저장도 건너뛰므로 집계에서도 제외한다
		if pm.ExternalID == "" {
			continue
		}

		if thread.Subject == "" && pm.Subject != "" {
			thread.Subject = pm.Subject
		}
		if pm.Snippet != "" {
			thread.Snippet = pm.Snippet
		}
		if pm.InternalDate.After(thread.LastMessageDate) {
			thread.LastMessageDate = pm.InternalDate
		}

		for _, addr := range append([]string{pm.From}, pm.To...) {
			normalized := normalizeAddress(addr)
			if normalized == "" || seen[normalized] {
				continue
			}
			seen[normalized] = true
			thread.Participants = append(thread.Participants, normalized)
		}

		thread.MessageCount++
	}

	return thread
}

// =============================================================================
// GetStatus - 현재 커서 상태 조회 (캐시 우선)
// =============================================================================

func (s *Service) GetStatus(ctx context.Context, accountID string) (*domain.SyncStatus, error) {
	if accountID == "" {
		return nil, apperr.MissingField("account_id")
	}

	cacheKey := statusCacheKeyPrefix + accountID

	var cached domain.SyncStatus
	if found, err := s.cache.GetJSON(ctx, cacheKey, &cached); err == nil && found {
		return &cached, nil
	}

	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, apperr.PersistenceError("get account", err)
	}
	if account == nil {
		return nil, apperr.NotFound("account")
	}

	status := domain.StatusFromCursor(account.Cursor, account.LastSyncedAt)
	if err := s.cache.SetJSON(ctx, cacheKey, status, s.statusTTL); err != nil {
		logger.WithError(err).Warn("[SyncService.GetStatus] Failed to cache status for account %s", accountID)
	}

	return &status, nil
}

// =============================================================================
// Helpers
// =============================================================================

// translateProviderError - 프로바이더 에러를 애플리케이션 에러 분류로 변환
func (s *Service) translateProviderError(operation string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.Timeout(operation)
	}

	var provErr *out.ProviderError
	if errors.As(err, &provErr) {
		switch provErr.Code {
		case out.ProviderErrAuth, out.ProviderErrTokenExpired:
			// 자동 재시도 금지 - 호출자가 재인증을 유도해야 함
			return apperr.UpstreamAuthExpired(provErr.Provider, err)
		case out.ProviderErrNotFound:
			return apperr.NotFound("thread")
		default:
			return apperr.UpstreamUnavailable(provErr.Provider, err)
		}
	}

	return apperr.UpstreamUnavailable("mailbox", fmt.Errorf("%s: %w", operation, err))
}

func normalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

func normalizeAddresses(addrs []string) []string {
	if len(addrs) == 0 {
		return nil
	}
	result := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		if normalized := normalizeAddress(addr); normalized != "" {
			result = append(result, normalized)
		}
	}
	return result
}
