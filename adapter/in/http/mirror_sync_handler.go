package http

import (
	"context"
	"time"

	"mirror_server/core/port/in"
	"mirror_server/core/port/out"
	"mirror_server/pkg/logger"
	"mirror_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// =============================================================================
// Sync Handler
// =============================================================================

const syncLockKeyPrefix = "sync:lock:"

type SyncHandler struct {
	syncService    in.SyncService
	cache          out.Cache
	lockTTL        time.Duration
	requestTimeout time.Duration
}

func NewSyncHandler(syncService in.SyncService, cache out.Cache, lockTTL, requestTimeout time.Duration) *SyncHandler {
	return &SyncHandler{
		syncService:    syncService,
		cache:          cache,
		lockTTL:        lockTTL,
		requestTimeout: requestTimeout,
	}
}

func (h *SyncHandler) Register(app fiber.Router) {
	emails := app.Group("/emails")

	emails.Post("/sync", h.TriggerSync)         // 동기화 패스 한 번 실행
	emails.Get("/sync/status", h.GetSyncStatus) // 커서 상태 조회
}

type triggerSyncRequest struct {
	PageToken string `json:"page_token"`
}

// TriggerSync runs exactly one sync pass for the caller's account.
//
// 계정당 Redis 락으로 직렬화된다. 패스가 이미 진행 중이면 409 - 엔진
// 자체는 동시 패스를 막지 않으므로 여기서 막아야 한다.
func (h *SyncHandler) TriggerSync(c *fiber.Ctx) error {
	accountID, err := GetAccountID(c)
	if err != nil {
		return response.Unauthorized(c, "authentication required")
	}

	var req triggerSyncRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.BadRequest(c, "malformed request body")
		}
	}

	lockKey := syncLockKeyPrefix + accountID
	acquired, err := h.cache.AcquireLock(c.Context(), lockKey, h.lockTTL)
	if err != nil {
		logger.WithError(err).Error("[SyncHandler] Failed to acquire sync lock for account %s", accountID)
		return response.InternalError(c, "failed to acquire sync lock")
	}
	if !acquired {
		return response.Conflict(c, "a sync pass is already running for this account")
	}
	defer func() {
		// 요청 컨텍스트는 타임아웃 시 이미 죽어 있으므로 락 해제는 별도 컨텍스트로
		if err := h.cache.ReleaseLock(context.Background(), lockKey); err != nil {
			logger.WithError(err).Warn("[SyncHandler] Failed to release sync lock for account %s", accountID)
		}
	}()

	var ctx context.Context = c.Context()
	if h.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.requestTimeout)
		defer cancel()
	}

	result, err := h.syncService.RunPass(ctx, accountID, req.PageToken)
	if err != nil {
		return AppErrorResponse(c, err)
	}

	return response.OK(c, result)
}

// GetSyncStatus returns the account's current sync cursor state.
func (h *SyncHandler) GetSyncStatus(c *fiber.Ctx) error {
	accountID, err := GetAccountID(c)
	if err != nil {
		return response.Unauthorized(c, "authentication required")
	}

	status, err := h.syncService.GetStatus(c.Context(), accountID)
	if err != nil {
		return AppErrorResponse(c, err)
	}

	return response.OK(c, status)
}
