package http

import (
	"mirror_server/core/port/in"
	"mirror_server/core/service/timeline"
	"mirror_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// =============================================================================
// Timeline Handler
// =============================================================================

type TimelineHandler struct {
	timelineService in.TimelineService
}

func NewTimelineHandler(timelineService in.TimelineService) *TimelineHandler {
	return &TimelineHandler{timelineService: timelineService}
}

func (h *TimelineHandler) Register(app fiber.Router) {
	threads := app.Group("/threads")

	threads.Get("/", h.ListThreads)        // 타임라인 (keyset 페이지네이션)
	threads.Get("/:threadId", h.GetThread) // 스레드 상세
}

// ListThreads serves the descending timeline with an opaque cursor.
func (h *TimelineHandler) ListThreads(c *fiber.Ctx) error {
	accountID, err := GetAccountID(c)
	if err != nil {
		return response.Unauthorized(c, "authentication required")
	}

	params := response.GetPagination(c, timeline.DefaultLimit, timeline.MaxLimit)

	page, err := h.timelineService.ListThreads(c.Context(), accountID, params.Limit, params.Cursor)
	if err != nil {
		return AppErrorResponse(c, err)
	}

	return response.OKWithMeta(c, response.SelectFields(c, page.Threads), &response.Meta{
		Total:      int(page.Total),
		Limit:      params.Limit,
		HasNext:    page.HasNext,
		HasPrev:    page.HasPrev,
		NextCursor: page.NextCursor,
	})
}

// GetThread serves one thread with its messages in chronological order.
func (h *TimelineHandler) GetThread(c *fiber.Ctx) error {
	accountID, err := GetAccountID(c)
	if err != nil {
		return response.Unauthorized(c, "authentication required")
	}

	externalThreadID := c.Params("threadId")

	detail, err := h.timelineService.GetThreadDetail(c.Context(), accountID, externalThreadID)
	if err != nil {
		return AppErrorResponse(c, err)
	}

	return response.OK(c, detail)
}
