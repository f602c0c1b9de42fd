// Package http implements inbound HTTP handlers.
package http

import (
	"errors"

	"mirror_server/pkg/apperr"
	"mirror_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

var ErrUnauthorized = errors.New("unauthorized")

// GetAccountID safely extracts account_id from fiber context.
// 인증 미들웨어가 Locals에 심어둔 값을 꺼낸다.
func GetAccountID(c *fiber.Ctx) (string, error) {
	accountIDVal := c.Locals("account_id")
	if accountIDVal == nil {
		return "", ErrUnauthorized
	}
	accountID, ok := accountIDVal.(string)
	if !ok || accountID == "" {
		return "", ErrUnauthorized
	}
	return accountID, nil
}

// AppErrorResponse maps an application error onto the response envelope.
func AppErrorResponse(c *fiber.Ctx, err error) error {
	appErr := apperr.AsAppError(err)
	return response.Error(c, appErr.Status, appErr.Code, appErr.Message)
}
