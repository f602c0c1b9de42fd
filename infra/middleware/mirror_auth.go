package middleware

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mirror_server/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

// TokenBlacklist manages revoked tokens
type TokenBlacklist struct {
	redis  *redis.Client
	prefix string
}

var tokenBlacklist *TokenBlacklist

// InitTokenBlacklist initializes the token blacklist with Redis
func InitTokenBlacklist(redisClient *redis.Client) {
	if redisClient == nil {
		logger.Warn("Redis client not provided, token blacklist disabled")
		return
	}
	tokenBlacklist = &TokenBlacklist{
		redis:  redisClient,
		prefix: "token:blacklist:",
	}
	logger.Info("Token blacklist initialized")
}

// RevokeToken adds a token to the blacklist
func RevokeToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	if tokenBlacklist == nil || tokenBlacklist.redis == nil {
		return nil
	}
	return tokenBlacklist.redis.Set(ctx, tokenBlacklist.prefix+tokenID, "1", expiry).Err()
}

// IsTokenRevoked checks if a token is blacklisted
func IsTokenRevoked(ctx context.Context, tokenID string) bool {
	if tokenBlacklist == nil || tokenBlacklist.redis == nil {
		return false
	}
	exists, _ := tokenBlacklist.redis.Exists(ctx, tokenBlacklist.prefix+tokenID).Result()
	return exists > 0
}

// JWTAuth validates the bearer token and stores the account id in
// Locals("account_id"). 외부 인증 레이어가 발급한 HS256 토큰만 받는다.
func JWTAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Skip auth for CORS preflight requests
		if c.Method() == "OPTIONS" {
			return c.Next()
		}

		var tokenString string

		authHeader := c.Get("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}

		if tokenString == "" {
			return c.Status(401).JSON(fiber.Map{"error": "missing authorization"})
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unsupported signing method: %v", token.Header["alg"])
			}
			if secret == "" {
				return nil, fmt.Errorf("JWT secret not configured")
			}
			return []byte(secret), nil
		})
		if err != nil {
			logger.WithError(err).Warn("JWT validation failed")
			return c.Status(401).JSON(fiber.Map{"error": "invalid token"})
		}
		if !token.Valid {
			return c.Status(401).JSON(fiber.Map{"error": "invalid token"})
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return c.Status(401).JSON(fiber.Map{"error": "invalid claims"})
		}

		if exp, ok := claims["exp"].(float64); ok {
			if time.Now().Unix() > int64(exp) {
				return c.Status(401).JSON(fiber.Map{
					"error": "token expired",
					"code":  "TOKEN_EXPIRED",
				})
			}
		}

		// Check token blacklist (for logout/revocation)
		if jti, ok := claims["jti"].(string); ok && jti != "" {
			if IsTokenRevoked(c.Context(), jti) {
				return c.Status(401).JSON(fiber.Map{
					"error": "token has been revoked",
					"code":  "TOKEN_REVOKED",
				})
			}
		}

		accountID, ok := claims["sub"].(string)
		if !ok || accountID == "" {
			return c.Status(401).JSON(fiber.Map{"error": "missing account id in token"})
		}

		c.Locals("account_id", accountID)
		if email, ok := claims["email"].(string); ok {
			c.Locals("account_email", email)
		}

		return c.Next()
	}
}
