package middleware

import (
	"context"
	"net/http"
	"strconv"

	"circle-chat/internal/redis"
	"circle-chat/internal/services"
	"circle-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// Limiter is implemented by *redis.RateLimiter.
type Limiter interface {
	AllowMessage(ctx context.Context, userID string) (*redis.RateLimitResult, error)
	AllowSession(ctx context.Context, ip string) (*redis.RateLimitResult, error)
}

// SessionRateLimitMiddleware limits sign-in attempts per client address.
func SessionRateLimitMiddleware(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := limiter.AllowSession(c.Request.Context(), c.ClientIP())
		enforce(c, result, err, "rate limit exceeded")
	}
}

// MessageRateLimitMiddleware limits sends per user. Must run after AuthMiddleware.
func MessageRateLimitMiddleware(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := services.UserIDFromContext(c.Request.Context())
		if !ok {
			c.Next()
			return
		}
		result, err := limiter.AllowMessage(c.Request.Context(), userID)
		enforce(c, result, err, "message rate limit exceeded")
	}
}

// enforce fails open when the limiter itself is unavailable.
func enforce(c *gin.Context, result *redis.RateLimitResult, err error, message string) {
	if err != nil || result == nil {
		c.Next()
		return
	}
	setRateLimitHeaders(c, result)
	if !result.Allowed {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, httpdto.NewErrorResponse(message, httpdto.CodeRateLimited))
		return
	}
	c.Next()
}

func setRateLimitHeaders(c *gin.Context, result *redis.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(result.ResetIn.Seconds()), 10))
}
