package middleware

import (
	"fmt"
	"net/http"

	"videoarchive/internal/service"
	"videoarchive/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimitMiddleware creates a middleware for rate limiting
func RateLimitMiddleware(rateLimitService *service.RateLimitService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		if !rateLimitService.Allow(ip) {
			logger.Logger.Warn("Rate limit exceeded", zap.String("ip", ip))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limit_exceeded",
				"message": "Too many requests. Please try again later.",
				"code":    http.StatusTooManyRequests,
			})
			c.Abort()
			return
		}

		remaining := rateLimitService.GetRemaining(ip)
		if remaining >= 0 {
			c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		}

		c.Next()
	}
}

// QuotaCheckMiddleware rejects clients whose daily serving quota is
// already exhausted. The per-file size check happens in the streaming
// handler, where the file size is known.
func QuotaCheckMiddleware(quotaService *service.QuotaService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		if ok, _ := quotaService.CanServe(ip, 0); !ok {
			logger.Logger.Warn("Serving quota exhausted", zap.String("ip", ip))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "quota_exceeded",
				"message": "Daily streaming quota exhausted. Try again after the reset.",
				"code":    http.StatusTooManyRequests,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
