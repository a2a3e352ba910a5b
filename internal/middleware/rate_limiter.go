package middleware

import (
	_ "embed"
	"fmt"
	"net/http"
	"time"
	"todo_tracker/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

//go:embed rate_limiter.lua
var luaScript string

var rateLimitScript = redis.NewScript(luaScript)

// RateLimiterConfig holds rate limiter configuration
type RateLimiterConfig struct {
	Capacity   int     // Maximum number of tokens (max requests)
	RefillRate float64 // Tokens refilled per second
}

// DefaultRateLimiterConfig returns default rate limiter settings
// 10 requests per second with burst capacity of 20
func DefaultRateLimiterConfig() *RateLimiterConfig {
	return &RateLimiterConfig{
		Capacity:   20,   // Can burst up to 20 requests
		RefillRate: 10.0, // Refills 10 tokens per second
	}
}

// KeyFunc picks the bucket for a request. ok=false rejects the request.
type KeyFunc func(c *gin.Context) (key string, ok bool)

// UserKey buckets requests by the authenticated username, so it must run
// after AuthMiddleware.
func UserKey(c *gin.Context) (string, bool) {
	username, err := auth.GetUsernameFromContext(c)
	if err != nil {
		return "", false
	}
	return UserRateLimiterKey(username), true
}

// ClientIPKey buckets unauthenticated requests by client address.
func ClientIPKey(c *gin.Context) (string, bool) {
	return fmt.Sprintf("rate_limiter:ip:%s", c.ClientIP()), true
}

// RateLimiterMiddleware implements Token Bucket algorithm using Redis + Lua script
func RateLimiterMiddleware(redisClient *redis.Client, config *RateLimiterConfig, keyFunc KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, ok := keyFunc(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Unauthorized - user not found in context",
			})
			return
		}

		now := time.Now().UnixMilli()

		allowed, err := rateLimitScript.Run(c.Request.Context(), redisClient, []string{key},
			config.Capacity,
			config.RefillRate,
			now,
		).Int64()
		if err != nil {
			logrus.WithError(err).Error("Failed to execute rate limiter Lua script")
			// Fail open: allow request if Redis fails
			c.Next()
			return
		}

		if allowed == 0 {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"message":     fmt.Sprintf("Maximum %g requests per second allowed", config.RefillRate),
				"retry_after": fmt.Sprintf("%.1f seconds", 1.0/config.RefillRate),
			})
			return
		}

		c.Next()
	}
}

// Build cache key for user rate limiting
func UserRateLimiterKey(username string) string {
	return fmt.Sprintf("rate_limiter:user:%s", username)
}
