package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ariebrainware/agendamento/config"
	"github.com/ariebrainware/agendamento/util"
	"github.com/gin-gonic/gin"
	cache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

const (
	// Rate limiting defaults
	defaultRateLimit  = 5                // 5 attempts
	defaultRateWindow = 15 * time.Minute // per 15 minutes
)

var errRateLimited = errors.New("rate limit exceeded")

// localCounters keeps per-process counts when Redis is not configured.
var localCounters = cache.New(defaultRateWindow, time.Minute)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	Limit  int
	Window time.Duration
}

func rateLimitKey(endpoint, clientIP string) string {
	return fmt.Sprintf("ratelimit:%s:%s", endpoint, clientIP)
}

// RateLimiter counts requests per client IP and path in Redis, or in process
// memory when Redis is not configured.
func RateLimiter(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Limit == 0 {
		cfg.Limit = defaultRateLimit
	}
	if cfg.Window == 0 {
		cfg.Window = defaultRateWindow
	}

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		endpoint := c.Request.URL.Path

		allowed, err := checkRateLimit(c.Request.Context(), rateLimitKey(endpoint, clientIP), cfg.Limit, cfg.Window)
		if err != nil {
			// Redis trouble must not lock users out.
			util.LogSecurityEvent(util.SecurityEvent{
				EventType: util.EventSuspiciousActivity,
				IP:        clientIP,
				Message:   fmt.Sprintf("Rate limit check failed: %v", err),
			})
			c.Next()
			return
		}

		if !allowed {
			util.LogRateLimitExceeded(clientIP, endpoint)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, util.APIResponse{
				Success: false,
				Error:   errRateLimited.Error(),
				Msg:     "Too many requests. Please try again later.",
			})
			return
		}

		c.Next()
	}
}

// checkRateLimit increments the counter for key and reports whether it is
// still within limit.
func checkRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	rdb := config.GetRedisClient()
	if rdb == nil {
		return checkLocalRateLimit(key, limit, window), nil
	}

	pipe := rdb.Pipeline()
	incrCmd := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}

	return incrCmd.Val() <= int64(limit), nil
}

// checkLocalRateLimit is a fixed-window counter: the window starts with the
// first request for key.
func checkLocalRateLimit(key string, limit int, window time.Duration) bool {
	if err := localCounters.Add(key, int64(1), window); err == nil {
		return limit >= 1
	}
	n, err := localCounters.IncrementInt64(key, 1)
	if err != nil {
		// expired between Add and IncrementInt64
		localCounters.Set(key, int64(1), window)
		return limit >= 1
	}
	return n <= int64(limit)
}

// ResetRateLimit clears the counter of clientIP on endpoint.
func ResetRateLimit(ctx context.Context, clientIP, endpoint string) error {
	key := rateLimitKey(endpoint, clientIP)
	rdb := config.GetRedisClient()
	if rdb == nil {
		localCounters.Delete(key)
		return nil
	}
	return rdb.Del(ctx, key).Err()
}
