package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

var redisClient *redis.Client

// InitRedisRateLimiter sets the Redis client shared by the limiters. With a
// nil client the Redis limiters let every request through.
func InitRedisRateLimiter(rdb *redis.Client) {
	redisClient = rdb
}

// RedisRateLimit implements a fixed-window rate limiter using Redis INCR/EXPIRE.
// key format: swapit:rl:<window_seconds>:<ip>
func RedisRateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if redisClient == nil {
			c.Next()
			return
		}

		key := "swapit:rl:" + strconv.FormatInt(int64(window.Seconds()), 10) + ":" + c.ClientIP()
		val, err := incrWindow(c.Request.Context(), key, window)
		if err != nil {
			// fail-open
			c.Header("X-RateLimit-Error", "redis-error")
			c.Next()
			return
		}

		if val > int64(maxRequests) {
			RLBlocked.WithLabelValues(c.FullPath()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}

		RLRequests.WithLabelValues(c.FullPath()).Inc()
		c.Next()
	}
}

// APIRateLimit picks the Redis limiter when Redis is configured and the
// in-process one otherwise.
func APIRateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	if redisClient == nil {
		return SimpleRateLimit(maxRequests, window)
	}
	return RedisRateLimit(maxRequests, window)
}

func incrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	val, err := redisClient.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if val == 1 {
		// first hit opens the window
		redisClient.Expire(ctx, key, window)
	}
	return val, nil
}
