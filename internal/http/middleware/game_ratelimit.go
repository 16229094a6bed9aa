package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// MoveRateLimit limits moves per player (not per IP) using Redis.
// Requires the JWT middleware to run first.
func MoveRateLimit(maxMoves int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if redisClient == nil {
			c.Next()
			return
		}

		gameID := c.GetString(ctxGameID)
		playerID := c.GetString(ctxPlayerID)
		if gameID == "" || playerID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		key := "swapit:move_rl:" + gameID + ":" + playerID + ":" + strconv.FormatInt(int64(window.Seconds()), 10)
		val, err := incrWindow(c.Request.Context(), key, window)
		if err != nil {
			c.Header("X-MoveRateLimit-Error", "redis-error")
			c.Next()
			return
		}

		c.Header("X-MoveRateLimit-Limit", strconv.Itoa(maxMoves))
		c.Header("X-MoveRateLimit-Remaining", strconv.FormatInt(max(0, int64(maxMoves)-val), 10))

		if val > int64(maxMoves) {
			RLBlocked.WithLabelValues("move").Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "move rate limit exceeded",
				"retry_after": int(window.Seconds()),
			})
			return
		}

		RLRequests.WithLabelValues("move").Inc()
		c.Next()
	}
}
