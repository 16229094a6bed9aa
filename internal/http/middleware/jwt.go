package middleware

import (
	"net/http"
	"strings"

	"swapit/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	ctxGameID   = "game_id"
	ctxPlayerID = "player_id"
)

// JWT checks the bearer token and stores its game and player in the
// context. When the route has an :id parameter the token must be for that game.
func JWT() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		claims, err := service.ParseJWT(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if id := c.Param("id"); id != "" && id != claims.GameID {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token is for another game"})
			return
		}

		c.Set(ctxGameID, claims.GameID)
		c.Set(ctxPlayerID, claims.PlayerID)
		c.Next()
	}
}
