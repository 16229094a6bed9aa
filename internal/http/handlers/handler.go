package handlers

import (
	"context"
	"net/http"
	"time"

	"swapit/internal/domain"
	"swapit/internal/logger"
	"swapit/internal/service"
	"swapit/internal/telegram"

	"github.com/gin-gonic/gin"
)

// ResultReader reads archived results. *repository.ResultRepository
// satisfies it.
type ResultReader interface {
	GetByPlayer(ctx context.Context, playerID string, limit int) ([]*domain.GameResult, error)
}

type Handler struct {
	Sessions *service.SessionService
	Results  ResultReader // nil without a database

	// With a bot token set, create and join take the player from signed
	// Telegram WebApp init data instead of the request body.
	TelegramBotToken string
	InitDataMaxAge   time.Duration
}

func NewHandler(sessions *service.SessionService, results ResultReader) *Handler {
	return &Handler{
		Sessions: sessions,
		Results:  results,
	}
}

// getPlayer извлекает game_id и player_id из контекста Gin (ставит JWT middleware)
func getPlayer(c *gin.Context) (string, string, bool) {
	gameID := c.GetString("game_id")
	playerID := c.GetString("player_id")
	return gameID, playerID, gameID != "" && playerID != ""
}

// writeError maps service errors onto status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch domain.KindOf(err) {
	case domain.KindValidation:
		status = http.StatusBadRequest
	case domain.KindPermission, domain.KindPhase:
		status = http.StatusForbidden
	case domain.KindNotFound:
		status = http.StatusNotFound
	}

	if status == http.StatusInternalServerError {
		logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// identify fills playerID and displayName from init data when Telegram login
// is on. It reports false after writing a 401.
func (h *Handler) identify(c *gin.Context, initData string, playerID, displayName *string) bool {
	if h.TelegramBotToken == "" {
		return true
	}
	maxAge := h.InitDataMaxAge
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	user, err := telegram.VerifyInitData(initData, h.TelegramBotToken, maxAge, time.Now())
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid init data"})
		return false
	}
	*playerID = user.PlayerID()
	if *displayName == "" {
		name := []rune(user.DisplayName())
		if len(name) > 32 {
			name = name[:32]
		}
		*displayName = string(name)
	}
	return true
}
