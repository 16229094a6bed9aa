package handlers

import (
	"net/http"
	"strings"

	"swapit/internal/domain"
	"swapit/internal/game"
	"swapit/internal/service"

	"github.com/gin-gonic/gin"
)

// maxMoveBody caps a move body; a full board is a few dozen bytes.
const maxMoveBody = 4096

type RenameRequest struct {
	Name string `json:"name"`
}

type createBody struct {
	service.CreateRequest
	InitData string `json:"init_data"`
}

type joinBody struct {
	service.JoinRequest
	InitData string `json:"init_data"`
}

type MoveRequest struct {
	RequestID string       `json:"request_id"`
	Order     domain.Order `json:"order"`
}

func (h *Handler) withToken(c *gin.Context, status int, sess *domain.GameSession, playerID string) {
	token, err := service.GenerateJWT(sess.ID, playerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}
	c.JSON(status, gin.H{
		"success": true,
		"game":    service.NewGameView(sess),
		"token":   token,
	})
}

// CreateGame creates a lobby with the caller as host.
func (h *Handler) CreateGame(c *gin.Context) {
	var body createBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	req := body.CreateRequest
	if !h.identify(c, body.InitData, &req.PlayerID, &req.DisplayName) {
		return
	}

	sess, err := h.Sessions.CreateGame(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	h.withToken(c, http.StatusCreated, sess, sess.HostID)
}

func (h *Handler) JoinGame(c *gin.Context) {
	var body joinBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	req := body.JoinRequest
	if !h.identify(c, body.InitData, &req.PlayerID, &req.DisplayName) {
		return
	}

	sess, err := h.Sessions.JoinGame(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}

	h.withToken(c, http.StatusOK, sess, strings.TrimSpace(req.PlayerID))
}

// StartGame starts the lobby. The caller is whoever the bearer token names.
func (h *Handler) StartGame(c *gin.Context) {
	gameID, playerID, ok := getPlayer(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sess, err := h.Sessions.StartGame(c.Request.Context(), gameID, playerID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "game": service.NewGameView(sess)})
}

func (h *Handler) GetGame(c *gin.Context) {
	view, err := h.Sessions.GetGame(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "game": view})
}

func (h *Handler) ListGames(c *gin.Context) {
	games, err := h.Sessions.ListGames(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "games": games})
}

func (h *Handler) LeaveGame(c *gin.Context) {
	gameID, playerID, ok := getPlayer(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	outcome, err := h.Sessions.LeaveGame(c.Request.Context(), gameID, playerID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "outcome": outcome})
}

func (h *Handler) UpdateName(c *gin.Context) {
	gameID, playerID, ok := getPlayer(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	sess, err := h.Sessions.UpdateName(c.Request.Context(), gameID, playerID, req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "game": service.NewGameView(sess)})
}

// ClearGames deletes every session. Admin only when ADMIN_KEY is set.
func (h *Handler) ClearGames(c *gin.Context) {
	n, err := h.Sessions.ClearGames(c.Request.Context(), c.GetHeader("X-Admin-Key"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cleared": n})
}

// SubmitMove always answers 202: a dropped move is reported as not accepted
// and the client resubmits.
func (h *Handler) SubmitMove(c *gin.Context) {
	gameID, playerID, ok := getPlayer(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxMoveBody)
	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusAccepted, gin.H{"success": true, "accepted": false})
		return
	}

	ack, accepted := h.Sessions.SubmitMove(c.Request.Context(), service.MoveRequest{
		GameID:    gameID,
		PlayerID:  playerID,
		RequestID: req.RequestID,
		Order:     req.Order,
	})
	resp := gin.H{"success": true, "accepted": accepted}
	if accepted {
		resp["ack"] = ack
	}
	c.JSON(http.StatusAccepted, resp)
}

// Themes lists the emoji themes a game can use.
func (h *Handler) Themes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "themes": game.Themes()})
}
