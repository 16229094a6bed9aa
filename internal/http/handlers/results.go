package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// PlayerResults returns the archived results of a player, newest first.
func (h *Handler) PlayerResults(c *gin.Context) {
	if h.Results == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "results archive not configured"})
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	results, err := h.Results.GetByPlayer(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get results"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"results": results,
	})
}
