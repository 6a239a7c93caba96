package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"guess-reward-backend/internal/middleware"
	"guess-reward-backend/internal/models"
	"guess-reward-backend/internal/services"
)

type UserHandler struct {
	sessions SessionStore
	chain    *services.Chain
}

func NewUserHandler(sessions SessionStore, chain *services.Chain) *UserHandler {
	return &UserHandler{
		sessions: sessions,
		chain:    chain,
	}
}

func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	principal := middleware.Principal(c)
	sessionID := c.GetString(middleware.ContextSessionID)

	session, err := h.sessions.GetUserSession(c.Request.Context(), principal, sessionID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expired or invalid"})
		return
	}

	balance := h.chain.Ledger.BalanceOf(principal)
	stats := h.chain.Engine.Stats(principal)

	c.JSON(http.StatusOK, gin.H{
		"principal": principal,
		"session": gin.H{
			"session_id":    session.SessionID,
			"created_at":    session.CreatedAt,
			"last_accessed": session.LastAccessed,
		},
		"balance": models.BalanceResponse{
			Principal: principal,
			Balance:   balance.Dec(),
			Tokens:    models.FormatTokens(balance),
		},
		"stats":     stats.Response(principal),
		"is_owner":  principal == h.chain.Access.Owner(),
		"is_minter": h.chain.Access.IsMinter(principal),
	})
}

func (h *UserHandler) Logout(c *gin.Context) {
	principal := middleware.Principal(c)
	sessionID := c.GetString(middleware.ContextSessionID)
	if sessionID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Session not found"})
		return
	}

	if err := h.sessions.DeleteUserSession(c.Request.Context(), principal, sessionID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to logout"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
}
