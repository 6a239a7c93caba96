package handlers

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"guess-reward-backend/internal/models"
	"guess-reward-backend/internal/services"
)

// AuthHandler issues bearer tokens to principals vouched for by a trusted
// front end holding the issuer key. Without an issuer key, tokens are never
// issued for the reserved principals.
type AuthHandler struct {
	sessions   SessionStore
	jwtService *services.JWTService
	issuerKey  string
	reserved   map[models.Principal]struct{}
	log        *logrus.Logger
}

func NewAuthHandler(sessions SessionStore, jwtService *services.JWTService, issuerKey string, reserved []models.Principal, log *logrus.Logger) *AuthHandler {
	h := &AuthHandler{
		sessions:   sessions,
		jwtService: jwtService,
		issuerKey:  issuerKey,
		reserved:   make(map[models.Principal]struct{}, len(reserved)),
		log:        log,
	}
	for _, p := range reserved {
		h.reserved[p] = struct{}{}
	}
	return h
}

func (h *AuthHandler) IssueToken(c *gin.Context) {
	if h.issuerKey != "" {
		key := c.GetHeader("X-Issuer-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(h.issuerKey)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid issuer key"})
			return
		}
	}

	var req models.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}

	if _, ok := h.reserved[req.Principal]; ok && h.issuerKey == "" {
		h.log.WithField("principal", req.Principal).Warn("refused token for reserved principal without issuer key")
		c.JSON(http.StatusForbidden, gin.H{
			"error": "Reserved principal requires an issuer key",
			"code":  "Unauthorized",
		})
		return
	}

	token, claims, err := h.jwtService.IssueToken(req.Principal)
	if err != nil {
		respondError(c, "Failed to issue token", err)
		return
	}

	now := time.Now()
	session := &models.UserSession{
		Principal:    claims.Principal,
		SessionID:    claims.SessionID,
		CreatedAt:    now,
		LastAccessed: now,
	}
	if err := h.sessions.StoreUserSession(c.Request.Context(), session, h.jwtService.TTL()); err != nil {
		h.log.WithError(err).WithField("principal", req.Principal).Error("failed to store session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	h.log.WithField("principal", req.Principal).Info("token issued")

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"token":      token,
		"principal":  claims.Principal,
		"session_id": claims.SessionID,
		"expires_at": claims.ExpiresAt.Unix(),
	})
}
