package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"guess-reward-backend/internal/models"
	"guess-reward-backend/internal/services"
)

// SessionStore keeps the server side of issued tokens.
type SessionStore interface {
	StoreUserSession(ctx context.Context, session *models.UserSession, expiry time.Duration) error
	GetUserSession(ctx context.Context, principal models.Principal, sessionID string) (*models.UserSession, error)
	DeleteUserSession(ctx context.Context, principal models.Principal, sessionID string) error
}

// ServerSeed is the provably fair commitment behind the random source.
type ServerSeed interface {
	ServerSeedHash() string
	RotateServerSeed() (string, error)
}

// PoolMonitor is told about payouts rejected for lack of funds.
type PoolMonitor interface {
	PoolExhausted()
}

func notePoolExhausted(monitor PoolMonitor, err error) {
	if monitor != nil && errors.Is(err, services.ErrRewardPoolExhausted) {
		monitor.PoolExhausted()
	}
}

var statusByKind = map[string]int{
	"InvalidInput":          http.StatusBadRequest,
	"Unauthorized":          http.StatusForbidden,
	"Paused":                http.StatusServiceUnavailable,
	"InsufficientBalance":   http.StatusUnprocessableEntity,
	"InsufficientAllowance": http.StatusUnprocessableEntity,
	"RewardPoolExhausted":   http.StatusConflict,
	"AlreadyClaimed":        http.StatusConflict,
	"NoGamesPlayed":         http.StatusNotFound,
	"Overflow":              http.StatusUnprocessableEntity,
}

func respondError(c *gin.Context, message string, err error) {
	kind := services.Kind(err)
	status, ok := statusByKind[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{
		"error":   message,
		"code":    kind,
		"details": err.Error(),
	})
}

func respondInvalid(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request",
		"code":    "InvalidInput",
		"details": err.Error(),
	})
}

func queryLimit(c *gin.Context, def, max int) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(def)))
	if err != nil || limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
