package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"guess-reward-backend/internal/middleware"
	"guess-reward-backend/internal/models"
	"guess-reward-backend/internal/services"
)

// AdminHandler serves the owner-only routes.
type AdminHandler struct {
	chain   *services.Chain
	seed    ServerSeed
	monitor PoolMonitor
	log     *logrus.Logger
}

func NewAdminHandler(chain *services.Chain, seed ServerSeed, monitor PoolMonitor, log *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		chain:   chain,
		seed:    seed,
		monitor: monitor,
		log:     log,
	}
}

func (h *AdminHandler) Pause(c *gin.Context) {
	if err := h.chain.Access.Pause(middleware.Principal(c)); err != nil {
		respondError(c, "Failed to pause", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "paused": true})
}

func (h *AdminHandler) Unpause(c *gin.Context) {
	if err := h.chain.Access.Unpause(middleware.Principal(c)); err != nil {
		respondError(c, "Failed to unpause", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "paused": false})
}

func (h *AdminHandler) AddMinter(c *gin.Context) {
	var req models.MinterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}

	if err := h.chain.Ledger.AddMinter(middleware.Principal(c), req.Principal); err != nil {
		respondError(c, "Failed to add minter", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"minters": h.chain.Access.Minters(),
	})
}

func (h *AdminHandler) RemoveMinter(c *gin.Context) {
	minter := models.Principal(c.Param("principal"))

	if err := h.chain.Ledger.RemoveMinter(middleware.Principal(c), minter); err != nil {
		respondError(c, "Failed to remove minter", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"minters": h.chain.Access.Minters(),
	})
}

func (h *AdminHandler) PlayOnBehalf(c *gin.Context) {
	var req models.PlayOnBehalfRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}
	play := models.PlayRequest{Guess: req.Guess}
	if err := play.Validate(); err != nil {
		respondInvalid(c, err)
		return
	}

	round, err := h.chain.Engine.PlayGameOnBehalf(middleware.Principal(c), req.Beneficiary, *req.Guess)
	if err != nil {
		notePoolExhausted(h.monitor, err)
		respondError(c, "Failed to play game", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  round.Response(),
	})
}

// RotateSeed reveals the active server seed and commits to a new one.
func (h *AdminHandler) RotateSeed(c *gin.Context) {
	previous, err := h.seed.RotateServerSeed()
	if err != nil {
		h.log.WithError(err).Error("failed to rotate server seed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to rotate server seed"})
		return
	}

	h.log.WithField("server_seed_hash", h.seed.ServerSeedHash()).Info("server seed rotated")

	c.JSON(http.StatusOK, gin.H{
		"success":              true,
		"revealed_server_seed": previous,
		"revealed_seed_hash":   services.HashServerSeed(previous),
		"server_seed_hash":     h.seed.ServerSeedHash(),
	})
}

func (h *AdminHandler) GetState(c *gin.Context) {
	conservation := "ok"
	if err := h.chain.CheckConservation(); err != nil {
		conservation = err.Error()
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"conservation": conservation,
		"reward_pool":  h.chain.Engine.RewardPoolRemaining().Dec(),
		"state":        h.chain.Snapshot(),
	})
}
