package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"guess-reward-backend/internal/middleware"
	"guess-reward-backend/internal/models"
	"guess-reward-backend/internal/services"
)

type RewardHandler struct {
	distributor *services.RewardDistributor
	monitor     PoolMonitor
}

func NewRewardHandler(distributor *services.RewardDistributor, monitor PoolMonitor) *RewardHandler {
	return &RewardHandler{
		distributor: distributor,
		monitor:     monitor,
	}
}

func (h *RewardHandler) Claim(c *gin.Context) {
	var req models.ClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}

	reward, err := h.distributor.DistributeReward(middleware.Principal(c), req.Category)
	if err != nil {
		notePoolExhausted(h.monitor, err)
		respondError(c, "Failed to claim reward", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"claim": models.ClaimResponse{
			Category: req.Category,
			Reward:   reward.Dec(),
			Claimed:  true,
		},
	})
}

func (h *RewardHandler) GetClaims(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"mode":    h.distributor.Mode(),
		"claims":  h.distributor.ClaimsOf(middleware.Principal(c)),
	})
}
