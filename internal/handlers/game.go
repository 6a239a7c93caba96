package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"guess-reward-backend/internal/middleware"
	"guess-reward-backend/internal/models"
	"guess-reward-backend/internal/services"
)

type GameHandler struct {
	engine  *services.GameEngine
	seed    ServerSeed
	monitor PoolMonitor
}

func NewGameHandler(engine *services.GameEngine, seed ServerSeed, monitor PoolMonitor) *GameHandler {
	return &GameHandler{
		engine:  engine,
		seed:    seed,
		monitor: monitor,
	}
}

func (h *GameHandler) Play(c *gin.Context) {
	player := middleware.Principal(c)

	var req models.PlayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondInvalid(c, err)
		return
	}

	round, err := h.engine.PlayGame(player, *req.Guess)
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

func (h *GameHandler) GetLatest(c *gin.Context) {
	round, err := h.engine.LatestGameResult(middleware.Principal(c))
	if err != nil {
		respondError(c, "No game result", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  round.Response(),
	})
}

func (h *GameHandler) GetStats(c *gin.Context) {
	player := middleware.Principal(c)
	stats := h.engine.Stats(player)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats":   stats.Response(player),
	})
}

func (h *GameHandler) GetConfig(c *gin.Context) {
	cfg := h.engine.Config()

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"config": gin.H{
			"min_guess":        models.MinGuess,
			"max_guess":        models.MaxGuess,
			"win_threshold":    cfg.WinThreshold,
			"base_reward":      cfg.BaseReward.Dec(),
			"entry_fee":        cfg.EntryFee.Dec(),
			"tiers":            cfg.Tiers,
			"reward_pool_left": h.engine.RewardPoolRemaining().Dec(),
			"owner_balance":    h.engine.OwnerTokenBalance().Dec(),
		},
	})
}

func (h *GameHandler) GetLeaderboard(c *gin.Context) {
	limit := queryLimit(c, 10, 100)

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"leaderboard": h.engine.Leaderboard(limit),
	})
}

func (h *GameHandler) GetVerificationData(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": models.VerificationData{
			ServerSeedHash: h.seed.ServerSeedHash(),
			NextNonce:      h.engine.NextNonce(),
		},
	})
}

// VerifyGame recomputes a target from a revealed server seed.
func (h *GameHandler) VerifyGame(c *gin.Context) {
	var req models.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}

	seed := services.SeedMaterial{
		Player:    req.Player,
		Nonce:     req.Nonce,
		Timestamp: time.Unix(req.Timestamp, 0),
	}
	target := services.VerifyTarget(req.ServerSeed, seed)

	verification := gin.H{
		"target_number":    target,
		"server_seed_hash": services.HashServerSeed(req.ServerSeed),
		"player":           req.Player,
		"nonce":            req.Nonce,
		"timestamp":        req.Timestamp,
	}
	if latest, err := h.engine.LatestGameResult(req.Player); err == nil &&
		latest.Nonce == req.Nonce && latest.Timestamp.Unix() == req.Timestamp {
		verification["matches_latest"] = latest.TargetNumber == target
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"verification": verification,
	})
}
