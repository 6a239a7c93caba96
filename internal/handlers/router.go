package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"guess-reward-backend/internal/metrics"
	"guess-reward-backend/internal/middleware"
	"guess-reward-backend/internal/models"
	"guess-reward-backend/internal/services"
)

// RouterDeps is everything the HTTP surface needs. RateLimiter and Stream
// may be nil.
type RouterDeps struct {
	Chain          *services.Chain
	JWT            *services.JWTService
	Sessions       SessionStore
	RateLimiter    middleware.RateLimiter
	Seed           ServerSeed
	Metrics        *metrics.Metrics
	Events         *services.EventLog
	Stream         EventStream
	Hub            *WebSocketHub
	IssuerKey      string
	RateLimitPlays int
	Log            *logrus.Logger
}

func NewRouter(d RouterDeps) *gin.Engine {
	reserved := []models.Principal{
		d.Chain.Access.Owner(),
		d.Chain.Engine.Principal(),
		d.Chain.Distributor.Principal(),
	}
	authHandler := NewAuthHandler(d.Sessions, d.JWT, d.IssuerKey, reserved, d.Log)
	userHandler := NewUserHandler(d.Sessions, d.Chain)
	gameHandler := NewGameHandler(d.Chain.Engine, d.Seed, d.Metrics)
	ledgerHandler := NewLedgerHandler(d.Chain.Ledger)
	rewardHandler := NewRewardHandler(d.Chain.Distributor, d.Metrics)
	adminHandler := NewAdminHandler(d.Chain, d.Seed, d.Metrics, d.Log)
	eventsHandler := NewEventsHandler(d.Events, d.Stream, d.Chain.Access, d.Log)
	wsHandler := NewWebSocketHandler(d.Hub, d.Log)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(d.Log))
	router.Use(d.Metrics.Middleware())
	router.Use(middleware.CORS())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"paused": d.Chain.Access.Paused(),
		})
	})
	router.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	router.POST("/auth/token", authHandler.IssueToken)

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(d.JWT, d.Sessions))
	if d.RateLimiter != nil {
		protected.Use(middleware.RateLimitMiddleware(d.RateLimiter, d.RateLimitPlays, d.Log))
	}
	{
		protected.GET("/me", userHandler.GetCurrentUser)
		protected.POST("/logout", userHandler.Logout)

		protected.GET("/ws", wsHandler.HandleWebSocket)
		protected.GET("/events", eventsHandler.GetEvents)

		games := protected.Group("/games")
		{
			games.POST("/play", gameHandler.Play)
			games.GET("/latest", gameHandler.GetLatest)
			games.GET("/stats", gameHandler.GetStats)
			games.GET("/config", gameHandler.GetConfig)
			games.GET("/leaderboard", gameHandler.GetLeaderboard)

			games.GET("/verification", gameHandler.GetVerificationData)
			games.POST("/verify", gameHandler.VerifyGame)
		}

		ledger := protected.Group("/ledger")
		{
			ledger.GET("/balance", ledgerHandler.GetBalance)
			ledger.GET("/allowance", ledgerHandler.GetAllowance)
			ledger.GET("/supply", ledgerHandler.GetSupply)
			ledger.GET("/transfers", ledgerHandler.GetTransfers)
			ledger.POST("/approve", ledgerHandler.Approve)
			ledger.POST("/transfer", ledgerHandler.Transfer)
			ledger.POST("/transfer-from", ledgerHandler.TransferFrom)
			ledger.POST("/mint", ledgerHandler.Mint)
			ledger.POST("/burn", ledgerHandler.Burn)
		}

		rewards := protected.Group("/rewards")
		{
			rewards.POST("/claim", rewardHandler.Claim)
			rewards.GET("/claims", rewardHandler.GetClaims)
		}

		admin := protected.Group("/admin")
		admin.Use(middleware.RequireOwner(d.Chain.Access))
		{
			admin.POST("/pause", adminHandler.Pause)
			admin.POST("/unpause", adminHandler.Unpause)
			admin.POST("/minters", adminHandler.AddMinter)
			admin.DELETE("/minters/:principal", adminHandler.RemoveMinter)
			admin.POST("/games/play-on-behalf", adminHandler.PlayOnBehalf)
			admin.POST("/seed/rotate", adminHandler.RotateSeed)
			admin.GET("/state", adminHandler.GetState)
		}
	}

	return router
}
