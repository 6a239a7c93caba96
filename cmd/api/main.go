package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"guess-reward-backend/internal/config"
	"guess-reward-backend/internal/handlers"
	"guess-reward-backend/internal/metrics"
	"guess-reward-backend/internal/services"
)

func main() {
	log := logrus.New()

	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	configureLogger(log, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisService, err := services.NewRedisService(ctx, cfg, log)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisService.Close()

	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" {
		log.Warn("JWT_SECRET not set, using an insecure development secret")
		jwtSecret = "development-secret"
	}
	jwtService := services.NewJWTService(jwtSecret, cfg.JWTTTL)

	random, err := services.NewHMACRandom(cfg.ServerSeed)
	if err != nil {
		log.Fatalf("Failed to initialise random source: %v", err)
	}

	chainCfg, err := services.NewChainConfig(cfg)
	if err != nil {
		log.Fatalf("Invalid chain configuration: %v", err)
	}

	m := metrics.New()
	eventLog := services.NewEventLog(cfg.EventLogSize)
	hub := handlers.NewWebSocketHub(nil, log)
	snapshots := services.NewSnapshotWriter(redisService, cfg.SnapshotInterval, log)
	sink := services.MultiSink{eventLog, redisService, m, hub, snapshots}

	chain, err := services.NewChain(chainCfg, random, sink, log)
	if err != nil {
		log.Fatalf("Failed to build chain: %v", err)
	}
	hub.SetLedger(chain.Ledger)

	if err := restoreOrBootstrap(ctx, chain, chainCfg, redisService, log); err != nil {
		log.Fatalf("Failed to initialise state: %v", err)
	}

	go hub.Run(ctx)

	go snapshots.Run(ctx, chain)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := handlers.NewRouter(handlers.RouterDeps{
		Chain:          chain,
		JWT:            jwtService,
		Sessions:       redisService,
		RateLimiter:    redisService,
		Seed:           random,
		Metrics:        m,
		Events:         eventLog,
		Stream:         redisService,
		Hub:            hub,
		IssuerKey:      cfg.AuthIssuerKey,
		RateLimitPlays: cfg.RateLimitPlays,
		Log:            log,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"port":             cfg.Port,
			"server_seed_hash": random.ServerSeedHash(),
		}).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown failed")
	}
	if err := snapshots.Save(shutdownCtx, chain); err != nil {
		log.WithError(err).Error("failed to save final snapshot")
	}
}

func configureLogger(log *logrus.Logger, cfg *config.Config) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	if cfg.IsProduction() {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
}

func restoreOrBootstrap(ctx context.Context, chain *services.Chain, cfg services.ChainConfig, redisService *services.RedisService, log *logrus.Logger) error {
	snapshot, err := redisService.LoadSnapshot(ctx)
	if err != nil {
		return err
	}
	if snapshot != nil {
		if err := chain.Restore(snapshot); err != nil {
			return err
		}
		log.WithField("taken_at", snapshot.TakenAt).Info("restored state from snapshot")
		return nil
	}
	return chain.Bootstrap(cfg)
}
