package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/recyclepay/backend/internal/config"
	"github.com/recyclepay/backend/internal/database"
	"github.com/recyclepay/backend/internal/handlers"
	mW "github.com/recyclepay/backend/internal/middleware"
	"github.com/recyclepay/backend/internal/services"
)

func main() {
	if err := config.Init(); err != nil {
		// every key has a default
		config.NewLogger("info").WithError(err).Info("Config file not found, using environment and defaults")
	}
	cfg := config.Load()

	logger := config.NewLogger(cfg.LogLevel)
	if cfg.JWT.SecretKey == "" {
		logger.Fatal("jwt.secret_key is required")
	}

	db, err := database.InitDB(logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	redisClient := database.InitRedis(logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	registry := services.NewScanRegistry(db)
	ledger := services.NewLedgerStore(db)

	var (
		statsCache services.StatsCache
		boardCache services.LeaderboardCache
		sink       services.NotificationSink
	)
	if redisClient != nil {
		statsCache = services.NewRedisStatsCache(redisClient, cfg.Stats.CacheTTL)
		boardCache = services.NewRedisLeaderboardCache(redisClient)
		sink = services.NewRedisNotificationSink(redisClient, logger)
	} else {
		logger.Warn("Redis unavailable: stats and leaderboard are recomputed per request and live events are disabled")
	}

	statsService := services.NewStatsService(ledger, registry, statsCache, cfg.Retry, logger)
	rankService := services.NewRankService(ledger, registry, boardCache, cfg.Rank, cfg.Retry, logger)

	notifier := services.NewNotificationService(sink, cfg.Notify, logger)
	notifier.Start()
	defer notifier.Close()

	scanService := services.NewScanService(db, registry, ledger, statsService, rankService, notifier, cfg.Retry, logger)
	ledgerService := services.NewLedgerService(db, ledger, statsService, rankService, cfg.Retry, logger)
	labelService := services.NewLabelService(cfg.Labels.Size)

	router := handlers.Router{
		Auth:   mW.NewAuthenticator(cfg.JWT.SecretKey, redisClient, logger),
		Scans:  handlers.NewScanHandler(scanService, logger),
		Wallet: handlers.NewWalletHandler(statsService, rankService, ledgerService, logger),
		Admin:  handlers.NewAdminHandler(scanService, ledgerService, labelService, logger),
		Health: func() map[string]string {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			status := map[string]string{"status": "healthy", "database": "up", "redis": "up"}
			if err := db.PingContext(ctx); err != nil {
				status["status"] = "degraded"
				status["database"] = "down"
			}
			if redisClient == nil || redisClient.Ping(ctx).Err() != nil {
				status["redis"] = "down"
			}
			return status
		},
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		logger.WithField("port", cfg.Port).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server stopped")
}
