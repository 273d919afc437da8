// Command statswatch polls one user's stats and prints every change. It is
// the fallback for clients that cannot hold a live event session, and a
// quick way to check that decisions reach a user's dashboard.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/recyclepay/backend/internal/config"
	"github.com/recyclepay/backend/internal/database"
	"github.com/recyclepay/backend/internal/services"
	"github.com/sirupsen/logrus"
)

func main() {
	userID := flag.String("user", "", "user id to watch")
	interval := flag.Duration("interval", 0, "poll interval (default watch.interval)")
	flag.Parse()

	if err := config.Init(); err != nil {
		config.NewLogger("info").WithError(err).Debug("Config file not found, using environment and defaults")
	}
	cfg := config.Load()
	logger := config.NewLogger(cfg.LogLevel)

	if *userID == "" {
		logger.Fatal("-user is required")
	}
	if *interval > 0 {
		cfg.Watch.Interval = *interval
	}

	db, err := database.InitDB(logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	var cache services.StatsCache
	if redisClient := database.InitRedis(logger); redisClient != nil {
		defer redisClient.Close()
		cache = services.NewRedisStatsCache(redisClient, cfg.Stats.CacheTTL)
	}

	stats := services.NewStatsService(services.NewLedgerStore(db), services.NewScanRegistry(db), cache, cfg.Retry, logger)

	out := json.NewEncoder(os.Stdout)
	watcher := services.NewStatsWatcher(stats, *userID, cfg.Watch, func(change services.StatsChange) {
		if err := out.Encode(change.Current); err != nil {
			logger.WithError(err).Error("failed to print stats")
		}
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.WithFields(logrus.Fields{
		"user_id":  *userID,
		"interval": cfg.Watch.Interval.String(),
	}).Info("watching stats")

	if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
		logger.WithError(err).Fatal("watcher stopped")
	}
}
