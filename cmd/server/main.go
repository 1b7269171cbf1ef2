package main

import (
	"context"

	"github.com/joho/godotenv"

	"github.com/pawmatch/engine/internal/app"
	"github.com/pawmatch/engine/internal/cache"
	"github.com/pawmatch/engine/internal/config"
	"github.com/pawmatch/engine/internal/db"
	"github.com/pawmatch/engine/internal/logger"
	"github.com/pawmatch/engine/internal/notify"
	"github.com/pawmatch/engine/internal/server"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(context.Background()); err != nil {
		log.Error("failed to connect to redis", "err", err)
		return
	}

	notifier := notify.NewNotifier(redisCache, log)

	appCtx := app.New(cfg, database, redisCache, notifier, log)

	if cfg.App.ENV == "development" {
		if err := db.SeedTestData(database); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	addr := cfg.HTTP.Host + ":" + cfg.HTTP.Port
	log.Info("starting HTTP server", "addr", addr)

	if err := server.Start(cfg, appCtx); err != nil {
		log.Error("failed to start HTTP server", "err", err)
	}
}
