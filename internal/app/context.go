package app

import (
	"log/slog"

	"gorm.io/gorm"

	"github.com/pawmatch/engine/internal/cache"
	"github.com/pawmatch/engine/internal/config"
	"github.com/pawmatch/engine/internal/notify"
)

// AppContext holds shared dependencies (DB, Redis, Logger, etc.)
type AppContext struct {
	Cfg        *config.Config
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Notifier   *notify.Notifier
	Logger     *slog.Logger
}

// New creates a new AppContext
func New(cfg *config.Config, db *gorm.DB, rdb *cache.RedisCache, notifier *notify.Notifier, logger *slog.Logger) *AppContext {
	return &AppContext{
		Cfg:        cfg,
		DB:         db,
		RedisCache: rdb,
		Notifier:   notifier,
		Logger:     logger,
	}
}
