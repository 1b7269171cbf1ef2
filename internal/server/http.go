package server

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/pawmatch/engine/internal/app"
	"github.com/pawmatch/engine/internal/config"
)

// NewRouter builds the gin engine with all engine endpoints mounted.
// Identity arrives pre-validated in the X-Owner-ID header; the engine
// never authenticates.
func NewRouter(appCtx *app.AppContext) *gin.Engine {
	if appCtx.Cfg.App.ENV != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	h := NewHandler(appCtx)

	v1 := router.Group("/v1")
	{
		v1.PUT("/location", h.UpsertLocation)
		v1.GET("/suggestions", h.GetSuggestions)
		v1.POST("/actions", h.RecordAction)
		v1.GET("/admirers", h.ListAdmirers)
		v1.GET("/admirers/count", h.CountAdmirers)
		v1.GET("/matches", h.ListMatches)
	}

	router.GET("/healthz", h.Health)

	return router
}

// Start boots the HTTP server on the configured address.
func Start(cfg *config.Config, appCtx *app.AppContext) error {
	addr := fmt.Sprintf("%s:%s", cfg.HTTP.Host, cfg.HTTP.Port)
	return NewRouter(appCtx).Run(addr)
}
