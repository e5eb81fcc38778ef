package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"expensehq.app/web/internal/app"
	"expensehq.app/web/internal/auth"
	"expensehq.app/web/internal/http/handler"
	"expensehq.app/web/internal/http/middleware"
)

type RouterConfig struct {
	IsProduction bool
	SessionTTL   time.Duration
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

// SetupRoutes registers the pages and the JSON API of a configured server.
func SetupRoutes(router *gin.Engine, apps *app.Manager, authService auth.Service, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	session := middleware.Session(cfg.SessionTTL, cfg.IsProduction)

	webHandler := handler.NewWebHandler(apps, authService)
	WebRouter(router.Group("/", session), webHandler)

	apiHandler := handler.NewAPIHandler(apps)
	APIRouter(router.Group("/api/v1", session), apiHandler)
}

// SetupRemediation makes every route answer with the configuration page.
func SetupRemediation(router *gin.Engine, missing []string) {
	h := handler.NewRemediation(missing)
	router.NoRoute(h.Serve)
	router.NoMethod(h.Serve)
}
